package services

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"lifehub/internal/core"
)

// BudgetView is everything the budget page renders.
type BudgetView struct {
	User       core.User
	Expenses   []core.Expense
	Snapshot   core.BudgetSnapshot
	ByCategory map[core.Category][]core.Expense
}

// SpendPercent reports ok=false for zero income.
func (v BudgetView) SpendPercent() (float64, bool) {
	return core.SpendPercentage(v.Snapshot)
}

type BookView struct {
	Book     core.Book
	Chapters []core.Chapter
}

type ChapterView struct {
	Book     core.Book
	Chapter  core.Chapter
	Keywords []core.Keyword
}

// BudgetView loads the owner and their expenses concurrently, then aggregates.
func (g *Gateway) BudgetView(ctx context.Context, ownerID string) (BudgetView, error) {
	const op = "load budget"
	var (
		user     core.User
		expenses []core.Expense
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		user, err = g.store.UserByID(egCtx, ownerID)
		return err
	})
	eg.Go(func() error {
		var err error
		expenses, err = g.store.ListExpenses(egCtx, ownerID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return BudgetView{}, g.ownerErr(ctx, op, err)
	}

	byCategory := make(map[core.Category][]core.Expense)
	for _, e := range expenses {
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}

	return BudgetView{
		User:       user,
		Expenses:   expenses,
		Snapshot:   core.ComputeSnapshot(user.Income, core.Lines(expenses)),
		ByCategory: byCategory,
	}, nil
}

// ListBooks returns the owner's books whose title or author contains query, ignoring case.
func (g *Gateway) ListBooks(ctx context.Context, ownerID, query string) ([]core.Book, error) {
	books, err := g.store.ListBooks(ctx, ownerID, query)
	if err != nil {
		g.logFailure(ctx, "list books", err)
		return nil, core.E(core.KindWriteFailed, "list books", err)
	}
	return books, nil
}

// BookView loads a book owned by ownerID together with its chapters.
func (g *Gateway) BookView(ctx context.Context, ownerID, bookID string) (BookView, error) {
	const op = "load book"
	var v BookView

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		v.Book, err = g.store.BookByID(egCtx, bookID)
		return err
	})
	eg.Go(func() error {
		var err error
		v.Chapters, err = g.store.ListChapters(egCtx, bookID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return BookView{}, g.readErr(ctx, op, err)
	}
	if v.Book.OwnerID != ownerID {
		return BookView{}, core.E(core.KindNotFound, op, core.ErrRecordNotFound)
	}
	return v, nil
}

// ChapterView loads a chapter, checking it belongs to bookID and that the
// book belongs to ownerID.
func (g *Gateway) ChapterView(ctx context.Context, ownerID, bookID, chapterID string) (ChapterView, error) {
	const op = "load chapter"
	var v ChapterView

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		v.Book, err = g.store.BookByID(egCtx, bookID)
		return err
	})
	eg.Go(func() error {
		var err error
		v.Chapter, err = g.store.ChapterByID(egCtx, chapterID)
		return err
	})
	eg.Go(func() error {
		var err error
		v.Keywords, err = g.store.ListKeywords(egCtx, chapterID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return ChapterView{}, g.readErr(ctx, op, err)
	}
	if v.Book.OwnerID != ownerID || v.Chapter.BookID != bookID {
		return ChapterView{}, core.E(core.KindNotFound, op, core.ErrRecordNotFound)
	}
	return v, nil
}

func (g *Gateway) readErr(ctx context.Context, op string, err error) error {
	if errors.Is(err, core.ErrRecordNotFound) {
		return core.E(core.KindNotFound, op, err)
	}
	g.logFailure(ctx, op, err)
	return core.E(core.KindWriteFailed, op, err)
}
