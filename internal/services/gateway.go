package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lifehub/internal/amqp"
	"lifehub/internal/core"
	applog "lifehub/internal/log"
)

// View paths affected by mutations.
const (
	BudgetPath  = "/budget"
	JournalPath = "/journal"
)

func BookPath(bookID string) string { return JournalPath + "/" + bookID }

func ChapterPath(bookID, chapterID string) string { return BookPath(bookID) + "/" + chapterID }

// Gateway runs every mutation against the store, then announces it.
// Announcements are best-effort: a failed publish never fails the operation.
type Gateway struct {
	store       Store
	publisher   Publisher
	invalidator Invalidator
	logger      *slog.Logger
}

type Option func(*Gateway)

func WithPublisher(p Publisher) Option {
	return func(g *Gateway) { g.publisher = p }
}

func WithInvalidator(inv Invalidator) Option {
	return func(g *Gateway) { g.invalidator = inv }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

func NewGateway(store Store, opts ...Option) *Gateway {
	g := &Gateway{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(applog.FieldComponent, applog.ComponentGateway)
	return g
}

// EnsureUser creates the user on first sign-in and refreshes the display name afterwards.
func (g *Gateway) EnsureUser(ctx context.Context, email, name string) (core.User, error) {
	const op = "sign in"
	email = strings.ToLower(strings.TrimSpace(email))
	now := time.Now().UTC()
	u := core.User{ID: core.NewID(), Email: email, Name: strings.TrimSpace(name), Income: core.Zero, CreatedAt: now, UpdatedAt: now}
	if err := u.Validate(); err != nil {
		return core.User{}, core.E(core.KindValidationFailed, op, err)
	}
	saved, err := g.store.UpsertUser(ctx, u)
	if err != nil {
		g.logFailure(ctx, op, err)
		return core.User{}, core.E(core.KindWriteFailed, op, err)
	}
	return saved, nil
}

// UserByEmail resolves a session identity to its owner row.
func (g *Gateway) UserByEmail(ctx context.Context, email string) (core.User, error) {
	const op = "resolve user"
	u, err := g.store.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return core.User{}, g.ownerErr(ctx, op, err)
	}
	return u, nil
}

func (g *Gateway) AddExpense(ctx context.Context, ownerID, name string, amount core.Money, category core.Category) (core.Expense, error) {
	const op = "add expense"
	e := core.NewExpense(ownerID, name, amount, category)
	if err := e.Validate(); err != nil {
		return core.Expense{}, core.E(core.KindValidationFailed, op, err)
	}
	if err := g.requireOwner(ctx, op, ownerID); err != nil {
		return core.Expense{}, err
	}
	if err := g.store.CreateExpense(ctx, e); err != nil {
		g.logFailure(ctx, op, err, applog.FieldOwnerID, ownerID)
		return core.Expense{}, core.E(core.KindWriteFailed, op, err)
	}

	g.committed(ctx, amqp.NewMutationEvent(amqp.EntityExpense, amqp.ActionCreate, e.ID, ownerID).
		With("name", e.Name).
		With("amount", e.Amount.String()).
		With("category", string(e.Category)),
		BudgetPath)
	return e, nil
}

func (g *Gateway) UpdateIncome(ctx context.Context, ownerID string, income core.Money) error {
	const op = "update income"
	if err := income.ValidateIncome(); err != nil {
		return core.E(core.KindValidationFailed, op, err)
	}
	if err := g.store.UpdateIncome(ctx, ownerID, income); err != nil {
		if errors.Is(err, core.ErrRecordNotFound) {
			return core.E(core.KindOwnerNotFound, op, err)
		}
		g.logFailure(ctx, op, err, applog.FieldOwnerID, ownerID)
		return core.E(core.KindWriteFailed, op, err)
	}

	g.committed(ctx, amqp.NewMutationEvent(amqp.EntityUser, amqp.ActionUpdate, ownerID, ownerID).
		With("income", income.String()),
		BudgetPath)
	return nil
}

// DeleteExpense removes the owner's expense. A missing row is not an error.
func (g *Gateway) DeleteExpense(ctx context.Context, ownerID, id string) error {
	const op = "delete expense"
	if err := g.store.DeleteExpense(ctx, ownerID, id); err != nil {
		if errors.Is(err, core.ErrRecordNotFound) {
			g.logger.DebugContext(ctx, "Expense already gone", applog.FieldExpenseID, id)
			return nil
		}
		g.logFailure(ctx, op, err, applog.FieldExpenseID, id)
		return core.E(core.KindWriteFailed, op, err)
	}

	g.committed(ctx, amqp.NewMutationEvent(amqp.EntityExpense, amqp.ActionDelete, id, ownerID), BudgetPath)
	return nil
}

func (g *Gateway) AddBook(ctx context.Context, ownerID, title, author string) (core.Book, error) {
	const op = "add book"
	b := core.NewBook(ownerID, title, author)
	if err := b.Validate(); err != nil {
		return core.Book{}, core.E(core.KindValidationFailed, op, err)
	}
	if err := g.requireOwner(ctx, op, ownerID); err != nil {
		return core.Book{}, err
	}
	if err := g.store.CreateBook(ctx, b); err != nil {
		g.logFailure(ctx, op, err, applog.FieldOwnerID, ownerID)
		return core.Book{}, core.E(core.KindWriteFailed, op, err)
	}

	g.committed(ctx, amqp.NewMutationEvent(amqp.EntityBook, amqp.ActionCreate, b.ID, ownerID).
		With("title", b.Title).
		With("author", b.Author),
		JournalPath)
	return b, nil
}

// DeleteBook removes the book with all its chapters and keywords.
func (g *Gateway) DeleteBook(ctx context.Context, ownerID, bookID string) error {
	const op = "delete book"
	if err := g.store.DeleteBook(ctx, ownerID, bookID); err != nil {
		g.logFailure(ctx, op, err, applog.FieldBookID, bookID)
		return core.E(core.KindWriteFailed, op, err)
	}

	g.committed(ctx, amqp.NewMutationEvent(amqp.EntityBook, amqp.ActionDelete, bookID, ownerID),
		JournalPath, BookPath(bookID))
	return nil
}

// AddChapter creates an empty chapter under an existing book.
func (g *Gateway) AddChapter(ctx context.Context, bookID, title string) (core.Chapter, error) {
	const op = "add chapter"
	c := core.NewChapter(bookID, title)
	if err := c.Validate(); err != nil {
		return core.Chapter{}, core.E(core.KindValidationFailed, op, err)
	}
	book, err := g.store.BookByID(ctx, bookID)
	if err != nil {
		g.logFailure(ctx, op, err, applog.FieldBookID, bookID)
		return core.Chapter{}, core.E(core.KindWriteFailed, op, err)
	}
	if err := g.store.CreateChapter(ctx, c); err != nil {
		g.logFailure(ctx, op, err, applog.FieldBookID, bookID)
		return core.Chapter{}, core.E(core.KindWriteFailed, op, err)
	}

	g.committed(ctx, amqp.NewMutationEvent(amqp.EntityChapter, amqp.ActionCreate, c.ID, book.OwnerID).
		With("book_id", bookID).
		With("title", c.Title),
		BookPath(bookID))
	return c, nil
}

// UpdateChapter replaces the chapter content after NormalizeChapterContent.
func (g *Gateway) UpdateChapter(ctx context.Context, chapterID, content string) (core.Chapter, error) {
	const op = "update chapter"
	ch, err := g.store.ChapterByID(ctx, chapterID)
	if err != nil {
		g.logFailure(ctx, op, err, applog.FieldChapterID, chapterID)
		return core.Chapter{}, core.E(core.KindWriteFailed, op, err)
	}
	ch.Content = core.NormalizeChapterContent(content)
	if err := g.store.UpdateChapterContent(ctx, chapterID, ch.Content); err != nil {
		g.logFailure(ctx, op, err, applog.FieldChapterID, chapterID)
		return core.Chapter{}, core.E(core.KindWriteFailed, op, err)
	}

	g.committed(ctx, amqp.NewMutationEvent(amqp.EntityChapter, amqp.ActionUpdate, chapterID, "").
		With("book_id", ch.BookID),
		ChapterPath(ch.BookID, chapterID))
	return ch, nil
}

// DeleteChapter removes the chapter and its keywords.
func (g *Gateway) DeleteChapter(ctx context.Context, chapterID string) error {
	const op = "delete chapter"
	ch, err := g.store.ChapterByID(ctx, chapterID)
	if err != nil {
		g.logFailure(ctx, op, err, applog.FieldChapterID, chapterID)
		return core.E(core.KindWriteFailed, op, err)
	}
	if err := g.store.DeleteChapter(ctx, chapterID); err != nil {
		g.logFailure(ctx, op, err, applog.FieldChapterID, chapterID)
		return core.E(core.KindWriteFailed, op, err)
	}

	g.committed(ctx, amqp.NewMutationEvent(amqp.EntityChapter, amqp.ActionDelete, chapterID, "").
		With("book_id", ch.BookID),
		BookPath(ch.BookID), ChapterPath(ch.BookID, chapterID))
	return nil
}

func (g *Gateway) AddKeyword(ctx context.Context, chapterID, word, definition string) (core.Keyword, error) {
	const op = "add keyword"
	k := core.NewKeyword(chapterID, word, definition)
	if err := k.Validate(); err != nil {
		return core.Keyword{}, core.E(core.KindValidationFailed, op, err)
	}
	ch, err := g.store.ChapterByID(ctx, chapterID)
	if err != nil {
		g.logFailure(ctx, op, err, applog.FieldChapterID, chapterID)
		return core.Keyword{}, core.E(core.KindWriteFailed, op, err)
	}
	if err := g.store.CreateKeyword(ctx, k); err != nil {
		g.logFailure(ctx, op, err, applog.FieldChapterID, chapterID)
		return core.Keyword{}, core.E(core.KindWriteFailed, op, err)
	}

	g.committed(ctx, amqp.NewMutationEvent(amqp.EntityKeyword, amqp.ActionCreate, k.ID, "").
		With("chapter_id", chapterID).
		With("word", k.Word),
		ChapterPath(ch.BookID, chapterID))
	return k, nil
}

func (g *Gateway) DeleteKeyword(ctx context.Context, keywordID string) error {
	const op = "delete keyword"
	k, err := g.store.KeywordByID(ctx, keywordID)
	if err != nil {
		g.logFailure(ctx, op, err, applog.FieldKeywordID, keywordID)
		return core.E(core.KindWriteFailed, op, err)
	}
	ch, err := g.store.ChapterByID(ctx, k.ChapterID)
	if err != nil {
		g.logFailure(ctx, op, err, applog.FieldChapterID, k.ChapterID)
		return core.E(core.KindWriteFailed, op, err)
	}
	if err := g.store.DeleteKeyword(ctx, keywordID); err != nil {
		g.logFailure(ctx, op, err, applog.FieldKeywordID, keywordID)
		return core.E(core.KindWriteFailed, op, err)
	}

	g.committed(ctx, amqp.NewMutationEvent(amqp.EntityKeyword, amqp.ActionDelete, keywordID, "").
		With("chapter_id", k.ChapterID),
		ChapterPath(ch.BookID, k.ChapterID))
	return nil
}

// Ping reports store health for readiness probes.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.store.Ping(ctx)
}

// requireOwner maps a missing owner to OwnerNotFound and anything else to WriteFailed.
func (g *Gateway) requireOwner(ctx context.Context, op, ownerID string) error {
	if _, err := g.store.UserByID(ctx, ownerID); err != nil {
		return g.ownerErr(ctx, op, err)
	}
	return nil
}

func (g *Gateway) ownerErr(ctx context.Context, op string, err error) error {
	if errors.Is(err, core.ErrRecordNotFound) {
		return core.E(core.KindOwnerNotFound, op, err)
	}
	g.logFailure(ctx, op, err)
	return core.E(core.KindWriteFailed, op, err)
}

// committed runs the post-write hooks: view invalidation, then the event.
func (g *Gateway) committed(ctx context.Context, ev *amqp.MutationEvent, paths ...string) {
	ev.WithPaths(paths...)
	if g.invalidator != nil {
		g.invalidator.Invalidate(ctx, ev.OwnerID, paths...)
	}
	if g.publisher == nil {
		return
	}
	if err := g.publisher.Publish(ctx, ev); err != nil {
		g.logger.WarnContext(ctx, "Failed to publish mutation event",
			applog.FieldError, err,
			"type", ev.Type(),
			"id", ev.ID)
	}
}

func (g *Gateway) logFailure(ctx context.Context, op string, err error, args ...any) {
	fields := append([]any{applog.FieldOperation, op, applog.FieldError, err}, args...)
	g.logger.ErrorContext(ctx, fmt.Sprintf("Gateway %s failed", op), fields...)
}
