package services

import (
	"context"

	"lifehub/internal/amqp"
	"lifehub/internal/core"
)

// Ports for outbound adapters. Lookups that match nothing return an error
// wrapping core.ErrRecordNotFound.
type (
	UserStore interface {
		UserByID(ctx context.Context, id string) (core.User, error)
		UserByEmail(ctx context.Context, email string) (core.User, error)
		UpsertUser(ctx context.Context, u core.User) (core.User, error)
		UpdateIncome(ctx context.Context, userID string, income core.Money) error
	}

	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) error
		ListExpenses(ctx context.Context, ownerID string) ([]core.Expense, error)
		DeleteExpense(ctx context.Context, ownerID, id string) error
	}

	BookStore interface {
		CreateBook(ctx context.Context, b core.Book) error
		BookByID(ctx context.Context, id string) (core.Book, error)
		ListBooks(ctx context.Context, ownerID, query string) ([]core.Book, error)
		DeleteBook(ctx context.Context, ownerID, id string) error
	}

	ChapterStore interface {
		CreateChapter(ctx context.Context, c core.Chapter) error
		ChapterByID(ctx context.Context, id string) (core.Chapter, error)
		ListChapters(ctx context.Context, bookID string) ([]core.Chapter, error)
		UpdateChapterContent(ctx context.Context, id, content string) error
		DeleteChapter(ctx context.Context, id string) error
	}

	KeywordStore interface {
		CreateKeyword(ctx context.Context, k core.Keyword) error
		KeywordByID(ctx context.Context, id string) (core.Keyword, error)
		ListKeywords(ctx context.Context, chapterID string) ([]core.Keyword, error)
		DeleteKeyword(ctx context.Context, id string) error
	}

	// Store is the full relational store behind the gateway.
	Store interface {
		UserStore
		ExpenseStore
		BookStore
		ChapterStore
		KeywordStore
		Ping(ctx context.Context) error
		Close() error
	}

	// Publisher receives an event after every committed mutation.
	Publisher interface {
		Publish(ctx context.Context, msg *amqp.MutationEvent) error
	}

	// Invalidator drops cached views for the given paths. An empty ownerID
	// matches every owner.
	Invalidator interface {
		Invalidate(ctx context.Context, ownerID string, paths ...string)
	}
)
