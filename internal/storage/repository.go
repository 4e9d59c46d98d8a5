package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"lifehub/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists every entity in a single SQLite file.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// dsn enables foreign keys on every pooled connection so cascades fire.
func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (core.User, error) {
	u, err := r.queries.GetUserByID(ctx, id)
	if err != nil {
		return core.User{}, notFound(err, "get user %s", id)
	}
	return u, nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := r.queries.GetUserByEmail(ctx, email)
	if err != nil {
		return core.User{}, notFound(err, "get user by email")
	}
	return u, nil
}

// UpsertUser inserts u or refreshes the display name of the existing row with
// the same email. Income is never touched.
func (r *SQLiteRepository) UpsertUser(ctx context.Context, u core.User) (core.User, error) {
	saved, err := r.queries.UpsertUser(ctx, u)
	if err != nil {
		return core.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return saved, nil
}

func (r *SQLiteRepository) UpdateIncome(ctx context.Context, userID string, income core.Money) error {
	n, err := r.queries.UpdateUserIncome(ctx, userID, income, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update income: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update income for %s: %w", userID, core.ErrRecordNotFound)
	}
	return nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) error {
	if err := r.queries.CreateExpense(ctx, e); err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"owner_id", e.OwnerID,
		"amount", e.Amount.String(),
		"category", e.Category)
	return nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, ownerID string) ([]core.Expense, error) {
	items, err := r.queries.ListExpensesByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, ownerID, id string) error {
	n, err := r.queries.DeleteExpense(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete expense %s: %w", id, core.ErrRecordNotFound)
	}
	return nil
}

func (r *SQLiteRepository) CreateBook(ctx context.Context, b core.Book) error {
	if err := r.queries.CreateBook(ctx, b); err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) BookByID(ctx context.Context, id string) (core.Book, error) {
	b, err := r.queries.GetBook(ctx, id)
	if err != nil {
		return core.Book{}, notFound(err, "get book %s", id)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBooks(ctx context.Context, ownerID, query string) ([]core.Book, error) {
	items, err := r.queries.SearchBooks(ctx, ownerID, query)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return items, nil
}

// DeleteBook removes the book; chapters and keywords go with it via ON DELETE CASCADE.
func (r *SQLiteRepository) DeleteBook(ctx context.Context, ownerID, id string) error {
	n, err := r.queries.DeleteBook(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete book %s: %w", id, core.ErrRecordNotFound)
	}
	return nil
}

func (r *SQLiteRepository) CreateChapter(ctx context.Context, c core.Chapter) error {
	if err := r.queries.CreateChapter(ctx, c); err != nil {
		return fmt.Errorf("create chapter: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ChapterByID(ctx context.Context, id string) (core.Chapter, error) {
	c, err := r.queries.GetChapter(ctx, id)
	if err != nil {
		return core.Chapter{}, notFound(err, "get chapter %s", id)
	}
	return c, nil
}

func (r *SQLiteRepository) ListChapters(ctx context.Context, bookID string) ([]core.Chapter, error) {
	items, err := r.queries.ListChaptersByBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) UpdateChapterContent(ctx context.Context, id, content string) error {
	n, err := r.queries.UpdateChapterContent(ctx, id, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update chapter content: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update chapter %s: %w", id, core.ErrRecordNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteChapter(ctx context.Context, id string) error {
	n, err := r.queries.DeleteChapter(ctx, id)
	if err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete chapter %s: %w", id, core.ErrRecordNotFound)
	}
	return nil
}

func (r *SQLiteRepository) CreateKeyword(ctx context.Context, k core.Keyword) error {
	if err := r.queries.CreateKeyword(ctx, k); err != nil {
		return fmt.Errorf("create keyword: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListKeywords(ctx context.Context, chapterID string) ([]core.Keyword, error) {
	items, err := r.queries.ListKeywordsByChapter(ctx, chapterID)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) KeywordByID(ctx context.Context, id string) (core.Keyword, error) {
	k, err := r.queries.GetKeyword(ctx, id)
	if err != nil {
		return core.Keyword{}, notFound(err, "get keyword %s", id)
	}
	return k, nil
}

func (r *SQLiteRepository) DeleteKeyword(ctx context.Context, id string) error {
	n, err := r.queries.DeleteKeyword(ctx, id)
	if err != nil {
		return fmt.Errorf("delete keyword: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete keyword %s: %w", id, core.ErrRecordNotFound)
	}
	return nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, core.ErrRecordNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
