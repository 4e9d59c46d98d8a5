package storage

import (
	"context"
	"database/sql"
	"time"

	"lifehub/internal/core"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL for every table.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Users

const getUserByID = `SELECT id, email, name, income, created_at, updated_at FROM users WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id string) (core.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const getUserByEmail = `SELECT id, email, name, income, created_at, updated_at FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const upsertUser = `
INSERT INTO users (id, email, name, income, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(email) DO UPDATE SET
    name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE users.name END,
    updated_at = excluded.updated_at
RETURNING id, email, name, income, created_at, updated_at`

func (q *Queries) UpsertUser(ctx context.Context, u core.User) (core.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, upsertUser,
		u.ID, u.Email, u.Name, u.Income, u.CreatedAt, u.UpdatedAt))
}

const updateUserIncome = `UPDATE users SET income = ?, updated_at = ? WHERE id = ?`

func (q *Queries) UpdateUserIncome(ctx context.Context, id string, income core.Money, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateUserIncome, income, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Expenses

const createExpense = `
INSERT INTO expenses (id, user_id, name, amount, category, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateExpense(ctx context.Context, e core.Expense) error {
	_, err := q.db.ExecContext(ctx, createExpense,
		e.ID, e.OwnerID, e.Name, e.Amount, string(e.Category), e.CreatedAt, e.UpdatedAt)
	return err
}

const listExpensesByUser = `
SELECT id, user_id, name, amount, category, created_at, updated_at
FROM expenses WHERE user_id = ? ORDER BY created_at, id`

func (q *Queries) ListExpensesByUser(ctx context.Context, userID string) ([]core.Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpensesByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Expense
	for rows.Next() {
		var e core.Expense
		var category string
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Name, &e.Amount, &category, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Category = core.Category(category)
		items = append(items, e)
	}
	return items, rows.Err()
}

const deleteExpense = `DELETE FROM expenses WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpense, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Books

const createBook = `
INSERT INTO books (id, user_id, title, author, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateBook(ctx context.Context, b core.Book) error {
	_, err := q.db.ExecContext(ctx, createBook, b.ID, b.OwnerID, b.Title, b.Author, b.CreatedAt, b.UpdatedAt)
	return err
}

const getBook = `SELECT id, user_id, title, author, created_at, updated_at FROM books WHERE id = ?`

func (q *Queries) GetBook(ctx context.Context, id string) (core.Book, error) {
	var b core.Book
	err := q.db.QueryRowContext(ctx, getBook, id).
		Scan(&b.ID, &b.OwnerID, &b.Title, &b.Author, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// Title and author are matched case-insensitively; an empty pattern matches all.
const searchBooks = `
SELECT id, user_id, title, author, created_at, updated_at
FROM books
WHERE user_id = ?1
  AND (?2 = '' OR instr(lower(title), lower(?2)) > 0 OR instr(lower(author), lower(?2)) > 0)
ORDER BY created_at, id`

func (q *Queries) SearchBooks(ctx context.Context, userID, query string) ([]core.Book, error) {
	rows, err := q.db.QueryContext(ctx, searchBooks, userID, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Book
	for rows.Next() {
		var b core.Book
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Title, &b.Author, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

const deleteBook = `DELETE FROM books WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteBook(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteBook, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Chapters

const createChapter = `
INSERT INTO chapters (id, book_id, title, content, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateChapter(ctx context.Context, c core.Chapter) error {
	_, err := q.db.ExecContext(ctx, createChapter, c.ID, c.BookID, c.Title, c.Content, c.CreatedAt, c.UpdatedAt)
	return err
}

const getChapter = `SELECT id, book_id, title, content, created_at, updated_at FROM chapters WHERE id = ?`

func (q *Queries) GetChapter(ctx context.Context, id string) (core.Chapter, error) {
	var c core.Chapter
	err := q.db.QueryRowContext(ctx, getChapter, id).
		Scan(&c.ID, &c.BookID, &c.Title, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const listChaptersByBook = `
SELECT id, book_id, title, content, created_at, updated_at
FROM chapters WHERE book_id = ? ORDER BY created_at, id`

func (q *Queries) ListChaptersByBook(ctx context.Context, bookID string) ([]core.Chapter, error) {
	rows, err := q.db.QueryContext(ctx, listChaptersByBook, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Chapter
	for rows.Next() {
		var c core.Chapter
		if err := rows.Scan(&c.ID, &c.BookID, &c.Title, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const updateChapterContent = `UPDATE chapters SET content = ?, updated_at = ? WHERE id = ?`

func (q *Queries) UpdateChapterContent(ctx context.Context, id, content string, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateChapterContent, content, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteChapter = `DELETE FROM chapters WHERE id = ?`

func (q *Queries) DeleteChapter(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteChapter, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Keywords

const createKeyword = `
INSERT INTO keywords (id, chapter_id, word, definition, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateKeyword(ctx context.Context, k core.Keyword) error {
	_, err := q.db.ExecContext(ctx, createKeyword, k.ID, k.ChapterID, k.Word, k.Definition, k.CreatedAt, k.UpdatedAt)
	return err
}

const listKeywordsByChapter = `
SELECT id, chapter_id, word, definition, created_at, updated_at
FROM keywords WHERE chapter_id = ? ORDER BY created_at, id`

func (q *Queries) ListKeywordsByChapter(ctx context.Context, chapterID string) ([]core.Keyword, error) {
	rows, err := q.db.QueryContext(ctx, listKeywordsByChapter, chapterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Keyword
	for rows.Next() {
		var k core.Keyword
		if err := rows.Scan(&k.ID, &k.ChapterID, &k.Word, &k.Definition, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, k)
	}
	return items, rows.Err()
}

const getKeyword = `SELECT id, chapter_id, word, definition, created_at, updated_at FROM keywords WHERE id = ?`

func (q *Queries) GetKeyword(ctx context.Context, id string) (core.Keyword, error) {
	var k core.Keyword
	err := q.db.QueryRowContext(ctx, getKeyword, id).
		Scan(&k.ID, &k.ChapterID, &k.Word, &k.Definition, &k.CreatedAt, &k.UpdatedAt)
	return k, err
}

const deleteKeyword = `DELETE FROM keywords WHERE id = ?`

func (q *Queries) DeleteKeyword(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteKeyword, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanUser(row *sql.Row) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Income, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
