// Package memory is an in-process store with the same contract as the SQLite
// repository, including cascading deletes and creation-time ordering.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"lifehub/internal/core"
)

type Store struct {
	mu       sync.Mutex
	users    []core.User
	expenses []core.Expense
	books    []core.Book
	chapters []core.Chapter
	keywords []core.Keyword
}

func New() *Store {
	return &Store{}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) UserByID(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("get user %s: %w", id, core.ErrRecordNotFound)
}

func (s *Store) UserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("get user by email: %w", core.ErrRecordNotFound)
}

func (s *Store) UpsertUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.users {
		if existing.Email == u.Email {
			if u.Name != "" {
				existing.Name = u.Name
			}
			existing.UpdatedAt = u.UpdatedAt
			s.users[i] = existing
			return existing, nil
		}
	}
	s.users = append(s.users, u)
	return u, nil
}

func (s *Store) UpdateIncome(_ context.Context, userID string, income core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == userID {
			s.users[i].Income = income
			s.users[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("update income for %s: %w", userID, core.ErrRecordNotFound)
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasUser(e.OwnerID) {
		return fmt.Errorf("create expense: foreign key: no user %s", e.OwnerID)
	}
	s.expenses = append(s.expenses, e)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, ownerID string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Expense) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *Store) DeleteExpense(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.expenses {
		if e.ID == id && e.OwnerID == ownerID {
			s.expenses = append(s.expenses[:i], s.expenses[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete expense %s: %w", id, core.ErrRecordNotFound)
}

func (s *Store) CreateBook(_ context.Context, b core.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasUser(b.OwnerID) {
		return fmt.Errorf("create book: foreign key: no user %s", b.OwnerID)
	}
	s.books = append(s.books, b)
	return nil
}

func (s *Store) BookByID(_ context.Context, id string) (core.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.books {
		if b.ID == id {
			return b, nil
		}
	}
	return core.Book{}, fmt.Errorf("get book %s: %w", id, core.ErrRecordNotFound)
}

// ListBooks matches query against title or author, ignoring case.
func (s *Store) ListBooks(_ context.Context, ownerID, query string) ([]core.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	var out []core.Book
	for _, b := range s.books {
		if b.OwnerID != ownerID {
			continue
		}
		if q == "" || strings.Contains(strings.ToLower(b.Title), q) || strings.Contains(strings.ToLower(b.Author), q) {
			out = append(out, b)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Book) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *Store) DeleteBook(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.books {
		if b.ID == id && b.OwnerID == ownerID {
			s.books = append(s.books[:i], s.books[i+1:]...)
			for _, c := range s.chaptersOf(id) {
				s.removeChapter(c.ID)
			}
			return nil
		}
	}
	return fmt.Errorf("delete book %s: %w", id, core.ErrRecordNotFound)
}

func (s *Store) CreateChapter(_ context.Context, c core.Chapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasBook(c.BookID) {
		return fmt.Errorf("create chapter: foreign key: no book %s", c.BookID)
	}
	s.chapters = append(s.chapters, c)
	return nil
}

func (s *Store) ChapterByID(_ context.Context, id string) (core.Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chapters {
		if c.ID == id {
			return c, nil
		}
	}
	return core.Chapter{}, fmt.Errorf("get chapter %s: %w", id, core.ErrRecordNotFound)
}

func (s *Store) ListChapters(_ context.Context, bookID string) ([]core.Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chaptersOf(bookID), nil
}

func (s *Store) UpdateChapterContent(_ context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.chapters {
		if s.chapters[i].ID == id {
			s.chapters[i].Content = content
			s.chapters[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("update chapter %s: %w", id, core.ErrRecordNotFound)
}

func (s *Store) DeleteChapter(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.removeChapter(id) {
		return fmt.Errorf("delete chapter %s: %w", id, core.ErrRecordNotFound)
	}
	return nil
}

func (s *Store) CreateKeyword(_ context.Context, k core.Keyword) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasChapter(k.ChapterID) {
		return fmt.Errorf("create keyword: foreign key: no chapter %s", k.ChapterID)
	}
	s.keywords = append(s.keywords, k)
	return nil
}

func (s *Store) ListKeywords(_ context.Context, chapterID string) ([]core.Keyword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Keyword
	for _, k := range s.keywords {
		if k.ChapterID == chapterID {
			out = append(out, k)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Keyword) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *Store) KeywordByID(_ context.Context, id string) (core.Keyword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keywords {
		if k.ID == id {
			return k, nil
		}
	}
	return core.Keyword{}, fmt.Errorf("get keyword %s: %w", id, core.ErrRecordNotFound)
}

func (s *Store) DeleteKeyword(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, k := range s.keywords {
		if k.ID == id {
			s.keywords = append(s.keywords[:i], s.keywords[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete keyword %s: %w", id, core.ErrRecordNotFound)
}

// Helpers below expect s.mu to be held.

func (s *Store) hasUser(id string) bool {
	for _, u := range s.users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) hasBook(id string) bool {
	for _, b := range s.books {
		if b.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) hasChapter(id string) bool {
	for _, c := range s.chapters {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) chaptersOf(bookID string) []core.Chapter {
	var out []core.Chapter
	for _, c := range s.chapters {
		if c.BookID == bookID {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Chapter) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (s *Store) removeChapter(id string) bool {
	for i, c := range s.chapters {
		if c.ID != id {
			continue
		}
		s.chapters = append(s.chapters[:i], s.chapters[i+1:]...)
		kept := s.keywords[:0]
		for _, k := range s.keywords {
			if k.ChapterID != id {
				kept = append(kept, k)
			}
		}
		s.keywords = kept
		return true
	}
	return false
}
