package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxNameLength bounds free-text names and titles.
const MaxNameLength = 200

type (
	User struct {
		ID        string
		Email     string
		Name      string
		Income    Money
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Expense struct {
		ID        string
		OwnerID   string
		Name      string
		Amount    Money
		Category  Category
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Book struct {
		ID        string
		OwnerID   string
		Title     string
		Author    string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Chapter struct {
		ID        string
		BookID    string
		Title     string
		Content   string // rich-text markup, stored verbatim after NormalizeChapterContent
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Keyword struct {
		ID         string
		ChapterID  string
		Word       string
		Definition string
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}
)

var (
	ErrEmptyEmail      = errors.New("empty email")
	ErrEmptyName       = errors.New("empty name")
	ErrNameTooLong     = errors.New("name too long (max 200 characters)")
	ErrEmptyTitle      = errors.New("empty title")
	ErrEmptyWord       = errors.New("empty keyword")
	ErrEmptyDefinition = errors.New("empty definition")
	ErrMissingParent   = errors.New("missing parent id")
)

// NewID returns a fresh opaque identifier for any entity.
func NewID() string {
	return uuid.NewString()
}

// NewExpense builds an expense for owner, stamping id and timestamps.
func NewExpense(ownerID, name string, amount Money, category Category) Expense {
	now := time.Now().UTC()
	return Expense{
		ID:        NewID(),
		OwnerID:   ownerID,
		Name:      strings.TrimSpace(name),
		Amount:    amount,
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewBook(ownerID, title, author string) Book {
	now := time.Now().UTC()
	return Book{
		ID:        NewID(),
		OwnerID:   ownerID,
		Title:     strings.TrimSpace(title),
		Author:    strings.TrimSpace(author),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewChapter always starts with empty content.
func NewChapter(bookID, title string) Chapter {
	now := time.Now().UTC()
	return Chapter{
		ID:        NewID(),
		BookID:    bookID,
		Title:     strings.TrimSpace(title),
		Content:   "",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewKeyword(chapterID, word, definition string) Keyword {
	now := time.Now().UTC()
	return Keyword{
		ID:         NewID(),
		ChapterID:  chapterID,
		Word:       strings.TrimSpace(word),
		Definition: strings.TrimSpace(definition),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return ErrEmptyEmail
	}
	return u.Income.ValidateIncome()
}

func (e Expense) Validate() error {
	if e.OwnerID == "" {
		return ErrMissingParent
	}
	if err := validateName(e.Name, ErrEmptyName); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	return nil
}

func (b Book) Validate() error {
	if b.OwnerID == "" {
		return ErrMissingParent
	}
	if err := validateName(b.Title, ErrEmptyTitle); err != nil {
		return err
	}
	if len(b.Author) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

func (c Chapter) Validate() error {
	if c.BookID == "" {
		return ErrMissingParent
	}
	return validateName(c.Title, ErrEmptyTitle)
}

func (k Keyword) Validate() error {
	if k.ChapterID == "" {
		return ErrMissingParent
	}
	if err := validateName(k.Word, ErrEmptyWord); err != nil {
		return err
	}
	if strings.TrimSpace(k.Definition) == "" {
		return ErrEmptyDefinition
	}
	return nil
}

func validateName(s string, empty error) error {
	if strings.TrimSpace(s) == "" {
		return empty
	}
	if len(s) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// ErrRecordNotFound is returned by stores when a lookup matches no row.
var ErrRecordNotFound = errors.New("record not found")
