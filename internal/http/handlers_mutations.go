package http

import (
	"net/http"
	"slices"

	"lifehub/internal/core"
	applog "lifehub/internal/log"
	"lifehub/internal/services"
)

// parseBody reads the request body, answering the request itself on failure.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request, op string) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.respondError(w, r, op, core.E(core.KindValidationFailed, op, err))
		return nil, false
	}
	return p, true
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	const op = "add expense"
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	p, ok := s.parseBody(w, r, op)
	if !ok {
		return
	}
	in, err := parseExpenseInput(p)
	if err != nil {
		s.respondError(w, r, op, err)
		return
	}
	e, err := s.gateway.AddExpense(r.Context(), owner.ID, in.Name, in.Amount, in.Category)
	if err != nil {
		s.respondError(w, r, op, err)
		return
	}
	fields := applog.NewFields().
		WithOwner(owner.ID).
		WithExpense(e.Name, e.Amount.String(), string(e.Category)).
		WithOperation(applog.OpCreate)
	fields[applog.FieldExpenseID] = e.ID
	s.logger.InfoContext(r.Context(), "Expense added", fields.ToSlice()...)
	s.respondMutation(w, r, "Expense added", "", e, services.BudgetPath)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	const op = "delete expense"
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	if err := s.gateway.DeleteExpense(r.Context(), owner.ID, r.PathValue("id")); err != nil {
		s.respondError(w, r, op, err)
		return
	}
	s.respondMutation(w, r, "Expense deleted", "", nil, services.BudgetPath)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	const op = "update income"
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	p, ok := s.parseBody(w, r, op)
	if !ok {
		return
	}
	income, err := parseIncomeInput(p)
	if err != nil {
		s.respondError(w, r, op, err)
		return
	}
	if err := s.gateway.UpdateIncome(r.Context(), owner.ID, income); err != nil {
		s.respondError(w, r, op, err)
		return
	}
	s.respondMutation(w, r, "Income updated", "", map[string]string{"income": income.String()}, services.BudgetPath)
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	const op = "add book"
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	p, ok := s.parseBody(w, r, op)
	if !ok {
		return
	}
	in := parseBookInput(p)
	b, err := s.gateway.AddBook(r.Context(), owner.ID, in.Title, in.Author)
	if err != nil {
		s.respondError(w, r, op, err)
		return
	}
	s.logger.InfoContext(r.Context(), "Book added", applog.FieldOwnerID, owner.ID, applog.FieldBookID, b.ID)
	s.respondMutation(w, r, "Book added", "", b, services.JournalPath)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	const op = "delete book"
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	bookID := r.PathValue("book")
	if _, err := s.gateway.BookView(r.Context(), owner.ID, bookID); err != nil {
		s.respondError(w, r, op, err)
		return
	}
	if err := s.gateway.DeleteBook(r.Context(), owner.ID, bookID); err != nil {
		s.respondError(w, r, op, err)
		return
	}
	s.respondMutation(w, r, "Book deleted", services.JournalPath, nil, services.JournalPath)
}

func (s *Server) handleAddChapter(w http.ResponseWriter, r *http.Request) {
	const op = "add chapter"
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	bookID := r.PathValue("book")
	if _, err := s.gateway.BookView(r.Context(), owner.ID, bookID); err != nil {
		s.respondError(w, r, op, err)
		return
	}
	p, ok := s.parseBody(w, r, op)
	if !ok {
		return
	}
	c, err := s.gateway.AddChapter(r.Context(), bookID, parseChapterTitle(p))
	if err != nil {
		s.respondError(w, r, op, err)
		return
	}
	s.respondMutation(w, r, "Chapter added", "", c, services.BookPath(bookID))
}

// ownChapter checks the chapter in the URL belongs to the signed-in owner.
func (s *Server) ownChapter(w http.ResponseWriter, r *http.Request, op string) (core.User, services.ChapterView, bool) {
	owner, ok := s.owner(w, r)
	if !ok {
		return core.User{}, services.ChapterView{}, false
	}
	view, err := s.gateway.ChapterView(r.Context(), owner.ID, r.PathValue("book"), r.PathValue("chapter"))
	if err != nil {
		s.respondError(w, r, op, err)
		return core.User{}, services.ChapterView{}, false
	}
	return owner, view, true
}

func (s *Server) handleUpdateChapter(w http.ResponseWriter, r *http.Request) {
	const op = "update chapter"
	_, view, ok := s.ownChapter(w, r, op)
	if !ok {
		return
	}
	p, ok := s.parseBody(w, r, op)
	if !ok {
		return
	}
	c, err := s.gateway.UpdateChapter(r.Context(), view.Chapter.ID, parseChapterContent(p))
	if err != nil {
		s.respondError(w, r, op, err)
		return
	}
	s.respondMutation(w, r, "Chapter saved", "", c, services.ChapterPath(c.BookID, c.ID))
}

func (s *Server) handleDeleteChapter(w http.ResponseWriter, r *http.Request) {
	const op = "delete chapter"
	_, view, ok := s.ownChapter(w, r, op)
	if !ok {
		return
	}
	if err := s.gateway.DeleteChapter(r.Context(), view.Chapter.ID); err != nil {
		s.respondError(w, r, op, err)
		return
	}
	bookPath := services.BookPath(view.Book.ID)
	s.respondMutation(w, r, "Chapter deleted", bookPath, nil, bookPath)
}

func (s *Server) handleAddKeyword(w http.ResponseWriter, r *http.Request) {
	const op = "add keyword"
	_, view, ok := s.ownChapter(w, r, op)
	if !ok {
		return
	}
	p, ok := s.parseBody(w, r, op)
	if !ok {
		return
	}
	in := parseKeywordInput(p)
	k, err := s.gateway.AddKeyword(r.Context(), view.Chapter.ID, in.Word, in.Definition)
	if err != nil {
		s.respondError(w, r, op, err)
		return
	}
	s.respondMutation(w, r, "Keyword added", "", k, services.ChapterPath(view.Book.ID, view.Chapter.ID))
}

func (s *Server) handleDeleteKeyword(w http.ResponseWriter, r *http.Request) {
	const op = "delete keyword"
	_, view, ok := s.ownChapter(w, r, op)
	if !ok {
		return
	}
	keywordID := r.PathValue("id")
	if !slices.ContainsFunc(view.Keywords, func(k core.Keyword) bool { return k.ID == keywordID }) {
		s.respondError(w, r, op, core.E(core.KindNotFound, op, core.ErrRecordNotFound))
		return
	}
	if err := s.gateway.DeleteKeyword(r.Context(), keywordID); err != nil {
		s.respondError(w, r, op, err)
		return
	}
	s.respondMutation(w, r, "Keyword deleted", "", nil, services.ChapterPath(view.Book.ID, view.Chapter.ID))
}
