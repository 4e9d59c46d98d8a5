package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"lifehub/internal/auth"
	"lifehub/internal/cache"
	"lifehub/internal/core"
	applog "lifehub/internal/log"
	"lifehub/internal/services"
)

type categoryRow struct {
	Category core.Category
	Label    string
	Total    core.Money
	Expenses []core.Expense
}

type budgetPage struct {
	View          services.BudgetView
	Rows          []categoryRow
	Uncategorized []core.Expense
	HasPercent    bool
	SpendPercent  float64
	BarWidth      int
	Categories    []core.Category
}

func newBudgetPage(v services.BudgetView) budgetPage {
	p := budgetPage{View: v, Categories: core.Categories()}
	for _, ca := range v.Snapshot.CategoryTotals.Rows() {
		p.Rows = append(p.Rows, categoryRow{
			Category: ca.Category,
			Label:    ca.Category.Label(),
			Total:    ca.Amount,
			Expenses: v.ByCategory[ca.Category],
		})
	}
	for _, e := range v.Expenses {
		if !e.Category.Valid() {
			p.Uncategorized = append(p.Uncategorized, e)
		}
	}
	if pct, ok := v.SpendPercent(); ok {
		p.HasPercent = true
		p.SpendPercent = pct
		p.BarWidth = min(max(int(pct+0.5), 0), 100)
	}
	return p
}

type journalPage struct {
	Query string
	Books []core.Book
}

type chapterPage struct {
	View services.ChapterView
}

type placeholderPage struct {
	Heading string
}

type signInPage struct {
	ProviderLabel string
	Error         bool
}

type errorPage struct {
	Status  int
	Message string
}

func (s *Server) owner(w http.ResponseWriter, r *http.Request) (core.User, bool) {
	u, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		s.respondError(w, r, "", core.E(core.KindOwnerNotFound, "resolve owner", core.ErrRecordNotFound))
	}
	return u, ok
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	view, err := cache.Load(s.views, owner.ID, services.BudgetPath, func() (services.BudgetView, error) {
		return s.gateway.BudgetView(r.Context(), owner.ID)
	})
	if err != nil {
		s.renderError(w, r, "load budget", err)
		return
	}
	s.renderPage(w, r, "budget.html", "Budget", services.BudgetPath, &owner, newBudgetPage(view))
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	query := sanitizeInput(r.URL.Query().Get("q"))
	key := services.JournalPath
	if query != "" {
		key += "?q=" + query
	}
	books, err := cache.Load(s.views, owner.ID, key, func() ([]core.Book, error) {
		return s.gateway.ListBooks(r.Context(), owner.ID, query)
	})
	if err != nil {
		s.renderError(w, r, "load books", err)
		return
	}
	s.renderPage(w, r, "journal.html", "Book Journal", services.JournalPath, &owner, journalPage{Query: query, Books: books})
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	bookID := r.PathValue("book")
	view, err := cache.Load(s.views, owner.ID, services.BookPath(bookID), func() (services.BookView, error) {
		return s.gateway.BookView(r.Context(), owner.ID, bookID)
	})
	if err != nil {
		s.renderError(w, r, "load book", err)
		return
	}
	s.renderPage(w, r, "book.html", view.Book.Title, services.JournalPath, &owner, view)
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	bookID, chapterID := r.PathValue("book"), r.PathValue("chapter")
	view, err := cache.Load(s.views, owner.ID, services.ChapterPath(bookID, chapterID), func() (services.ChapterView, error) {
		return s.gateway.ChapterView(r.Context(), owner.ID, bookID, chapterID)
	})
	if err != nil {
		s.renderError(w, r, "load chapter", err)
		return
	}
	s.renderPage(w, r, "chapter.html", view.Chapter.Title, services.JournalPath, &owner, chapterPage{View: view})
}

func (s *Server) placeholder(path, heading string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := s.owner(w, r)
		if !ok {
			return
		}
		s.renderPage(w, r, "placeholder.html", heading, path, &owner, placeholderPage{Heading: heading})
	}
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, "signin.html", "Sign in", "", nil, signInPage{
		ProviderLabel: s.providerLabel,
		Error:         r.URL.Query().Get("error") != "",
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	// Build into memory first so a failure can still produce an error response.
	var buf bytes.Buffer
	if err := s.gateway.ExportExpenses(r.Context(), owner.ID, &buf); err != nil {
		s.respondError(w, r, "export expenses", err)
		return
	}
	filename := fmt.Sprintf("expenses-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	rm := s.limiter.GetMetrics()
	dm := s.detector.GetMetrics()
	cacheEntries := 0
	if s.views != nil {
		cacheEntries = s.views.Size()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int64{
		"requests_total":       tm.TotalRequests,
		"response_time_avg_us": tm.AverageResponseTime,
		"rate_limit_hits":      rm.TotalHits,
		"rate_limit_clients":   rm.ClientCount,
		"suspicious_requests":  dm.SuspiciousRequests,
		"blocked_requests":     dm.BlockedRequests,
		"view_cache_entries":   int64(cacheEntries),
	})
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, name, title, active string, user *core.User, content any) {
	s.renderStatus(w, r, http.StatusOK, name, page{Title: title, Active: active, User: user, Content: content})
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data page) {
	if err := s.renderer.render(w, status, name, data); err != nil {
		s.errLog.LogError(r.Context(), "Template execution failed", err, applog.ComponentTemplate, applog.OpRead,
			applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", ""))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// renderError answers a failed page load: an HTML error page for browsers, JSON otherwise.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if wantsJSON(r) || isHTMX(r) {
		s.respondError(w, r, op, err)
		return
	}
	status := statusFor(err)
	if status == http.StatusUnauthorized {
		http.Redirect(w, r, auth.SignInPath, http.StatusFound)
		return
	}
	var user *core.User
	if u, ok := auth.OwnerFromContext(r.Context()); ok {
		user = &u
	}
	s.renderStatus(w, r, status, "error.html", page{
		Title:   http.StatusText(status),
		User:    user,
		Content: errorPage{Status: status, Message: core.Message(op, err)},
	})
}

// respondError writes the uniform error body: an HTML fragment with a
// notification for htmx, {"error": message} for everyone else.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	msg := core.Message(op, err)
	if core.KindOf(err) == "" {
		s.logger.ErrorContext(r.Context(), "Request failed", applog.FieldOperation, op, applog.FieldError, err)
	}
	if isHTMX(r) && !wantsJSON(r) {
		ErrorResponse(status, msg).Write(w)
		return
	}
	JSONError(status, msg).Write(w)
}

// respondMutation reports a committed change. htmx callers get refresh and
// notification triggers, JSON callers get data, plain forms are redirected.
func (s *Server) respondMutation(w http.ResponseWriter, r *http.Request, message, redirect string, data any, paths ...string) {
	switch {
	case wantsJSON(r):
		if data == nil {
			data = map[string]bool{"ok": true}
		}
		NewHTMXResponse().BodyJSON(data).Write(w)
	case isHTMX(r):
		b := NewHTMXResponse().
			TriggerPageRefresh(paths...).
			TriggerFormReset().
			TriggerSuccessNotification(message)
		if redirect != "" {
			b.Redirect(redirect)
		}
		b.Write(w)
	default:
		if redirect == "" && len(paths) > 0 {
			redirect = paths[len(paths)-1]
		}
		if redirect == "" {
			redirect = services.BudgetPath
		}
		http.Redirect(w, r, redirect, http.StatusSeeOther)
	}
}
