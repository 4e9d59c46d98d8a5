package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/goleak"

	"lifehub/internal/auth"
	"lifehub/internal/cache"
	"lifehub/internal/core"
	applog "lifehub/internal/log"
	"lifehub/internal/services"
	"lifehub/internal/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	t        *testing.T
	srv      *Server
	gw       *services.Gateway
	sessions *auth.Sessions
	owner    core.User
	cookie   *http.Cookie
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := applog.New(applog.Config{Output: io.Discard, Level: slog.LevelError})
	views := cache.NewViewCache(100, time.Minute, logger.Logger)
	gw := services.NewGateway(memory.New(),
		services.WithInvalidator(views),
		services.WithLogger(logger.Logger))

	sessions, err := auth.NewSessions("0123456789abcdef0123456789abcdef", time.Hour, false)
	require.NoError(t, err)
	provider := auth.DevProvider{Email: "ada@example.com", CallbackPath: auth.CallbackPath}
	authHandler := auth.NewHandler(provider, sessions, gw, logger.Logger)

	srv, err := NewServer(Options{
		Addr:               ":0",
		Gateway:            gw,
		Auth:               authHandler,
		Views:              views,
		Logger:             logger,
		RateLimitPerMinute: 1000,
		ProviderLabel:      "Continue as ada@example.com",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	owner, err := gw.EnsureUser(context.Background(), "ada@example.com", "Ada")
	require.NoError(t, err)
	token, err := sessions.Issue(auth.Identity{Email: owner.Email, Name: owner.Name})
	require.NoError(t, err)

	return &harness{
		t:        t,
		srv:      srv,
		gw:       gw,
		sessions: sessions,
		owner:    owner,
		cookie:   &http.Cookie{Name: auth.SessionCookie, Value: token},
	}
}

type reqOpt func(*http.Request)

func htmx(r *http.Request) { r.Header.Set("HX-Request", "true") }

func acceptJSON(r *http.Request) { r.Header.Set("Accept", "application/json") }

func anonymous(r *http.Request) { r.Header.Del("Cookie") }

func (h *harness) do(method, target string, form url.Values, opts ...reqOpt) *httptest.ResponseRecorder {
	h.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.AddCookie(h.cookie)
	for _, opt := range opts {
		opt(req)
	}
	rr := httptest.NewRecorder()
	h.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := h.do(http.MethodGet, path, nil, anonymous)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestMetrics(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodGet, "/budget", nil)
	rr := h.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	m := decodeJSON[map[string]int64](t, rr)
	assert.GreaterOrEqual(t, m["requests_total"], int64(1))
	assert.Equal(t, int64(1), m["view_cache_entries"])
}

func TestProtectedPagesRedirectAnonymous(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/", "/budget", "/journal", "/planner"} {
		rr := h.do(http.MethodGet, path, nil, anonymous)
		assert.Equal(t, http.StatusFound, rr.Code, path)
		assert.Equal(t, auth.SignInPath, rr.Header().Get("Location"), path)
	}
}

func TestSignInPage(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodGet, auth.SignInPath, nil, anonymous)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Continue as ada@example.com")
}

func TestRootRedirectsToBudget(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/budget", rr.Header().Get("Location"))
}

func TestPlaceholderPages(t *testing.T) {
	h := newHarness(t)
	for path, heading := range map[string]string{"/planner": "Planner", "/calendar": "Calendar", "/tools": "Tools"} {
		rr := h.do(http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rr.Code, path)
		assert.Contains(t, rr.Body.String(), heading)
		assert.Equal(t, "private, no-store", rr.Header().Get("Cache-Control"))
	}
}

func TestBudgetFlow(t *testing.T) {
	h := newHarness(t)

	rr := h.do(http.MethodPost, "/budget/income", url.Values{"income": {"5000"}}, htmx)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = h.do(http.MethodPost, "/budget/expenses", url.Values{
		"description": {"Rent"},
		"amount":      {"1500"},
		"category":    {"housing"},
	}, htmx)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	trigger := rr.Header().Get("HX-Trigger")
	assert.Contains(t, trigger, "page:refresh")
	assert.Contains(t, trigger, "/budget")
	assert.Contains(t, trigger, "Expense added")

	rr = h.do(http.MethodGet, "/budget", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "$5,000.00")
	assert.Contains(t, body, "$1,500.00")
	assert.Contains(t, body, "$3,500.00")
	assert.Contains(t, body, "30.0% of your income")
}

func TestBudgetPageIsCachedAndInvalidated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/budget", nil).Code)
	assert.Equal(t, 1, h.srv.views.Size())

	// A write through the gateway drops the cached view.
	_, err := h.gw.AddExpense(ctx, h.owner.ID, "Groceries", core.MoneyFromInt(80), core.CategoryFood)
	require.NoError(t, err)
	assert.Equal(t, 0, h.srv.views.Size())

	rr := h.do(http.MethodGet, "/budget", nil)
	assert.Contains(t, rr.Body.String(), "Groceries")
}

func TestAddExpenseValidation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		form url.Values
	}{
		{"bad amount", url.Values{"description": {"x"}, "amount": {"abc"}, "category": {"food"}}},
		{"zero amount", url.Values{"description": {"x"}, "amount": {"0"}, "category": {"food"}}},
		{"unknown category", url.Values{"description": {"x"}, "amount": {"5"}, "category": {"Food"}}},
		{"missing description", url.Values{"amount": {"5"}, "category": {"food"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := h.do(http.MethodPost, "/budget/expenses", tt.form, acceptJSON)
			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
			body := decodeJSON[map[string]string](t, rr)
			assert.True(t, strings.HasPrefix(body["error"], "Invalid input"), body["error"])
		})
	}

	rr := h.do(http.MethodPost, "/budget/expenses", url.Values{"amount": {"x"}}, htmx)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "show-notification")
}

func TestAddExpenseJSONBody(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/budget/expenses",
		strings.NewReader(`{"name":"Bus pass","amount":"45.50","category":"transportation"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(h.cookie)
	rr := httptest.NewRecorder()
	h.srv.Handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	view, err := h.gw.BudgetView(context.Background(), h.owner.ID)
	require.NoError(t, err)
	require.Len(t, view.Expenses, 1)
	assert.Equal(t, "Bus pass", view.Expenses[0].Name)
	assert.Equal(t, "45.50", view.Expenses[0].Amount.String())
}

func TestDeleteExpense(t *testing.T) {
	h := newHarness(t)
	e, err := h.gw.AddExpense(context.Background(), h.owner.ID, "Movie", core.MoneyFromInt(12), core.CategoryEntertainment)
	require.NoError(t, err)

	rr := h.do(http.MethodPost, "/budget/expenses/"+e.ID+"/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/budget", rr.Header().Get("Location"))

	// Deleting again is not an error.
	rr = h.do(http.MethodDelete, "/budget/expenses/"+e.ID, nil, acceptJSON)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnknownOwnerIsSignedOut(t *testing.T) {
	h := newHarness(t)
	token, err := h.sessions.Issue(auth.Identity{Email: "ghost@example.com", Name: "Ghost"})
	require.NoError(t, err)
	h.cookie = &http.Cookie{Name: auth.SessionCookie, Value: token}

	rr := h.do(http.MethodPost, "/budget/income", url.Values{"income": {"1"}}, acceptJSON)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "User not found", decodeJSON[map[string]string](t, rr)["error"])
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.gw.AddExpense(ctx, h.owner.ID, "Power bill", core.MoneyFromInt(90), core.CategoryUtilities)
	require.NoError(t, err)

	rr := h.do(http.MethodGet, "/budget/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(rr.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.NotEmpty(t, f.GetSheetList())
}

func TestJournalFlow(t *testing.T) {
	h := newHarness(t)

	rr := h.do(http.MethodPost, "/journal/books", url.Values{"bookTitle": {"Dune"}, "bookAuthor": {"Frank Herbert"}}, acceptJSON)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	book := decodeJSON[core.Book](t, rr)
	require.NotEmpty(t, book.ID)

	rr = h.do(http.MethodGet, "/journal?q=dune", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Frank Herbert")

	rr = h.do(http.MethodPost, "/journal/"+book.ID+"/chapters", url.Values{"chapterTitle": {"Arrakis"}}, acceptJSON)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	chapter := decodeJSON[core.Chapter](t, rr)
	assert.Empty(t, chapter.Content)

	chapterPath := "/journal/" + book.ID + "/" + chapter.ID
	rr = h.do(http.MethodPost, chapterPath+"/content",
		url.Values{"content": {`<p>Spice <script>alert(1)</script>must flow</p>`}}, htmx)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = h.do(http.MethodPost, chapterPath+"/keywords", url.Values{"keyword": {"Kwisatz"}, "definition": {"The one"}}, acceptJSON)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	keyword := decodeJSON[core.Keyword](t, rr)

	rr = h.do(http.MethodGet, chapterPath, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Kwisatz")
	assert.Contains(t, body, "must flow")
	assert.NotContains(t, body, "<script>alert(1)</script>")

	rr = h.do(http.MethodPost, chapterPath+"/keywords/"+keyword.ID+"/delete", url.Values{}, acceptJSON)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(http.MethodPost, chapterPath+"/delete", url.Values{}, htmx)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/journal/"+book.ID, rr.Header().Get("HX-Redirect"))

	rr = h.do(http.MethodPost, "/journal/"+book.ID+"/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/journal", rr.Header().Get("Location"))

	rr = h.do(http.MethodGet, "/journal/"+book.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestJournalRejectsOtherOwners(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	other, err := h.gw.EnsureUser(ctx, "bob@example.com", "Bob")
	require.NoError(t, err)
	book, err := h.gw.AddBook(ctx, other.ID, "Private", "Bob")
	require.NoError(t, err)
	chapter, err := h.gw.AddChapter(ctx, book.ID, "Secret")
	require.NoError(t, err)

	chapterPath := "/journal/" + book.ID + "/" + chapter.ID
	tests := []struct {
		method, path string
		form         url.Values
	}{
		{http.MethodGet, "/journal/" + book.ID, nil},
		{http.MethodGet, chapterPath, nil},
		{http.MethodPost, "/journal/" + book.ID + "/delete", url.Values{}},
		{http.MethodPost, "/journal/" + book.ID + "/chapters", url.Values{"chapterTitle": {"x"}}},
		{http.MethodPost, chapterPath + "/content", url.Values{"content": {"<p>x</p>"}}},
		{http.MethodPost, chapterPath + "/keywords", url.Values{"keyword": {"a"}, "definition": {"b"}}},
	}
	for _, tt := range tests {
		rr := h.do(tt.method, tt.path, tt.form, acceptJSON)
		assert.Equal(t, http.StatusNotFound, rr.Code, tt.method+" "+tt.path)
	}

	_, err = h.gw.BookView(ctx, other.ID, book.ID)
	assert.NoError(t, err, "book must survive")
}

func TestRateLimitedWrites(t *testing.T) {
	logger := applog.New(applog.Config{Output: io.Discard, Level: slog.LevelError})
	gw := services.NewGateway(memory.New())
	sessions, err := auth.NewSessions("secret", time.Hour, false)
	require.NoError(t, err)
	srv, err := NewServer(Options{
		Gateway:            gw,
		Auth:               auth.NewHandler(auth.DevProvider{Email: "x@example.com", CallbackPath: auth.CallbackPath}, sessions, gw, logger.Logger),
		Logger:             logger,
		RateLimitPerMinute: 1,
	})
	require.NoError(t, err)
	defer srv.Shutdown(context.Background())

	var codes []int
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/budget/income", strings.NewReader("income=1"))
		req.Header.Set("Accept", "application/json")
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.NotEqual(t, http.StatusTooManyRequests, codes[0])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
}
