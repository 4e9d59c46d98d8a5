package http

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"lifehub/internal/auth"
	"lifehub/internal/cache"
	"lifehub/internal/core"
	applog "lifehub/internal/log"
	"lifehub/internal/middleware/ratelimit"
	"lifehub/internal/middleware/security"
	"lifehub/internal/middleware/trace"
	"lifehub/internal/services"
	appweb "lifehub/web"
)

// Gateway is the part of services.Gateway the pages use.
type Gateway interface {
	BudgetView(ctx context.Context, ownerID string) (services.BudgetView, error)
	ListBooks(ctx context.Context, ownerID, query string) ([]core.Book, error)
	BookView(ctx context.Context, ownerID, bookID string) (services.BookView, error)
	ChapterView(ctx context.Context, ownerID, bookID, chapterID string) (services.ChapterView, error)

	AddExpense(ctx context.Context, ownerID, name string, amount core.Money, category core.Category) (core.Expense, error)
	UpdateIncome(ctx context.Context, ownerID string, income core.Money) error
	DeleteExpense(ctx context.Context, ownerID, id string) error
	AddBook(ctx context.Context, ownerID, title, author string) (core.Book, error)
	DeleteBook(ctx context.Context, ownerID, bookID string) error
	AddChapter(ctx context.Context, bookID, title string) (core.Chapter, error)
	UpdateChapter(ctx context.Context, chapterID, content string) (core.Chapter, error)
	DeleteChapter(ctx context.Context, chapterID string) error
	AddKeyword(ctx context.Context, chapterID, word, definition string) (core.Keyword, error)
	DeleteKeyword(ctx context.Context, keywordID string) error
	ExportExpenses(ctx context.Context, ownerID string, w io.Writer) error

	Ping(ctx context.Context) error
}

type Options struct {
	Addr    string
	Gateway Gateway
	Auth    *auth.Handler
	// Views may be nil, which disables page caching.
	Views              *cache.ViewCache
	Logger             *applog.Logger
	RateLimitPerMinute int
	// ProviderLabel is the text of the sign-in button.
	ProviderLabel string
	// Assets defaults to the embedded web.FS.
	Assets fs.FS
}

type Server struct {
	http.Server
	gateway       Gateway
	auth          *auth.Handler
	views         *cache.ViewCache
	cacheManager  *cache.Manager
	limiter       *ratelimit.Limiter
	detector      *security.Detector
	tracer        *trace.Middleware
	renderer      *renderer
	logger        *applog.Logger
	errLog        *applog.StructuredLogger
	providerLabel string
	shutdownOnce  sync.Once
}

// NewServer parses the templates, wires the middleware chain and registers every route.
func NewServer(opts Options) (*Server, error) {
	if opts.Gateway == nil || opts.Auth == nil {
		return nil, fmt.Errorf("http server needs a gateway and an auth handler")
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	assets := opts.Assets
	if assets == nil {
		assets = appweb.FS
	}
	r, err := newRenderer(assets)
	if err != nil {
		return nil, err
	}

	label := opts.ProviderLabel
	if label == "" {
		label = "Sign in with Google"
	}

	detector := security.NewDetector(logger.Logger.With(applog.FieldComponent, applog.ComponentSecurity))
	s := &Server{
		gateway:       opts.Gateway,
		auth:          opts.Auth,
		views:         opts.Views,
		cacheManager:  cache.NewManager(),
		limiter:       ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:      detector,
		tracer:        trace.NewMiddleware(logger, detector.ExtractClientIP),
		renderer:      r,
		logger:        logger,
		errLog:        applog.NewStructuredLogger(logger),
		providerLabel: label,
	}
	if s.views != nil {
		s.cacheManager.Register(s.views)
		s.cacheManager.StartCleanup(time.Minute)
	}

	mux := http.NewServeMux()
	if err := s.routes(mux, assets); err != nil {
		s.stopBackground()
		return nil, err
	}

	var handler http.Handler = mux
	handler = s.limiter.Middleware(detector.ExtractClientIP, s.onRateLimit)(handler)
	handler = applog.RequestIDMiddleware(trace.FromRequest)(handler)
	handler = applog.Middleware(logger)(handler)
	handler = s.tracer.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = detector.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux, assets fs.FS) error {
	static, err := fs.Sub(assets, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET "+auth.SignInPath, s.handleSignIn)
	mux.HandleFunc("GET "+auth.StartPath, s.auth.Start)
	mux.HandleFunc("GET "+auth.CallbackPath, s.auth.Callback)
	mux.HandleFunc("POST "+auth.SignOutPath, s.auth.SignOut)

	protect := func(h http.HandlerFunc) http.Handler {
		return security.NoStore(s.auth.Middleware(h))
	}

	mux.Handle("GET /{$}", protect(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, services.BudgetPath, http.StatusFound)
	}))

	mux.Handle("GET /budget", protect(s.handleBudget))
	mux.Handle("POST /budget/expenses", protect(s.handleAddExpense))
	mux.Handle("POST /budget/expenses/{id}/delete", protect(s.handleDeleteExpense))
	mux.Handle("DELETE /budget/expenses/{id}", protect(s.handleDeleteExpense))
	mux.Handle("POST /budget/income", protect(s.handleUpdateIncome))
	mux.Handle("GET /budget/export.xlsx", protect(s.handleExport))

	mux.Handle("GET /journal", protect(s.handleJournal))
	mux.Handle("POST /journal/books", protect(s.handleAddBook))
	mux.Handle("GET /journal/{book}", protect(s.handleBook))
	mux.Handle("POST /journal/{book}/delete", protect(s.handleDeleteBook))
	mux.Handle("POST /journal/{book}/chapters", protect(s.handleAddChapter))
	mux.Handle("GET /journal/{book}/{chapter}", protect(s.handleChapter))
	mux.Handle("POST /journal/{book}/{chapter}/content", protect(s.handleUpdateChapter))
	mux.Handle("POST /journal/{book}/{chapter}/delete", protect(s.handleDeleteChapter))
	mux.Handle("POST /journal/{book}/{chapter}/keywords", protect(s.handleAddKeyword))
	mux.Handle("POST /journal/{book}/{chapter}/keywords/{id}/delete", protect(s.handleDeleteKeyword))

	for _, p := range []struct{ path, heading string }{
		{"/planner", "Planner"},
		{"/calendar", "Calendar"},
		{"/tools", "Tools"},
	} {
		mux.Handle("GET "+p.path, protect(s.placeholder(p.path, p.heading)))
	}
	return nil
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.stopBackground()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) stopBackground() {
	s.cacheManager.Stop()
	s.limiter.Stop()
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	const msg = "Rate limit exceeded. Please try again later."
	if isHTMX(r) {
		ErrorResponse(http.StatusTooManyRequests, msg).Write(w)
		return
	}
	JSONError(http.StatusTooManyRequests, msg).Write(w)
}
