package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"lifehub/internal/core"
	applog "lifehub/internal/log"
)

const (
	SignInPath   = "/auth/signin"
	StartPath    = "/auth/start"
	CallbackPath = "/auth/callback"
	SignOutPath  = "/auth/signout"

	stateCookie = "lifehub_oauth_state"
	stateMaxAge = 300
)

// Accounts resolves identities to owner rows.
type Accounts interface {
	EnsureUser(ctx context.Context, email, name string) (core.User, error)
	UserByEmail(ctx context.Context, email string) (core.User, error)
}

type Handler struct {
	provider    Provider
	sessions    *Sessions
	accounts    Accounts
	afterSignIn string
	logger      *slog.Logger
}

func NewHandler(provider Provider, sessions *Sessions, accounts Accounts, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		provider:    provider,
		sessions:    sessions,
		accounts:    accounts,
		afterSignIn: "/budget",
		logger:      logger.With(applog.FieldComponent, applog.ComponentAuth),
	}
}

// Start sends the browser to the provider with a fresh state cookie.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to generate OAuth state", applog.FieldError, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   stateMaxAge,
		HttpOnly: true,
		Secure:   h.sessions.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// Callback finishes the code flow, creates the user on first sign-in and sets the session.
// validState compares the returned state with the cookie in constant time.
func validState(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		h.logger.WarnContext(ctx, "Provider returned an error", "provider_error", e)
		http.Redirect(w, r, SignInPath+"?error=denied", http.StatusFound)
		return
	}

	c, err := r.Cookie(stateCookie)
	if err != nil || !validState(q.Get("state"), c.Value) {
		h.logger.WarnContext(ctx, "OAuth state mismatch")
		http.Error(w, "Invalid sign-in state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth", MaxAge: -1})

	id, err := h.provider.Identify(ctx, q.Get("code"))
	if err != nil {
		h.logger.ErrorContext(ctx, "Identity lookup failed", applog.FieldError, err)
		http.Redirect(w, r, SignInPath+"?error=provider", http.StatusFound)
		return
	}

	user, err := h.accounts.EnsureUser(ctx, id.Email, id.Name)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to create user", applog.FieldError, err)
		http.Redirect(w, r, SignInPath+"?error=account", http.StatusFound)
		return
	}

	token, err := h.sessions.Issue(Identity{Email: user.Email, Name: user.Name})
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to sign session", applog.FieldError, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.sessions.SetCookie(w, token)
	h.logger.InfoContext(ctx, "User signed in", applog.FieldOwnerID, user.ID)
	http.Redirect(w, r, h.afterSignIn, http.StatusFound)
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", SignInPath)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, SignInPath, http.StatusSeeOther)
}

// Middleware requires a valid session whose email maps to a user row and
// puts that user in the request context.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		claims, err := h.sessions.FromRequest(r)
		if err != nil {
			if !errors.Is(err, ErrNoSession) {
				h.logger.DebugContext(ctx, "Rejected session", applog.FieldError, err)
				h.sessions.ClearCookie(w)
			}
			h.unauthenticated(w, r, "Sign in required")
			return
		}

		user, err := h.accounts.UserByEmail(ctx, claims.Email)
		if err != nil {
			if core.KindOf(err) == core.KindOwnerNotFound {
				h.sessions.ClearCookie(w)
				h.unauthenticated(w, r, core.Message("", err))
				return
			}
			h.logger.ErrorContext(ctx, "Failed to resolve session owner", applog.FieldError, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithOwner(ctx, user)))
	})
}

// unauthenticated redirects page loads and answers HTMX and JSON callers with 401.
func (h *Handler) unauthenticated(w http.ResponseWriter, r *http.Request, msg string) {
	switch {
	case r.Header.Get("HX-Request") == "true":
		w.Header().Set("HX-Redirect", SignInPath)
		w.WriteHeader(http.StatusUnauthorized)
	case strings.Contains(r.Header.Get("Accept"), "application/json"):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		http.Redirect(w, r, SignInPath, http.StatusFound)
	default:
		http.Error(w, msg, http.StatusUnauthorized)
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

type ownerKey struct{}

func WithOwner(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, ownerKey{}, u)
}

// OwnerFromContext returns the signed-in user set by Middleware.
func OwnerFromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(ownerKey{}).(core.User)
	return u, ok
}
