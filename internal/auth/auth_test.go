package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"lifehub/internal/core"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeAccounts struct {
	users map[string]core.User
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{users: map[string]core.User{}}
}

func (f *fakeAccounts) EnsureUser(_ context.Context, email, name string) (core.User, error) {
	email = strings.ToLower(email)
	if u, ok := f.users[email]; ok {
		return u, nil
	}
	u := core.User{ID: core.NewID(), Email: email, Name: name, Income: core.Zero}
	f.users[email] = u
	return u, nil
}

func (f *fakeAccounts) UserByEmail(_ context.Context, email string) (core.User, error) {
	if u, ok := f.users[email]; ok {
		return u, nil
	}
	return core.User{}, core.E(core.KindOwnerNotFound, "resolve user", core.ErrRecordNotFound)
}

func newTestSessions(t *testing.T) *Sessions {
	t.Helper()
	s, err := NewSessions(testSecret, time.Hour, false)
	require.NoError(t, err)
	return s
}

func TestSessions_RoundTrip(t *testing.T) {
	s := newTestSessions(t)
	token, err := s.Issue(Identity{Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)

	claims, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "Ada", claims.Name)
	assert.Equal(t, issuer, claims.Issuer)
}

func TestSessions_Rejects(t *testing.T) {
	s := newTestSessions(t)
	token, err := s.Issue(Identity{Email: "ada@example.com"})
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := newTestSessions(t)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Parse(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewSessions(strings.Repeat("x", 32), time.Hour, false)
		require.NoError(t, err)
		_, err = other.Parse(token)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("unsigned", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
			Email:            "eve@example.com",
			RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer},
		})
		raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.Parse(raw)
		assert.Error(t, err)
	})

	t.Run("missing email", func(t *testing.T) {
		_, err := s.Parse(mustIssue(t, s, Identity{}))
		assert.Error(t, err)
	})
}

func TestNewSessions_RandomSecret(t *testing.T) {
	a, err := NewSessions("", 0, false)
	require.NoError(t, err)
	b, err := NewSessions("", 0, false)
	require.NoError(t, err)

	token := mustIssue(t, a, Identity{Email: "x@example.com"})
	_, err = b.Parse(token)
	assert.Error(t, err)
	assert.Equal(t, 30*24*time.Hour, a.ttl)
}

func mustIssue(t *testing.T, s *Sessions, id Identity) string {
	t.Helper()
	token, err := s.Issue(id)
	require.NoError(t, err)
	return token
}

func TestDevSignInFlow(t *testing.T) {
	accounts := newFakeAccounts()
	sessions := newTestSessions(t)
	h := NewHandler(DevProvider{Email: "dev@example.com"}, sessions, accounts, nil)

	start := httptest.NewRecorder()
	h.Start(start, httptest.NewRequest(http.MethodGet, StartPath, nil))
	require.Equal(t, http.StatusFound, start.Code)

	loc, err := url.Parse(start.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, CallbackPath, loc.Path)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	req := httptest.NewRequest(http.MethodGet, loc.String(), nil)
	for _, c := range start.Result().Cookies() {
		req.AddCookie(c)
	}
	cb := httptest.NewRecorder()
	h.Callback(cb, req)

	require.Equal(t, http.StatusFound, cb.Code)
	assert.Equal(t, "/budget", cb.Header().Get("Location"))
	require.Contains(t, accounts.users, "dev@example.com")
	assert.Equal(t, "dev", accounts.users["dev@example.com"].Name)

	var session *http.Cookie
	for _, c := range cb.Result().Cookies() {
		if c.Name == SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	claims, err := sessions.Parse(session.Value)
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", claims.Email)
}

func TestCallback_StateMismatch(t *testing.T) {
	h := NewHandler(DevProvider{Email: "dev@example.com"}, newTestSessions(t), newFakeAccounts(), nil)

	req := httptest.NewRequest(http.MethodGet, CallbackPath+"?state=forged&code=dev", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "real"})
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidState(t *testing.T) {
	cases := []struct {
		name      string
		got, want string
		ok        bool
	}{
		{"match", "abc123", "abc123", true},
		{"mismatch", "abc124", "abc123", false},
		{"prefix", "abc", "abc123", false},
		{"empty cookie", "", "", false},
		{"missing query", "", "abc123", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ok, validState(tc.got, tc.want))
		})
	}
}

func TestCallback_MissingStateCookie(t *testing.T) {
	h := NewHandler(DevProvider{Email: "dev@example.com"}, newTestSessions(t), newFakeAccounts(), nil)

	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?state=&code=dev", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallback_ProviderError(t *testing.T) {
	h := NewHandler(DevProvider{Email: "dev@example.com"}, newTestSessions(t), newFakeAccounts(), nil)

	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?error=access_denied", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, SignInPath+"?error=denied", rec.Header().Get("Location"))
}

func TestMiddleware(t *testing.T) {
	accounts := newFakeAccounts()
	sessions := newTestSessions(t)
	h := NewHandler(DevProvider{Email: "dev@example.com"}, sessions, accounts, nil)
	user, _ := accounts.EnsureUser(context.Background(), "ada@example.com", "Ada")

	var seen core.User
	protected := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = OwnerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		method   string
		token    string
		headers  map[string]string
		wantCode int
		wantLoc  string
		wantHX   string
		wantBody string
	}{
		{name: "page without session redirects", method: http.MethodGet, wantCode: http.StatusFound, wantLoc: SignInPath},
		{name: "htmx without session", method: http.MethodPost, headers: map[string]string{"HX-Request": "true"}, wantCode: http.StatusUnauthorized, wantHX: SignInPath},
		{name: "json without session", method: http.MethodPost, headers: map[string]string{"Accept": "application/json"}, wantCode: http.StatusUnauthorized, wantBody: "Sign in required"},
		{name: "garbage token redirects", method: http.MethodGet, token: "not-a-jwt", wantCode: http.StatusFound, wantLoc: SignInPath},
		{name: "unknown owner", method: http.MethodPost, token: mustIssue(t, sessions, Identity{Email: "ghost@example.com"}), headers: map[string]string{"Accept": "application/json"}, wantCode: http.StatusUnauthorized, wantBody: "User not found"},
		{name: "valid session", method: http.MethodGet, token: mustIssue(t, sessions, Identity{Email: user.Email}), wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = core.User{}
			req := httptest.NewRequest(tt.method, "/budget", nil)
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.token})
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			}
			if tt.wantHX != "" {
				assert.Equal(t, tt.wantHX, rec.Header().Get("HX-Redirect"))
			}
			if tt.wantBody != "" {
				var body map[string]string
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.wantBody, body["error"])
			}
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, user.ID, seen.ID)
			} else {
				assert.Empty(t, seen.ID)
			}
		})
	}
}

func TestSignOut(t *testing.T) {
	h := NewHandler(DevProvider{Email: "dev@example.com"}, newTestSessions(t), newFakeAccounts(), nil)

	rec := httptest.NewRecorder()
	h.SignOut(rec, httptest.NewRequest(http.MethodPost, SignOutPath, nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestGoogleProvider_Identify(t *testing.T) {
	verified := true
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"email":          "ada@example.com",
			"email_verified": verified,
			"name":           "Ada Lovelace",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewGoogleProvider("client", "secret", "http://localhost/auth/callback")
	p.config.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	p.userInfoURL = srv.URL + "/userinfo"

	authURL, err := url.Parse(p.AuthCodeURL("st"))
	require.NoError(t, err)
	assert.Equal(t, "st", authURL.Query().Get("state"))
	assert.Equal(t, "client", authURL.Query().Get("client_id"))

	id, err := p.Identify(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, Identity{Email: "ada@example.com", Name: "Ada Lovelace"}, id)

	verified = false
	_, err = p.Identify(context.Background(), "the-code")
	assert.ErrorIs(t, err, ErrUnverifiedEmail)
}
