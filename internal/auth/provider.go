package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var ErrUnverifiedEmail = errors.New("email not verified by provider")

// Identity is who the provider says signed in.
type Identity struct {
	Email string
	Name  string
}

// Provider is an authorization-code identity provider.
type Provider interface {
	AuthCodeURL(state string) string
	Identify(ctx context.Context, code string) (Identity, error)
}

type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Identify exchanges the code and reads the verified email from the userinfo endpoint.
func (p *GoogleProvider) Identify(ctx context.Context, code string) (Identity, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("token exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build userinfo request: %w", err)
	}
	resp, err := p.config.Client(ctx, tok).Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("fetch userinfo: unexpected status %d", resp.StatusCode)
	}

	var info struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Email == "" || !info.EmailVerified {
		return Identity{}, ErrUnverifiedEmail
	}
	return Identity{Email: info.Email, Name: info.Name}, nil
}

// DevProvider signs everyone in as a fixed email without leaving the app.
type DevProvider struct {
	Email string
	// CallbackPath is where AuthCodeURL points; defaults to /auth/callback.
	CallbackPath string
}

func (p DevProvider) AuthCodeURL(state string) string {
	path := p.CallbackPath
	if path == "" {
		path = CallbackPath
	}
	return path + "?" + url.Values{"state": {state}, "code": {"dev"}}.Encode()
}

func (p DevProvider) Identify(_ context.Context, _ string) (Identity, error) {
	name, _, _ := strings.Cut(p.Email, "@")
	return Identity{Email: p.Email, Name: name}, nil
}
