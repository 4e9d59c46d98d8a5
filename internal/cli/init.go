// Package cli holds the start-up steps shared by cmd/lifehub and cmd/lifehub-worker.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"lifehub/internal/auth"
	"lifehub/internal/backend"
	"lifehub/internal/config"
	applog "lifehub/internal/log"
)

// SetupLogger builds the process logger from config and makes it the slog default.
func SetupLogger(cfg *config.Config) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     cfg.SlogLevel(),
		Format:    cfg.LogFormat,
		Component: applog.ComponentApp,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig reads the environment and runs validate on the result.
func LoadConfig(validate func(*config.Config) error) (*config.Config, error) {
	cfg := config.Load()
	if validate != nil {
		if err := validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// OpenBackend builds the store and optional publisher configured in cfg.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bc)
}

// NewAuthHandler picks Google sign-in when configured, otherwise the dev
// bypass. It also returns the sign-in button label.
func NewAuthHandler(cfg *config.Config, accounts auth.Accounts, logger *slog.Logger) (*auth.Handler, string, error) {
	secure := strings.HasPrefix(cfg.BaseURL, "https://")
	sessions, err := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL, secure)
	if err != nil {
		return nil, "", fmt.Errorf("init sessions: %w", err)
	}

	var (
		provider auth.Provider
		label    string
	)
	if cfg.OAuthEnabled() {
		provider = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.BaseURL+auth.CallbackPath)
		label = "Sign in with Google"
	} else {
		provider = auth.DevProvider{Email: cfg.AuthDevEmail, CallbackPath: auth.CallbackPath}
		label = "Continue as " + cfg.AuthDevEmail
		logger.Warn("Google sign-in not configured, using dev sign-in", "email", cfg.AuthDevEmail)
	}
	return auth.NewHandler(provider, sessions, accounts, logger), label, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
