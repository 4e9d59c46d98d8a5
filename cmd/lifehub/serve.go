package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"lifehub/internal/cache"
	"lifehub/internal/cli"
	"lifehub/internal/config"
	apphttp "lifehub/internal/http"
	applog "lifehub/internal/log"
	"lifehub/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := cli.LoadConfig((*config.Config).Validate)
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg)

	ctx, cancel := cli.SignalContext(cmd.Context(), logger.Logger)
	defer cancel()

	be, err := cli.OpenBackend(ctx, cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	views := cache.NewViewCache(cfg.ViewCacheSize, cfg.ViewCacheTTL, logger.Logger)
	opts := append(be.GatewayOptions(),
		services.WithInvalidator(views),
		services.WithLogger(logger.Logger))
	gateway := services.NewGateway(be.Store, opts...)

	authHandler, label, err := cli.NewAuthHandler(cfg, gateway, logger.WithComponent(applog.ComponentAuth).Logger)
	if err != nil {
		return err
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Gateway:            gateway,
		Auth:               authHandler,
		Views:              views,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ProviderLabel:      label,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting lifehub server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"google_sign_in", cfg.OAuthEnabled(),
			"events", be.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", applog.FieldError, err)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
