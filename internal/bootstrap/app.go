package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/docdigest/internal/infra/config"
	"github.com/yanqian/docdigest/internal/infra/staging"
)

// App encapsulates the HTTP server lifecycle and background maintenance.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *http.Server
	sweeper *staging.Sweeper
}

// NewApp is used by Wire to build the runnable app. sweeper may be nil.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, sweeper *staging.Sweeper) *App {
	return &App{cfg: cfg, logger: logger.With("component", "bootstrap"), server: server, sweeper: sweeper}
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	if a.sweeper != nil {
		a.sweeper.Start()
		defer a.sweeper.Stop()
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server starting",
			"address", a.cfg.HTTP.Address,
			"provider", a.cfg.Provider.Name,
			"storage", a.cfg.Upload.Storage,
			"transmission", a.cfg.Summary.Transmission,
		)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutdown signal received")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
