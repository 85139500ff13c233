package app

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/reveriehq/reverie/pkg/config"
	"github.com/reveriehq/reverie/pkg/pipeline"
	"github.com/reveriehq/reverie/pkg/server/api"
	"github.com/reveriehq/reverie/pkg/server/httpx"
)

// App orchestrates the server runtime components:
// - HTTP server (API + health + metrics)
// - Job pipeline (the four processing queues)
// - Lifecycle management
type App struct {
	HTTP     *http.Server
	Pipeline *pipeline.Runtime
	Ready    *atomic.Bool
	Config   config.Config
	Deps     *Deps
}

// New creates and configures a new server application.
func New(ctx context.Context, cfg config.Config, deps *Deps) (*App, error) {
	deps.Logger.Info().Msg("Initializing server application")

	if deps.Journals == nil {
		return nil, fmt.Errorf("journal store is required")
	}

	engines := deps.Engines
	engines.Journals = deps.Journals
	pipe := pipeline.New(cfg, engines)

	ready := &atomic.Bool{}
	apiDeps := &api.Deps{
		Pipeline: pipe,
		Journals: deps.Journals,
		Ready:    ready,
	}

	// Create router with all endpoints mounted
	router := httpx.NewRouter(cfg.Server, apiDeps)

	if cfg.Server.APIEnabled {
		deps.Logger.Info().Msg("API endpoints enabled")
	} else {
		deps.Logger.Warn().Msg("API endpoints disabled")
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Addr, cfg.Server.Port),
		Handler:      httpx.Chain(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &App{
		HTTP:     httpServer,
		Pipeline: pipe,
		Ready:    ready,
		Config:   cfg,
		Deps:     deps,
	}, nil
}

// Run starts the server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	a.Deps.Logger.Info().
		Str("addr", a.HTTP.Addr).
		Bool("api", a.Config.Server.APIEnabled).
		Msg("Starting Reverie job service")

	// Start HTTP server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		if err := a.HTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	a.Pipeline.Start(ctx)

	// Mark as ready
	a.Ready.Store(true)
	a.Deps.Logger.Info().Msg("Server is ready and accepting connections")

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		a.Deps.Logger.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		a.Deps.Logger.Error().Err(err).Msg("Server error")
		return err
	}

	// Graceful shutdown
	return a.shutdown()
}

// shutdown performs graceful shutdown of all components. The HTTP server
// closes first so no new jobs arrive while the queues drain.
func (a *App) shutdown() error {
	a.Deps.Logger.Info().Msg("Initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Mark as not ready
	a.Ready.Store(false)

	a.Deps.Logger.Info().Msg("Shutting down HTTP server...")
	if err := a.HTTP.Shutdown(shutdownCtx); err != nil {
		a.Deps.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
		return err
	}
	a.Deps.Logger.Info().Msg("HTTP server stopped")

	// Each queue drains within its own stop timeout; pending records are
	// abandoned with the process. Uses a fresh context so the HTTP shutdown
	// deadline does not cut the longer HLS drain short.
	a.Deps.Logger.Info().Msg("Draining job queues...")
	a.Pipeline.Stop(context.Background())
	a.Deps.Logger.Info().Msg("Job queues stopped")

	a.Deps.Logger.Info().Msg("Closing journal store...")
	if err := a.Deps.Journals.Close(); err != nil {
		a.Deps.Logger.Error().Err(err).Msg("Journal store close failed")
		return err
	}

	a.Deps.Logger.Info().Msg("Server shutdown complete")
	return nil
}
