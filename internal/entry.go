// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/scraps/internal/api"
	"github.com/starford/scraps/internal/sse"
	"github.com/starford/scraps/internal/syncer"
	"github.com/starford/scraps/internal/watch"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		l, closer := NewLogger(cfg.App, os.Stdout)
		defer closer.Close()
		logger = l
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("store_path", cfg.Store.Path),
		slog.Bool("ai_enabled", cfg.AI.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := Open(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if c.NotReady != nil {
		logger.Warn("sync disabled: remote not configured", slog.String("error", c.NotReady.Error()))
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	noteEvents, unsubNotes := c.Notes.Subscribe()
	defer unsubNotes()
	snapshots, unsubStatus := c.Engine.Status().Subscribe()
	defer unsubStatus()

	apiRouter := api.NewRouter(c.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if c.NotReady != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not configured"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Relay store and sync status changes to SSE clients.
	g.Go(func() error {
		return broker.Forward(gCtx, noteEvents, snapshots)
	})

	if cfg.Sync.Enabled && c.NotReady == nil {
		scheduler := syncer.NewScheduler(c.Engine, cfg.Sync.Interval, logger)
		g.Go(func() error {
			return scheduler.Run(gCtx)
		})
		if cfg.Sync.OnChange {
			g.Go(func() error {
				if err := watch.Watch(gCtx, watchTarget(cfg.Store), cfg.Sync.Debounce, logger, scheduler.Trigger); err != nil {
					logger.Warn("watcher failed", slog.String("error", err.Error()))
				}
				return nil
			})
		}
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	// A pass started over the API runs detached from ctx.
	c.Engine.Wait()

	logger.Info("Server stopped successfully")
	return nil
}
