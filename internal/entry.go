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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/habitflow/internal/api"
	"github.com/starford/habitflow/internal/habitservice"
	"github.com/starford/habitflow/internal/index"
	"github.com/starford/habitflow/internal/mcpserver"
	"github.com/starford/habitflow/internal/metrics"
	"github.com/starford/habitflow/internal/sse"
	"github.com/starford/habitflow/internal/storage"
)

// Run starts the HTTP server, the SSE broker and, for filesystem storage,
// the watcher that reloads the state after external edits.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(cfg, os.Stdout)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("storage_key", cfg.Storage.Key),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("timezone", cfg.Ledger.Timezone),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(time.Second)
	defer broker.Close()

	rt, err := bootstrap(ctx, cfg, logger, habitservice.WithNotifier(broker))
	if err != nil {
		return err
	}
	defer rt.Close()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newRootRouter(cfg, rt, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload on external edits of the document.
	if rt.watchFile != "" {
		g.Go(func() error {
			return index.Watch(gCtx, rt.watchFile, index.DefaultDebounce, logger, func(ctx context.Context) {
				rt.svc.ReloadIfChanged(ctx)
			})
		})
	}

	// Start HTTP server.
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

		logger.Info("Shutting down server...")

		// SSE streams only end when their clients go away or the broker closes.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

func newRootRouter(cfg *Config, rt *runtime, broker *sse.Broker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(rt.provider))
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/api", api.NewRouter(rt.svc, rt.idx, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))
	return r
}

// readyHandler reports 503 while the storage backend cannot be listed.
func readyHandler(p storage.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if _, err := p.Keys(ctx); err != nil {
			slog.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// RunMCP serves the MCP tools over stdio. Logs go to stderr because stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config, os.Stderr)

	rt, err := bootstrap(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.svc, rt.idx, app.version).ServeStdio()
}

// Toggle flips one habit for today and prints the outcome.
func Toggle(ctx context.Context, habitID string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := bootstrap(ctx, app.config, newLogger(app.config, os.Stderr))
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.svc.ToggleHabit(ctx, habitID)
	if err != nil {
		return err
	}
	state := "not done"
	if res.Completed {
		state = "done"
	}
	_, err = fmt.Fprintf(app.out, "%s: %s on %s (today %d%%, streak %d)\n",
		res.HabitID, state, res.Date, res.TodayRate, res.Streak)
	return err
}

// Stats prints today's progress and the last seven days.
func Stats(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := bootstrap(ctx, app.config, newLogger(app.config, os.Stderr))
	if err != nil {
		return err
	}
	defer rt.Close()

	return printStats(app, rt.svc)
}
