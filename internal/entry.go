// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
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

	"github.com/starford/notecheck/internal/api"
	"github.com/starford/notecheck/internal/apperr"
	"github.com/starford/notecheck/internal/dataset"
	"github.com/starford/notecheck/internal/index"
	"github.com/starford/notecheck/internal/mcpserver"
	"github.com/starford/notecheck/internal/resultservice"
	"github.com/starford/notecheck/internal/sse"
	"github.com/starford/notecheck/internal/standards"
	"github.com/starford/notecheck/internal/storage"
)

// backend is the state shared by serve and mcp mode.
type backend struct {
	db  *index.DB
	svc *resultservice.Service
}

// openBackend opens the catalog, brings it up to date with the results
// root and builds the result service.
func openBackend(cfg *Config, logger *slog.Logger) (*backend, error) {
	if err := os.MkdirAll(cfg.Results.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}

	notes, err := ReferenceNotes(cfg.Dataset.Path, logger)
	if err != nil {
		return nil, err
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, cfg.Results.Root, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	svc := resultservice.NewService(storage.NewFS(), db, cfg.Results.Root, standards.New(cfg.Results.StandardsDir), notes)
	return &backend{db: db, svc: svc}, nil
}

// ReferenceNotes loads the dataset's reference notes keyed by idx. An empty
// path or a missing dataset file yields no notes.
func ReferenceNotes(path string, logger *slog.Logger) (map[int]string, error) {
	if path == "" {
		return nil, nil
	}
	ds, err := dataset.Load(path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			logger.Warn("dataset not found, reference fallback disabled", slog.String("path", path))
			return nil, nil
		}
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return ds.FullNotes(), nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("results_root", cfg.Results.Root),
		slog.String("standards_dir", cfg.Results.StandardsDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	be, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer be.db.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(be.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check and metrics endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start results watcher with SSE callback.
	g.Go(func() error {
		if err := index.Watch(gCtx, be.db, cfg.Results.Root, logger, broker.PublishArtifactEvent); err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

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

// errShutdown cancels the group once the HTTP server has been shut down so
// that the watcher stops too.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to stderr since stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	be, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer be.db.Close()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := index.Watch(gCtx, be.db, cfg.Results.Root, logger, nil); err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("MCP server starting", slog.String("results_root", cfg.Results.Root))
		err := mcpserver.New(be.svc, app.version).Serve(gCtx, app.stdin, app.stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		return err
	}
	return nil
}
