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
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/starford/wikilinker/internal/api"
	"github.com/starford/wikilinker/internal/build"
	"github.com/starford/wikilinker/internal/manifest"
	"github.com/starford/wikilinker/internal/mcpserver"
	"github.com/starford/wikilinker/internal/metrics"
	"github.com/starford/wikilinker/internal/sse"
	"github.com/starford/wikilinker/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	return app, nil
}

// components are the pieces shared by every command.
type components struct {
	svc      *build.Service
	vault    *storage.FS
	manifest *manifest.DB
}

func (c *components) Close() error {
	if c.manifest == nil {
		return nil
	}
	return c.manifest.Close()
}

// setup opens the vault and, when withOutput is set, the output directory and
// manifest. Callers must Close the result.
func (a *application) setup(withOutput bool, recorder metrics.Recorder) (*components, error) {
	cfg := a.config

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init vault: %w", err)
	}

	opts := []build.Option{
		build.WithPathPrefix(cfg.Links.PathPrefix),
		build.WithFrontMatter(cfg.Links.FrontMatter),
		build.WithWorkers(cfg.Build.Workers),
		build.WithLogger(a.logger),
		build.WithRecorder(recorder),
	}

	c := &components{vault: store}
	if withOutput {
		if err := os.MkdirAll(cfg.Output.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
		out, err := storage.NewFS(cfg.Output.Path)
		if err != nil {
			return nil, fmt.Errorf("init output: %w", err)
		}
		db, err := manifest.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init manifest: %w", err)
		}
		c.manifest = db
		opts = append(opts, build.WithOutput(out), build.WithManifest(db))
	}

	c.svc = build.NewService(store, opts...)
	return c, nil
}

// Build runs a single build of the vault into the output directory.
func Build(ctx context.Context, opts ...Option) (*build.Summary, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}

	c, err := app.setup(true, metrics.NoopRecorder{})
	if err != nil {
		return nil, err
	}
	defer c.Close()

	return c.svc.Build(ctx)
}

// Resolve rewrites one vault entry against the current vault without writing
// anything.
func Resolve(ctx context.Context, entry string, opts ...Option) (*build.Rendered, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}

	c, err := app.setup(false, metrics.NoopRecorder{})
	if err != nil {
		return nil, err
	}
	defer c.Close()

	return c.svc.Render(ctx, entry)
}

// ServeMCP runs the MCP server on stdin/stdout until the client disconnects.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	c, err := app.setup(false, metrics.NoopRecorder{})
	if err != nil {
		return err
	}
	defer c.Close()

	app.logger.Info("MCP server starting", slog.String("vault_path", c.vault.Root()))
	return mcpserver.New(c.svc, app.version).ServeStdio()
}

// Run starts the preview server: an initial build, the vault watcher, the
// HTTP API and the SSE stream.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	cfg := app.config
	logger := app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("output_path", cfg.Output.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		recorder = metrics.NewPrometheusRecorder(registry)
	}

	c, err := app.setup(true, recorder)
	if err != nil {
		return err
	}
	defer c.Close()

	// Run initial build.
	if _, err := c.svc.Build(ctx); err != nil {
		logger.Warn("initial build failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.Metrics.Enabled {
		r.Handle("/metrics", metrics.HTTPHandler(registry))
	}

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Start vault watcher with SSE callback.
	g.Go(func() error {
		err := c.svc.Watch(gCtx, c.vault.Root(), func(kind, path string) {
			broker.PublishBuildEvent(kind, path)
		})
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
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
		stop()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
