// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notegraph/internal/api"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/linkgraph"
	"github.com/starford/notegraph/internal/mcpserver"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/search"
	"github.com/starford/notegraph/internal/sse"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

// open wires the store, synchronizer, search engine, and service. The
// returned close func releases the database.
func (a *application) open(logger *slog.Logger, svcOpts ...noteservice.Option) (*noteservice.Service, func(), error) {
	db, err := index.Open(a.config.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}
	svc := noteservice.NewService(db,
		linkgraph.New(db, logger),
		search.New(db, a.config.Search.Options(), logger),
		logger,
		svcOpts...,
	)
	return svc, func() { db.Close() }, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Int("search_limit", cfg.Search.Limit),
		slog.Duration("search_cache_ttl", cfg.Search.CacheTTL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc, closeDB, err := app.open(logger, noteservice.WithNotifier(broker))
	if err != nil {
		return err
	}
	defer closeDB()

	if cfg.Graph.ReconcileOnStart {
		if _, err := svc.Reconcile(ctx); err != nil {
			logger.Warn("initial reconcile failed", slog.String("error", err.Error()))
		}
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := svc.CountNotes(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)
	r.Get("/events", broker.ServeHTTP)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr unless
// WithLogOutput says otherwise.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()
	slog.SetDefault(logger)

	svc, closeDB, err := app.open(logger)
	if err != nil {
		return err
	}
	defer closeDB()

	if app.config.Graph.ReconcileOnStart {
		if _, err := svc.Reconcile(ctx); err != nil {
			logger.Warn("initial reconcile failed", slog.String("error", err.Error()))
		}
	}

	logger.Info("Starting MCP server", slog.String("transport", "stdio"))
	return mcpserver.New(svc, app.version).ServeStdio()
}

// Reindex re-derives every note's outgoing edges from its content.
func Reindex(ctx context.Context, opts ...Option) (linkgraph.ReconcileStats, error) {
	app, err := newApplication(opts)
	if err != nil {
		return linkgraph.ReconcileStats{}, err
	}
	svc, closeDB, err := app.open(app.logger())
	if err != nil {
		return linkgraph.ReconcileStats{}, err
	}
	defer closeDB()
	return svc.Reconcile(ctx)
}

// Search runs one ranked query and prints the hits to out, best first.
func Search(ctx context.Context, out io.Writer, query, field string, opts ...Option) error {
	f, err := index.ParseField(field)
	if err != nil {
		return err
	}
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	svc, closeDB, err := app.open(app.logger())
	if err != nil {
		return err
	}
	defer closeDB()

	hits, err := svc.Query(ctx, query, f)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		_, err := fmt.Fprintln(out, "no matches")
		return err
	}
	for i, hit := range hits {
		if _, err := fmt.Fprintf(out, "%d. %s (id %d, score %.4f)\n   %s\n",
			i+1, hit.HighlightedTitle, hit.Note.ID, hit.Score, hit.HighlightedSnippet); err != nil {
			return err
		}
	}
	return nil
}
