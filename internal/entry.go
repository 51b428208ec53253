// Package internal provides the application initialization and the
// commands exposed by the CLI.
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

	"github.com/starford/coursesync/internal/api"
	"github.com/starford/coursesync/internal/catalog"
	"github.com/starford/coursesync/internal/course"
	"github.com/starford/coursesync/internal/index"
	"github.com/starford/coursesync/internal/mcpserver"
	"github.com/starford/coursesync/internal/resource"
	"github.com/starford/coursesync/internal/sse"
)

// Serve runs the HTTP API and the file watcher until ctx is cancelled or a
// shutdown signal arrives.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("course_root", cfg.Course.Root),
		slog.String("index_path", cfg.Index.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := app.storage()
	if err != nil {
		return err
	}
	reg := resource.DefaultRegistry()
	db, err := app.catalog(store, reg)
	if err != nil {
		return err
	}
	defer db.Close()

	broker := sse.NewBroker(sse.WithCatalogThrottle(2*time.Second), sse.WithRegistry(reg))
	defer broker.Close()

	routerOpts := []api.RouterOption{api.WithEvents(broker)}
	// Template rendering needs the LMS for make_link.
	c, courseErr := app.course(store)
	if courseErr == nil {
		routerOpts = append(routerOpts, api.WithRenderer(c))
	} else {
		logger.Info("template rendering disabled", slog.String("reason", courseErr.Error()))
	}

	svc := catalog.NewService(store, db, reg)
	apiRouter := api.NewRouter(svc, cfg.Auth.Mode, cfg.Auth.Token, routerOpts...)

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

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return index.Watch(gCtx, db, store, reg, store.Root(), logger, changeHandler(reg, c, broker, logger))
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		waitForShutdown(gCtx, logger)

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

// Watch keeps the catalog in sync with the course directory until ctx is
// cancelled or a shutdown signal arrives.
func Watch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	store, err := app.storage()
	if err != nil {
		return err
	}
	reg := resource.DefaultRegistry()
	db, err := app.catalog(store, reg)
	if err != nil {
		return err
	}
	defer db.Close()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return index.Watch(gCtx, db, store, reg, store.Root(), app.logger, changeHandler(reg, nil, nil, app.logger))
	})
	g.Go(func() error {
		waitForShutdown(gCtx, app.logger)
		return errShutdown
	})
	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		return err
	}
	return nil
}

// ServeMCP runs the MCP server on stdin/stdout.
func ServeMCP(_ context.Context, version string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	store, err := app.storage()
	if err != nil {
		return err
	}
	reg := resource.DefaultRegistry()
	db, err := app.catalog(store, reg)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := mcpserver.New(catalog.NewService(store, db, reg), version)
	app.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

// errShutdown stops the errgroup once a shutdown was requested.
var errShutdown = errors.New("shutdown requested")

func waitForShutdown(ctx context.Context, logger *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, initiating shutdown")
	}
}

// changeHandler publishes watcher events and drops the cached outcome banks
// whenever an outcome file changes. c and broker may be nil.
func changeHandler(reg *resource.Registry, c *course.Course, broker *sse.Broker, logger *slog.Logger) index.EventCallback {
	return func(kind, path string) {
		category := ""
		if v, ok := index.Classify(reg, path); ok {
			category = string(v.Descriptor().Category)
		}
		if category == string(resource.CategoryOutcome) && c != nil {
			c.Outcomes().Invalidate(c.Name())
			logger.Debug("outcome cache invalidated", slog.String("path", path))
		}
		if broker != nil {
			broker.PublishChange(kind, path, category)
		}
	}
}
