package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/coursesync/internal/canvas"
	"github.com/starford/coursesync/internal/convert"
	"github.com/starford/coursesync/internal/course"
	"github.com/starford/coursesync/internal/index"
	"github.com/starford/coursesync/internal/resource"
	"github.com/starford/coursesync/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, errors.New("config is required")
	}
	if app.logger == nil {
		// Structured JSON logs go to stderr so rendered output can use stdout.
		app.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
		slog.SetDefault(app.logger)
	}
	if app.out == nil {
		app.out = os.Stdout
	}
	return app, nil
}

// storage opens the course directory, creating it when missing.
func (a *application) storage() (*storage.FS, error) {
	root := a.config.Course.Root
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create course dir: %w", err)
	}
	store, err := storage.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return store, nil
}

// course builds the course orchestrator with its API client.
func (a *application) course(store *storage.FS) (*course.Course, error) {
	cfg := a.config
	if err := cfg.Canvas.Require(); err != nil {
		return nil, err
	}
	if cfg.Course.Name == "" {
		return nil, errors.New("course: name is empty")
	}
	loc, err := cfg.Dates.Location()
	if err != nil {
		return nil, err
	}

	clientOpts := []canvas.ClientOption{
		canvas.WithPerPage(cfg.Canvas.PerPage),
		canvas.WithLogger(a.logger),
	}
	if a.httpClient != nil {
		clientOpts = append(clientOpts, canvas.WithHTTPClient(a.httpClient))
	}
	clientOpts = append(clientOpts, canvas.WithTimeout(cfg.Canvas.Timeout))
	client := canvas.NewClient(cfg.Canvas.BaseURL, cfg.Canvas.Token, clientOpts...)

	return course.New(cfg.Course.Name, store, client,
		course.WithConverter(convert.New(loc)),
		course.WithLogger(a.logger),
	), nil
}

// catalog opens the SQLite catalog and brings it up to date.
func (a *application) catalog(store storage.Provider, reg *resource.Registry) (*index.DB, error) {
	db, err := index.Open(a.config.Index.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, store, reg, a.logger); err != nil {
		a.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return db, nil
}
