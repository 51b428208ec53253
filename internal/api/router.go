package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/coursesync/internal/catalog"
)

// Renderer renders a course template by its path under _templates.
type Renderer interface {
	Render(ctx context.Context, name string, data any) (string, error)
}

// RouterOption configures optional routes.
type RouterOption func(*routes)

type routes struct {
	events   http.Handler
	renderer Renderer
}

// WithEvents mounts h at GET /events inside the auth group.
func WithEvents(h http.Handler) RouterOption {
	return func(r *routes) { r.events = h }
}

// WithRenderer mounts GET /render/* for course templates.
func WithRenderer(rd Renderer) RouterOption {
	return func(r *routes) { r.renderer = rd }
}

// NewRouter creates a chi router with all API routes mounted.
// authMode is one of disabled, token or jwt; secret is the shared token or
// the JWT signing key.
func NewRouter(svc *catalog.Service, authMode, secret string, opts ...RouterOption) chi.Router {
	var cfg routes
	for _, opt := range opts {
		opt(&cfg)
	}
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authMode, secret))

	r.Get("/resources", h.ListResources)
	r.Get("/resources/*", h.GetResource)
	r.Get("/search", h.Search)
	r.Get("/categories", h.Categories)
	r.Get("/identifiers", h.ParseIdentifier)

	if cfg.renderer != nil {
		r.Get("/render/*", renderHandler(cfg.renderer))
	}
	if cfg.events != nil {
		r.Get("/events", cfg.events.ServeHTTP)
	}

	return r
}
