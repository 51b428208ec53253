package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/coursesync/internal/apperr"
	"github.com/starford/coursesync/internal/catalog"
	"github.com/starford/coursesync/internal/checksum"
)

// Handler holds API route handlers.
type Handler struct {
	svc *catalog.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *catalog.Service) *Handler {
	return &Handler{svc: svc}
}

// resourcePath extracts the file path from the URL (everything after
// /resources/). Supports encoded slashes (e.g. pages%2FIntro.md).
func resourcePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListResources handles GET /resources.
//
//	@Summary		List indexed resource files
//	@Tags			resources
//	@Produce		json
//	@Param			category	query		string	false	"Category or alias"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	ResourceListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resources [get]
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.List(r.Context(), q.Get("category"), limit, offset)
	if err != nil {
		if errors.Is(err, apperr.ErrUnknownCategory) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		slog.Error("list resources failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ResourceListResponse{Resources: items, Total: total})
}

// GetResource handles GET /resources/*.
//
//	@Summary		Get a resource file by path
//	@Tags			resources
//	@Produce		json
//	@Param			path	path		string	true	"Path relative to the course root"
//	@Success		200		{object}	ResourceDetail
//	@Success		304		"Not modified"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resources/{path} [get]
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	path := resourcePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	res, err := h.svc.Get(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get resource failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.Header().Set("ETag", checksum.ETag(res.Checksum))
	if checksum.MatchesETag(r.Header.Get("If-None-Match"), res.Checksum) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Search handles GET /search.
//
//	@Summary		Full-text search across resource files
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Categories handles GET /categories.
//
//	@Summary		List resource categories
//	@Tags			resources
//	@Produce		json
//	@Success		200	{object}	CategoriesResponse
//	@Security		BearerAuth
//	@Router			/categories [get]
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Categories(r.Context())
	if err != nil {
		slog.Error("categories failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, CategoriesResponse{Categories: cats})
}

// ParseIdentifier handles GET /identifiers?id=.
//
//	@Summary		Parse a resource identifier
//	@Tags			identifiers
//	@Produce		json
//	@Param			id	query		string	true	"Identifier, e.g. assignment/?Homework 1"
//	@Success		200	{object}	IdentifierResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/identifiers [get]
func (h *Handler) ParseIdentifier(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'id' is required"))
		return
	}
	info, err := h.svc.ParseIdentifier(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// renderHandler handles GET /render/*. Query parameters are passed to the
// template as a map.
//
//	@Summary		Render a course template
//	@Tags			templates
//	@Produce		text/markdown
//	@Param			name	path		string	true	"Template path under _templates"
//	@Success		200		{string}	string
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/render/{name} [get]
func renderHandler(rd Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := resourcePath(r)
		if name == "" {
			writeJSON(w, http.StatusBadRequest, errorBody("template name is required"))
			return
		}
		data := make(map[string]string)
		for k, v := range r.URL.Query() {
			if len(v) > 0 {
				data[k] = v[0]
			}
		}
		out, err := rd.Render(r.Context(), name, data)
		if err != nil {
			switch {
			case errors.Is(err, apperr.ErrNotFound):
				writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
			default:
				slog.Warn("render failed", slog.String("template", name), slog.String("error", err.Error()))
				writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
			}
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(out))
	}
}
