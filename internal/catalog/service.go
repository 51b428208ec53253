// Package catalog serves read-only views of the local course directory to
// the HTTP and MCP surfaces.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/starford/coursesync/internal/apperr"
	"github.com/starford/coursesync/internal/checksum"
	"github.com/starford/coursesync/internal/index"
	"github.com/starford/coursesync/internal/resolver"
	"github.com/starford/coursesync/internal/resource"
	"github.com/starford/coursesync/internal/storage"
)

// ResourceDetail is the full representation of a resource file.
type ResourceDetail struct {
	index.Row
	Content string `json:"content"`
}

// CategoryInfo describes one registered resource type.
type CategoryInfo struct {
	Category   string   `json:"category"`
	Aliases    []string `json:"aliases"`
	Folder     string   `json:"folder"`
	Extension  string   `json:"extension"`
	Collection string   `json:"collection"`
	Count      int      `json:"count"`
}

// IdentifierInfo is a parsed identifier.
type IdentifierInfo struct {
	Raw        string `json:"raw"`
	Category   string `json:"category"`
	Command    string `json:"command"`
	Name       string `json:"name,omitempty"`
	Wildcard   bool   `json:"wildcard"`
	Folder     string `json:"folder"`
	Collection string `json:"collection"`
}

// Service coordinates storage and catalog reads.
type Service struct {
	store storage.Provider
	db    index.Catalog
	reg   *resource.Registry
}

// NewService creates a new catalog service.
func NewService(store storage.Provider, db index.Catalog, reg *resource.Registry) *Service {
	return &Service{store: store, db: db, reg: reg}
}

// Get reads a resource file and its catalog row. Files that exist on disk
// but are not yet indexed are classified on the fly.
func (s *Service) Get(_ context.Context, path string) (*ResourceDetail, error) {
	path = filepath.Clean(filepath.FromSlash(path))
	v, ok := index.Classify(s.reg, path)
	if !ok {
		return nil, fmt.Errorf("catalog: %s is not a resource file: %w", path, apperr.ErrNotFound)
	}
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("catalog: %s: %w", path, apperr.ErrNotFound)
		}
		return nil, err
	}

	row, err := s.db.Get(path)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		row = &index.Row{Path: path, Category: string(v.Descriptor().Category)}
	case err != nil:
		return nil, err
	}
	row.Checksum = checksum.Sum(data)
	return &ResourceDetail{Row: *row, Content: string(data)}, nil
}

// List returns one page of catalog rows.
func (s *Service) List(_ context.Context, category string, limit, offset int) ([]index.Row, int, error) {
	if category != "" {
		v, err := s.reg.Lookup(category)
		if err != nil {
			return nil, 0, err
		}
		category = string(v.Descriptor().Category)
	}
	return s.db.List(category, limit, offset)
}

// Search delegates full-text search to the catalog.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Categories lists the registered resource types with their indexed counts.
func (s *Service) Categories(_ context.Context) ([]CategoryInfo, error) {
	out := make([]CategoryInfo, 0, len(s.reg.Variants()))
	for _, v := range s.reg.Variants() {
		d := v.Descriptor()
		_, total, err := s.db.List(string(d.Category), 1, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, CategoryInfo{
			Category:   string(d.Category),
			Aliases:    nonNilSlice(d.Aliases),
			Folder:     d.Folder,
			Extension:  d.Extension,
			Collection: d.Collection,
			Count:      total,
		})
	}
	return out, nil
}

// ParseIdentifier parses raw without contacting the remote API.
func (s *Service) ParseIdentifier(raw string) (*IdentifierInfo, error) {
	id, err := resolver.Parse(s.reg, raw)
	if err != nil {
		return nil, err
	}
	d := id.Variant.Descriptor()
	return &IdentifierInfo{
		Raw:        id.Raw,
		Category:   string(d.Category),
		Command:    id.Command.String(),
		Name:       id.Name,
		Wildcard:   id.IsWildcard(),
		Folder:     d.Folder,
		Collection: d.Collection,
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
