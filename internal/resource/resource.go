// Package resource defines the course content types (pages, assignments,
// quizzes, outcomes) and their conversions between the remote JSON shape and
// the on-disk YAML/Markdown shape.
package resource

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/starford/coursesync/internal/apperr"
	"github.com/starford/coursesync/internal/canvas"
	"github.com/starford/coursesync/internal/convert"
)

// Category is the canonical short name of a resource type.
type Category string

const (
	CategoryPage       Category = "page"
	CategoryAssignment Category = "assignment"
	CategoryQuiz       Category = "quiz"
	CategoryOutcome    Category = "outcome"
)

// Descriptor is the static metadata of a resource type.
type Descriptor struct {
	Category   Category
	Aliases    []string
	Collection string // remote collection endpoint
	Folder     string // on-disk folder under the course root
	Extension  string
	TitleField string
	IDField    string
}

// Title returns the canonical title of a remote object.
func (d Descriptor) Title(data canvas.Data) string {
	return data.String(d.TitleField)
}

// ID returns the remote identifier of a remote object.
func (d Descriptor) ID(data canvas.Data) string {
	return data.String(d.IDField)
}

// Titles lists the titles of several remote objects.
func (d Descriptor) Titles(items []canvas.Data) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = d.Title(it)
	}
	return out
}

// Remote is the subset of the API client the resource layer needs.
type Remote interface {
	Get(ctx context.Context, course, endpoint string, params url.Values) (canvas.Data, error)
	List(ctx context.Context, course, endpoint string, params url.Values) ([]canvas.Data, error)
	Post(ctx context.Context, course, endpoint string, form url.Values) (canvas.Data, error)
	Put(ctx context.Context, course, endpoint string, form url.Values) (canvas.Data, error)
}

// Variant is a resource type: it knows its descriptor and how to build a
// Resource from either representation.
type Variant interface {
	Descriptor() Descriptor
	// FromJSON builds a Resource from remote data, fetching more when the
	// data is a partial search result.
	FromJSON(ctx context.Context, remote Remote, course string, data canvas.Data) (Resource, error)
	// FromDisk parses file content. title is the resolved canonical title.
	FromDisk(cv *convert.Converter, content []byte, title string) (Resource, error)
}

// Resource is one piece of course content held in memory.
type Resource interface {
	Category() Category
	Title() string
	// ToJSON returns the form payload accepted by the remote write endpoint.
	ToJSON() (url.Values, error)
	// ToDisk returns either a Markdown string or a *yaml.Node mapping.
	ToDisk(cv *convert.Converter) (any, error)
}

// Publicizer is implemented by resources that have a redacted public view.
type Publicizer interface {
	ToPublic(cv *convert.Converter) (any, error)
}

// Registry maps category names and aliases to variants.
type Registry struct {
	byName   map[string]Variant
	variants []Variant
}

// NewRegistry indexes the given variants by category and alias.
func NewRegistry(variants ...Variant) *Registry {
	r := &Registry{byName: make(map[string]Variant), variants: variants}
	for _, v := range variants {
		d := v.Descriptor()
		r.byName[strings.ToLower(string(d.Category))] = v
		for _, alias := range d.Aliases {
			r.byName[strings.ToLower(alias)] = v
		}
	}
	return r
}

// DefaultRegistry returns a registry with every built-in variant.
func DefaultRegistry() *Registry {
	return NewRegistry(Pages, Assignments, Quizzes, Outcomes)
}

// Lookup returns the variant registered for category (case-insensitive).
func (r *Registry) Lookup(category string) (Variant, error) {
	v, ok := r.byName[strings.ToLower(category)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", apperr.ErrUnknownCategory, category, strings.Join(r.Names(), ", "))
	}
	return v, nil
}

// Variants returns the registered variants in registration order.
func (r *Registry) Variants() []Variant {
	return r.variants
}

// ByFolder returns the variant whose on-disk folder is folder.
func (r *Registry) ByFolder(folder string) (Variant, bool) {
	for _, v := range r.variants {
		if v.Descriptor().Folder == folder {
			return v, true
		}
	}
	return nil, false
}

// Names returns every accepted category name, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
