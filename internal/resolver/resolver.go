package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/starford/coursesync/internal/apperr"
	"github.com/starford/coursesync/internal/canvas"
	"github.com/starford/coursesync/internal/resource"
	"github.com/starford/coursesync/internal/storage"
)

// Finder searches the course directory for files by name.
type Finder interface {
	// Find returns the paths (relative to the course root) of every file
	// called name below dir.
	Find(dir, name string) ([]string, error)
}

// Resolved is an identifier bound to its remote object and disk path.
type Resolved struct {
	ID *ID
	// Data is nil when the identifier creates a new remote object.
	Data      canvas.Data
	Title     string
	RemoteID  string
	Filename  string
	Path      string // relative to the course root
	NewOnDisk bool
}

// IsNew reports whether the remote object has not been created yet.
func (r *Resolved) IsNew() bool {
	return r.Data == nil
}

// Descriptor returns the descriptor of the identifier's variant.
func (r *Resolved) Descriptor() resource.Descriptor {
	return r.ID.Variant.Descriptor()
}

// Resolver performs the remote lookup and disk search of identifiers.
type Resolver struct {
	remote resource.Remote
	course string
	files  Finder
	logger *slog.Logger
}

// New creates a Resolver for one course.
func New(remote resource.Remote, course string, files Finder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{remote: remote, course: course, files: files, logger: logger}
}

// Resolve runs the identifier's lookup strategy and locates its file.
func (r *Resolver) Resolve(ctx context.Context, id *ID) (*Resolved, error) {
	if id.IsWildcard() {
		return nil, fmt.Errorf("%w: %s must be expanded first", apperr.ErrWildcard, id)
	}

	var (
		data canvas.Data
		err  error
	)
	switch id.Command {
	case CommandCreate:
		err = r.checkNew(ctx, id)
	case CommandSearch:
		data, err = r.searchOne(ctx, id)
	case CommandDirect:
		data, err = r.fetch(ctx, id)
	default:
		err = fmt.Errorf("%w: %v", apperr.ErrUnknownCommand, id.Command)
	}
	if err != nil {
		return nil, err
	}

	res := &Resolved{ID: id}
	if err := r.Refresh(res, data); err != nil {
		return nil, err
	}
	return res, nil
}

// Refresh rebinds res to fresh remote data (nil for a not-yet-created
// object) and recomputes its title, remote id and disk path. It is called
// after a push, which may assign an id or change the title.
func (r *Resolver) Refresh(res *Resolved, data canvas.Data) error {
	d := res.Descriptor()
	res.Data = data
	if data == nil {
		res.Title = res.ID.Name
		res.RemoteID = ""
	} else {
		res.Title = d.Title(data)
		res.RemoteID = d.ID(data)
	}

	res.Filename = storage.SafeFilename(res.Title) + d.Extension
	matches, err := r.files.Find(d.Folder, res.Filename)
	if err != nil {
		return fmt.Errorf("resolver: search disk for %s: %w", res.Filename, err)
	}
	switch len(matches) {
	case 0:
		res.Path = filepath.Join(d.Folder, res.Filename)
		res.NewOnDisk = true
	case 1:
		res.Path = matches[0]
		res.NewOnDisk = false
	default:
		return &apperr.MatchError{
			Kind:    apperr.ErrDuplicateOnDisk,
			Subject: fmt.Sprintf("category %s has several files named %s", d.Folder, res.Filename),
			Matches: matches,
		}
	}
	r.logger.Debug("resolver: resolved",
		slog.String("id", res.ID.String()),
		slog.String("title", res.Title),
		slog.String("remote_id", res.RemoteID),
		slog.String("path", res.Path))
	return nil
}

// Expand turns a wildcard into one direct identifier per remote object.
func (r *Resolver) Expand(ctx context.Context, id *ID) ([]*ID, error) {
	if !id.IsWildcard() {
		return []*ID{id}, nil
	}
	d := id.Variant.Descriptor()
	items, err := resource.Search(ctx, r.remote, r.course, id.Variant, "")
	if err != nil {
		return nil, err
	}
	out := make([]*ID, 0, len(items))
	for _, it := range items {
		name := d.ID(it)
		out = append(out, &ID{
			Raw:      id.Category + "/:" + name,
			Category: id.Category,
			Command:  CommandDirect,
			Name:     name,
			Variant:  id.Variant,
		})
	}
	return out, nil
}

func (r *Resolver) checkNew(ctx context.Context, id *ID) error {
	potentials, err := resource.Search(ctx, r.remote, r.course, id.Variant, id.Name)
	if err != nil {
		return err
	}
	if len(potentials) > 0 {
		return &apperr.MatchError{
			Kind:    apperr.ErrAlreadyExists,
			Subject: fmt.Sprintf("resource %s", id.Name),
			Matches: id.Variant.Descriptor().Titles(potentials),
		}
	}
	return nil
}

func (r *Resolver) searchOne(ctx context.Context, id *ID) (canvas.Data, error) {
	d := id.Variant.Descriptor()
	potentials, err := resource.Search(ctx, r.remote, r.course, id.Variant, id.Name)
	if err != nil {
		return nil, err
	}
	switch len(potentials) {
	case 0:
		return nil, &apperr.MatchError{
			Kind:    apperr.ErrNotFound,
			Subject: fmt.Sprintf("no %s resource found for %s", d.Collection, id.Raw),
		}
	case 1:
		return potentials[0], nil
	default:
		return nil, &apperr.MatchError{
			Kind:    apperr.ErrAmbiguous,
			Subject: fmt.Sprintf("%s resource id %s", d.Collection, id.Raw),
			Matches: d.Titles(potentials),
		}
	}
}

func (r *Resolver) fetch(ctx context.Context, id *ID) (canvas.Data, error) {
	data, err := resource.Fetch(ctx, r.remote, r.course, id.Variant, id.Name)
	if err != nil {
		var apiErr *canvas.APIError
		if errors.As(err, &apiErr) {
			return nil, &apperr.MatchError{
				Kind:    apperr.ErrNotFound,
				Subject: fmt.Sprintf("%s: %v", id.Raw, apiErr.Errors),
			}
		}
		return nil, err
	}
	return data, nil
}
