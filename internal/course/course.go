// Package course ties the remote API, the resolver, the resource
// conversions and the course directory together.
package course

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/starford/coursesync/internal/apperr"
	"github.com/starford/coursesync/internal/backup"
	"github.com/starford/coursesync/internal/canvas"
	"github.com/starford/coursesync/internal/convert"
	"github.com/starford/coursesync/internal/resolver"
	"github.com/starford/coursesync/internal/resource"
	"github.com/starford/coursesync/internal/storage"
)

// Course is one remote course mirrored in a local directory.
type Course struct {
	name     string
	files    *storage.FS
	remote   resource.Remote
	registry *resource.Registry
	resolver *resolver.Resolver
	backups  *backup.Store
	cv       *convert.Converter
	outcomes *resource.OutcomeCache
	logger   *slog.Logger

	backupOpts []backup.Option
}

// Option configures a Course.
type Option func(*Course)

// WithRegistry replaces the default resource registry.
func WithRegistry(r *resource.Registry) Option {
	return func(c *Course) { c.registry = r }
}

// WithConverter sets the Markdown/HTML and date converter.
func WithConverter(cv *convert.Converter) Option {
	return func(c *Course) { c.cv = cv }
}

// WithOutcomeCache shares an outcome cache between courses or surfaces.
func WithOutcomeCache(oc *resource.OutcomeCache) Option {
	return func(c *Course) { c.outcomes = oc }
}

// WithBackupOptions passes options to the backup store.
func WithBackupOptions(opts ...backup.Option) Option {
	return func(c *Course) { c.backupOpts = append(c.backupOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Course) { c.logger = l }
}

// New creates a Course named name (the remote course identifier) rooted at
// files.
func New(name string, files *storage.FS, remote resource.Remote, opts ...Option) *Course {
	c := &Course{
		name:     name,
		files:    files,
		remote:   remote,
		registry: resource.DefaultRegistry(),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.cv == nil {
		c.cv = convert.New(nil)
	}
	if c.outcomes == nil {
		c.outcomes = resource.NewOutcomeCache(c.cv)
	}
	c.resolver = resolver.New(remote, name, files, c.logger)
	c.backups = backup.NewStore(files, append([]backup.Option{backup.WithLogger(c.logger)}, c.backupOpts...)...)
	return c
}

// Name returns the remote course identifier.
func (c *Course) Name() string { return c.name }

// Root returns the absolute course directory.
func (c *Course) Root() string { return c.files.Root() }

// Registry returns the resource registry.
func (c *Course) Registry() *resource.Registry { return c.registry }

// Outcomes returns the outcome cache.
func (c *Course) Outcomes() *resource.OutcomeCache { return c.outcomes }

// Identify parses raw and expands wildcards into direct identifiers.
func (c *Course) Identify(ctx context.Context, raw string) ([]*resolver.ID, error) {
	id, err := resolver.Parse(c.registry, raw)
	if err != nil {
		return nil, err
	}
	return c.resolver.Expand(ctx, id)
}

// Resolve binds id to its remote object and disk path.
func (c *Course) Resolve(ctx context.Context, id *resolver.ID) (*resolver.Resolved, error) {
	return c.resolver.Resolve(ctx, id)
}

// Pull returns the remote data of an existing resource.
func (c *Course) Pull(res *resolver.Resolved) (canvas.Data, error) {
	if res.IsNew() {
		return nil, &apperr.MatchError{
			Kind:    apperr.ErrNotFound,
			Subject: fmt.Sprintf("%s does not exist remotely yet", res.ID),
		}
	}
	return res.Data, nil
}

// FromJSON converts remote data into a resource.
func (c *Course) FromJSON(ctx context.Context, res *resolver.Resolved, data canvas.Data) (resource.Resource, error) {
	return res.ID.Variant.FromJSON(ctx, c.remote, c.name, data)
}

// ToJSON converts a resource into the remote write payload.
func (c *Course) ToJSON(r resource.Resource) (url.Values, error) {
	return r.ToJSON()
}

// Push creates the remote object when res has no remote id and updates it
// otherwise, then re-resolves res against the response.
func (c *Course) Push(ctx context.Context, res *resolver.Resolved, form url.Values) (canvas.Data, error) {
	data, err := resource.Save(ctx, c.remote, c.name, res.ID.Variant, res.RemoteID, form)
	if err != nil {
		return nil, err
	}
	if err := c.resolver.Refresh(res, data); err != nil {
		return nil, err
	}
	c.logger.Info("course: pushed",
		slog.String("id", res.ID.String()),
		slog.String("remote_id", res.RemoteID))
	return data, nil
}

// ToDisk writes a resource to its resolved path, backing up a differing
// previous version first.
func (c *Course) ToDisk(res *resolver.Resolved, r resource.Resource) error {
	out, err := r.ToDisk(c.cv)
	if err != nil {
		return err
	}
	content, err := resource.Encode(out)
	if err != nil {
		return err
	}
	if _, err := c.BackupResource(res, content); err != nil {
		return err
	}
	if err := c.files.Write(res.Path, content); err != nil {
		return fmt.Errorf("course: to disk: %w", err)
	}
	c.logger.Info("course: written", slog.String("path", res.Path))
	return nil
}

// FromDisk loads the resource stored at res.Path. It returns nil and no
// error when there is no file.
func (c *Course) FromDisk(res *resolver.Resolved) (resource.Resource, error) {
	exists, err := c.files.Exists(res.Path)
	if err != nil || !exists {
		return nil, err
	}
	content, err := c.files.Read(res.Path)
	if err != nil {
		return nil, err
	}
	return res.ID.Variant.FromDisk(c.cv, content, res.Title)
}

// ToPublic returns the redacted public view of r.
func (c *Course) ToPublic(r resource.Resource) (any, error) {
	p, ok := r.(resource.Publicizer)
	if !ok {
		return nil, fmt.Errorf("%w: public view of %s", apperr.ErrNotImplemented, r.Category())
	}
	return p.ToPublic(c.cv)
}

// Publicize writes data next to the resource file as <name>.public.yaml.
// Public exports are not backed up.
func (c *Course) Publicize(res *resolver.Resolved, data any) error {
	content, err := resource.Encode(data)
	if err != nil {
		return err
	}
	target := storage.PublicPath(res.Path)
	if err := c.files.Write(target, content); err != nil {
		return fmt.Errorf("course: publicize: %w", err)
	}
	c.logger.Info("course: publicized", slog.String("path", target))
	return nil
}

// BackupJSON stores a compressed snapshot of remote data.
func (c *Course) BackupJSON(res *resolver.Resolved, data canvas.Data) error {
	_, err := c.backups.JSON(res.Descriptor().Folder, res.Filename, data)
	return err
}

// BackupResource stores the current file content when next differs from
// it. It reports whether a backup was written; a missing file is never
// backed up.
func (c *Course) BackupResource(res *resolver.Resolved, next []byte) (bool, error) {
	exists, err := c.files.Exists(res.Path)
	if err != nil || !exists {
		return false, err
	}
	current, err := c.files.Read(res.Path)
	if err != nil {
		return false, err
	}
	d := res.Descriptor()
	return c.backups.Resource(d.Folder, res.Filename, d.Extension, current, next)
}
