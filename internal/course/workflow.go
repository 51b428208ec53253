package course

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/coursesync/internal/apperr"
	"github.com/starford/coursesync/internal/resolver"
	"github.com/starford/coursesync/internal/resource"
)

type step func(ctx context.Context, res *resolver.Resolved) error

// PullResources downloads the resources named by raw into the course
// directory. A wildcard pulls every remote resource of the category.
func (c *Course) PullResources(ctx context.Context, raw string) error {
	return c.each(ctx, "pull", raw, c.pullOne)
}

// PushResources uploads the resources named by raw from the course
// directory.
func (c *Course) PushResources(ctx context.Context, raw string) error {
	return c.each(ctx, "push", raw, c.pushOne)
}

// PublicizeResources writes the public view of the resources named by raw.
func (c *Course) PublicizeResources(ctx context.Context, raw string) error {
	return c.each(ctx, "publicize", raw, c.publicizeOne)
}

func (c *Course) pullOne(ctx context.Context, res *resolver.Resolved) error {
	data, err := c.Pull(res)
	if err != nil {
		return err
	}
	r, err := c.FromJSON(ctx, res, data)
	if err != nil {
		return err
	}
	if err := c.BackupJSON(res, data); err != nil {
		return err
	}
	return c.ToDisk(res, r)
}

func (c *Course) pushOne(ctx context.Context, res *resolver.Resolved) error {
	r, err := c.load(res)
	if err != nil {
		return err
	}
	form, err := c.ToJSON(r)
	if err != nil {
		return err
	}
	data, err := c.Push(ctx, res, form)
	if err != nil {
		return err
	}
	return c.BackupJSON(res, data)
}

func (c *Course) publicizeOne(_ context.Context, res *resolver.Resolved) error {
	r, err := c.load(res)
	if err != nil {
		return err
	}
	public, err := c.ToPublic(r)
	if err != nil {
		return err
	}
	return c.Publicize(res, public)
}

func (c *Course) load(res *resolver.Resolved) (resource.Resource, error) {
	r, err := c.FromDisk(res)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, &apperr.MatchError{
			Kind:    apperr.ErrNotFound,
			Subject: fmt.Sprintf("no file at %s for %s", res.Path, res.ID),
		}
	}
	return r, nil
}

// each resolves every identifier raw expands to and applies fn. With a
// single identifier its error is returned as is; in bulk, failures are
// logged and counted.
func (c *Course) each(ctx context.Context, verb, raw string, fn step) error {
	ids, err := c.Identify(ctx, raw)
	if err != nil {
		return err
	}
	failed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.apply(ctx, id, fn)
		if err == nil {
			continue
		}
		if len(ids) == 1 {
			return err
		}
		failed++
		c.logger.Error("course: "+verb+" failed", slog.String("id", id.String()), slog.String("error", err.Error()))
	}
	if failed > 0 {
		return fmt.Errorf("course: %s %s: %d of %d resources failed", verb, raw, failed, len(ids))
	}
	c.logger.Info("course: "+verb+" done", slog.String("id", raw), slog.Int("count", len(ids)))
	return nil
}

func (c *Course) apply(ctx context.Context, id *resolver.ID, fn step) error {
	res, err := c.Resolve(ctx, id)
	if err != nil {
		return err
	}
	return fn(ctx, res)
}
