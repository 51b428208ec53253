package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/coursesync/internal/api"
	"github.com/starford/coursesync/internal/course"
	"github.com/starford/coursesync/internal/resource"
)

// Pull downloads every resource named by ids into the course directory.
func Pull(ctx context.Context, ids []string, opts ...Option) error {
	return eachID(ctx, ids, opts, (*course.Course).PullResources)
}

// Push uploads every resource named by ids from the course directory.
func Push(ctx context.Context, ids []string, opts ...Option) error {
	return eachID(ctx, ids, opts, (*course.Course).PushResources)
}

// Publicize writes the public view of every resource named by ids.
func Publicize(ctx context.Context, ids []string, opts ...Option) error {
	return eachID(ctx, ids, opts, (*course.Course).PublicizeResources)
}

func eachID(ctx context.Context, ids []string, opts []Option, fn func(*course.Course, context.Context, string) error) error {
	if len(ids) == 0 {
		return errors.New("at least one identifier is required")
	}
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	store, err := app.storage()
	if err != nil {
		return err
	}
	c, err := app.course(store)
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(c, ctx, id); err != nil {
			app.logger.Error("command failed", slog.String("id", id), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Render executes the course template called name. dataFile, when set, is
// a YAML file whose content becomes the template data. The result goes to
// output, or to the application output when output is empty.
func Render(ctx context.Context, name, dataFile, output string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	store, err := app.storage()
	if err != nil {
		return err
	}
	c, err := app.course(store)
	if err != nil {
		return err
	}

	var data map[string]any
	if dataFile != "" {
		raw, err := os.ReadFile(dataFile)
		if err != nil {
			return fmt.Errorf("read template data: %w", err)
		}
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("parse template data %s: %w", dataFile, err)
		}
	}

	out, err := c.Render(ctx, name, data)
	if err != nil {
		return err
	}
	if output == "" {
		_, err = fmt.Fprint(app.out, out)
		return err
	}
	if err := os.WriteFile(output, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	app.logger.Info("rendered", slog.String("template", name), slog.String("output", output))
	return nil
}

// Index brings the local catalog up to date with the course directory.
func Index(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	store, err := app.storage()
	if err != nil {
		return err
	}
	db, err := app.catalog(store, resource.DefaultRegistry())
	if err != nil {
		return err
	}
	defer db.Close()

	_, total, err := db.List("", 1, 0)
	if err != nil {
		return err
	}
	app.logger.Info("index up to date", slog.String("path", app.config.Index.Path), slog.Int("resources", total))
	return nil
}

// IssueToken prints an HS256 token for the HTTP API in jwt mode.
func IssueToken(_ context.Context, subject string, ttl time.Duration, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.config.Auth.Mode != AuthModeJWT {
		return fmt.Errorf("auth: mode is %q, tokens are only used in %q mode", app.config.Auth.Mode, AuthModeJWT)
	}
	tokens := &api.TokenService{Secret: []byte(app.config.Auth.Token), Expiration: ttl}
	tok, err := tokens.New(subject)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(app.out, tok)
	return err
}
