package course

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/starford/coursesync/internal/apperr"
	"github.com/starford/coursesync/internal/resource"
)

// TemplatesDir holds the course's text templates.
const TemplatesDir = "_templates"

// Render executes the template called name (its path under _templates)
// with data. Templates may use two functions:
//
//	{{ "Critical Thinking" | load_outcome }}  the outcome of that name
//	{{ "Homework 1" | make_link }}            a Markdown link to a remote page or assignment
func (c *Course) Render(ctx context.Context, name string, data any) (string, error) {
	tmpl, err := c.loadTemplates(ctx)
	if err != nil {
		return "", err
	}
	if tmpl.Lookup(name) == nil {
		return "", fmt.Errorf("course: template %s: %w", name, apperr.ErrNotFound)
	}
	var out strings.Builder
	if err := tmpl.ExecuteTemplate(&out, name, data); err != nil {
		return "", fmt.Errorf("course: render %s: %w", name, err)
	}
	return out.String(), nil
}

func (c *Course) loadTemplates(ctx context.Context) (*template.Template, error) {
	root := template.New("").Funcs(template.FuncMap{
		"load_outcome": c.LoadOutcome,
		"make_link": func(name string) (string, error) {
			return c.MakeLink(ctx, name)
		},
	})
	fsys := os.DirFS(filepath.Join(c.Root(), TemplatesDir))
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		if _, err := root.New(p).Parse(string(content)); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("course: load templates: %w", err)
	}
	return root, nil
}

// LoadOutcome returns the outcome called name from the course's outcome
// banks. An unknown name yields an outcome carrying only that name.
func (c *Course) LoadOutcome(name string) (*resource.Outcome, error) {
	o, ok, err := c.outcomes.Lookup(c.name, os.DirFS(c.Root()), name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &resource.Outcome{Name: name}, nil
	}
	return o, nil
}

// MakeLink returns a Markdown link to the assignment or page matching name.
// Assignments are searched first.
func (c *Course) MakeLink(ctx context.Context, name string) (string, error) {
	for _, v := range []resource.Variant{resource.Assignments, resource.Pages} {
		items, err := resource.Search(ctx, c.remote, c.name, v, name)
		if err != nil {
			return "", err
		}
		switch {
		case len(items) > 1:
			return "", &apperr.MatchError{
				Kind:    apperr.ErrAmbiguous,
				Subject: fmt.Sprintf("link target %s", name),
				Matches: v.Descriptor().Titles(items),
			}
		case len(items) == 1:
			return fmt.Sprintf("[%s](%s)", name, items[0].String("html_url")), nil
		}
	}
	return "", &apperr.MatchError{
		Kind:    apperr.ErrNotFound,
		Subject: fmt.Sprintf("no assignment or page matches %s", name),
	}
}
