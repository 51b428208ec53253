// Package testutil provides shared test helpers: a scratch course directory
// and an in-memory stand-in for the remote API.
package testutil

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/coursesync/internal/canvas"
)

// TestCourse creates a temporary course directory and writes files (relative
// path to content) into it.
func TestCourse(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		WriteFile(t, root, rel, content)
	}
	return root
}

// WriteFile writes content at root/rel, creating parent directories.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Logger returns a JSON logger that only reports errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// SaveCall records one Post or Put.
type SaveCall struct {
	Method   string
	Endpoint string
	Form     url.Values
}

// FakeRemote is an in-memory remote API. Lists are filtered on search_term
// by case-insensitive substring match against "title" and "name".
type FakeRemote struct {
	Objects map[string]canvas.Data
	Lists   map[string][]canvas.Data
	// Respond builds the response of a Post or Put. When nil the form is
	// echoed back with an "id" of 1.
	Respond func(method, endpoint string, form url.Values) (canvas.Data, error)

	Gets  []string
	Saves []SaveCall
}

// NewFakeRemote creates an empty FakeRemote.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		Objects: make(map[string]canvas.Data),
		Lists:   make(map[string][]canvas.Data),
	}
}

func (f *FakeRemote) Get(_ context.Context, _ string, endpoint string, _ url.Values) (canvas.Data, error) {
	f.Gets = append(f.Gets, endpoint)
	obj, ok := f.Objects[endpoint]
	if !ok {
		return nil, &canvas.APIError{
			Status:   http.StatusNotFound,
			Endpoint: endpoint,
			Errors:   []any{map[string]any{"message": "The specified resource does not exist."}},
		}
	}
	return obj, nil
}

func (f *FakeRemote) List(_ context.Context, _ string, endpoint string, params url.Values) ([]canvas.Data, error) {
	term := strings.ToLower(params.Get("search_term"))
	var out []canvas.Data
	for _, item := range f.Lists[endpoint] {
		if term == "" ||
			strings.Contains(strings.ToLower(item.String("title")), term) ||
			strings.Contains(strings.ToLower(item.String("name")), term) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *FakeRemote) Post(_ context.Context, _ string, endpoint string, form url.Values) (canvas.Data, error) {
	return f.save(http.MethodPost, endpoint, form)
}

func (f *FakeRemote) Put(_ context.Context, _ string, endpoint string, form url.Values) (canvas.Data, error) {
	return f.save(http.MethodPut, endpoint, form)
}

func (f *FakeRemote) save(method, endpoint string, form url.Values) (canvas.Data, error) {
	f.Saves = append(f.Saves, SaveCall{Method: method, Endpoint: endpoint, Form: form})
	if f.Respond != nil {
		return f.Respond(method, endpoint, form)
	}
	out := canvas.Data{"id": "1"}
	for k := range form {
		out[k] = form.Get(k)
	}
	return out, nil
}
