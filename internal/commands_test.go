package internal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/coursesync/internal/api"
	"github.com/starford/coursesync/internal/apperr"
	"github.com/starford/coursesync/internal/index"
	"github.com/starford/coursesync/internal/resource"
	"github.com/starford/coursesync/internal/sse"
	"github.com/starford/coursesync/internal/testutil"
)

// lmsServer serves one assignment and records write requests.
func lmsServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var writes []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer lms-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"errors": [{"message": "Invalid access token."}]}`)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/courses/cs101/assignments/42":
			_, _ = io.WriteString(w, `{"id": 42, "name": "Homework 1", "html_url": "https://lms.example.edu/a/42",
				"description": "<p>Write a program.</p>", "published": true, "points_possible": 10,
				"grading_type": "points", "submission_types": ["online_upload"], "due_at": "2024-09-08T03:59:59Z"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/courses/cs101/assignments":
			_, _ = io.WriteString(w, `[{"id": 42, "name": "Homework 1", "html_url": "https://lms.example.edu/a/42"}]`)
		case r.Method == http.MethodPut && r.URL.Path == "/api/v1/courses/cs101/assignments/42":
			_ = r.ParseForm()
			writes = append(writes, r.Method+" "+r.URL.Path+" "+r.PostForm.Get("assignment[name]"))
			_, _ = io.WriteString(w, `{"id": 42, "name": "Homework 1", "html_url": "https://lms.example.edu/a/42"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"errors": [{"message": "The specified resource does not exist."}]}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &writes
}

func testConfig(t *testing.T, baseURL string) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Course.Root = t.TempDir()
	cfg.Course.Name = "cs101"
	cfg.Canvas.BaseURL = baseURL
	cfg.Canvas.Token = "lms-token"
	cfg.Dates.Timezone = "America/New_York"
	cfg.Index.Path = filepath.Join(t.TempDir(), "catalog.db")
	return cfg
}

func TestPullThenPush(t *testing.T) {
	srv, writes := lmsServer(t)
	cfg := testConfig(t, srv.URL)
	opts := []Option{WithConfig(cfg), WithLogger(testutil.Logger())}
	ctx := context.Background()

	if err := Pull(ctx, []string{"assignment/:42"}, opts...); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	content, err := os.ReadFile(filepath.Join(cfg.Course.Root, "assignments", "Homework 1.yaml"))
	if err != nil {
		t.Fatalf("pulled file missing: %v", err)
	}
	if !strings.Contains(string(content), "September 7 2024, 11:59:59 PM") {
		t.Errorf("due date not shown in the configured zone:\n%s", content)
	}
	backups, _ := filepath.Glob(filepath.Join(cfg.Course.Root, "_backups", "assignments", "Homework 1.yaml", "*.json.gz"))
	if len(backups) != 1 {
		t.Errorf("json backups = %d, want 1", len(backups))
	}

	if err := Push(ctx, []string{"assignment/?Homework 1"}, opts...); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(*writes) != 1 || !strings.HasSuffix((*writes)[0], "Homework 1") {
		t.Errorf("writes = %v", *writes)
	}
}

func TestPull_ReportsEveryFailure(t *testing.T) {
	srv, _ := lmsServer(t)
	cfg := testConfig(t, srv.URL)

	err := Pull(context.Background(), []string{"assignment/:999", "bogus/:1", "assignment/:42"},
		WithConfig(cfg), WithLogger(testutil.Logger()))
	if !errors.Is(err, apperr.ErrNotFound) || !errors.Is(err, apperr.ErrUnknownCategory) {
		t.Fatalf("err = %v, want both failures joined", err)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.Course.Root, "assignments", "Homework 1.yaml")); statErr != nil {
		t.Error("the valid identifier should still be pulled")
	}
}

func TestPull_RequiresCanvasSettings(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Canvas.Token = ""
	err := Pull(context.Background(), []string{"assignment/:42"}, WithConfig(cfg), WithLogger(testutil.Logger()))
	if err == nil || !strings.Contains(err.Error(), "base_url is empty") {
		t.Fatalf("err = %v", err)
	}
}

func TestRender(t *testing.T) {
	srv, _ := lmsServer(t)
	cfg := testConfig(t, srv.URL)
	testutil.WriteFile(t, cfg.Course.Root, "_templates/syllabus.md",
		"# {{ .term }}\n{{ \"Homework 1\" | make_link }}\n")
	dataFile := filepath.Join(t.TempDir(), "data.yaml")
	_ = os.WriteFile(dataFile, []byte("term: Fall 2024\n"), 0o644)

	var out bytes.Buffer
	err := Render(context.Background(), "syllabus.md", dataFile, "",
		WithConfig(cfg), WithLogger(testutil.Logger()), WithOutput(&out))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "# Fall 2024\n[Homework 1](https://lms.example.edu/a/42)\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}

	target := filepath.Join(t.TempDir(), "syllabus.md")
	if err := Render(context.Background(), "syllabus.md", dataFile, target,
		WithConfig(cfg), WithLogger(testutil.Logger())); err != nil {
		t.Fatalf("Render to file: %v", err)
	}
	if got, _ := os.ReadFile(target); string(got) != want {
		t.Errorf("file = %q", got)
	}
}

func TestIndex(t *testing.T) {
	cfg := testConfig(t, "")
	testutil.WriteFile(t, cfg.Course.Root, "pages/Intro.md", "# Intro\n")
	testutil.WriteFile(t, cfg.Course.Root, "assignments/A.yaml", "name: A\n")

	if err := Index(context.Background(), WithConfig(cfg), WithLogger(testutil.Logger())); err != nil {
		t.Fatalf("Index: %v", err)
	}
	db, err := index.Open(cfg.Index.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, total, _ := db.List("", 0, 0); total != 2 {
		t.Errorf("indexed = %d, want 2", total)
	}
}

func TestIssueToken(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Auth = AuthConfig{Mode: AuthModeJWT, Token: "signing-key"}

	var out bytes.Buffer
	if err := IssueToken(context.Background(), "grader", time.Hour,
		WithConfig(cfg), WithLogger(testutil.Logger()), WithOutput(&out)); err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	sub, err := (&api.TokenService{Secret: []byte("signing-key")}).Validate(strings.TrimSpace(out.String()))
	if err != nil || sub != "grader" {
		t.Errorf("Validate = %q, %v", sub, err)
	}

	cfg.Auth = AuthConfig{Mode: AuthModeToken, Token: "x"}
	if err := IssueToken(context.Background(), "grader", time.Hour, WithConfig(cfg), WithLogger(testutil.Logger())); err == nil {
		t.Error("token mode should refuse to issue JWTs")
	}
}

func TestChangeHandler(t *testing.T) {
	broker := sse.NewBroker(sse.WithSettle(0), sse.WithCatalogThrottle(time.Hour))
	defer broker.Close()
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	handle := changeHandler(resource.DefaultRegistry(), nil, broker, testutil.Logger())
	handle("updated", filepath.Join("outcomes", "core.yaml"))

	select {
	case msg := <-ch:
		if !strings.Contains(string(msg), `"category":"outcome"`) {
			t.Errorf("event = %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestNewApplicationRequiresConfig(t *testing.T) {
	if err := Index(context.Background()); err == nil {
		t.Error("expected an error without config")
	}
}
