package resolver

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/coursesync/internal/apperr"
	"github.com/starford/coursesync/internal/canvas"
	"github.com/starford/coursesync/internal/resource"
	"github.com/starford/coursesync/internal/storage"
	"github.com/starford/coursesync/internal/testutil"
)

func setup(t *testing.T, files map[string]string) (*Resolver, *testutil.FakeRemote) {
	t.Helper()
	root := testutil.TestCourse(t, files)
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	remote := testutil.NewFakeRemote()
	return New(remote, "cs101", store, nil), remote
}

func mustParse(t *testing.T, raw string) *ID {
	t.Helper()
	id, err := Parse(resource.DefaultRegistry(), raw)
	if err != nil {
		t.Fatalf("Parse(%q): %v", raw, err)
	}
	return id
}

func TestParse(t *testing.T) {
	id := mustParse(t, "assignment/?Homework 1")
	if id.Category != "assignment" || id.Command != CommandSearch || id.Name != "Homework 1" {
		t.Errorf("got %+v", id)
	}
	if id.Variant != resource.Assignments {
		t.Error("wrong variant")
	}

	id = mustParse(t, "Pages/:intro-page")
	if id.Category != "pages" || id.Command != CommandDirect || id.Name != "intro-page" {
		t.Errorf("got %+v", id)
	}
	if id.Variant != resource.Pages {
		t.Error("alias should select the page variant")
	}

	id = mustParse(t, "q/*")
	if !id.IsWildcard() || id.Name != "" {
		t.Errorf("got %+v", id)
	}

	// Only the first slash separates the category.
	id = mustParse(t, "page/+Week 1/2 Review")
	if id.Command != CommandCreate || id.Name != "Week 1/2 Review" {
		t.Errorf("got %+v", id)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		raw  string
		want error
	}{
		{"bogus/:x", apperr.ErrUnknownCategory},
		{"assignment", apperr.ErrMalformedIdentifier},
		{"assignment/", apperr.ErrUnknownCommand},
		{"assignment/!x", apperr.ErrUnknownCommand},
	}
	for _, c := range cases {
		_, err := Parse(resource.DefaultRegistry(), c.raw)
		if !errors.Is(err, c.want) {
			t.Errorf("Parse(%q) err = %v, want %v", c.raw, err, c.want)
		}
	}
}

func TestIDString(t *testing.T) {
	for _, raw := range []string{"page/+Intro", "assignment/?HW", "quiz/:12", "outcome/*"} {
		if got := mustParse(t, raw).String(); got != raw {
			t.Errorf("String() = %q, want %q", got, raw)
		}
	}
}

func TestResolveCreate(t *testing.T) {
	r, _ := setup(t, nil)
	res, err := r.Resolve(context.Background(), mustParse(t, "page/+Welcome"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.IsNew() || res.RemoteID != "" || res.Title != "Welcome" {
		t.Errorf("got %+v", res)
	}
	if res.Path != filepath.Join("pages", "Welcome.md") || !res.NewOnDisk {
		t.Errorf("path = %q new=%v", res.Path, res.NewOnDisk)
	}
}

func TestResolveCreateAlreadyExists(t *testing.T) {
	r, remote := setup(t, nil)
	remote.Lists["pages"] = []canvas.Data{
		{"title": "ExistingTitle", "url": "existingtitle"},
		{"title": "ExistingTitle (old)", "url": "existingtitle-old"},
	}
	_, err := r.Resolve(context.Background(), mustParse(t, "page/+ExistingTitle"))
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
	var me *apperr.MatchError
	if !errors.As(err, &me) || len(me.Matches) != 2 {
		t.Fatalf("want MatchError with 2 titles, got %v", err)
	}
	if !strings.Contains(err.Error(), "ExistingTitle (old)") {
		t.Errorf("message should list titles: %s", err)
	}
}

func TestResolveSearch(t *testing.T) {
	r, remote := setup(t, map[string]string{
		"assignments/week1/Homework 1.yaml": "name: Homework 1\n",
	})
	remote.Lists["assignments"] = []canvas.Data{
		{"id": "12", "name": "Homework 1"},
		{"id": "13", "name": "Project"},
	}
	res, err := r.Resolve(context.Background(), mustParse(t, "assignment/?homework"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.RemoteID != "12" || res.Title != "Homework 1" {
		t.Errorf("got %+v", res)
	}
	if res.Path != filepath.Join("assignments", "week1", "Homework 1.yaml") || res.NewOnDisk {
		t.Errorf("path = %q new=%v", res.Path, res.NewOnDisk)
	}
}

func TestResolveSearchNoneOrMany(t *testing.T) {
	r, remote := setup(t, nil)
	remote.Lists["assignments"] = []canvas.Data{
		{"id": "12", "name": "Homework 1"},
		{"id": "14", "name": "Homework 2"},
	}
	_, err := r.Resolve(context.Background(), mustParse(t, "assignment/?Homework"))
	if !errors.Is(err, apperr.ErrAmbiguous) {
		t.Errorf("err = %v, want ErrAmbiguous", err)
	}
	_, err = r.Resolve(context.Background(), mustParse(t, "assignment/?Final"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveDirect(t *testing.T) {
	r, remote := setup(t, nil)
	remote.Objects["quizzes/7"] = canvas.Data{"id": "7", "title": "Quiz: Loops"}

	res, err := r.Resolve(context.Background(), mustParse(t, "quiz/:7"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Filename != "Quiz_ Loops.yaml" {
		t.Errorf("filename = %q", res.Filename)
	}

	_, err = r.Resolve(context.Background(), mustParse(t, "quiz/:8"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveDuplicateOnDisk(t *testing.T) {
	r, remote := setup(t, map[string]string{
		"pages/Intro.md":       "a",
		"pages/week1/Intro.md": "b",
	})
	remote.Objects["pages/intro"] = canvas.Data{"url": "intro", "title": "Intro"}

	_, err := r.Resolve(context.Background(), mustParse(t, "page/:intro"))
	if !errors.Is(err, apperr.ErrDuplicateOnDisk) {
		t.Fatalf("err = %v, want ErrDuplicateOnDisk", err)
	}
	var me *apperr.MatchError
	if errors.As(err, &me) && len(me.Matches) != 2 {
		t.Errorf("matches = %v", me.Matches)
	}
}

func TestResolveWildcard(t *testing.T) {
	r, _ := setup(t, nil)
	_, err := r.Resolve(context.Background(), mustParse(t, "page/*"))
	if !errors.Is(err, apperr.ErrWildcard) {
		t.Errorf("err = %v, want ErrWildcard", err)
	}
}

func TestRefreshAfterCreate(t *testing.T) {
	r, _ := setup(t, nil)
	res, err := r.Resolve(context.Background(), mustParse(t, "assignment/+Lab 1"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := r.Refresh(res, canvas.Data{"id": "99", "name": "Lab 1"}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.IsNew() || res.RemoteID != "99" {
		t.Errorf("got %+v", res)
	}
}

func TestExpand(t *testing.T) {
	r, remote := setup(t, nil)
	remote.Lists["pages"] = []canvas.Data{
		{"url": "intro", "title": "Intro"},
		{"url": "syllabus", "title": "Syllabus"},
	}
	ids, err := r.Expand(context.Background(), mustParse(t, "page/*"))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("len = %d", len(ids))
	}
	if ids[1].Command != CommandDirect || ids[1].Name != "syllabus" || ids[1].String() != "page/:syllabus" {
		t.Errorf("got %+v", ids[1])
	}

	single := mustParse(t, "page/?Intro")
	ids, err = r.Expand(context.Background(), single)
	if err != nil || len(ids) != 1 || ids[0] != single {
		t.Errorf("non-wildcard Expand = %v, %v", ids, err)
	}
}
