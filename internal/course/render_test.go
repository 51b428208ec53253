package course

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/coursesync/internal/apperr"
	"github.com/starford/coursesync/internal/canvas"
)

func TestRender(t *testing.T) {
	c, remote, _ := newCourse(t, map[string]string{
		"_templates/syllabus.md": "# {{ .Term }}\n" +
			"{{ $o := \"Recursion\" | load_outcome }}{{ $o.DisplayName }}\n" +
			"{{ \"Homework 1\" | make_link }}\n",
		"outcomes/core.yaml": "Recursion:\n  display_name: REC\n  description: Can recurse.\n",
	})
	remote.Lists["assignments"] = []canvas.Data{
		{"id": "42", "name": "Homework 1", "html_url": "https://lms.example.edu/a/42"},
	}

	got, err := c.Render(context.Background(), "syllabus.md", map[string]string{"Term": "Fall"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "# Fall\nREC\n[Homework 1](https://lms.example.edu/a/42)\n"
	if got != want {
		t.Errorf("Render =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderNestedTemplateName(t *testing.T) {
	c, _, _ := newCourse(t, map[string]string{
		"_templates/parts/footer.md": "bye",
		"_templates/page.md":         "hi {{ template \"parts/footer.md\" }}",
	})
	got, err := c.Render(context.Background(), "page.md", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "hi bye" {
		t.Errorf("Render = %q", got)
	}
}

func TestRenderMissingTemplatesDir(t *testing.T) {
	c, _, _ := newCourse(t, nil)
	if _, err := c.Render(context.Background(), "x.md", nil); err == nil {
		t.Error("expected an error without a _templates folder")
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	c, _, _ := newCourse(t, map[string]string{"_templates/a.md": "a"})
	_, err := c.Render(context.Background(), "b.md", nil)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadOutcomeUnknownKeepsName(t *testing.T) {
	c, _, _ := newCourse(t, nil)
	o, err := c.LoadOutcome("Teamwork")
	if err != nil {
		t.Fatalf("LoadOutcome: %v", err)
	}
	if o.Name != "Teamwork" || o.Description != "" {
		t.Errorf("outcome = %+v", o)
	}
}

func TestMakeLinkFallsBackToPages(t *testing.T) {
	c, remote, _ := newCourse(t, nil)
	remote.Lists["pages"] = []canvas.Data{
		{"url": "syllabus", "title": "Syllabus", "html_url": "https://lms.example.edu/p/syllabus"},
	}
	got, err := c.MakeLink(context.Background(), "Syllabus")
	if err != nil {
		t.Fatalf("MakeLink: %v", err)
	}
	if got != "[Syllabus](https://lms.example.edu/p/syllabus)" {
		t.Errorf("MakeLink = %q", got)
	}

	_, err = c.MakeLink(context.Background(), "Nothing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMakeLinkAmbiguous(t *testing.T) {
	c, remote, _ := newCourse(t, nil)
	remote.Lists["assignments"] = []canvas.Data{
		{"id": "1", "name": "Lab 1"},
		{"id": "2", "name": "Lab 10"},
	}
	_, err := c.MakeLink(context.Background(), "Lab 1")
	if !errors.Is(err, apperr.ErrAmbiguous) {
		t.Errorf("err = %v, want ErrAmbiguous", err)
	}
}
