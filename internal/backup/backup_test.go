package backup

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/starford/coursesync/internal/storage"
)

func newStore(t *testing.T) (*Store, *storage.FS) {
	t.Helper()
	files, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	fixed := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	return NewStore(files, WithClock(func() time.Time { return fixed })), files
}

func TestResourceSkipsIdenticalContent(t *testing.T) {
	s, _ := newStore(t)
	wrote, err := s.Resource("assignments", "HW.yaml", ".yaml", []byte("same"), []byte("same"))
	if err != nil {
		t.Fatalf("Resource: %v", err)
	}
	if wrote {
		t.Error("identical content should not be backed up")
	}
}

func TestResourceTwiceWritesOnce(t *testing.T) {
	s, _ := newStore(t)
	current, next := []byte("name: old\n"), []byte("name: new\n")

	wrote, err := s.Resource("assignments", "HW.yaml", ".yaml", current, next)
	if err != nil || !wrote {
		t.Fatalf("first Resource = %v, %v", wrote, err)
	}
	wrote, err = s.Resource("assignments", "HW.yaml", ".yaml", current, next)
	if err != nil {
		t.Fatalf("second Resource: %v", err)
	}
	if wrote {
		t.Error("second call should be a no-op")
	}

	versions, err := s.Versions(Location("assignments", "HW.yaml"), ".yaml")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("versions = %v, want 1", versions)
	}
	got, err := s.Open(versions[0])
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(got) != "name: old\n" {
		t.Errorf("backup content = %q", got)
	}
}

func TestBackupsNeverOverwritten(t *testing.T) {
	s, _ := newStore(t)
	dir := Location("pages", "Intro.md")
	for _, v := range []string{"v1", "v2", "v3"} {
		if _, err := s.Resource("pages", "Intro.md", ".md", []byte(v), []byte("next")); err != nil {
			t.Fatalf("Resource(%s): %v", v, err)
		}
	}
	versions, err := s.Versions(dir, ".md")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("versions = %v, want 3", versions)
	}
	latest, ok, err := s.Latest(dir, ".md")
	if err != nil || !ok {
		t.Fatalf("Latest = %v, %v", ok, err)
	}
	if string(latest) != "v3" {
		t.Errorf("latest = %q, want v3", latest)
	}
}

func TestLatestOrdersCounterNumerically(t *testing.T) {
	s, _ := newStore(t)
	dir := Location("pages", "Intro.md")
	for i := 1; i <= 12; i++ {
		v := fmt.Sprintf("v%d", i)
		if _, err := s.Resource("pages", "Intro.md", ".md", []byte(v), []byte("next")); err != nil {
			t.Fatalf("Resource(%s): %v", v, err)
		}
	}
	versions, err := s.Versions(dir, ".md")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 12 || !strings.HasSuffix(versions[11], "_11.md.gz") {
		t.Fatalf("versions = %v", versions)
	}
	latest, _, err := s.Latest(dir, ".md")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if string(latest) != "v12" {
		t.Errorf("latest = %q, want v12", latest)
	}

	wrote, err := s.Resource("pages", "Intro.md", ".md", []byte("v12"), []byte("next"))
	if err != nil {
		t.Fatal(err)
	}
	if wrote {
		t.Error("content equal to the latest backup should not be written again")
	}
}

func TestJSON(t *testing.T) {
	s, _ := newStore(t)
	p, err := s.JSON("quizzes", "Quiz 1.yaml", map[string]any{"id": 4, "title": "Quiz 1"})
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !strings.HasSuffix(p, "2024-03-01T09-30-00.000000.json.gz") {
		t.Errorf("path = %q", p)
	}
	raw, err := s.Open(p)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["title"] != "Quiz 1" {
		t.Errorf("got %v", got)
	}

	// JSON snapshots always write, even when unchanged.
	if _, err := s.JSON("quizzes", "Quiz 1.yaml", map[string]any{"id": 4, "title": "Quiz 1"}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	versions, _ := s.Versions(Location("quizzes", "Quiz 1.yaml"), ".json")
	if len(versions) != 2 {
		t.Errorf("versions = %v, want 2", versions)
	}
}

func TestLatestEmpty(t *testing.T) {
	s, _ := newStore(t)
	_, ok, err := s.Latest(Location("pages", "none.md"), ".md")
	if err != nil || ok {
		t.Errorf("Latest = %v, %v", ok, err)
	}
}
