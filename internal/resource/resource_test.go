package resource

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/starford/coursesync/internal/apperr"
	"github.com/starford/coursesync/internal/canvas"
	"github.com/starford/coursesync/internal/convert"
	"github.com/starford/coursesync/internal/testutil"
)

func TestRegistry_Aliases(t *testing.T) {
	reg := DefaultRegistry()
	cases := map[string]Category{
		"assignment":  CategoryAssignment,
		"assignments": CategoryAssignment,
		"a":           CategoryAssignment,
		"Pages":       CategoryPage,
		"quiz":        CategoryQuiz,
		"outcomes":    CategoryOutcome,
	}
	for name, want := range cases {
		v, err := reg.Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
		if got := v.Descriptor().Category; got != want {
			t.Errorf("Lookup(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestRegistry_Unknown(t *testing.T) {
	_, err := DefaultRegistry().Lookup("bogus")
	if !errors.Is(err, apperr.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestRegistry_ByFolder(t *testing.T) {
	v, ok := DefaultRegistry().ByFolder("quizzes")
	if !ok || v.Descriptor().Category != CategoryQuiz {
		t.Errorf("ByFolder(quizzes) = %v, %v", v, ok)
	}
	if _, ok := DefaultRegistry().ByFolder("_backups"); ok {
		t.Error("_backups should not map to a variant")
	}
}

func sampleAssignment() canvas.Data {
	return canvas.Data{
		"id":                 "42",
		"name":               "Homework 1",
		"html_url":           "https://lms.example.edu/courses/1/assignments/42",
		"description":        "<p>Write a <strong>program</strong>.</p>",
		"published":          true,
		"points_possible":    10.0,
		"grading_type":       "points",
		"allowed_extensions": []any{"py"},
		"submission_types":   []any{"online_upload"},
		"due_at":             "2024-09-08T03:59:59Z",
		"unlock_at":          "2024-09-01T04:00:00Z",
		"lock_at":            nil,
		"anonymize_students": false,
		"anonymous_grading":  true,
		"rubric_settings":    map[string]any{"points_possible": 10},
	}
}

func TestAssignment_FromJSONKeepsExtra(t *testing.T) {
	r, err := Assignments.FromJSON(context.Background(), nil, "cs101", sampleAssignment())
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	a := r.(*Assignment)
	if a.ID != "42" || a.Name != "Homework 1" {
		t.Errorf("id/name = %q/%q", a.ID, a.Name)
	}
	if _, ok := a.Extra["rubric_settings"]; !ok {
		t.Errorf("unknown field dropped: %v", a.Extra)
	}
	if _, ok := a.Extra["name"]; ok {
		t.Error("known field leaked into Extra")
	}
}

func TestAssignment_DiskRoundTrip(t *testing.T) {
	cv := convert.New(nil)
	r, err := Assignments.FromJSON(context.Background(), nil, "cs101", sampleAssignment())
	if err != nil {
		t.Fatal(err)
	}
	orig := r.(*Assignment)

	disk, err := orig.ToDisk(cv)
	if err != nil {
		t.Fatalf("ToDisk: %v", err)
	}
	content, err := Encode(disk)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := Assignments.FromDisk(cv, content, "Homework 1")
	if err != nil {
		t.Fatalf("FromDisk: %v\n%s", err, content)
	}
	got := back.(*Assignment)

	if got.Name != orig.Name || got.HTMLURL != orig.HTMLURL {
		t.Errorf("name/url = %q/%q", got.Name, got.HTMLURL)
	}
	if got.DueAt != orig.DueAt || got.UnlockAt != orig.UnlockAt || got.LockAt != orig.LockAt {
		t.Errorf("timing = %q %q %q, want %q %q %q",
			got.DueAt, got.UnlockAt, got.LockAt, orig.DueAt, orig.UnlockAt, orig.LockAt)
	}
	if got.Published != orig.Published || got.GradingType != orig.GradingType {
		t.Errorf("settings = %v %q", got.Published, got.GradingType)
	}
	if got.PointsPossible == nil || *got.PointsPossible != 10 {
		t.Errorf("points = %v", got.PointsPossible)
	}
	if got.AnonymizeStudents != orig.AnonymizeStudents || got.AnonymousGrading != orig.AnonymousGrading {
		t.Errorf("secrecy = %v %v", got.AnonymizeStudents, got.AnonymousGrading)
	}
	if len(got.AllowedExtensions) != 1 || got.AllowedExtensions[0] != "py" {
		t.Errorf("extensions = %v", got.AllowedExtensions)
	}
	if len(got.SubmissionTypes) != 1 || got.SubmissionTypes[0] != "online_upload" {
		t.Errorf("submission types = %v", got.SubmissionTypes)
	}
	if !strings.Contains(got.Description, "<strong>program</strong>") {
		t.Errorf("description = %q", got.Description)
	}
}

func TestAssignment_DiskLayout(t *testing.T) {
	cv := convert.New(nil)
	r, _ := Assignments.FromJSON(context.Background(), nil, "cs101", sampleAssignment())
	disk, err := r.ToDisk(cv)
	if err != nil {
		t.Fatal(err)
	}
	content, err := Encode(disk)
	if err != nil {
		t.Fatal(err)
	}
	s := string(content)
	order := []string{"name:", "url:", "settings:", "  published:", "  submission:", "  timing:", "  secrecy:", "description: |"}
	last := -1
	for _, key := range order {
		i := strings.Index(s, key)
		if i < 0 {
			t.Fatalf("missing %q in\n%s", key, s)
		}
		if i < last {
			t.Errorf("%q out of order in\n%s", key, s)
		}
		last = i
	}
	if !strings.Contains(s, "due_at: September 8 2024, 3:59:59 AM") {
		t.Errorf("friendly due date missing in\n%s", s)
	}
	if !strings.Contains(s, "lock_at: null") {
		t.Errorf("empty lock_at should be null in\n%s", s)
	}
}

func TestAssignment_ToJSONOmitsSubmissionTypes(t *testing.T) {
	r, _ := Assignments.FromJSON(context.Background(), nil, "cs101", sampleAssignment())
	form, err := r.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	if form.Get("assignment[name]") != "Homework 1" {
		t.Errorf("name = %q", form.Get("assignment[name]"))
	}
	if form.Get("assignment[points_possible]") != "10" {
		t.Errorf("points = %q", form.Get("assignment[points_possible]"))
	}
	if form.Get("assignment[published]") != "true" {
		t.Errorf("published = %q", form.Get("assignment[published]"))
	}
	if form.Get("assignment[notify_of_update]") != "false" {
		t.Error("notify_of_update should be false")
	}
	for key := range form {
		if strings.Contains(key, "submission_types") || strings.Contains(key, "allowed_extensions") {
			t.Errorf("unexpected key %q", key)
		}
	}
}

func TestPage_FromJSONFetchesMissingBody(t *testing.T) {
	remote := testutil.NewFakeRemote()
	remote.Objects["pages/syllabus"] = canvas.Data{"url": "syllabus", "title": "Syllabus", "body": "<p>Read me</p>"}

	r, err := Pages.FromJSON(context.Background(), remote, "cs101", canvas.Data{"url": "syllabus", "title": "Syllabus"})
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got := r.(*Page).Body; got != "<p>Read me</p>" {
		t.Errorf("body = %q", got)
	}
	if len(remote.Gets) != 1 {
		t.Errorf("gets = %v, want one body fetch", remote.Gets)
	}
}

func TestPage_FromJSONWithBodyDoesNotFetch(t *testing.T) {
	remote := testutil.NewFakeRemote()
	_, err := Pages.FromJSON(context.Background(), remote, "cs101",
		canvas.Data{"url": "syllabus", "title": "Syllabus", "body": "<p>x</p>"})
	if err != nil {
		t.Fatal(err)
	}
	if len(remote.Gets) != 0 {
		t.Errorf("unexpected fetches: %v", remote.Gets)
	}
}

func TestPage_DiskRoundTrip(t *testing.T) {
	cv := convert.New(nil)
	pub := true
	p := &Page{Name: "Syllabus", Body: "<h2>Policies</h2><p>Be <em>kind</em>.</p>", Published: &pub}
	disk, err := p.ToDisk(cv)
	if err != nil {
		t.Fatal(err)
	}
	s, ok := disk.(string)
	if !ok {
		t.Fatalf("page ToDisk should yield a string, got %T", disk)
	}
	if !strings.HasPrefix(s, "---\ntitle: Syllabus\npublished: true\n---\n") {
		t.Errorf("front-matter = %q", s)
	}
	back, err := Pages.FromDisk(cv, []byte(s), "ignored")
	if err != nil {
		t.Fatal(err)
	}
	got := back.(*Page)
	if got.Name != "Syllabus" || got.Published == nil || !*got.Published {
		t.Errorf("page = %+v", got)
	}
	if !strings.Contains(got.Body, "<em>kind</em>") {
		t.Errorf("body = %q", got.Body)
	}
}

func TestPage_FromDiskWithoutFrontmatterUsesTitle(t *testing.T) {
	back, err := Pages.FromDisk(convert.New(nil), []byte("Plain text.\n"), "Resolved Title")
	if err != nil {
		t.Fatal(err)
	}
	p := back.(*Page)
	if p.Name != "Resolved Title" {
		t.Errorf("name = %q", p.Name)
	}
	form, _ := p.ToJSON()
	if form.Get("wiki_page[title]") != "Resolved Title" {
		t.Errorf("form title = %q", form.Get("wiki_page[title]"))
	}
	if _, ok := form["wiki_page[published]"]; ok {
		t.Error("published should be omitted when unknown")
	}
}

func TestQuiz_DiskRoundTrip(t *testing.T) {
	cv := convert.New(nil)
	data := canvas.Data{
		"id": "7", "title": "Quiz 1", "description": "<p>Good luck</p>", "published": false,
		"quiz_type": "assignment", "points_possible": 5.0, "allowed_attempts": 2, "time_limit": nil,
		"shuffle_answers": true, "show_correct_answers": false, "access_code": "s3cret",
		"due_at": "2024-10-01T16:00:00Z", "unlock_at": nil, "lock_at": nil,
	}
	r, err := Quizzes.FromJSON(context.Background(), nil, "cs101", data)
	if err != nil {
		t.Fatal(err)
	}
	disk, _ := r.ToDisk(cv)
	content, err := Encode(disk)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Quizzes.FromDisk(cv, content, "Quiz 1")
	if err != nil {
		t.Fatalf("FromDisk: %v\n%s", err, content)
	}
	q := back.(*Quiz)
	if q.Name != "Quiz 1" || q.QuizType != "assignment" || q.AccessCode != "s3cret" || !q.ShuffleAnswers {
		t.Errorf("quiz = %+v", q)
	}
	if q.AllowedAttempts == nil || *q.AllowedAttempts != 2 || q.TimeLimit != nil {
		t.Errorf("attempts/limit = %v/%v", q.AllowedAttempts, q.TimeLimit)
	}
	if q.DueAt != "2024-10-01T16:00:00Z" {
		t.Errorf("due = %q", q.DueAt)
	}

	public, err := q.ToPublic(cv)
	if err != nil {
		t.Fatal(err)
	}
	pub, _ := Encode(public)
	if strings.Contains(string(pub), "s3cret") {
		t.Errorf("public view leaks access code:\n%s", pub)
	}
}

func TestOutcome_FromDiskBank(t *testing.T) {
	cv := convert.New(nil)
	bank := []byte("Recursion:\n  display_name: REC\n  description: Can write recursive functions.\n  mastery_points: 3\nLoops: Can write loops.\n")

	r, err := Outcomes.FromDisk(cv, bank, "Loops")
	if err != nil {
		t.Fatal(err)
	}
	o := r.(*Outcome)
	if o.Name != "Loops" || !strings.Contains(o.Description, "Can write loops.") {
		t.Errorf("outcome = %+v", o)
	}

	_, err = Outcomes.FromDisk(cv, bank, "Missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOutcome_CreateNotImplemented(t *testing.T) {
	remote := testutil.NewFakeRemote()
	_, err := Save(context.Background(), remote, "cs101", Outcomes, "", nil)
	if !errors.Is(err, apperr.ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
	if len(remote.Saves) != 0 {
		t.Error("nothing should reach the remote")
	}
}

func TestOutcome_SearchThroughGroupLinks(t *testing.T) {
	remote := testutil.NewFakeRemote()
	remote.Lists["outcome_group_links"] = []canvas.Data{
		{"outcome": map[string]any{"id": "1", "title": "Recursion"}},
		{"outcome": map[string]any{"id": "2", "title": "Loops"}},
	}
	got, err := Search(context.Background(), remote, "cs101", Outcomes, "rec")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].String("id") != "1" {
		t.Errorf("search = %v", got)
	}
}

func TestSave_CreateVersusUpdate(t *testing.T) {
	remote := testutil.NewFakeRemote()
	ctx := context.Background()
	if _, err := Save(ctx, remote, "cs101", Assignments, "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := Save(ctx, remote, "cs101", Assignments, "42", nil); err != nil {
		t.Fatal(err)
	}
	if remote.Saves[0].Method != "POST" || remote.Saves[0].Endpoint != "assignments" {
		t.Errorf("create = %+v", remote.Saves[0])
	}
	if remote.Saves[1].Method != "PUT" || remote.Saves[1].Endpoint != "assignments/42" {
		t.Errorf("update = %+v", remote.Saves[1])
	}
}

func TestOutcomeCache_ScansOnce(t *testing.T) {
	root := fstest.MapFS{
		"outcomes/bank.yaml":        {Data: []byte("Recursion: Can recurse.\n")},
		"outcomes/week2/more.yaml":  {Data: []byte("Loops:\n  description: Can loop.\n")},
		"outcomes/bank.public.yaml": {Data: []byte("not: [a bank\n")},
	}
	cache := NewOutcomeCache(convert.New(nil))

	o, ok, err := cache.Lookup("cs101", root, "Recursion")
	if err != nil || !ok {
		t.Fatalf("Lookup: %v %v", ok, err)
	}
	if o.BankSource != "outcomes" {
		t.Errorf("bank source = %q", o.BankSource)
	}
	if _, ok, _ := cache.Lookup("cs101", root, "Loops"); !ok {
		t.Error("Loops not found")
	}
	if cache.scans != 1 {
		t.Errorf("scans = %d, want 1", cache.scans)
	}

	cache.Invalidate("cs101")
	if _, _, err := cache.Lookup("cs101", root, "Loops"); err != nil {
		t.Fatal(err)
	}
	if cache.scans != 2 {
		t.Errorf("scans after invalidate = %d, want 2", cache.scans)
	}
}

func TestOutcomeCache_MissingFolder(t *testing.T) {
	cache := NewOutcomeCache(convert.New(nil))
	_, ok, err := cache.Lookup("cs101", fstest.MapFS{}, "Anything")
	if err != nil || ok {
		t.Errorf("Lookup = %v, %v", ok, err)
	}
}

func TestQuiz_ToJSON(t *testing.T) {
	attempts, limit := 3, 45
	tests := []struct {
		name    string
		quiz    *Quiz
		want    map[string]string
		missing []string
	}{
		{
			name: "unset optionals",
			quiz: &Quiz{Name: "Quiz 1", Description: "<p>Hi</p>", Published: true},
			want: map[string]string{
				"quiz[notify_of_update]": "false",
				"quiz[title]":            "Quiz 1",
				"quiz[description]":      "<p>Hi</p>",
				"quiz[published]":        "true",
				"quiz[time_limit]":       "",
				"quiz[shuffle_answers]":  "false",
			},
			missing: []string{"quiz[quiz_type]", "quiz[allowed_attempts]"},
		},
		{
			name: "set optionals",
			quiz: &Quiz{
				Name:            "Quiz 2",
				QuizType:        "graded_survey",
				AllowedAttempts: &attempts,
				TimeLimit:       &limit,
				AccessCode:      "s3cret",
				DueAt:           "2024-09-08T03:59:59Z",
			},
			want: map[string]string{
				"quiz[notify_of_update]": "false",
				"quiz[quiz_type]":        "graded_survey",
				"quiz[allowed_attempts]": "3",
				"quiz[time_limit]":       "45",
				"quiz[access_code]":      "s3cret",
				"quiz[due_at]":           "2024-09-08T03:59:59Z",
				"quiz[published]":        "false",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form, err := tt.quiz.ToJSON()
			if err != nil {
				t.Fatal(err)
			}
			for k, want := range tt.want {
				if _, ok := form[k]; !ok {
					t.Errorf("%s missing", k)
					continue
				}
				if got := form.Get(k); got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}
			for _, k := range tt.missing {
				if _, ok := form[k]; ok {
					t.Errorf("%s should not be sent, got %q", k, form.Get(k))
				}
			}
		})
	}
}

func TestOutcome_ToJSON(t *testing.T) {
	points := 3.5
	tests := []struct {
		name    string
		outcome *Outcome
		want    map[string]string
		missing []string
	}{
		{
			name:    "description only",
			outcome: &Outcome{Name: "Loops", Description: "<p>Can loop.</p>"},
			want: map[string]string{
				"title":        "Loops",
				"display_name": "",
				"description":  "<p>Can loop.</p>",
			},
			missing: []string{"mastery_points", "calculation_method"},
		},
		{
			name: "full",
			outcome: &Outcome{
				Name:              "Recursion",
				DisplayName:       "REC",
				Description:       "<p>Can recurse.</p>",
				MasteryPoints:     &points,
				CalculationMethod: "highest",
			},
			want: map[string]string{
				"title":              "Recursion",
				"display_name":       "REC",
				"mastery_points":     "3.5",
				"calculation_method": "highest",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form, err := tt.outcome.ToJSON()
			if err != nil {
				t.Fatal(err)
			}
			for k, want := range tt.want {
				if _, ok := form[k]; !ok {
					t.Errorf("%s missing", k)
					continue
				}
				if got := form.Get(k); got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}
			for _, k := range tt.missing {
				if _, ok := form[k]; ok {
					t.Errorf("%s should not be sent", k)
				}
			}
		})
	}
}

func TestOutcome_DiskRoundTrip(t *testing.T) {
	cv := convert.New(nil)
	data := canvas.Data{
		"id":                 "7",
		"title":              "Recursion",
		"display_name":       "REC",
		"description":        "<p>Can write recursive functions.</p>",
		"mastery_points":     3.0,
		"calculation_method": "highest",
		"context_type":       "Course",
	}
	r, err := Outcomes.FromJSON(context.Background(), nil, "cs101", data)
	if err != nil {
		t.Fatal(err)
	}
	orig := r.(*Outcome)
	if orig.ID != "7" || orig.Extra["context_type"] != "Course" {
		t.Errorf("from json = %+v", orig)
	}

	disk, err := orig.ToDisk(cv)
	if err != nil {
		t.Fatal(err)
	}
	content, err := Encode(disk)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(content), "Recursion:\n") {
		t.Errorf("bank should have one top-level entry:\n%s", content)
	}

	back, err := Outcomes.FromDisk(cv, content, "Recursion")
	if err != nil {
		t.Fatal(err)
	}
	got := back.(*Outcome)
	if got.Name != "Recursion" || got.DisplayName != "REC" || got.CalculationMethod != "highest" {
		t.Errorf("round trip = %+v", got)
	}
	if got.MasteryPoints == nil || *got.MasteryPoints != 3 {
		t.Errorf("mastery points = %v", got.MasteryPoints)
	}
	if !strings.Contains(got.Description, "<p>Can write recursive functions.</p>") {
		t.Errorf("description = %q", got.Description)
	}

	// A renamed file still yields its single entry.
	if r, err := Outcomes.FromDisk(cv, content, "Other Name"); err != nil || r.Title() != "Recursion" {
		t.Errorf("single-entry bank = %v, %v", r, err)
	}
}

func TestOutcome_FetchAndSaveUseGlobalEndpoint(t *testing.T) {
	remote := testutil.NewFakeRemote()
	remote.Objects["/outcomes/7"] = canvas.Data{"id": "7", "title": "Recursion"}
	ctx := context.Background()

	data, err := Fetch(ctx, remote, "cs101", Outcomes, "7")
	if err != nil {
		t.Fatal(err)
	}
	if data.String("title") != "Recursion" {
		t.Errorf("fetch = %v", data)
	}
	if len(remote.Gets) != 1 || remote.Gets[0] != "/outcomes/7" {
		t.Errorf("gets = %v", remote.Gets)
	}

	if _, err := Save(ctx, remote, "cs101", Outcomes, "7", url.Values{"title": {"Recursion"}}); err != nil {
		t.Fatal(err)
	}
	if len(remote.Saves) != 1 {
		t.Fatalf("saves = %+v", remote.Saves)
	}
	if s := remote.Saves[0]; s.Method != http.MethodPut || s.Endpoint != "/outcomes/7" || s.Form.Get("title") != "Recursion" {
		t.Errorf("save = %+v", s)
	}
}
