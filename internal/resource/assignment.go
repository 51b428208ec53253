package resource

import (
	"context"
	"fmt"
	"net/url"

	"github.com/starford/coursesync/internal/canvas"
	"github.com/starford/coursesync/internal/convert"
)

// Assignments is the assignment variant, stored on disk as structured YAML.
var Assignments Variant = assignmentKind{}

type assignmentKind struct{}

func (assignmentKind) Descriptor() Descriptor {
	return Descriptor{
		Category:   CategoryAssignment,
		Aliases:    []string{"assignments", "a"},
		Collection: "assignments",
		Folder:     "assignments",
		Extension:  ".yaml",
		TitleField: "name",
		IDField:    "id",
	}
}

var assignmentFields = []string{
	"id", "name", "html_url", "description", "published", "points_possible", "grading_type",
	"allowed_extensions", "submission_types", "due_at", "unlock_at", "lock_at",
	"anonymize_students", "anonymous_grading",
}

// Assignment holds an assignment. Description is HTML and timestamps use the
// remote format.
type Assignment struct {
	ID                string         `json:"-"`
	Name              string         `json:"name"`
	HTMLURL           string         `json:"html_url"`
	Description       string         `json:"description"`
	Published         bool           `json:"published"`
	PointsPossible    *float64       `json:"points_possible"`
	GradingType       string         `json:"grading_type"`
	AllowedExtensions []string       `json:"allowed_extensions"`
	SubmissionTypes   []string       `json:"submission_types"`
	DueAt             string         `json:"due_at"`
	UnlockAt          string         `json:"unlock_at"`
	LockAt            string         `json:"lock_at"`
	AnonymizeStudents bool           `json:"anonymize_students"`
	AnonymousGrading  bool           `json:"anonymous_grading"`
	Extra             map[string]any `json:"-"`
}

// assignmentDisk mirrors the grouped on-disk layout.
type assignmentDisk struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Settings struct {
		Published      bool     `yaml:"published"`
		PointsPossible *float64 `yaml:"points_possible"`
		GradingType    string   `yaml:"grading_type"`
		Submission     struct {
			Extensions      []string `yaml:"extensions"`
			SubmissionTypes []string `yaml:"submission_types"`
		} `yaml:"submission"`
		Timing  timingDisk `yaml:"timing"`
		Secrecy struct {
			AnonymizeStudents bool `yaml:"anonymize_students"`
			AnonymousGrading  bool `yaml:"anonymous_grading"`
		} `yaml:"secrecy"`
	} `yaml:"settings"`
	Description string `yaml:"description"`
}

type timingDisk struct {
	DueAt    string `yaml:"due_at"`
	UnlockAt string `yaml:"unlock_at"`
	LockAt   string `yaml:"lock_at"`
}

func (k assignmentKind) FromJSON(_ context.Context, _ Remote, _ string, data canvas.Data) (Resource, error) {
	a := &Assignment{}
	extra, err := decodeRemote(data, a, assignmentFields)
	if err != nil {
		return nil, err
	}
	a.ID = k.Descriptor().ID(data)
	a.Extra = extra
	return a, nil
}

func (assignmentKind) FromDisk(cv *convert.Converter, content []byte, title string) (Resource, error) {
	var d assignmentDisk
	extra, err := decodeDisk(content, &d, []string{"name", "url", "settings", "description"})
	if err != nil {
		return nil, fmt.Errorf("resource: assignment %q: %w", title, err)
	}
	description, err := cv.MarkdownToHTML(d.Description)
	if err != nil {
		return nil, err
	}
	a := &Assignment{
		Name:              d.Name,
		HTMLURL:           d.URL,
		Description:       description,
		Published:         d.Settings.Published,
		PointsPossible:    d.Settings.PointsPossible,
		GradingType:       d.Settings.GradingType,
		AllowedExtensions: d.Settings.Submission.Extensions,
		SubmissionTypes:   d.Settings.Submission.SubmissionTypes,
		AnonymizeStudents: d.Settings.Secrecy.AnonymizeStudents,
		AnonymousGrading:  d.Settings.Secrecy.AnonymousGrading,
		Extra:             extra,
	}
	if a.Name == "" {
		a.Name = title
	}
	if a.DueAt, a.UnlockAt, a.LockAt, err = d.Settings.Timing.fromFriendly(cv); err != nil {
		return nil, fmt.Errorf("resource: assignment %q: %w", title, err)
	}
	return a, nil
}

func (a *Assignment) Category() Category { return CategoryAssignment }

func (a *Assignment) Title() string { return a.Name }

// ToJSON is suitable for a PUT/POST on the assignments endpoint. Submission
// types and allowed extensions are not sent: the endpoint rejects the
// comma-joined form and the array form is not wired up yet.
func (a *Assignment) ToJSON() (url.Values, error) {
	return url.Values{
		"assignment[notify_of_update]": {"false"},
		"assignment[name]":             {a.Name},
		"assignment[description]":      {a.Description},
		"assignment[points_possible]":  {formatFloat(a.PointsPossible)},
		"assignment[lock_at]":          {a.LockAt},
		"assignment[unlock_at]":        {a.UnlockAt},
		"assignment[due_at]":           {a.DueAt},
		"assignment[published]":        {formatBool(a.Published)},
	}, nil
}

// ToDisk returns the grouped YAML mapping.
func (a *Assignment) ToDisk(cv *convert.Converter) (any, error) {
	description, err := cv.HTMLToMarkdown(a.Description)
	if err != nil {
		return nil, err
	}
	timing, err := timingMapping(cv, a.DueAt, a.UnlockAt, a.LockAt)
	if err != nil {
		return nil, err
	}

	submission := newMapping()
	if a.AllowedExtensions != nil {
		submission.set("extensions", a.AllowedExtensions)
	}
	submission.set("submission_types", a.SubmissionTypes)

	settings := newMapping().
		set("published", a.Published).
		set("points_possible", optionalFloat(a.PointsPossible)).
		set("grading_type", a.GradingType).
		set("submission", submission).
		set("timing", timing).
		set("secrecy", newMapping().
			set("anonymize_students", a.AnonymizeStudents).
			set("anonymous_grading", a.AnonymousGrading))

	return newMapping().
		set("name", a.Name).
		set("url", a.HTMLURL).
		set("settings", settings).
		set("description", description).
		result()
}

// ToPublic is the student-facing view: no secrecy settings, no links back
// into the authoring site.
func (a *Assignment) ToPublic(cv *convert.Converter) (any, error) {
	description, err := cv.HTMLToMarkdown(a.Description)
	if err != nil {
		return nil, err
	}
	due, err := cv.ToFriendlyDate(a.DueAt)
	if err != nil {
		return nil, err
	}
	return newMapping().
		set("name", a.Name).
		set("points_possible", optionalFloat(a.PointsPossible)).
		set("due_at", optional(due)).
		set("description", description).
		result()
}

func timingMapping(cv *convert.Converter, due, unlock, lock string) (*mapping, error) {
	m := newMapping()
	for _, f := range []struct {
		key, value string
	}{{"due_at", due}, {"unlock_at", unlock}, {"lock_at", lock}} {
		friendly, err := cv.ToFriendlyDate(f.value)
		if err != nil {
			return nil, err
		}
		m.set(f.key, optional(friendly))
	}
	return m, nil
}

func (t timingDisk) fromFriendly(cv *convert.Converter) (due, unlock, lock string, err error) {
	if due, err = cv.FromFriendlyDate(t.DueAt); err != nil {
		return
	}
	if unlock, err = cv.FromFriendlyDate(t.UnlockAt); err != nil {
		return
	}
	lock, err = cv.FromFriendlyDate(t.LockAt)
	return
}
