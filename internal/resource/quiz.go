package resource

import (
	"context"
	"fmt"
	"net/url"

	"github.com/starford/coursesync/internal/canvas"
	"github.com/starford/coursesync/internal/convert"
)

// Quizzes is the quiz variant. Only quiz settings are synchronized; questions
// stay on the remote side.
var Quizzes Variant = quizKind{}

type quizKind struct{}

func (quizKind) Descriptor() Descriptor {
	return Descriptor{
		Category:   CategoryQuiz,
		Aliases:    []string{"quizzes", "q"},
		Collection: "quizzes",
		Folder:     "quizzes",
		Extension:  ".yaml",
		TitleField: "title",
		IDField:    "id",
	}
}

var quizFields = []string{
	"id", "title", "html_url", "description", "published", "quiz_type", "points_possible",
	"allowed_attempts", "time_limit", "shuffle_answers", "one_question_at_a_time",
	"show_correct_answers", "access_code", "due_at", "unlock_at", "lock_at",
}

// Quiz holds quiz settings. Description is HTML.
type Quiz struct {
	ID                 string         `json:"-"`
	Name               string         `json:"title"`
	HTMLURL            string         `json:"html_url"`
	Description        string         `json:"description"`
	Published          bool           `json:"published"`
	QuizType           string         `json:"quiz_type"`
	PointsPossible     *float64       `json:"points_possible"`
	AllowedAttempts    *int           `json:"allowed_attempts"`
	TimeLimit          *int           `json:"time_limit"`
	ShuffleAnswers     bool           `json:"shuffle_answers"`
	OneQuestionAtATime bool           `json:"one_question_at_a_time"`
	ShowCorrectAnswers bool           `json:"show_correct_answers"`
	AccessCode         string         `json:"access_code"`
	DueAt              string         `json:"due_at"`
	UnlockAt           string         `json:"unlock_at"`
	LockAt             string         `json:"lock_at"`
	Extra              map[string]any `json:"-"`
}

type quizDisk struct {
	Title    string `yaml:"title"`
	URL      string `yaml:"url"`
	Settings struct {
		Published          bool       `yaml:"published"`
		QuizType           string     `yaml:"quiz_type"`
		PointsPossible     *float64   `yaml:"points_possible"`
		AllowedAttempts    *int       `yaml:"allowed_attempts"`
		TimeLimit          *int       `yaml:"time_limit"`
		ShuffleAnswers     bool       `yaml:"shuffle_answers"`
		OneQuestionAtATime bool       `yaml:"one_question_at_a_time"`
		Timing             timingDisk `yaml:"timing"`
		Secrecy            struct {
			ShowCorrectAnswers bool   `yaml:"show_correct_answers"`
			AccessCode         string `yaml:"access_code"`
		} `yaml:"secrecy"`
	} `yaml:"settings"`
	Description string `yaml:"description"`
}

func (k quizKind) FromJSON(_ context.Context, _ Remote, _ string, data canvas.Data) (Resource, error) {
	q := &Quiz{}
	extra, err := decodeRemote(data, q, quizFields)
	if err != nil {
		return nil, err
	}
	q.ID = k.Descriptor().ID(data)
	q.Extra = extra
	return q, nil
}

func (quizKind) FromDisk(cv *convert.Converter, content []byte, title string) (Resource, error) {
	var d quizDisk
	extra, err := decodeDisk(content, &d, []string{"title", "url", "settings", "description"})
	if err != nil {
		return nil, fmt.Errorf("resource: quiz %q: %w", title, err)
	}
	description, err := cv.MarkdownToHTML(d.Description)
	if err != nil {
		return nil, err
	}
	q := &Quiz{
		Name:               d.Title,
		HTMLURL:            d.URL,
		Description:        description,
		Published:          d.Settings.Published,
		QuizType:           d.Settings.QuizType,
		PointsPossible:     d.Settings.PointsPossible,
		AllowedAttempts:    d.Settings.AllowedAttempts,
		TimeLimit:          d.Settings.TimeLimit,
		ShuffleAnswers:     d.Settings.ShuffleAnswers,
		OneQuestionAtATime: d.Settings.OneQuestionAtATime,
		ShowCorrectAnswers: d.Settings.Secrecy.ShowCorrectAnswers,
		AccessCode:         d.Settings.Secrecy.AccessCode,
		Extra:              extra,
	}
	if q.Name == "" {
		q.Name = title
	}
	if q.DueAt, q.UnlockAt, q.LockAt, err = d.Settings.Timing.fromFriendly(cv); err != nil {
		return nil, fmt.Errorf("resource: quiz %q: %w", title, err)
	}
	return q, nil
}

func (q *Quiz) Category() Category { return CategoryQuiz }

func (q *Quiz) Title() string { return q.Name }

// ToJSON is suitable for a PUT/POST on the quizzes endpoint.
func (q *Quiz) ToJSON() (url.Values, error) {
	form := url.Values{
		"quiz[notify_of_update]":       {"false"},
		"quiz[title]":                  {q.Name},
		"quiz[description]":            {q.Description},
		"quiz[shuffle_answers]":        {formatBool(q.ShuffleAnswers)},
		"quiz[one_question_at_a_time]": {formatBool(q.OneQuestionAtATime)},
		"quiz[show_correct_answers]":   {formatBool(q.ShowCorrectAnswers)},
		"quiz[due_at]":                 {q.DueAt},
		"quiz[unlock_at]":              {q.UnlockAt},
		"quiz[lock_at]":                {q.LockAt},
		"quiz[published]":              {formatBool(q.Published)},
		"quiz[time_limit]":             {formatInt(q.TimeLimit)},
		"quiz[access_code]":            {q.AccessCode},
	}
	if q.QuizType != "" {
		form.Set("quiz[quiz_type]", q.QuizType)
	}
	if q.AllowedAttempts != nil {
		form.Set("quiz[allowed_attempts]", formatInt(q.AllowedAttempts))
	}
	return form, nil
}

func (q *Quiz) ToDisk(cv *convert.Converter) (any, error) {
	description, err := cv.HTMLToMarkdown(q.Description)
	if err != nil {
		return nil, err
	}
	timing, err := timingMapping(cv, q.DueAt, q.UnlockAt, q.LockAt)
	if err != nil {
		return nil, err
	}
	settings := newMapping().
		set("published", q.Published).
		set("quiz_type", q.QuizType).
		set("points_possible", optionalFloat(q.PointsPossible)).
		set("allowed_attempts", optionalInt(q.AllowedAttempts)).
		set("time_limit", optionalInt(q.TimeLimit)).
		set("shuffle_answers", q.ShuffleAnswers).
		set("one_question_at_a_time", q.OneQuestionAtATime).
		set("timing", timing).
		set("secrecy", newMapping().
			set("show_correct_answers", q.ShowCorrectAnswers).
			set("access_code", optional(q.AccessCode)))

	return newMapping().
		set("title", q.Name).
		set("url", q.HTMLURL).
		set("settings", settings).
		set("description", description).
		result()
}

// ToPublic hides the access code and answer visibility.
func (q *Quiz) ToPublic(cv *convert.Converter) (any, error) {
	description, err := cv.HTMLToMarkdown(q.Description)
	if err != nil {
		return nil, err
	}
	due, err := cv.ToFriendlyDate(q.DueAt)
	if err != nil {
		return nil, err
	}
	return newMapping().
		set("title", q.Name).
		set("time_limit", optionalInt(q.TimeLimit)).
		set("allowed_attempts", optionalInt(q.AllowedAttempts)).
		set("due_at", optional(due)).
		set("description", description).
		result()
}
