package resource

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/coursesync/internal/apperr"
	"github.com/starford/coursesync/internal/canvas"
	"github.com/starford/coursesync/internal/convert"
)

// Outcomes is the learning-outcome variant. On disk outcomes live in banks:
// YAML files mapping outcome names to their content.
var Outcomes Variant = outcomeKind{}

type outcomeKind struct{}

func (outcomeKind) Descriptor() Descriptor {
	return Descriptor{
		Category:   CategoryOutcome,
		Aliases:    []string{"outcomes", "o"},
		Collection: "outcomes",
		Folder:     "outcomes",
		Extension:  ".yaml",
		TitleField: "title",
		IDField:    "id",
	}
}

var outcomeFields = []string{"id", "title", "display_name", "description", "mastery_points", "calculation_method"}

// Outcome is a learning outcome. Description is HTML.
type Outcome struct {
	ID                string         `json:"-"`
	Name              string         `json:"title"`
	DisplayName       string         `json:"display_name"`
	Description       string         `json:"description"`
	MasteryPoints     *float64       `json:"mastery_points"`
	CalculationMethod string         `json:"calculation_method"`
	BankSource        string         `json:"-"` // directory of the bank file it was loaded from
	Extra             map[string]any `json:"-"`
}

type outcomeDisk struct {
	DisplayName       string   `yaml:"display_name"`
	Description       string   `yaml:"description"`
	MasteryPoints     *float64 `yaml:"mastery_points"`
	CalculationMethod string   `yaml:"calculation_method"`
}

// Outcomes are linked into a course through outcome groups, so searching
// goes through the group links while fetching and updating use the global
// outcome endpoint.

func (outcomeKind) Search(ctx context.Context, remote Remote, course, name string) ([]canvas.Data, error) {
	links, err := remote.List(ctx, course, "outcome_group_links", nil)
	if err != nil {
		return nil, fmt.Errorf("resource: search outcomes: %w", err)
	}
	needle := strings.ToLower(name)
	var out []canvas.Data
	for _, link := range links {
		o, ok := link["outcome"].(map[string]any)
		if !ok {
			continue
		}
		data := canvas.Data(o)
		if needle == "" || strings.Contains(strings.ToLower(data.String("title")), needle) {
			out = append(out, data)
		}
	}
	return out, nil
}

func (outcomeKind) Fetch(ctx context.Context, remote Remote, course, id string) (canvas.Data, error) {
	data, err := remote.Get(ctx, course, "/outcomes/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("resource: fetch outcome %s: %w", id, err)
	}
	return data, nil
}

func (outcomeKind) Save(ctx context.Context, remote Remote, course, id string, form url.Values) (canvas.Data, error) {
	if id == "" {
		return nil, fmt.Errorf("resource: create outcome: %w: outcomes must be created inside an outcome group", apperr.ErrNotImplemented)
	}
	data, err := remote.Put(ctx, course, "/outcomes/"+url.PathEscape(id), form)
	if err != nil {
		return nil, fmt.Errorf("resource: save outcome %s: %w", id, err)
	}
	return data, nil
}

func (k outcomeKind) FromJSON(_ context.Context, _ Remote, _ string, data canvas.Data) (Resource, error) {
	o := &Outcome{}
	extra, err := decodeRemote(data, o, outcomeFields)
	if err != nil {
		return nil, err
	}
	o.ID = k.Descriptor().ID(data)
	o.Extra = extra
	return o, nil
}

// FromDisk reads a bank and returns the entry named title. A bank holding a
// single entry returns that entry whatever its name.
func (outcomeKind) FromDisk(cv *convert.Converter, content []byte, title string) (Resource, error) {
	bank, err := parseBank(content)
	if err != nil {
		return nil, fmt.Errorf("resource: outcome %q: %w", title, err)
	}
	name := title
	value, ok := bank[title]
	if !ok {
		if len(bank) != 1 {
			names := make([]string, 0, len(bank))
			for n := range bank {
				names = append(names, n)
			}
			sort.Strings(names)
			return nil, &apperr.MatchError{Kind: apperr.ErrNotFound, Subject: "outcome " + title, Matches: names}
		}
		for n, v := range bank {
			name, value = n, v
		}
	}
	return outcomeFromEntry(cv, name, value)
}

func parseBank(content []byte) (map[string]yaml.Node, error) {
	var bank map[string]yaml.Node
	if err := yaml.Unmarshal(content, &bank); err != nil {
		return nil, fmt.Errorf("parse bank: %w", err)
	}
	return bank, nil
}

// outcomeFromEntry accepts either a mapping or a bare description string.
func outcomeFromEntry(cv *convert.Converter, name string, value yaml.Node) (*Outcome, error) {
	var d outcomeDisk
	var extra map[string]any
	switch value.Kind {
	case yaml.ScalarNode:
		if err := value.Decode(&d.Description); err != nil {
			return nil, fmt.Errorf("resource: outcome %q: %w", name, err)
		}
	case yaml.MappingNode:
		if err := value.Decode(&d); err != nil {
			return nil, fmt.Errorf("resource: outcome %q: %w", name, err)
		}
		var all map[string]any
		if err := value.Decode(&all); err != nil {
			return nil, fmt.Errorf("resource: outcome %q: %w", name, err)
		}
		extra = unknownFields(all, []string{"display_name", "description", "mastery_points", "calculation_method"})
	default:
		return nil, fmt.Errorf("resource: outcome %q: entry must be a mapping or a string", name)
	}
	description, err := cv.MarkdownToHTML(d.Description)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Name:              name,
		DisplayName:       d.DisplayName,
		Description:       description,
		MasteryPoints:     d.MasteryPoints,
		CalculationMethod: d.CalculationMethod,
		Extra:             extra,
	}, nil
}

func (o *Outcome) Category() Category { return CategoryOutcome }

func (o *Outcome) Title() string { return o.Name }

func (o *Outcome) ToJSON() (url.Values, error) {
	form := url.Values{
		"title":        {o.Name},
		"display_name": {o.DisplayName},
		"description":  {o.Description},
	}
	if o.MasteryPoints != nil {
		form.Set("mastery_points", formatFloat(o.MasteryPoints))
	}
	if o.CalculationMethod != "" {
		form.Set("calculation_method", o.CalculationMethod)
	}
	return form, nil
}

// ToDisk writes the outcome as a one-entry bank.
func (o *Outcome) ToDisk(cv *convert.Converter) (any, error) {
	description, err := cv.HTMLToMarkdown(o.Description)
	if err != nil {
		return nil, err
	}
	entry := newMapping().
		set("display_name", o.DisplayName).
		set("description", description).
		set("mastery_points", optionalFloat(o.MasteryPoints)).
		set("calculation_method", o.CalculationMethod)
	return newMapping().set(o.Name, entry).result()
}
