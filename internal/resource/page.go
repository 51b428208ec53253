package resource

import (
	"context"
	"fmt"
	"net/url"

	"github.com/starford/coursesync/internal/canvas"
	"github.com/starford/coursesync/internal/convert"
	"github.com/starford/coursesync/internal/parser"
)

// Pages is the wiki page variant. Pages live on disk as Markdown with a
// small YAML front-matter.
var Pages Variant = pageKind{}

type pageKind struct{}

func (pageKind) Descriptor() Descriptor {
	return Descriptor{
		Category:   CategoryPage,
		Aliases:    []string{"pages", "p"},
		Collection: "pages",
		Folder:     "pages",
		Extension:  ".md",
		TitleField: "title",
		IDField:    "url",
	}
}

var pageFields = []string{"url", "title", "body", "published", "editing_roles", "html_url"}

// Page is a wiki page. Body is HTML.
type Page struct {
	URL          string         `json:"url"`
	Name         string         `json:"title"`
	Body         string         `json:"body"`
	Published    *bool          `json:"published"`
	EditingRoles string         `json:"editing_roles"`
	HTMLURL      string         `json:"html_url"`
	Extra        map[string]any `json:"-"`
}

// FromJSON builds a Page. Search results omit the body, so it is fetched
// separately when missing.
func (k pageKind) FromJSON(ctx context.Context, remote Remote, course string, data canvas.Data) (Resource, error) {
	if !data.Has("body") {
		full, err := Fetch(ctx, remote, course, k, data.String("url"))
		if err != nil {
			return nil, err
		}
		merged := make(canvas.Data, len(data)+1)
		for key, v := range data {
			merged[key] = v
		}
		merged["body"] = full["body"]
		data = merged
	}
	p := &Page{}
	extra, err := decodeRemote(data, p, pageFields)
	if err != nil {
		return nil, err
	}
	p.Extra = extra
	return p, nil
}

func (pageKind) FromDisk(cv *convert.Converter, content []byte, title string) (Resource, error) {
	doc, err := parser.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("resource: page %q: %w", title, err)
	}
	body, err := cv.MarkdownToHTML(doc.Body)
	if err != nil {
		return nil, err
	}
	p := &Page{Name: title, Body: body}
	if doc.Frontmatter != nil {
		if t, ok := doc.Frontmatter["title"].(string); ok && t != "" {
			p.Name = t
		}
		if pub, ok := doc.Frontmatter["published"].(bool); ok {
			p.Published = &pub
		}
		if roles, ok := doc.Frontmatter["editing_roles"].(string); ok {
			p.EditingRoles = roles
		}
		p.Extra = unknownFields(doc.Frontmatter, []string{"title", "published", "editing_roles"})
	}
	return p, nil
}

func (p *Page) Category() Category { return CategoryPage }

func (p *Page) Title() string { return p.Name }

// ToJSON is suitable for a PUT/POST on the pages endpoint.
func (p *Page) ToJSON() (url.Values, error) {
	form := url.Values{
		"wiki_page[title]": {p.Name},
		"wiki_page[body]":  {p.Body},
	}
	if p.Published != nil {
		form.Set("wiki_page[published]", formatBool(*p.Published))
	}
	if p.EditingRoles != "" {
		form.Set("wiki_page[editing_roles]", p.EditingRoles)
	}
	return form, nil
}

// ToDisk renders the page as front-matter plus Markdown body.
func (p *Page) ToDisk(cv *convert.Converter) (any, error) {
	body, err := cv.HTMLToMarkdown(p.Body)
	if err != nil {
		return nil, err
	}
	fm := newMapping().set("title", p.Name)
	if p.Published != nil {
		fm.set("published", *p.Published)
	}
	if p.EditingRoles != "" {
		fm.set("editing_roles", p.EditingRoles)
	}
	node, err := fm.result()
	if err != nil {
		return nil, err
	}
	out, err := parser.Compose(node, body)
	if err != nil {
		return nil, err
	}
	return string(out), nil
}

// ToPublic drops the front-matter settings and keeps title and text.
func (p *Page) ToPublic(cv *convert.Converter) (any, error) {
	body, err := cv.HTMLToMarkdown(p.Body)
	if err != nil {
		return nil, err
	}
	return newMapping().set("title", p.Name).set("body", body).result()
}
