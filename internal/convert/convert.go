// Package convert turns remote HTML and timestamps into their human-editable
// on-disk forms and back.
package convert

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	htmltomd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// RemoteDateLayout is the timestamp format the remote API accepts.
const RemoteDateLayout = "2006-01-02T15:04:05Z"

// Friendly date layouts. Seconds are only written when they are non-zero.
// A wall time that occurs twice in the configured zone (the repeated hour
// of a fall-back transition) also carries the zone abbreviation.
const (
	FriendlyLayout        = "January 2 2006, 3:04 PM"
	FriendlySecondsLayout = "January 2 2006, 3:04:05 PM"

	zoneSuffix = " MST"
)

// Converter holds the Markdown and HTML engines and the time zone used for
// friendly dates.
type Converter struct {
	loc    *time.Location
	md     goldmark.Markdown
	h2m    *htmltomd.Converter
	policy *bluemonday.Policy
}

// New creates a Converter that renders friendly dates in loc.
// A nil loc means UTC.
func New(loc *time.Location) *Converter {
	if loc == nil {
		loc = time.UTC
	}
	return &Converter{
		loc: loc,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
		h2m:    htmltomd.NewConverter("", true, nil),
		policy: contentPolicy(),
	}
}

// contentPolicy allows what course pages normally carry, including embedded
// media, while dropping scripts and event handlers.
func contentPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "style").Globally()
	p.AllowAttrs("src", "width", "height", "allow", "allowfullscreen", "title").OnElements("iframe")
	p.AllowElements("iframe", "u", "s", "mark", "figure", "figcaption")
	p.RequireNoFollowOnLinks(false)
	return p
}

// Location returns the time zone used for friendly dates.
func (c *Converter) Location() *time.Location {
	return c.loc
}

// HTMLToMarkdown converts remote HTML to Markdown. Empty input stays empty;
// otherwise the result ends with exactly one newline.
func (c *Converter) HTMLToMarkdown(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}
	out, err := c.h2m.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert: html to markdown: %w", err)
	}
	return strings.TrimSpace(out) + "\n", nil
}

// MarkdownToHTML renders Markdown and sanitizes the resulting HTML.
func (c *Converter) MarkdownToHTML(markdown string) (string, error) {
	if strings.TrimSpace(markdown) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("convert: markdown to html: %w", err)
	}
	return c.policy.Sanitize(buf.String()), nil
}

// ToFriendlyDate renders a remote timestamp for humans. Empty stays empty.
func (c *Converter) ToFriendlyDate(remote string) (string, error) {
	if remote == "" {
		return "", nil
	}
	t, err := time.Parse(time.RFC3339, remote)
	if err != nil {
		return "", fmt.Errorf("convert: parse remote date %q: %w", remote, err)
	}
	t = t.In(c.loc)
	layout := FriendlyLayout
	if t.Second() != 0 {
		layout = FriendlySecondsLayout
	}
	if ambiguous(t) {
		layout += zoneSuffix
	}
	return t.Format(layout), nil
}

// ambiguous reports whether the wall clock of t also names another instant
// in t's location.
func ambiguous(t time.Time) bool {
	_, off := t.Zone()
	for _, near := range []time.Time{t.Add(-3 * time.Hour), t.Add(3 * time.Hour)} {
		_, other := near.Zone()
		if other == off {
			continue
		}
		twin := t.Add(time.Duration(off-other) * time.Second)
		if _, o := twin.Zone(); o == other {
			return true
		}
	}
	return false
}

// FromFriendlyDate parses a friendly date back into the remote format (UTC).
func (c *Converter) FromFriendlyDate(friendly string) (string, error) {
	friendly = strings.TrimSpace(friendly)
	if friendly == "" {
		return "", nil
	}
	layouts := []string{
		FriendlySecondsLayout + zoneSuffix, FriendlyLayout + zoneSuffix,
		FriendlySecondsLayout, FriendlyLayout, time.RFC3339,
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, friendly, c.loc); err == nil {
			return t.UTC().Format(RemoteDateLayout), nil
		}
	}
	return "", fmt.Errorf("convert: unrecognised date %q (want e.g. %q)", friendly, FriendlyLayout)
}
