package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/coursesync/internal/canvas"
)

// decodeRemote copies the known fields of data into v (a pointer to a struct
// with json tags) and returns the fields v does not know about.
func decodeRemote(data canvas.Data, v any, known []string) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("resource: encode remote data: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("resource: decode remote data: %w", err)
	}
	return unknownFields(data, known), nil
}

func unknownFields(data map[string]any, known []string) map[string]any {
	skip := make(map[string]struct{}, len(known))
	for _, k := range known {
		skip[k] = struct{}{}
	}
	extra := make(map[string]any)
	for k, v := range data {
		if _, ok := skip[k]; !ok {
			extra[k] = v
		}
	}
	return extra
}

// decodeDisk unmarshals a YAML document into v and returns the top-level keys
// v does not know about.
func decodeDisk(content []byte, v any, known []string) (map[string]any, error) {
	if err := yaml.Unmarshal(content, v); err != nil {
		return nil, fmt.Errorf("resource: parse yaml: %w", err)
	}
	var all map[string]any
	if err := yaml.Unmarshal(content, &all); err != nil {
		return nil, fmt.Errorf("resource: parse yaml: %w", err)
	}
	return unknownFields(all, known), nil
}

// mapping builds an ordered YAML mapping node.
type mapping struct {
	node *yaml.Node
	err  error
}

func newMapping() *mapping {
	return &mapping{node: &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}}
}

// set appends key: value. Multi-line strings are written as literal blocks.
func (m *mapping) set(key string, value any) *mapping {
	if m.err != nil {
		return m
	}
	k := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	var v *yaml.Node
	switch t := value.(type) {
	case *mapping:
		if t.err != nil {
			m.err = t.err
			return m
		}
		v = t.node
	case nil:
		v = nullNode()
	case string:
		v = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: t}
		if strings.Contains(t, "\n") {
			v.Style = yaml.LiteralStyle
		}
	default:
		v = &yaml.Node{}
		if err := v.Encode(value); err != nil {
			m.err = fmt.Errorf("resource: encode %s: %w", key, err)
			return m
		}
	}
	m.node.Content = append(m.node.Content, k, v)
	return m
}

func (m *mapping) result() (*yaml.Node, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.node, nil
}

func nullNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

// optional turns an empty string into a YAML null.
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func optionalFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func optionalInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

// Encode serializes the output of Resource.ToDisk.
func Encode(v any) ([]byte, error) {
	if s, ok := v.(string); ok {
		return []byte(s), nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("resource: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("resource: encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatInt(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func formatBool(b bool) string {
	return strconv.FormatBool(b)
}
