// Package resolver parses resource identifiers such as "assignment/?Homework 1"
// and resolves them against the remote API and the course directory.
package resolver

import (
	"fmt"
	"strings"

	"github.com/starford/coursesync/internal/apperr"
	"github.com/starford/coursesync/internal/resource"
)

// Command selects how an identifier locates its remote object.
type Command int

const (
	CommandAll Command = iota
	CommandCreate
	CommandSearch
	CommandDirect
)

// String returns the identifier prefix of the command.
func (c Command) String() string {
	switch c {
	case CommandCreate:
		return "+"
	case CommandSearch:
		return "?"
	case CommandDirect:
		return ":"
	default:
		return "*"
	}
}

// ID is a parsed identifier. Parsing touches neither the network nor the disk.
type ID struct {
	Raw      string
	Category string
	Command  Command
	Name     string
	Variant  resource.Variant
}

// IsWildcard reports whether the identifier addresses a whole category.
func (id *ID) IsWildcard() bool {
	return id.Command == CommandAll
}

func (id *ID) String() string {
	if id.IsWildcard() {
		return id.Category + "/*"
	}
	return id.Category + "/" + id.Command.String() + id.Name
}

// Parse splits raw into category, command and name.
func Parse(reg *resource.Registry, raw string) (*ID, error) {
	category, action, ok := strings.Cut(raw, "/")
	if !ok {
		return nil, fmt.Errorf("%w: %q (want category/<+|?|:>name or category/*)", apperr.ErrMalformedIdentifier, raw)
	}
	category = strings.ToLower(category)
	v, err := reg.Lookup(category)
	if err != nil {
		return nil, fmt.Errorf("resolver: %q: %w", raw, err)
	}

	id := &ID{Raw: raw, Category: category, Variant: v}
	if action == "*" {
		id.Command = CommandAll
		return id, nil
	}
	if action == "" {
		return nil, fmt.Errorf("%w: %q has no command", apperr.ErrUnknownCommand, raw)
	}
	switch action[0] {
	case '+':
		id.Command = CommandCreate
	case '?':
		id.Command = CommandSearch
	case ':':
		id.Command = CommandDirect
	default:
		return nil, fmt.Errorf("%w: %q in %q", apperr.ErrUnknownCommand, action[:1], raw)
	}
	id.Name = action[1:]
	return id, nil
}
