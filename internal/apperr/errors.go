// Package apperr holds the sentinel errors shared across coursesync packages.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrAmbiguous           = errors.New("ambiguous")
	ErrUnknownCategory     = errors.New("unknown category")
	ErrUnknownCommand      = errors.New("unknown command")
	ErrMalformedIdentifier = errors.New("malformed identifier")
	ErrDuplicateOnDisk     = errors.New("duplicate on disk")
	ErrNotImplemented      = errors.New("not implemented")
	ErrWildcard            = errors.New("wildcard identifier")
)

// MatchError reports a lookup that matched the wrong number of things.
// Matches holds the offending titles or paths.
type MatchError struct {
	Kind    error
	Subject string
	Matches []string
}

func (e *MatchError) Error() string {
	if len(e.Matches) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
	}
	return fmt.Sprintf("%s: %s\nmatches:\n    %s", e.Kind, e.Subject, strings.Join(e.Matches, "\n    "))
}

func (e *MatchError) Is(target error) bool {
	return target == e.Kind
}
