package storage

import (
	"path/filepath"
	"strings"
	"unicode"
)

// PublicSuffix marks the redacted export written next to a resource file.
const PublicSuffix = ".public.yaml"

// SafeFilename turns a title into a portable file name. Path separators,
// control characters and characters Windows rejects become underscores;
// surrounding spaces and dots are trimmed.
func SafeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r), unicode.IsControl(r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	name := strings.Trim(b.String(), " .")
	if name == "" {
		return "untitled"
	}
	return name
}

// PublicPath returns the sibling public export path of a resource file.
func PublicPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + PublicSuffix
}
