// Package security validates file names and paths derived from dataset
// contents and configuration before they are written to.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// WithinDirectory reports an error unless path, once cleaned, names dir or
// something beneath it. The check is lexical so it applies equally to
// in-memory file systems; symlinks are not resolved.
func WithinDirectory(path, dir string) error {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("path %s is outside %s: %w", path, dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s escapes %s", path, dir)
	}
	return nil
}

// SanitizeFilename maps s to a safe file name component: runs of characters
// outside [A-Za-z0-9._-] collapse to one underscore, the result is capped
// at 128 bytes, and an empty result becomes "unknown".
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
