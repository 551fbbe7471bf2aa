package scratch

import (
	"fmt"
	"strings"
)

const placeholder = '-'

// SanitizeName maps a caller-supplied name to a single filesystem-safe path
// segment. Every rune outside the allow-list (alphanumerics, dot, hyphen,
// underscore) is replaced with '-', which also strips path separators and
// any traversal sequences. Empty or whitespace-only input is rejected; this
// is a hard precondition for anything that touches the filesystem, not a
// best-effort cleanup.
func SanitizeName(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("name must not be empty")
	}
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune(placeholder)
		}
	}
	return b.String(), nil
}

// ValidateBuildID rejects non-positive build identifiers before they are
// used to name directories or remote API paths.
func ValidateBuildID(id int) error {
	if id <= 0 {
		return fmt.Errorf("build id must be a positive integer, got %d", id)
	}
	return nil
}
