// Package security confines generated file names to the export directory.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideDirectory is returned for a path that resolves outside the
// export directory.
var ErrOutsideDirectory = errors.New("security: path escapes export directory")

const maxNameLen = 128

// SanitizeFilename reduces an identifier to ASCII letters, digits, dot,
// underscore and dash. Runs of other characters become one underscore,
// leading and trailing dots and underscores are trimmed and the result
// is capped at 128 bytes. An empty result becomes "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxNameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
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

// WithinDirectory reports an error when path, once cleaned and made
// absolute, is not inside dir. Symlinks in existing parents are resolved
// on both sides.
func WithinDirectory(path, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	if resolved, err := filepath.EvalSymlinks(absDir); err == nil {
		absDir = resolved
	}
	if resolved, err := filepath.EvalSymlinks(filepath.Dir(absPath)); err == nil {
		absPath = filepath.Join(resolved, filepath.Base(absPath))
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s not in %s", ErrOutsideDirectory, path, dir)
	}
	return nil
}

// ExportPath names an output file in dir after a model identifier, e.g.
// ExportPath("out", "FLRD20211028MGCS", "_ht.png") is
// out/FLRD20211028MGCS_ht.png.
func ExportPath(dir, id, suffix string) (string, error) {
	name := SanitizeFilename(id) + SanitizeSuffix(suffix)
	path := filepath.Join(dir, name)
	if err := WithinDirectory(path, dir); err != nil {
		return "", err
	}
	return path, nil
}

// SanitizeSuffix keeps only filename-safe characters of a suffix such as
// "_profile.json", without trimming.
func SanitizeSuffix(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			return r
		}
		return -1
	}, s)
}
