// Package pathutil normalizes and validates slash-separated archive paths.
//
// Archive paths are relative, forward-slash separated, and never contain "."
// or ".." elements. Directory paths carry a single trailing slash; file paths
// do not. The empty path is the archive root.
package pathutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/meigma/sfx/internal/errdef"
)

// PathError describes why an archive path was rejected.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %q: %s", errdef.ErrUnsafePath, e.Path, e.Reason)
}

// Unwrap returns ErrUnsafePath so callers can match with errors.Is.
func (e *PathError) Unwrap() error {
	return errdef.ErrUnsafePath
}

// Normalize converts p to canonical archive form.
//
// It performs the following transformations:
//   - Converts backslashes to slashes: `a\b` → "a/b"
//   - Collapses consecutive slashes: "a//b" → "a/b"
//   - Drops "." elements: "./a/./b" → "a/b"
//   - Strips a trailing slash: "a/b/" → "a/b"
//
// It rejects absolute paths, drive-qualified paths, NUL bytes, and any ".."
// element. Normalize is idempotent.
func Normalize(p string) (string, error) {
	orig := p
	if strings.IndexByte(p, 0) >= 0 {
		return "", &PathError{Path: orig, Reason: "contains NUL byte"}
	}
	p = strings.ReplaceAll(p, `\`, "/")
	if strings.HasPrefix(p, "/") {
		return "", &PathError{Path: orig, Reason: "absolute path"}
	}
	if hasDrive(p) {
		return "", &PathError{Path: orig, Reason: "drive-qualified path"}
	}

	parts := strings.Split(p, "/")
	result := parts[:0] // reuse backing array
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", &PathError{Path: orig, Reason: "parent directory element"}
		}
		result = append(result, part)
	}
	return strings.Join(result, "/"), nil
}

// Join appends name to the archive directory parent. An empty parent is the
// archive root, so no leading slash is produced.
func Join(parent, name string) (string, error) {
	parent = strings.TrimSuffix(parent, "/")
	if parent == "" {
		return Normalize(name)
	}
	return Normalize(parent + "/" + name)
}

// DirPath returns the directory form of a normalized path, or "" for the root.
func DirPath(p string) string {
	if p == "" {
		return ""
	}
	return p + "/"
}

// ValidateEntry checks that p is already in canonical form for an entry of
// the given kind: non-empty, normalized, and slash-terminated only for
// directories.
func ValidateEntry(p string, dir bool) error {
	if p == "" {
		return &PathError{Path: p, Reason: "empty path"}
	}
	trimmed := p
	if dir {
		if !strings.HasSuffix(p, "/") {
			return &PathError{Path: p, Reason: "directory path must end with /"}
		}
		trimmed = strings.TrimSuffix(p, "/")
	} else if strings.HasSuffix(p, "/") {
		return &PathError{Path: p, Reason: "file path must not end with /"}
	}
	norm, err := Normalize(trimmed)
	var pathErr *PathError
	if errors.As(err, &pathErr) {
		return &PathError{Path: p, Reason: pathErr.Reason}
	}
	if norm == "" || norm != trimmed {
		return &PathError{Path: p, Reason: "not normalized"}
	}
	return nil
}

func hasDrive(p string) bool {
	return len(p) >= 2 && p[1] == ':' && (('a' <= p[0] && p[0] <= 'z') || ('A' <= p[0] && p[0] <= 'Z'))
}
