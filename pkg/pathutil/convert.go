// Package pathutil provides utilities for converting between absolute and
// relative paths and for canonicalizing paths so that the rest of the
// server can treat them as the comparable, byte-exact Path values the data
// model requires.
//
// Architecture pattern: every component downstream of the source store
// works with absolute, canonicalized paths for consistency and to avoid
// ambiguity. User-facing output (CLI, logs) converts back to relative paths
// for readability. This package is the conversion layer between the two.
package pathutil

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Canonicalize resolves p to an absolute, cleaned path. On case-insensitive
// filesystems (darwin, windows) the result is additionally lower-cased so
// that two paths differing only in case compare equal, matching the Path
// equality rule in the data model.
func Canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)
	if caseInsensitiveFS() {
		abs = strings.ToLower(abs)
	}
	return abs, nil
}

func caseInsensitiveFS() bool {
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	default:
		return false
	}
}

// ToRelative converts an absolute path to relative based on a root
// directory, for user-facing output (CLI, logs) that should not expose the
// server's internal absolute-path representation. A path that is already
// relative, empty, outside rootDir, or on a filesystem root
// filepath.Rel cannot bridge (e.g. a different Windows drive) is returned
// unchanged — only a path demonstrably under rootDir is shortened.
//
// Examples:
//   - ToRelative("/home/user/project/src/a.metal", "/home/user/project") → "src/a.metal"
//   - ToRelative("/other/location/b.h", "/home/user/project") → "/other/location/b.h" (outside root)
//   - ToRelative("src/a.metal", "/home/user/project") → "src/a.metal" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" || !filepath.IsAbs(absPath) {
		return absPath
	}

	rel, err := filepath.Rel(filepath.Clean(rootDir), filepath.Clean(absPath))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return absPath
	}
	return rel
}
