package config

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// ExcludeMatcher tests workspace-relative paths against Indexing.ExcludePaths.
type ExcludeMatcher struct {
	patterns []string
}

// NewExcludeMatcher builds a matcher from the configured exclude patterns.
func NewExcludeMatcher(cfg Indexing) *ExcludeMatcher {
	return &ExcludeMatcher{patterns: cfg.ExcludePaths}
}

// Matches reports whether rel (a slash-separated path relative to the
// workspace root) is covered by any configured exclude pattern. A
// malformed pattern is treated as never matching rather than as an error,
// so one bad entry doesn't stop indexing of everything else.
func (m *ExcludeMatcher) Matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range m.patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
		base := filepath.Base(rel)
		if ok, err := doublestar.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}
