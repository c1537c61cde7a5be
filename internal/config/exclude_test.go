package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExcludeMatcherMatchesDoubleStarGlob(t *testing.T) {
	m := NewExcludeMatcher(Indexing{ExcludePaths: []string{"**/build/**", "*.generated.metal"}})

	assert.True(t, m.Matches("vendor/build/output.metal"))
	assert.True(t, m.Matches("shaders/particle.generated.metal"))
	assert.False(t, m.Matches("shaders/particle.metal"))
}

func TestExcludeMatcherIgnoresMalformedPattern(t *testing.T) {
	m := NewExcludeMatcher(Indexing{ExcludePaths: []string{"["}})
	assert.False(t, m.Matches("shaders/a.metal"))
}
