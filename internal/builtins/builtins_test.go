package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupFindsKnownFunction(t *testing.T) {
	e, ok := Lookup("clamp")
	require.True(t, ok)
	assert.Equal(t, CategoryFunction, e.Category)
	assert.Equal(t, "Math", e.Group)
}

func TestLookupMissing(t *testing.T) {
	_, ok := Lookup("not_a_real_builtin")
	assert.False(t, ok)
}

func TestPrefixMatchesVectorFamily(t *testing.T) {
	got := Prefix("float")
	var labels []string
	for _, e := range got {
		labels = append(labels, e.Label)
	}
	assert.Contains(t, labels, "float")
	assert.Contains(t, labels, "float4")
	assert.Contains(t, labels, "float4x4")
}

func TestPrefixMatchesCaseInsensitivePrefixAndSubstring(t *testing.T) {
	var labels []string
	for _, e := range Prefix("Float4") {
		labels = append(labels, e.Label)
	}
	assert.Contains(t, labels, "float4", "Float4 should case-insensitive-prefix match float4")

	labels = nil
	for _, e := range Prefix("shuffle") {
		labels = append(labels, e.Label)
	}
	assert.Contains(t, labels, "simd_shuffle", "shuffle should substring match simd_shuffle")
}

func TestKernelSnippetIsMarkedAsSnippet(t *testing.T) {
	e, ok := Lookup("kernel")
	require.True(t, ok)
	assert.True(t, e.IsSnippet)
	assert.Equal(t, CategorySnippet, e.Category)
}

func TestLooksLikeSystemSymbolByPrefix(t *testing.T) {
	assert.True(t, LooksLikeSystemSymbol("simd_shuffle", ""))
	assert.True(t, LooksLikeSystemSymbol("threadgroup_barrier", ""))
	assert.False(t, LooksLikeSystemSymbol("compute_main", ""))
}

func TestLooksLikeSystemSymbolByNamespace(t *testing.T) {
	assert.True(t, LooksLikeSystemSymbol("clamp_to_edge", "address"))
	assert.False(t, LooksLikeSystemSymbol("scale_value", "fixture"))
}

func TestLooksLikeSystemSymbolExactFamilyName(t *testing.T) {
	assert.True(t, LooksLikeSystemSymbol("mem_flags", ""))
}
