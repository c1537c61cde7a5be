package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalls/metalls/internal/index"
	"github.com/metalls/metalls/internal/types"
)

func snap(path, text string) types.Snapshot {
	return types.Snapshot{Path: types.Path(path), Text: []byte(text)}
}

func TestWordAtFindsIdentifierUnderCursor(t *testing.T) {
	word, span, ok := wordAt([]byte("kernel void compute_main() {}"), 0, 14)
	require.True(t, ok)
	assert.Equal(t, "compute_main", word)
	assert.Equal(t, uint32(12), span.StartColumn)
}

func TestWordAtReturnsFalseOnWhitespace(t *testing.T) {
	// Column 15 is the space between ")" and "{". A space directly after an
	// identifier (column 6, after "kernel") resolves to that identifier.
	_, _, ok := wordAt([]byte("kernel void f() {}"), 0, 15)
	assert.False(t, ok)
}

func TestHoverReturnsBuiltinDocForKnownName(t *testing.T) {
	l := &Layer{Index: index.New()}
	result := l.Hover(snap("/a.metal", "float4 v;"), 0, 1)
	assert.True(t, result.Found)
}

func TestHoverReturnsProjectDeclarationWhenNotBuiltin(t *testing.T) {
	idx := index.New()
	idx.Replace("/a.metal", []types.Declaration{
		{Name: "compute_main", ShortName: "compute_main", Kind: types.KindKernel, SourcePath: "/a.metal", Signature: "kernel void compute_main()"},
	})
	l := &Layer{Index: idx}

	result := l.Hover(snap("/a.metal", "kernel void compute_main() {}"), 0, 14)
	require.True(t, result.Found)
	assert.Contains(t, result.Text, "compute_main")
}

func TestDefinitionPrefersSameFileOverOtherFiles(t *testing.T) {
	idx := index.New()
	idx.Replace("/a.metal", []types.Declaration{
		{Name: "scale", ShortName: "scale", Kind: types.KindFunction, SourcePath: "/a.metal"},
	})
	idx.Replace("/b.metal", []types.Declaration{
		{Name: "scale", ShortName: "scale", Kind: types.KindFunction, SourcePath: "/b.metal"},
	})
	l := &Layer{Index: idx}

	got := l.Definition(snap("/a.metal", "float scale(float x) { return x; }"), 0, 6)
	require.Len(t, got, 1)
	assert.Equal(t, types.Path("/a.metal"), got[0].SourcePath)
}

func TestCompletionRanksExactPrefixBeforeSubstring(t *testing.T) {
	idx := index.New()
	idx.Replace("/a.metal", []types.Declaration{
		{Name: "scale_y", ShortName: "scale_y", Kind: types.KindFunction, SourcePath: "/a.metal"},
		{Name: "apply_scale", ShortName: "apply_scale", Kind: types.KindFunction, SourcePath: "/a.metal"},
		{Name: "rescale", ShortName: "rescale", Kind: types.KindFunction, SourcePath: "/a.metal"},
	})
	l := &Layer{Index: idx}

	items := l.Completion(snap("/a.metal", ""), "scale")
	var labels []string
	for _, it := range items {
		if !it.IsBuiltin {
			labels = append(labels, it.Label)
		}
	}
	require.Len(t, labels, 3, "scale_y is an exact prefix match; apply_scale and rescale are substring-only but still surface")
	assert.Equal(t, "scale_y", labels[0])
	assert.ElementsMatch(t, []string{"apply_scale", "rescale"}, labels[1:])
}

func TestCompletionRanksKernelsBeforeFunctions(t *testing.T) {
	idx := index.New()
	idx.Replace("/a.metal", []types.Declaration{
		{Name: "apply_blur", ShortName: "apply_blur", Kind: types.KindFunction, SourcePath: "/a.metal"},
		{Name: "apply_kernel", ShortName: "apply_kernel", Kind: types.KindKernel, SourcePath: "/a.metal"},
	})
	l := &Layer{Index: idx}

	items := l.Completion(snap("/a.metal", ""), "apply")
	var labels []string
	for _, it := range items {
		if !it.IsBuiltin {
			labels = append(labels, it.Label)
		}
	}
	require.Len(t, labels, 2)
	assert.Equal(t, "apply_kernel", labels[0])
}

func TestCompletionRanksAcrossBuiltinsAndProjectTogether(t *testing.T) {
	idx := index.New()
	idx.Replace("/a.metal", []types.Declaration{
		{Name: "shuffle_helper", ShortName: "shuffle_helper", Kind: types.KindFunction, SourcePath: "/a.metal"},
	})
	l := &Layer{Index: idx}

	items := l.Completion(snap("/a.metal", ""), "shuffle")
	require.NotEmpty(t, items)
	assert.Equal(t, "shuffle_helper", items[0].Label, "an exact-prefix project match ranks ahead of a substring-only builtin")

	var labels []string
	for _, it := range items {
		labels = append(labels, it.Label)
	}
	assert.Contains(t, labels, "simd_shuffle", "a substring-only builtin still surfaces instead of being silently dropped by Prefix")
}

func TestClassifyOrdersPrefixKindsCorrectly(t *testing.T) {
	assert.Equal(t, rankExactPrefix, classify("scale_value", "scale"))
	assert.Equal(t, rankCaseInsensitivePrefix, classify("Scale_Value", "scale"))
	assert.Equal(t, rankSubstring, classify("apply_scale", "scale"))
	assert.Equal(t, rankNone, classify("rotate", "scale"))
}
