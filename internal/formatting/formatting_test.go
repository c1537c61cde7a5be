package formatting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalls/metalls/internal/config"
	"github.com/metalls/metalls/internal/types"
)

func TestResolveStylePrefersMetalfmtTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metalfmt.toml"), []byte("column_limit = 80\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".clang-format"), []byte("BasedOnStyle: LLVM\n"), 0o644))

	style := ResolveStyle(filepath.Join(dir, "shader.metal"))
	assert.Equal(t, types.StyleInline, style.Kind)
	assert.Contains(t, style.Inline, "ColumnLimit: 80")
}

func TestResolveStyleFallsBackToClangFormatDiscovery(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_clang-format"), []byte("BasedOnStyle: LLVM\n"), 0o644))

	style := ResolveStyle(filepath.Join(dir, "shader.metal"))
	assert.Equal(t, types.StyleFileDiscovery, style.Kind)
}

func TestResolveStyleNotFoundWhenNeitherExists(t *testing.T) {
	dir := t.TempDir()
	style := ResolveStyle(filepath.Join(dir, "shader.metal"))
	assert.Equal(t, types.StyleNotFound, style.Kind)
}

func TestBuildArgsInlineStyle(t *testing.T) {
	args := buildArgs(types.Style{Kind: types.StyleInline, Inline: "ColumnLimit: 80"}, config.Formatting{Args: []string{"--sort-includes"}})
	assert.Equal(t, []string{"--sort-includes", "--style={ColumnLimit: 80}"}, args)
}

func TestBuildArgsFileDiscovery(t *testing.T) {
	args := buildArgs(types.Style{Kind: types.StyleFileDiscovery}, config.Formatting{})
	assert.Equal(t, []string{"--style=file"}, args)
}

func TestBuildArgsStyleNotFoundLeavesInputUnchanged(t *testing.T) {
	args := buildArgs(types.Style{Kind: types.StyleNotFound}, config.Formatting{})
	assert.Equal(t, []string{"--style=file", "--fallback-style=none"}, args)
}

func TestDiffProducesNoEditsWhenTextsAreIdentical(t *testing.T) {
	edits := Diff("/a.metal", "kernel void k() {}\n", "kernel void k() {}\n")
	assert.Empty(t, edits)
}

func TestDiffLocatesReplacedLine(t *testing.T) {
	before := "line one\nline two\nline three\n"
	after := "line one\nline TWO\nline three\n"
	edits := Diff("/a.metal", before, after)
	require.NotEmpty(t, edits)
	assert.Equal(t, uint32(1), edits[0].Range.StartLine)
}

func TestLineIndexPosition(t *testing.T) {
	idx := newLineIndex("abc\ndef\nghi")
	line, col := idx.position(5)
	assert.Equal(t, uint32(1), line)
	assert.Equal(t, uint32(1), col)
}
