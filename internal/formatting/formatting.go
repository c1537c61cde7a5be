// Package formatting resolves a file's clang-format style by walking
// up the source tree for a metalfmt.toml or .clang-format before
// shelling out to the configured formatter binary.
package formatting

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/metalls/metalls/internal/config"
	"github.com/metalls/metalls/internal/errs"
	"github.com/metalls/metalls/internal/types"
)

// DefaultTimeout is the subprocess deadline for formatter invocations.
const DefaultTimeout = 10 * time.Second

// ResolveStyle walks from sourcePath upward, preferring a metalfmt.toml
// translation, then .clang-format/_clang-format discovery, then the
// not-found sentinel.
func ResolveStyle(sourcePath string) types.Style {
	if inline, ok := config.ResolveInlineStyle(sourcePath); ok {
		return types.Style{Kind: types.StyleInline, Inline: inline}
	}
	if hasClangFormatFile(sourcePath) {
		return types.Style{Kind: types.StyleFileDiscovery}
	}
	return types.Style{Kind: types.StyleNotFound}
}

func hasClangFormatFile(sourcePath string) bool {
	dir := sourcePath
	if info, err := os.Stat(sourcePath); err == nil && !info.IsDir() {
		dir = filepath.Dir(sourcePath)
	}
	for {
		for _, name := range []string{".clang-format", "_clang-format"} {
			if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
				return true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

// Runner invokes the configured formatter binary.
type Runner struct {
	timeout time.Duration
}

// New creates a Runner with the default 10s subprocess timeout.
func New() *Runner {
	return &Runner{timeout: DefaultTimeout}
}

// Edit is a minimal replace edit produced by diffing formatter output
// against the original snapshot text.
type Edit struct {
	Range   types.Span
	NewText string
}

// Format runs cfg's formatter command over snap's text under the
// resolved style, returning the full formatted text. Callers that want
// a minimal diff instead of the whole-file replacement should call Diff
// on the result.
func (r *Runner) Format(ctx context.Context, snap types.Snapshot, style types.Style, cfg config.Formatting) (string, error) {
	timeout := r.timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := buildArgs(style, cfg)
	cmd := exec.CommandContext(runCtx, cfg.Command, args...)
	cmd.Stdin = bytes.NewReader(snap.Text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return "", errs.FormatterFailure(snap.Path, stderr.String(), err)
	}
	if stdout.Len() == 0 && len(snap.Text) > 0 {
		return "", errs.FormatterFailure(snap.Path, "formatter produced no output for non-empty input", nil)
	}
	return stdout.String(), nil
}

func buildArgs(style types.Style, cfg config.Formatting) []string {
	args := append([]string(nil), cfg.Args...)
	switch style.Kind {
	case types.StyleInline:
		args = append(args, fmt.Sprintf("--style={%s}", style.Inline))
	case types.StyleFileDiscovery:
		args = append(args, "--style=file")
	case types.StyleNotFound:
		// --fallback-style=none is the sentinel that keeps clang-format
		// from silently applying its own built-in default when no project
		// style exists; it leaves the input unchanged instead.
		args = append(args, "--style=file", "--fallback-style=none")
	}
	return args
}

// Diff computes the minimal set of replace edits that turn before into
// after, using a Myers diff over byte-offset spans.
func Diff(path types.Path, before, after string) []Edit {
	if before == after {
		return nil
	}
	uri := span.URIFromPath(string(path))
	textEdits := myers.ComputeEdits(uri, before, after)
	lines := newLineIndex(before)
	converter := span.NewContentConverter(string(path), []byte(before))

	edits := make([]Edit, 0, len(textEdits))
	for _, te := range textEdits {
		withOffset, err := te.Span.WithOffset(converter)
		if err != nil {
			continue
		}
		startOffset := withOffset.Start().Offset()
		endOffset := withOffset.End().Offset()
		startLine, startCol := lines.position(startOffset)
		endLine, endCol := lines.position(endOffset)
		edits = append(edits, Edit{
			Range: types.Span{
				StartLine:   startLine,
				StartColumn: startCol,
				EndLine:     endLine,
				EndColumn:   endCol,
				StartByte:   uint32(startOffset),
				EndByte:     uint32(endOffset),
			},
			NewText: te.NewText,
		})
	}
	return edits
}

// lineIndex maps a byte offset into before's text to a 0-based line and
// column, using a table of line-start offsets.
type lineIndex struct {
	lineStarts []int
}

func newLineIndex(text string) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{lineStarts: starts}
}

func (l *lineIndex) position(offset int) (line, col uint32) {
	lo, hi := 0, len(l.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if l.lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return uint32(lo), uint32(offset - l.lineStarts[lo])
}

// Unified renders a unified diff of before/after, useful for --check
// output in the CLI.
func Unified(path types.Path, before, after string) string {
	uri := span.URIFromPath(string(path))
	edits := myers.ComputeEdits(uri, before, after)
	return fmt.Sprint(gotextdiff.ToUnified(string(path), string(path), before, edits))
}
