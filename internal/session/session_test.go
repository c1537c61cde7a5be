package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/metalls/metalls/internal/config"
	"github.com/metalls/metalls/internal/types"
)

// testConfig turns diagnostics and formatting off to avoid shelling out to
// xcrun/clang-format during tests, the same subprocess-avoidance the formatting and
// diagnostics packages' own tests practice.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.Diagnostics.OnType = false
	cfg.Diagnostics.OnSave = false
	cfg.Formatting.Enabled = false
	return cfg
}

func TestIndexFileThenHoverFindsBuiltin(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(t.TempDir(), zerolog.Nop(), testConfig(), nil)
	defer s.Close()

	path := types.Path("/a.metal")
	s.IndexFile(path, 1, []byte("float4 myValue;"), false)

	require.Eventually(t, func() bool {
		res, err := s.Hover(context.Background(), path, 0, 1)
		return err == nil && res.Found
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHoverOnUnknownFileReturnsNotFound(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(t.TempDir(), zerolog.Nop(), testConfig(), nil)
	defer s.Close()

	res, err := s.Hover(context.Background(), types.Path("/missing.metal"), 0, 0)
	require.NoError(t, err)
	require.False(t, res.Found)
}

func TestCompletionAfterIndexOffersBuiltins(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(t.TempDir(), zerolog.Nop(), testConfig(), nil)
	defer s.Close()

	path := types.Path("/b.metal")
	s.IndexFile(path, 1, []byte("float4 v = flo"), false)

	require.Eventually(t, func() bool {
		items, err := s.Completion(context.Background(), path, 0, 14)
		if err != nil {
			return false
		}
		for _, it := range items {
			if it.IsBuiltin {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFormatWithFormattingDisabledReturnsTextUnchanged(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(t.TempDir(), zerolog.Nop(), testConfig(), nil)
	defer s.Close()

	text := []byte("float4 v;")
	after, edits, err := s.Format(context.Background(), types.Path("/c.metal"), text)
	require.NoError(t, err)
	require.Equal(t, string(text), after)
	require.Empty(t, edits)
}

func TestDocumentTextReflectsLatestIndexFile(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(t.TempDir(), zerolog.Nop(), testConfig(), nil)
	defer s.Close()

	path := types.Path("/d.metal")
	s.IndexFile(path, 1, []byte("first"), false)

	require.Eventually(t, func() bool {
		text, ok := s.DocumentText(path)
		return ok && string(text) == "first"
	}, 2*time.Second, 10*time.Millisecond)

	s.IndexFile(path, 2, []byte("second"), false)
	require.Eventually(t, func() bool {
		text, ok := s.DocumentText(path)
		return ok && string(text) == "second"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIndexFileWithUnchangedContentStillAdvancesDocumentText(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(t.TempDir(), zerolog.Nop(), testConfig(), nil)
	defer s.Close()

	path := types.Path("/e.metal")
	s.IndexFile(path, 5, []byte("float4 v;"), false)
	// A lower-priority rescan bumping the version without changing the
	// text (the background-scan-crosses-an-open-file case) must not be
	// rejected by the version guard, and must leave the text in place.
	s.indexFile(path, 6, []byte("float4 v;"), types.PriorityBackground, false)

	text, ok := s.DocumentText(path)
	require.True(t, ok)
	require.Equal(t, "float4 v;", string(text))

	stored, ok := s.store.Get(path)
	require.True(t, ok)
	require.Equal(t, uint64(6), stored.Version)
}

func TestIsHeaderPathRecognizesHeaderExtensions(t *testing.T) {
	assert.True(t, isHeaderPath(types.Path("/a.h")))
	assert.True(t, isHeaderPath(types.Path("/a.hpp")))
	assert.True(t, isHeaderPath(types.Path("/a.metalh")))
	assert.False(t, isHeaderPath(types.Path("/a.metal")))
}

func TestRunDiagnoseHeaderWithNoOwnerSkipsCompilation(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(t.TempDir(), zerolog.Nop(), testConfig(), nil)
	defer s.Close()

	diags := s.runDiagnoseHeader(context.Background(), types.Path("/unowned.h"), testConfig())
	require.Empty(t, diags)
}

func TestIndexFileRecordsHeaderOwnerForDiagnosisRouting(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	s := New(dir, zerolog.Nop(), testConfig(), nil)
	defer s.Close()

	headerPath := filepath.Join(dir, "shared.h")
	require.NoError(t, os.WriteFile(headerPath, []byte("float4 helper(float4 v);"), 0o644))

	ownerPath := types.Path(filepath.Join(dir, "owner.metal"))
	s.IndexFile(ownerPath, 1, []byte("#include \"shared.h\"\n"), false)

	require.Eventually(t, func() bool {
		owners := s.graph.OwnersOf(types.Path(headerPath), 0)
		return len(owners) == 1 && owners[0] == ownerPath
	}, 2*time.Second, 10*time.Millisecond, "indexing the owner file should record it as the header's owner via the include graph")
}

func TestUpdateConfigFlagsThreadPoolChangeAsRestartRequired(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(t.TempDir(), zerolog.Nop(), testConfig(), nil)
	defer s.Close()

	cfg := s.Config()
	cfg.ThreadPool.WorkerThreads = cfg.ThreadPool.WorkerThreads + 1
	require.True(t, s.UpdateConfig(cfg))

	cfg2 := s.Config()
	cfg2.Diagnostics.DebounceMs = cfg2.Diagnostics.DebounceMs + 1
	require.False(t, s.UpdateConfig(cfg2))
}
