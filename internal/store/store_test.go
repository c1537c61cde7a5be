package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalls/metalls/internal/types"
)

func TestUpsertVersionMonotonicity(t *testing.T) {
	s := New(nil)
	const p = types.Path("/a.metal")

	snap, ok := s.Upsert(p, 1, []byte("a"))
	require.True(t, ok)
	assert.Equal(t, uint64(1), snap.Version)

	_, ok = s.Upsert(p, 1, []byte("b"))
	assert.False(t, ok, "equal version must be rejected")

	_, ok = s.Upsert(p, 0, []byte("c"))
	assert.False(t, ok, "older version must be rejected")

	snap, ok = s.Upsert(p, 2, []byte("d"))
	require.True(t, ok)
	assert.Equal(t, uint64(2), snap.Version)

	got, ok := s.Get(p)
	require.True(t, ok)
	assert.Equal(t, uint64(2), got.Version)
	assert.Equal(t, "d", string(got.Text))
}

func TestUpsertChangedReportsFalseForIdenticalContentAtNewerVersion(t *testing.T) {
	s := New(nil)
	const p = types.Path("/a.metal")

	_, ok, changed := s.UpsertChanged(p, 1, []byte("same"))
	require.True(t, ok)
	assert.True(t, changed, "first upsert always counts as changed")

	snap, ok, changed := s.UpsertChanged(p, 2, []byte("same"))
	require.True(t, ok)
	assert.False(t, changed, "identical text at a newer version is not a content change")
	assert.Equal(t, uint64(2), snap.Version)

	_, ok, changed = s.UpsertChanged(p, 3, []byte("different"))
	require.True(t, ok)
	assert.True(t, changed)
}

type fakeRefs struct{ counts map[types.Path]int }

func (f fakeRefs) InboundCount(path types.Path) int { return f.counts[path] }

func TestCloseEvictsOnlyWhenUnreferenced(t *testing.T) {
	const p = types.Path("/b.h")
	refs := fakeRefs{counts: map[types.Path]int{p: 1}}
	s := New(refs)

	_, ok := s.Upsert(p, 1, []byte("x"))
	require.True(t, ok)

	s.Close(p)
	_, stillThere := s.Get(p)
	assert.True(t, stillThere, "referenced file must not be evicted on close")

	refs.counts[p] = 0
	s.ReleaseIfUnreferenced(p)
	_, gone := s.Get(p)
	assert.False(t, gone, "unreferenced closed file must be evicted")
}

func TestGetMissing(t *testing.T) {
	s := New(nil)
	_, ok := s.Get(types.Path("/missing.metal"))
	assert.False(t, ok)
}
