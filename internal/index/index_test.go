package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalls/metalls/internal/types"
)

func decl(path, name, short string, kind types.Kind) types.Declaration {
	return types.Declaration{Name: name, ShortName: short, Kind: kind, SourcePath: types.Path(path)}
}

func TestReplaceAddsAndLookup(t *testing.T) {
	idx := New()
	idx.Replace("/a.metal", []types.Declaration{
		decl("/a.metal", "compute_main", "compute_main", types.KindKernel),
	})

	got := idx.Lookup("compute_main")
	require.Len(t, got, 1)
	assert.Equal(t, types.KindKernel, got[0].Kind)
}

func TestReplaceClearsPreviousFileEntries(t *testing.T) {
	idx := New()
	idx.Replace("/a.metal", []types.Declaration{
		decl("/a.metal", "old_fn", "old_fn", types.KindFunction),
	})
	idx.Replace("/a.metal", []types.Declaration{
		decl("/a.metal", "new_fn", "new_fn", types.KindFunction),
	})

	assert.Empty(t, idx.Lookup("old_fn"))
	assert.Len(t, idx.Lookup("new_fn"), 1)
}

func TestReplaceEmptyClearsFile(t *testing.T) {
	idx := New()
	idx.Replace("/a.metal", []types.Declaration{
		decl("/a.metal", "fn", "fn", types.KindFunction),
	})
	idx.Replace("/a.metal", nil)

	assert.Empty(t, idx.Lookup("fn"))
	assert.Equal(t, 0, idx.Len())
}

func TestLookupDoesNotLeakInternalSlice(t *testing.T) {
	idx := New()
	idx.Replace("/a.metal", []types.Declaration{
		decl("/a.metal", "fn", "fn", types.KindFunction),
	})
	got := idx.Lookup("fn")
	got[0].Name = "mutated"

	again := idx.Lookup("fn")
	require.Len(t, again, 1)
	assert.Equal(t, "fn", again[0].Name)
}

func TestPrefixRanksKernelsBeforeFunctions(t *testing.T) {
	idx := New()
	idx.Replace("/a.metal", []types.Declaration{
		decl("/a.metal", "apply_blur", "apply_blur", types.KindFunction),
		decl("/a.metal", "apply_kernel", "apply_kernel", types.KindKernel),
	})

	got := idx.Prefix("apply", 0)
	require.Len(t, got, 2)
	assert.Equal(t, "apply_kernel", got[0].ShortName, "kernels rank before plain functions")
}

func TestPrefixRespectsLimit(t *testing.T) {
	idx := New()
	idx.Replace("/a.metal", []types.Declaration{
		decl("/a.metal", "a1", "a1", types.KindFunction),
		decl("/a.metal", "a2", "a2", types.KindFunction),
		decl("/a.metal", "a3", "a3", types.KindFunction),
	})

	got := idx.Prefix("a", 2)
	assert.Len(t, got, 2)
}

func TestAllReturnsEveryDeclarationRegardlessOfName(t *testing.T) {
	idx := New()
	idx.Replace("/a.metal", []types.Declaration{
		decl("/a.metal", "apply_scale", "apply_scale", types.KindFunction),
		decl("/a.metal", "rescale", "rescale", types.KindFunction),
	})

	got := idx.All()
	require.Len(t, got, 2)
}

func TestLookupShortAcrossMultipleFiles(t *testing.T) {
	idx := New()
	idx.Replace("/a.metal", []types.Declaration{
		decl("/a.metal", "Particle::mass", "mass", types.KindField),
	})
	idx.Replace("/b.metal", []types.Declaration{
		decl("/b.metal", "Body::mass", "mass", types.KindField),
	})

	got := idx.LookupShort("mass")
	require.Len(t, got, 2)
}
