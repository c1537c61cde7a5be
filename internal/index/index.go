// Package index holds the in-memory symbol index: the qualified-name and
// short-name lookup tables the query layer reads for hover, definition,
// and completion. Entries are grouped per source file so that a
// re-index can replace one file's contribution without scanning the
// whole table.
package index

import (
	"sort"
	"strings"
	"sync"

	"github.com/metalls/metalls/internal/symbols"
	"github.com/metalls/metalls/internal/types"
)

// Index is safe for concurrent use: Replace takes the write lock, Lookup
// and Prefix take the read lock, matching the writer/many-reader rule
// the rest of the core follows.
type Index struct {
	mu         sync.RWMutex
	byName     map[string][]types.Declaration // qualified name -> declarations
	byShort    map[string][]types.Declaration // short name -> declarations
	fileNames  map[types.Path]map[string]struct{}
	fileShorts map[types.Path]map[string]struct{}
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		byName:     make(map[string][]types.Declaration),
		byShort:    make(map[string][]types.Declaration),
		fileNames:  make(map[types.Path]map[string]struct{}),
		fileShorts: make(map[types.Path]map[string]struct{}),
	}
}

// Replace swaps out everything currently indexed for path with decls. It
// is safe to call with an empty decls slice to clear a file's entries
// (e.g. on close).
func (idx *Index) Replace(path types.Path, decls []types.Declaration) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if names, ok := idx.fileNames[path]; ok {
		for name := range names {
			idx.byName[name] = removeByPath(idx.byName[name], path)
			if len(idx.byName[name]) == 0 {
				delete(idx.byName, name)
			}
		}
	}
	if shorts, ok := idx.fileShorts[path]; ok {
		for short := range shorts {
			idx.byShort[short] = removeByPath(idx.byShort[short], path)
			if len(idx.byShort[short]) == 0 {
				delete(idx.byShort, short)
			}
		}
	}

	if len(decls) == 0 {
		delete(idx.fileNames, path)
		delete(idx.fileShorts, path)
		return
	}

	names := make(map[string]struct{}, len(decls))
	shorts := make(map[string]struct{}, len(decls))
	for _, d := range decls {
		idx.byName[d.Name] = append(idx.byName[d.Name], d)
		idx.byShort[d.ShortName] = append(idx.byShort[d.ShortName], d)
		names[d.Name] = struct{}{}
		shorts[d.ShortName] = struct{}{}
	}
	idx.fileNames[path] = names
	idx.fileShorts[path] = shorts
}

// Lookup returns every declaration with the exact qualified name.
func (idx *Index) Lookup(name string) []types.Declaration {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return cloneDecls(idx.byName[name])
}

// LookupShort returns every declaration whose short name matches,
// ranked by kind (kernels and plain functions first), then by qualified
// name, then by path for determinism.
func (idx *Index) LookupShort(name string) []types.Declaration {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := cloneDecls(idx.byShort[name])
	rankSort(out)
	return out
}

// Prefix returns every declaration whose short name starts with prefix,
// ranked by kind then alphabetically, capped at limit entries (0 =
// unbounded).
func (idx *Index) Prefix(prefix string, limit int) []types.Declaration {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []types.Declaration
	for short, decls := range idx.byShort {
		if !strings.HasPrefix(short, prefix) {
			continue
		}
		out = append(out, decls...)
	}
	rankSort(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return cloneDecls(out)
}

// All returns every indexed declaration, unranked and unfiltered. Callers
// that need to classify candidates by more than a plain prefix match (the
// query layer's completion ranking, which also wants case-insensitive-prefix
// and substring hits) scan this directly rather than going through Prefix.
func (idx *Index) All() []types.Declaration {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []types.Declaration
	for _, decls := range idx.byShort {
		out = append(out, decls...)
	}
	return cloneDecls(out)
}

// Len returns the number of indexed files.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.fileNames)
}

func removeByPath(decls []types.Declaration, path types.Path) []types.Declaration {
	out := decls[:0]
	for _, d := range decls {
		if d.SourcePath != path {
			out = append(out, d)
		}
	}
	return out
}

func cloneDecls(decls []types.Declaration) []types.Declaration {
	if len(decls) == 0 {
		return nil
	}
	out := make([]types.Declaration, len(decls))
	copy(out, decls)
	return out
}

func rankSort(decls []types.Declaration) {
	sort.SliceStable(decls, func(i, j int) bool {
		ri, rj := symbols.RankOf(decls[i].Kind), symbols.RankOf(decls[j].Kind)
		if ri != rj {
			return ri < rj
		}
		if decls[i].Name != decls[j].Name {
			return decls[i].Name < decls[j].Name
		}
		return decls[i].SourcePath < decls[j].SourcePath
	})
}
