// Package include resolves #include targets against search paths and
// maintains the forward/reverse edge maps used to bound cross-file
// resolution. The graph is represented as two plain maps rather than
// nodes holding direct references — this avoids ownership cycles in Go
// and makes a structural update a single map swap under the write lock.
package include

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/metalls/metalls/internal/types"
	"github.com/metalls/metalls/pkg/pathutil"
)

// SearchPaths are the roots consulted while resolving one #include
// directive: the including file's own directory, configured user
// include paths, and discovered SDK roots.
type SearchPaths struct {
	UserPaths []string
	SDKRoots  []string
}

type directive struct {
	literal string
	quoted  bool
	span    types.Span
}

// Graph owns the include edges for every indexed file.
type Graph struct {
	mu      sync.RWMutex
	forward map[types.Path][]types.IncludeEdge
	reverse map[types.Path]map[types.Path]struct{}
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		forward: make(map[types.Path][]types.IncludeEdge),
		reverse: make(map[types.Path]map[types.Path]struct{}),
	}
}

// InboundCount implements store.RefCounter: the number of files that
// currently include path.
func (g *Graph) InboundCount(path types.Path) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.reverse[path])
}

// Update recomputes owner's outgoing edges from its current source text
// and atomically swaps them in. It returns the set of paths that owner
// used to include but no longer does, so the caller can ask the source
// store to release them if they are closed and now unreferenced.
func (g *Graph) Update(owner types.Path, source []byte, sp SearchPaths) (edges []types.IncludeEdge, stale []types.Path) {
	directives := parseDirectives(source)
	edges = make([]types.IncludeEdge, 0, len(directives))
	for _, d := range directives {
		target, note := Resolve(owner, d.literal, d.quoted, sp)
		edges = append(edges, types.IncludeEdge{
			From:   owner,
			To:     target,
			Quoted: d.quoted,
			Span:   d.span,
			Note:   note,
		})
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	oldTargets := map[types.Path]struct{}{}
	if old, ok := g.forward[owner]; ok {
		for _, e := range old {
			if e.To == "" {
				continue
			}
			oldTargets[e.To] = struct{}{}
			if set, ok := g.reverse[e.To]; ok {
				delete(set, owner)
				if len(set) == 0 {
					delete(g.reverse, e.To)
				}
			}
		}
	}

	g.forward[owner] = edges
	for _, e := range edges {
		if e.To == "" {
			continue
		}
		delete(oldTargets, e.To)
		if g.reverse[e.To] == nil {
			g.reverse[e.To] = make(map[types.Path]struct{})
		}
		g.reverse[e.To][owner] = struct{}{}
	}

	for t := range oldTargets {
		stale = append(stale, t)
	}
	return edges, stale
}

// Remove drops owner entirely (file closed and evicted): its outgoing
// edges are cleared and it is removed from any reverse sets. Returns the
// paths that lost their last inbound edge as a result.
func (g *Graph) Remove(owner types.Path) (stale []types.Path) {
	g.mu.Lock()
	defer g.mu.Unlock()
	old, ok := g.forward[owner]
	if !ok {
		return nil
	}
	delete(g.forward, owner)
	for _, e := range old {
		if e.To == "" {
			continue
		}
		if set, ok := g.reverse[e.To]; ok {
			delete(set, owner)
			if len(set) == 0 {
				delete(g.reverse, e.To)
				stale = append(stale, e.To)
			}
		}
	}
	return stale
}

// Edges returns a copy of owner's current outgoing edges.
func (g *Graph) Edges(owner types.Path) []types.IncludeEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	edges := g.forward[owner]
	out := make([]types.IncludeEdge, len(edges))
	copy(out, edges)
	return out
}

// Traverse walks forward includes breadth-first from seed over resolved
// edges, so the returned order (excluding seed) is nearest-first by
// graph distance, bounded by maxDepth hops and maxNodes total visits.
// Within a depth level, candidates are ordered lexicographically for
// determinism, matching ReverseFallback's tie-break.
func (g *Graph) Traverse(seed types.Path, maxDepth, maxNodes int) []types.Path {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[types.Path]bool{seed: true}
	var order []types.Path
	frontier := []types.Path{seed}

	for depth := 0; depth < maxDepth && len(frontier) > 0 && len(visited) < maxNodes; depth++ {
		neighborSet := map[types.Path]bool{}
		for _, p := range frontier {
			for _, e := range g.forward[p] {
				if e.To != "" && !visited[e.To] {
					neighborSet[e.To] = true
				}
			}
		}
		neighbors := make([]types.Path, 0, len(neighborSet))
		for n := range neighborSet {
			neighbors = append(neighbors, n)
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })

		var next []types.Path
		for _, n := range neighbors {
			if len(visited) >= maxNodes {
				break
			}
			visited[n] = true
			order = append(order, n)
			next = append(next, n)
		}
		frontier = next
	}
	return order
}

// OwnersOf returns the files that directly include header, nearest-first
// by lexicographic path order (headers have no inherent "distance"
// between direct owners; lexicographic order is a fixed, deterministic
// tie-break for the project-graph fallback), capped at cap entries
// (0 = unbounded).
func (g *Graph) OwnersOf(header types.Path, cap int) []types.Path {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set := g.reverse[header]
	owners := make([]types.Path, 0, len(set))
	for o := range set {
		owners = append(owners, o)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	if cap > 0 && len(owners) > cap {
		owners = owners[:cap]
	}
	return owners
}

// ReverseFallback walks the reverse graph (who includes this file, then
// who includes those, …) breadth-first, up to maxDepth hops and maxNodes
// total visits. Within a depth level, candidates are ordered
// lexicographically by path so that ties between equally-distant
// candidates resolve deterministically.
func (g *Graph) ReverseFallback(seed types.Path, maxDepth, maxNodes int) []types.Path {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[types.Path]bool{seed: true}
	var order []types.Path
	frontier := []types.Path{seed}

	for depth := 0; depth < maxDepth && len(frontier) > 0 && len(visited) < maxNodes; depth++ {
		neighborSet := map[types.Path]bool{}
		for _, p := range frontier {
			for owner := range g.reverse[p] {
				if !visited[owner] {
					neighborSet[owner] = true
				}
			}
		}
		neighbors := make([]types.Path, 0, len(neighborSet))
		for n := range neighborSet {
			neighbors = append(neighbors, n)
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })

		var next []types.Path
		for _, n := range neighbors {
			if len(visited) >= maxNodes {
				break
			}
			visited[n] = true
			order = append(order, n)
			next = append(next, n)
		}
		frontier = next
	}
	return order
}

// Resolve applies the search order for a single #include directive: for
// a quoted include, the including file's directory, then user paths,
// then SDK roots; for an angle-bracket include, user paths, then SDK
// roots, then the including file's directory as a last resort. The
// first existing file wins; if a later root in the order also has a
// matching file, an Ambiguous note is attached but the first match is
// still returned (the behavior editors observe).
func Resolve(from types.Path, literal string, quoted bool, sp SearchPaths) (types.Path, types.IncludeNote) {
	if filepath.IsAbs(literal) {
		if canon, ok := existsCanonical(literal); ok {
			return types.Path(canon), types.NoteNone
		}
	}

	var order []string
	if quoted {
		order = append(order, filepath.Dir(string(from)))
		order = append(order, sp.UserPaths...)
		order = append(order, sp.SDKRoots...)
	} else {
		order = append(order, sp.UserPaths...)
		order = append(order, sp.SDKRoots...)
		order = append(order, filepath.Dir(string(from)))
	}

	var first string
	ambiguous := false
	for _, dir := range order {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, literal)
		canon, ok := existsCanonical(candidate)
		if !ok {
			continue
		}
		if first == "" {
			first = canon
		} else if first != canon {
			ambiguous = true
		}
	}

	if first == "" {
		return "", types.NoteUnresolved
	}
	if ambiguous {
		return types.Path(first), types.NoteAmbiguous
	}
	return types.Path(first), types.NoteNone
}

func existsCanonical(p string) (string, bool) {
	canon, err := pathutil.Canonicalize(p)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(canon)
	if err != nil || info.IsDir() {
		return "", false
	}
	return canon, true
}

// parseDirectives extracts #include "…" / <…> directives by scanning
// source lines directly rather than with a tree-sitter query — the
// resolver needs to run even on a file whose parse failed entirely
// (IndexedPartial state), and a line scan degrades gracefully on
// malformed input where a query would not.
func parseDirectives(source []byte) []directive {
	var out []directive
	scanner := bufio.NewScanner(bytes.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineStart := uint32(0)
	row := uint32(0)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimLeft(line, " \t")
		if d, ok := parseIncludeLine(trimmed, line, row, lineStart); ok {
			out = append(out, d)
		}
		lineStart += uint32(len(line)) + 1
		row++
	}
	return out
}

func parseIncludeLine(trimmed, original string, row, lineStart uint32) (directive, bool) {
	if !strings.HasPrefix(trimmed, "#include") {
		return directive{}, false
	}
	rest := trimmed[len("#include"):]

	if idx := strings.IndexByte(rest, '<'); idx >= 0 {
		if end := strings.IndexByte(rest[idx+1:], '>'); end >= 0 {
			literal := rest[idx+1 : idx+1+end]
			col := uint32(strings.Index(original, "<")) + 1
			return directive{
				literal: literal,
				quoted:  false,
				span:    lineSpan(row, col, lineStart, uint32(len(literal))),
			}, true
		}
	}
	if idx := strings.IndexByte(rest, '"'); idx >= 0 {
		if end := strings.IndexByte(rest[idx+1:], '"'); end >= 0 {
			literal := rest[idx+1 : idx+1+end]
			col := uint32(strings.Index(original, "\"")) + 1
			return directive{
				literal: literal,
				quoted:  true,
				span:    lineSpan(row, col, lineStart, uint32(len(literal))),
			}, true
		}
	}
	return directive{}, false
}

func lineSpan(row, col, lineStart, length uint32) types.Span {
	startByte := lineStart + col
	return types.Span{
		StartByte:   startByte,
		EndByte:     startByte + length,
		StartLine:   row,
		StartColumn: col,
		EndLine:     row,
		EndColumn:   col + length,
	}
}
