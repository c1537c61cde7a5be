// Package query answers Hover, Definition, and Completion requests by
// combining the builtin table, the per-file symbol index, and the
// include graph. Hover and Definition check the builtin table's exact
// matches first, then the system-symbol heuristic, before falling back
// to project symbol resolution; Completion ranks builtin and project
// candidates together rather than preferring one source outright.
package query

import (
	"sort"
	"strings"

	"github.com/metalls/metalls/internal/builtins"
	"github.com/metalls/metalls/internal/include"
	"github.com/metalls/metalls/internal/index"
	"github.com/metalls/metalls/internal/symbols"
	"github.com/metalls/metalls/internal/types"
)

// Layer answers queries against one snapshot of the project's index and
// include graph.
type Layer struct {
	Index *index.Index
	Graph *include.Graph

	ProjectGraphDepth    int
	ProjectGraphMaxNodes int
	ProjectGraphFallback bool
}

// HoverResult is either a builtin's canned documentation or the
// signature/detail text of one or more matching declarations.
type HoverResult struct {
	Found bool
	Text  string
}

// Hover identifies the identifier under (line, column) in snap's text
// and returns its documentation: a builtin's canned text if the name
// matches the static table, otherwise the combined signature/detail of
// every matching declaration found first in the file itself, then in
// reachable headers.
func (l *Layer) Hover(snap types.Snapshot, line, column uint32) HoverResult {
	word, span, ok := wordAt(snap.Text, line, column)
	if !ok {
		return HoverResult{}
	}

	if entry, found := builtins.Lookup(word); found {
		return HoverResult{Found: true, Text: hoverTextForBuiltin(entry)}
	}
	if builtins.LooksLikeSystemSymbol(word, qualifierAt(snap.Text, line, span.StartColumn)) {
		return HoverResult{}
	}

	decls := l.resolveDeclarations(snap.Path, word)
	if len(decls) == 0 {
		return HoverResult{}
	}
	return HoverResult{Found: true, Text: hoverTextForDeclarations(decls)}
}

func hoverTextForBuiltin(e builtins.Entry) string {
	if e.Doc != "" {
		return e.Doc
	}
	return e.Detail
}

func hoverTextForDeclarations(decls []types.Declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		if d.Signature != "" {
			parts = append(parts, d.Signature)
		} else if d.Detail != "" {
			parts = append(parts, d.Detail)
		} else {
			parts = append(parts, d.Name)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Definition resolves the identifier under (line, column) following the
// order: same file, then transitively included headers nearest-first by
// graph distance, then (if enabled) the reverse project graph. Multiple
// matches at the same resolution step are all returned for the editor
// to disambiguate.
func (l *Layer) Definition(snap types.Snapshot, line, column uint32) []types.Declaration {
	word, span, ok := wordAt(snap.Text, line, column)
	if !ok {
		return nil
	}
	if _, found := builtins.Lookup(word); found {
		return nil
	}
	if builtins.LooksLikeSystemSymbol(word, qualifierAt(snap.Text, line, span.StartColumn)) {
		return nil
	}
	return l.resolveDeclarations(snap.Path, word)
}

// resolveDeclarations implements the same-file -> included-headers ->
// reverse-graph-fallback search order shared by Hover and Definition.
func (l *Layer) resolveDeclarations(from types.Path, name string) []types.Declaration {
	all := l.Index.Lookup(name)
	if len(all) == 0 {
		all = l.Index.LookupShort(name)
	}
	if len(all) == 0 {
		return nil
	}

	if same := filterByPath(all, from); len(same) > 0 {
		return same
	}

	if l.Graph != nil {
		reachable := l.Graph.Traverse(from, l.ProjectGraphDepth, l.ProjectGraphMaxNodes)
		if hit := filterByNearestPath(all, reachable); len(hit) > 0 {
			return hit
		}

		if l.ProjectGraphFallback {
			fallback := l.Graph.ReverseFallback(from, l.ProjectGraphDepth, l.ProjectGraphMaxNodes)
			if hit := filterByNearestPath(all, fallback); len(hit) > 0 {
				return hit
			}
		}
	}

	return nil
}

func filterByPath(decls []types.Declaration, path types.Path) []types.Declaration {
	var out []types.Declaration
	for _, d := range decls {
		if d.SourcePath == path {
			out = append(out, d)
		}
	}
	return out
}

// filterByNearestPath returns the declarations whose SourcePath is the
// first entry of order (graph distance order) that has any match.
func filterByNearestPath(decls []types.Declaration, order []types.Path) []types.Declaration {
	byPath := make(map[types.Path][]types.Declaration)
	for _, d := range decls {
		byPath[d.SourcePath] = append(byPath[d.SourcePath], d)
	}
	for _, p := range order {
		if hit, ok := byPath[p]; ok {
			return hit
		}
	}
	return nil
}

// CompletionItem is one ranked completion candidate.
type CompletionItem struct {
	Label    string
	Detail   string
	IsBuiltin bool
	Kind     types.Kind
}

// completionCandidate is one unranked candidate pulled from either the
// builtin table or the project index, carrying everything the single
// cross-source sort below needs.
type completionCandidate struct {
	item     CompletionItem
	tier     int
	kindRank int
	distance int
}

// Completion collects candidates from the builtin table, the file's own
// declarations, and declarations in forward-reachable headers, and
// ranks all of them together in one pass: exact prefix > case-
// insensitive prefix > substring, then by kind priority, then by
// declaration proximity (same file first). Builtins and project symbols
// compete in the same tiers rather than builtins always winning outright.
func (l *Layer) Completion(snap types.Snapshot, prefix string) []CompletionItem {
	var candidates []completionCandidate

	for _, e := range builtins.Prefix(prefix) {
		tier := classify(e.Label, prefix)
		if tier == rankNone {
			continue
		}
		candidates = append(candidates, completionCandidate{
			item:     CompletionItem{Label: e.Label, Detail: e.Detail, IsBuiltin: true},
			tier:     tier,
			kindRank: builtinKindRank(e.Category),
			distance: builtinDistance,
		})
	}

	reachable := map[types.Path]int{snap.Path: 0}
	if l.Graph != nil {
		for depth, p := range l.Graph.Traverse(snap.Path, l.ProjectGraphDepth, l.ProjectGraphMaxNodes) {
			if _, ok := reachable[p]; !ok {
				reachable[p] = depth + 1
			}
		}
	}

	for _, d := range l.Index.All() {
		tier := classify(d.ShortName, prefix)
		if tier == rankNone {
			continue
		}
		dist, ok := reachable[d.SourcePath]
		if !ok {
			continue
		}
		candidates = append(candidates, completionCandidate{
			item:     CompletionItem{Label: d.ShortName, Detail: d.Detail, Kind: d.Kind},
			tier:     tier,
			kindRank: symbols.RankOf(d.Kind),
			distance: dist,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].tier != candidates[j].tier {
			return candidates[i].tier < candidates[j].tier
		}
		if candidates[i].kindRank != candidates[j].kindRank {
			return candidates[i].kindRank < candidates[j].kindRank
		}
		return candidates[i].distance < candidates[j].distance
	})

	seen := make(map[string]bool)
	var items []CompletionItem
	for _, c := range candidates {
		if seen[c.item.Label] {
			continue
		}
		seen[c.item.Label] = true
		items = append(items, c.item)
	}
	return items
}

// builtinDistance puts builtins behind any reachable project declaration
// within the same tier and kind rank, since a project symbol the user is
// actively editing is ordinarily the more useful suggestion.
const builtinDistance = 1 << 30

// builtinKindRank maps a builtin's category onto the same kind-priority
// scale symbols.RankOf uses for project declarations, so the two sort
// together: functions at Kind Function's rank, types at Kind Typedef's,
// constants and attributes at Kind Variable's, and every other category
// after all declaration kinds.
func builtinKindRank(cat builtins.Category) int {
	switch cat {
	case builtins.CategoryFunction:
		return 1
	case builtins.CategoryType:
		return 3
	case builtins.CategoryConstant, builtins.CategoryAttribute:
		return 6
	default:
		return 20
	}
}

const (
	rankExactPrefix = 0
	rankCaseInsensitivePrefix = 1
	rankSubstring = 2
	rankNone = 3
)

func classify(name, prefix string) int {
	switch {
	case strings.HasPrefix(name, prefix):
		return rankExactPrefix
	case strings.HasPrefix(strings.ToLower(name), strings.ToLower(prefix)):
		return rankCaseInsensitivePrefix
	case strings.Contains(name, prefix):
		return rankSubstring
	default:
		return rankNone
	}
}
