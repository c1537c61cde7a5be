package builtins

import "strings"

var systemPrefixes = []string{
	"simd_", "simdgroup_", "threadgroup_", "quad_", "atomic_",
	"mem_", "thread_", "intersection_", "visible_",
}

var systemFamilyNames = map[string]bool{
	"mem_flags":           true,
	"thread_scope":        true,
	"memory_order":        true,
	"memory_scope":        true,
	"threadgroup_barrier": true,
	"simdgroup_barrier":   true,
	"simd_sum":            true,
}

var systemNamespaces = map[string]bool{
	"metal":         true,
	"address":       true,
	"coord":         true,
	"filter":        true,
	"mip_filter":    true,
	"compare_func":  true,
	"access":        true,
	"mem_flags":     true,
	"thread_scope":  true,
	"memory_order":  true,
	"memory_scope":  true,
	"raytracing":    true,
	"ray_tracing":   true,
}

// LooksLikeSystemSymbol is a fast heuristic that decides whether a bare
// word is plausibly part of the Metal Standard Library (the query layer
// checks it after an exact builtins lookup misses, and a true result ends
// the lookup without searching the project-wide index), given an optional
// enclosing namespace qualifier
// (e.g. "metal" in "metal::clamp", "" when unqualified).
func LooksLikeSystemSymbol(name, qualifier string) bool {
	if qualifier != "" {
		return systemNamespaces[qualifier]
	}
	if systemFamilyNames[name] {
		return true
	}
	for _, prefix := range systemPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
