package symbols

import (
	"regexp"
	"strings"

	"github.com/metalls/metalls/internal/types"
)

var wordRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// detectQualifier scans the declaration-specifier text of a function for
// one of the MSL kernel qualifiers. fullText is the whole
// function_definition text; the part before the first occurrence of
// declaratorText is what gets scanned (all of fullText when
// declaratorText is empty or not found).
func detectQualifier(fullText, declaratorText string) (types.KernelQualifier, string) {
	prefix := fullText
	if declaratorText != "" {
		if idx := strings.Index(fullText, declaratorText); idx >= 0 {
			prefix = fullText[:idx]
		}
	}
	for _, word := range wordRe.FindAllString(prefix, -1) {
		if q, ok := qualifierWords[word]; ok {
			return q, word
		}
	}
	return "", ""
}

// RankOf returns the kind priority used by completion/go-to-definition
// ranking: lower values sort first.
func RankOf(k types.Kind) int {
	switch k {
	case types.KindKernel:
		return 0
	case types.KindFunction:
		return 1
	case types.KindStruct, types.KindClass:
		return 2
	case types.KindTypedef:
		return 3
	case types.KindField:
		return 4
	case types.KindMacro:
		return 5
	case types.KindVariable:
		return 6
	case types.KindMethod:
		return 7
	case types.KindEnum, types.KindEnumMember:
		return 8
	case types.KindNamespace:
		return 9
	case types.KindParameter:
		return 10
	default:
		return 99
	}
}
