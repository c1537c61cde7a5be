package config

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
)

const metalfmtFilename = "metalfmt.toml"

// FindMetalfmtTOML walks parent directories starting at start (a file or
// a directory) looking for a metalfmt.toml, returning the first one found.
func FindMetalfmtTOML(start string) (string, bool) {
	dir := start
	if info, err := os.Stat(start); err == nil && !info.IsDir() {
		dir = filepath.Dir(start)
	}
	for {
		candidate := filepath.Join(dir, metalfmtFilename)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// metalfmtConfig mirrors the closed key set metalfmt.toml recognizes by
// name; anything else falls into Extra and is passed through verbatim,
// so the format stays forward-compatible with clang-format options this
// server doesn't know the name of yet.
type metalfmtConfig struct {
	BasedOnStyle *string `toml:"based_on_style"`

	IndentWidth *uint32 `toml:"indent_width"`
	UseTab      *bool   `toml:"use_tab"`
	TabWidth    *uint32 `toml:"tab_width"`

	ColumnLimit *uint32 `toml:"column_limit"`

	BreakBeforeBraces                  *string `toml:"break_before_braces"`
	BraceWrappingAfterFunction         *bool   `toml:"brace_wrapping_after_function"`
	BraceWrappingAfterStruct           *bool   `toml:"brace_wrapping_after_struct"`
	BraceWrappingAfterEnum             *bool   `toml:"brace_wrapping_after_enum"`
	BraceWrappingAfterControlStatement *string `toml:"brace_wrapping_after_control_statement"`

	SpaceBeforeParens      *string `toml:"space_before_parens"`
	PointerAlignment       *string `toml:"pointer_alignment"`
	ReferenceAlignment     *string `toml:"reference_alignment"`
	AlignAfterOpenBracket  *string `toml:"align_after_open_bracket"`
	AlignOperands          *string `toml:"align_operands"`
	AlignTrailingComments  *bool   `toml:"align_trailing_comments"`

	SortIncludes  *bool   `toml:"sort_includes"`
	IncludeBlocks *string `toml:"include_blocks"`

	AllowShortFunctionsOnASingleLine   *string `toml:"allow_short_functions_on_a_single_line"`
	AllowShortIfStatementsOnASingleLine *string `toml:"allow_short_if_statements_on_a_single_line"`
	AllowShortLoopsOnASingleLine       *bool   `toml:"allow_short_loops_on_a_single_line"`
	BinPackArguments                   *bool   `toml:"bin_pack_arguments"`
	BinPackParameters                  *bool   `toml:"bin_pack_parameters"`
	CppStandard                        *string `toml:"cpp_standard"`
	MaxEmptyLinesToKeep                *uint32 `toml:"max_empty_lines_to_keep"`

	Extra map[string]any `toml:"-"`
}

// LoadInlineStyle reads and parses a metalfmt.toml file, returning the
// clang-format inline style string (the part that goes inside
// "--style={...}"). Returns "", false if the file can't be read,
// parsed, or translates to an empty style.
func LoadInlineStyle(path string) (string, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	style, err := parseInlineStyle(content)
	if err != nil || style == "" {
		return "", false
	}
	return style, true
}

// ResolveInlineStyle finds the nearest metalfmt.toml to sourcePath and
// returns its clang-format inline style string.
func ResolveInlineStyle(sourcePath string) (string, bool) {
	tomlPath, ok := FindMetalfmtTOML(sourcePath)
	if !ok {
		return "", false
	}
	return LoadInlineStyle(tomlPath)
}

func parseInlineStyle(content []byte) (string, error) {
	var known metalfmtConfig
	if err := toml.Unmarshal(content, &known); err != nil {
		return "", err
	}
	var raw map[string]any
	if err := toml.Unmarshal(content, &raw); err != nil {
		return "", err
	}
	known.Extra = extraKeys(raw)
	return known.toInlineStyle(), nil
}

var knownMetalfmtKeys = map[string]bool{
	"based_on_style": true, "indent_width": true, "use_tab": true, "tab_width": true,
	"column_limit": true, "break_before_braces": true, "brace_wrapping_after_function": true,
	"brace_wrapping_after_struct": true, "brace_wrapping_after_enum": true,
	"brace_wrapping_after_control_statement": true, "space_before_parens": true,
	"pointer_alignment": true, "reference_alignment": true, "align_after_open_bracket": true,
	"align_operands": true, "align_trailing_comments": true, "sort_includes": true,
	"include_blocks": true, "allow_short_functions_on_a_single_line": true,
	"allow_short_if_statements_on_a_single_line": true, "allow_short_loops_on_a_single_line": true,
	"bin_pack_arguments": true, "bin_pack_parameters": true, "cpp_standard": true,
	"max_empty_lines_to_keep": true,
}

func extraKeys(raw map[string]any) map[string]any {
	extra := make(map[string]any)
	for k, v := range raw {
		if !knownMetalfmtKeys[k] {
			extra[k] = v
		}
	}
	return extra
}

// toInlineStyle renders the recognized fields and any passthrough extras
// as a comma-joined clang-format inline style body.
func (c *metalfmtConfig) toInlineStyle() string {
	var parts []string

	pushStr(&parts, "BasedOnStyle", c.BasedOnStyle)
	pushU32(&parts, "IndentWidth", c.IndentWidth)
	if c.UseTab != nil {
		if *c.UseTab {
			parts = append(parts, "UseTab: ForIndentation")
		} else {
			parts = append(parts, "UseTab: Never")
		}
	}
	pushU32(&parts, "TabWidth", c.TabWidth)

	pushU32(&parts, "ColumnLimit", c.ColumnLimit)

	pushStr(&parts, "BreakBeforeBraces", c.BreakBeforeBraces)
	pushBool(&parts, "BraceWrapping.AfterFunction", c.BraceWrappingAfterFunction)
	pushBool(&parts, "BraceWrapping.AfterStruct", c.BraceWrappingAfterStruct)
	pushBool(&parts, "BraceWrapping.AfterEnum", c.BraceWrappingAfterEnum)
	pushStr(&parts, "BraceWrapping.AfterControlStatement", c.BraceWrappingAfterControlStatement)

	pushStr(&parts, "SpaceBeforeParens", c.SpaceBeforeParens)
	pushStr(&parts, "PointerAlignment", c.PointerAlignment)
	pushStr(&parts, "ReferenceAlignment", c.ReferenceAlignment)
	pushStr(&parts, "AlignAfterOpenBracket", c.AlignAfterOpenBracket)
	pushStr(&parts, "AlignOperands", c.AlignOperands)
	pushBool(&parts, "AlignTrailingComments", c.AlignTrailingComments)

	if c.SortIncludes != nil {
		if *c.SortIncludes {
			parts = append(parts, "SortIncludes: CaseSensitive")
		} else {
			parts = append(parts, "SortIncludes: Never")
		}
	}
	pushStr(&parts, "IncludeBlocks", c.IncludeBlocks)

	pushStr(&parts, "AllowShortFunctionsOnASingleLine", c.AllowShortFunctionsOnASingleLine)
	pushStr(&parts, "AllowShortIfStatementsOnASingleLine", c.AllowShortIfStatementsOnASingleLine)
	pushBool(&parts, "AllowShortLoopsOnASingleLine", c.AllowShortLoopsOnASingleLine)
	pushBool(&parts, "BinPackArguments", c.BinPackArguments)
	pushBool(&parts, "BinPackParameters", c.BinPackParameters)
	pushStr(&parts, "Standard", c.CppStandard)
	pushU32(&parts, "MaxEmptyLinesToKeep", c.MaxEmptyLinesToKeep)

	extraKeysSorted := make([]string, 0, len(c.Extra))
	for k := range c.Extra {
		extraKeysSorted = append(extraKeysSorted, k)
	}
	sort.Strings(extraKeysSorted)
	for _, k := range extraKeysSorted {
		parts = append(parts, snakeToPascal(k)+": "+tomlValueToClang(c.Extra[k]))
	}

	return strings.Join(parts, ", ")
}

func pushStr(parts *[]string, key string, val *string) {
	if val != nil {
		*parts = append(*parts, key+": "+*val)
	}
}

func pushU32(parts *[]string, key string, val *uint32) {
	if val != nil {
		*parts = append(*parts, key+": "+strconv.FormatUint(uint64(*val), 10))
	}
}

func pushBool(parts *[]string, key string, val *bool) {
	if val != nil {
		if *val {
			*parts = append(*parts, key+": true")
		} else {
			*parts = append(*parts, key+": false")
		}
	}
}

func snakeToPascal(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

func tomlValueToClang(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return ""
	}
}
