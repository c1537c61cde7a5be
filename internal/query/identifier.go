package query

import "github.com/metalls/metalls/internal/types"

func isWordChar(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// wordAt extracts the identifier surrounding line/column (both 0-based,
// byte offsets into the line rather than UTF-16 code units) and the span
// it occupies. A column just past the end of an identifier (on the byte
// that follows it, or at end of line) resolves to that identifier; any
// other non-identifier byte yields ok=false.
func wordAt(text []byte, line, column uint32) (string, types.Span, bool) {
	lineStart, lineEnd := lineBounds(text, line)
	lineBytes := text[lineStart:lineEnd]

	idx := int(column)
	if idx > len(lineBytes) {
		idx = len(lineBytes)
	}
	if idx >= len(lineBytes) {
		if idx > 0 && isWordChar(lineBytes[idx-1]) {
			idx = len(lineBytes) - 1
		} else {
			return "", types.Span{}, false
		}
	}
	if !isWordChar(lineBytes[idx]) {
		if idx > 0 && isWordChar(lineBytes[idx-1]) {
			idx--
		} else {
			return "", types.Span{}, false
		}
	}

	start := idx
	for start > 0 && isWordChar(lineBytes[start-1]) {
		start--
	}
	end := idx
	for end+1 < len(lineBytes) && isWordChar(lineBytes[end+1]) {
		end++
	}

	word := string(lineBytes[start : end+1])
	span := types.Span{
		StartByte:   uint32(lineStart + start),
		EndByte:     uint32(lineStart + end + 1),
		StartLine:   line,
		StartColumn: uint32(start),
		EndLine:     line,
		EndColumn:   uint32(end + 1),
	}
	return word, span, true
}

// qualifierAt returns the scope qualifier immediately preceding the
// identifier that starts at startCol on line (e.g. "metal" in
// "metal::clamp", "" for an unqualified name), the context
// LooksLikeSystemSymbol needs to tell a bare system-prefixed name from
// one explicitly scoped into a known system namespace.
func qualifierAt(text []byte, line, startCol uint32) string {
	lineStart, lineEnd := lineBounds(text, line)
	lineBytes := text[lineStart:lineEnd]

	start := int(startCol)
	if start < 2 || start > len(lineBytes) {
		return ""
	}
	if lineBytes[start-1] != ':' || lineBytes[start-2] != ':' {
		return ""
	}
	end := start - 2
	begin := end
	for begin > 0 && isWordChar(lineBytes[begin-1]) {
		begin--
	}
	return string(lineBytes[begin:end])
}

// PrefixAt returns the partial identifier immediately to the left of
// (line, column) — the text an editor has already typed when it asks for
// completions, as opposed to wordAt's whole-word-under-cursor match used
// by Hover and Definition.
func PrefixAt(text []byte, line, column uint32) string {
	lineStart, lineEnd := lineBounds(text, line)
	lineBytes := text[lineStart:lineEnd]

	idx := int(column)
	if idx > len(lineBytes) {
		idx = len(lineBytes)
	}
	start := idx
	for start > 0 && isWordChar(lineBytes[start-1]) {
		start--
	}
	return string(lineBytes[start:idx])
}

// lineBounds returns the [start, end) byte range of the given 0-based
// line within text, end excluding the trailing newline.
func lineBounds(text []byte, line uint32) (int, int) {
	var current uint32
	lineStart := 0
	for i := 0; i < len(text); i++ {
		if current == line {
			lineStart = i
			break
		}
		if text[i] == '\n' {
			current++
		}
	}
	if current < line {
		return len(text), len(text)
	}
	lineEnd := lineStart
	for lineEnd < len(text) && text[lineEnd] != '\n' {
		lineEnd++
	}
	return lineStart, lineEnd
}
