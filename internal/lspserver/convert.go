package lspserver

import (
	"go.lsp.dev/protocol"

	"github.com/metalls/metalls/internal/formatting"
	"github.com/metalls/metalls/internal/types"
)

func toProtocolRange(span types.Span) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: span.StartLine, Character: span.StartColumn},
		End:   protocol.Position{Line: span.EndLine, Character: span.EndColumn},
	}
}

// severity maps the closed Severity enum onto the LSP DiagnosticSeverity
// wire values (1=Error, 2=Warning, 3=Information, 4=Hint); Note collapses
// onto Information since the protocol has no exact equivalent.
func toProtocolSeverity(sev types.Severity) protocol.DiagnosticSeverity {
	switch sev {
	case types.SeverityError:
		return 1
	case types.SeverityWarning:
		return 2
	default:
		return 3
	}
}

func toProtocolDiagnostics(diags []types.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, protocol.Diagnostic{
			Range:    toProtocolRange(d.Range),
			Severity: toProtocolSeverity(d.Severity),
			Code:     d.Code,
			Source:   d.Source,
			Message:  d.Message,
		})
	}
	return out
}

func toProtocolEdits(edits []formatting.Edit) []protocol.TextEdit {
	out := make([]protocol.TextEdit, 0, len(edits))
	for _, e := range edits {
		out = append(out, protocol.TextEdit{
			Range:   toProtocolRange(e.Range),
			NewText: e.NewText,
		})
	}
	return out
}
