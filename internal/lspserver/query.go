package lspserver

import (
	"context"
	"encoding/json"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/metalls/metalls/internal/query"
	"github.com/metalls/metalls/internal/types"
)

func (s *Server) onHover(ctx context.Context, req *jsonrpc2.Request) (interface{}, error) {
	var params protocol.HoverParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return nil, err
	}
	sess := s.session()
	if sess == nil {
		return nil, nil
	}
	path := uriToPath(params.TextDocument.URI)
	result, err := sess.Hover(ctx, path, params.Position.Line, params.Position.Character)
	if err != nil || !result.Found {
		return nil, nil
	}
	return protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  "plaintext",
			Value: result.Text,
		},
	}, nil
}

func (s *Server) onDefinition(ctx context.Context, req *jsonrpc2.Request) (interface{}, error) {
	var params protocol.DefinitionParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return nil, err
	}
	sess := s.session()
	if sess == nil {
		return []protocol.Location{}, nil
	}
	path := uriToPath(params.TextDocument.URI)
	decls, err := sess.Definition(ctx, path, params.Position.Line, params.Position.Character)
	if err != nil {
		return []protocol.Location{}, nil
	}
	return toProtocolLocations(decls), nil
}

func (s *Server) onCompletion(ctx context.Context, req *jsonrpc2.Request) (interface{}, error) {
	var params protocol.CompletionParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return nil, err
	}
	sess := s.session()
	if sess == nil {
		return protocol.CompletionList{}, nil
	}
	path := uriToPath(params.TextDocument.URI)
	items, err := sess.Completion(ctx, path, params.Position.Line, params.Position.Character)
	if err != nil {
		return protocol.CompletionList{}, nil
	}
	return protocol.CompletionList{
		IsIncomplete: false,
		Items:        toProtocolCompletionItems(items),
	}, nil
}

func toProtocolLocations(decls []types.Declaration) []protocol.Location {
	out := make([]protocol.Location, 0, len(decls))
	for _, d := range decls {
		out = append(out, protocol.Location{
			URI:   pathToURI(d.SourcePath),
			Range: toProtocolRange(d.Range),
		})
	}
	return out
}

func toProtocolCompletionItems(items []query.CompletionItem) []protocol.CompletionItem {
	out := make([]protocol.CompletionItem, 0, len(items))
	for _, it := range items {
		var kind protocol.CompletionItemKind = completionItemKindText
		if !it.IsBuiltin {
			kind = completionKindFor(it.Kind)
		}
		out = append(out, protocol.CompletionItem{
			Label:  it.Label,
			Detail: it.Detail,
			Kind:   kind,
		})
	}
	return out
}

// CompletionItemKind wire values, per the LSP protocol's fixed
// numbering — used as plain integers rather than named protocol
// constants, matching the same severity/sync-kind convention used
// elsewhere in this package.
const (
	completionItemKindText     = 1
	completionItemKindFunction = 3
	completionItemKindVariable = 6
	completionItemKindStruct   = 22
	completionItemKindEnum     = 13
	completionItemKindEnumMember = 20
)

// completionKindFor maps a declaration's Kind onto the closest
// CompletionItemKind the protocol defines: functions, kernels and methods
// get the Function kind; structs, unions and classes the Struct kind;
// enums and enum members their own Enum/EnumMember kinds; everything else
// collapses onto the generic Variable kind.
func completionKindFor(k types.Kind) protocol.CompletionItemKind {
	switch k {
	case types.KindFunction, types.KindKernel, types.KindMethod:
		return completionItemKindFunction
	case types.KindStruct, types.KindUnion, types.KindClass:
		return completionItemKindStruct
	case types.KindEnum:
		return completionItemKindEnum
	case types.KindEnumMember:
		return completionItemKindEnumMember
	default:
		return completionItemKindVariable
	}
}
