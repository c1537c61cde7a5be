package lspserver

import (
	"context"
	"encoding/json"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"
)

func (s *Server) onDidOpen(req *jsonrpc2.Request) error {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return err
	}
	sess := s.session()
	if sess == nil {
		return nil
	}
	path := uriToPath(params.TextDocument.URI)
	sess.IndexFile(path, uint64(params.TextDocument.Version), []byte(params.TextDocument.Text), false)
	return nil
}

func (s *Server) onDidChange(req *jsonrpc2.Request) error {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return err
	}
	sess := s.session()
	if sess == nil || len(params.ContentChanges) == 0 {
		return nil
	}
	path := uriToPath(params.TextDocument.URI)
	// Full-document sync only (declared at initialize): each change event
	// carries the document's entire new text, so only the last matters.
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	sess.IndexFile(path, uint64(params.TextDocument.Version), []byte(text), false)
	return nil
}

func (s *Server) onDidSave(req *jsonrpc2.Request) error {
	var params protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return err
	}
	sess := s.session()
	if sess == nil {
		return nil
	}
	path := uriToPath(params.TextDocument.URI)
	// includeText is false in this server's capabilities, so save
	// notifications never carry fresh text; re-diagnose whatever the
	// store already has from the last didChange.
	sess.Saved(path)
	return nil
}

func (s *Server) onDidClose(req *jsonrpc2.Request) error {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return err
	}
	sess := s.session()
	if sess == nil {
		return nil
	}
	sess.CloseFile(uriToPath(params.TextDocument.URI))
	return nil
}

func (s *Server) onFormatting(ctx context.Context, req *jsonrpc2.Request) (interface{}, error) {
	var params protocol.DocumentFormattingParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return nil, err
	}
	sess := s.session()
	if sess == nil {
		return []protocol.TextEdit{}, nil
	}
	path := uriToPath(params.TextDocument.URI)

	text, ok := sess.DocumentText(path)
	if !ok {
		return []protocol.TextEdit{}, nil
	}

	_, edits, err := sess.Format(ctx, path, text)
	if err != nil {
		return []protocol.TextEdit{}, nil
	}
	return toProtocolEdits(edits), nil
}
