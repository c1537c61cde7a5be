// Package lspserver is the thin jsonrpc2/go.lsp.dev/protocol adapter that
// sits between the wire and internal/session: it decodes a request, calls
// into the Session, and encodes the response. No indexing, diagnostics, or
// formatting logic lives here — that is all session's job. The connection
// is wired with jsonrpc2.NewBufferedStream/HandlerWithError/NewConn over
// a joined stdin/stdout pair, reading requests rather than dialing out.
package lspserver

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/metalls/metalls/internal/config"
	"github.com/metalls/metalls/internal/session"
	"github.com/metalls/metalls/internal/types"
)

// Server adapts one *session.Session to the LSP wire protocol over a
// single stdio-shaped connection. It is created once per server process
// and torn down on exit.
type Server struct {
	log zerolog.Logger

	mu       sync.Mutex
	conn     *jsonrpc2.Conn
	sess     *session.Session
	root     string
	shutdown bool
}

// New creates a Server that has not yet received initialize.
func New(log zerolog.Logger) *Server {
	return &Server{log: log}
}

// stdioReadWriteCloser joins a read side and a write side into the single
// io.ReadWriteCloser jsonrpc2.NewBufferedStream wants, the way the client
// side of this stack joins a spawned process's stdout/stdin pipes.
type stdioReadWriteCloser struct {
	r io.ReadCloser
	w io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error)  { return s.r.Read(p) }
func (s *stdioReadWriteCloser) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s *stdioReadWriteCloser) Close() error {
	_ = s.r.Close()
	return s.w.Close()
}

// Serve runs the connection until the client disconnects or exit is
// received, using in as stdin and out as stdout.
func (s *Server) Serve(ctx context.Context, in io.ReadCloser, out io.WriteCloser) error {
	rwc := &stdioReadWriteCloser{r: in, w: out}
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	<-conn.DisconnectNotify()

	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
	return nil
}

func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	switch req.Method {
	case "initialize":
		return s.onInitialize(ctx, req)
	case "initialized":
		return nil, nil
	case "textDocument/didOpen":
		return nil, s.onDidOpen(req)
	case "textDocument/didChange":
		return nil, s.onDidChange(req)
	case "textDocument/didSave":
		return nil, s.onDidSave(req)
	case "textDocument/didClose":
		return nil, s.onDidClose(req)
	case "workspace/didChangeConfiguration":
		return nil, s.onDidChangeConfiguration(req)
	case "textDocument/hover":
		return s.onHover(ctx, req)
	case "textDocument/definition":
		return s.onDefinition(ctx, req)
	case "textDocument/completion":
		return s.onCompletion(ctx, req)
	case "textDocument/formatting":
		return s.onFormatting(ctx, req)
	case "textDocument/rangeFormatting":
		// Always formats the whole document; metalfmt has no concept of a
		// sub-range format, so the requested range is ignored.
		return s.onFormatting(ctx, req)
	case "shutdown":
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		return nil, nil
	case "exit":
		go func() {
			time.Sleep(10 * time.Millisecond)
			conn.Close()
		}()
		return nil, nil
	default:
		if req.Notif {
			return nil, nil
		}
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not handled: " + req.Method}
	}
}

func (s *Server) onInitialize(ctx context.Context, req *jsonrpc2.Request) (interface{}, error) {
	var params protocol.InitializeParams
	if req.Params != nil {
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
	}

	root := string(params.RootURI)
	if root != "" {
		root = string(uriToPath(protocol.DocumentURI(root)))
	}

	cfg := config.Default()
	sess := session.New(root, s.log, cfg, s.publishDiagnostics)

	s.mu.Lock()
	s.sess = sess
	s.root = root
	s.mu.Unlock()

	go func() {
		if err := sess.ScanWorkspace(context.Background()); err != nil {
			s.log.Warn().Err(err).Msg("workspace scan did not complete")
		}
	}()

	return protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    1, // TextDocumentSyncKindFull
				Save:      &protocol.SaveOptions{IncludeText: false},
			},
			HoverProvider:                   true,
			DefinitionProvider:               true,
			DocumentFormattingProvider:       true,
			DocumentRangeFormattingProvider:  true,
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{},
			},
		},
		ServerInfo: &protocol.ServerInfo{
			Name: "metalls",
		},
	}, nil
}

// ShutdownReceived reports whether the client sent shutdown before the
// connection closed, so cmd/metalls can pick exit code 0 vs. 1 the way
// the LSP spec's exit-without-shutdown case expects.
func (s *Server) ShutdownReceived() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

func (s *Server) session() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess
}

// publishDiagnostics is the session.PublishFunc wired in at initialize: it
// turns a fresh diagnostic set into a textDocument/publishDiagnostics
// notification tagged with source "metal-compiler".
func (s *Server) publishDiagnostics(path types.Path, diags []types.Diagnostic) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	_ = conn.Notify(context.Background(), "textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         pathToURI(path),
		Diagnostics: toProtocolDiagnostics(diags),
	})
}
