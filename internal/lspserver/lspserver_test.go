package lspserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.uber.org/goleak"

	"github.com/metalls/metalls/internal/types"
)

func dial(t *testing.T, srv *Server) (*jsonrpc2.Conn, func()) {
	clientEnd, serverEnd := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	serveDone := make(chan struct{})
	go func() {
		_ = srv.Serve(ctx, serverEnd, serverEnd)
		close(serveDone)
	}()

	clientConn := jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(clientEnd, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(func(ctx context.Context, c *jsonrpc2.Conn, r *jsonrpc2.Request) (interface{}, error) {
			return nil, nil
		}))

	cleanup := func() {
		_ = clientConn.Close()
		cancel()
		select {
		case <-serveDone:
		case <-time.After(time.Second):
			t.Fatal("server did not shut down")
		}
	}
	return clientConn, cleanup
}

func TestInitializeAdvertisesExpectedCapabilities(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := New(zerolog.Nop())
	conn, cleanup := dial(t, srv)
	defer cleanup()

	root := t.TempDir()
	var result protocol.InitializeResult
	err := conn.Call(context.Background(), "initialize", protocol.InitializeParams{
		RootURI: pathToURI(types.Path(root)),
	}, &result)
	require.NoError(t, err)
	require.True(t, result.Capabilities.HoverProvider.(bool))
	require.True(t, result.Capabilities.DefinitionProvider.(bool))
	require.True(t, result.Capabilities.DocumentFormattingProvider.(bool))
	require.NotNil(t, result.Capabilities.CompletionProvider)
}

func TestHoverBeforeInitializeReturnsNilWithoutPanic(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := New(zerolog.Nop())
	conn, cleanup := dial(t, srv)
	defer cleanup()

	var result protocol.Hover
	err := conn.Call(context.Background(), "textDocument/hover", protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: pathToURI("/a.metal")},
			Position:     protocol.Position{Line: 0, Character: 0},
		},
	}, &result)
	require.NoError(t, err)
}

func TestDidOpenThenHoverFindsBuiltin(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := New(zerolog.Nop())
	conn, cleanup := dial(t, srv)
	defer cleanup()

	root := t.TempDir()
	var initResult protocol.InitializeResult
	require.NoError(t, conn.Call(context.Background(), "initialize", protocol.InitializeParams{
		RootURI: pathToURI(types.Path(root)),
	}, &initResult))
	require.NoError(t, conn.Notify(context.Background(), "initialized", &protocol.InitializedParams{}))

	uri := pathToURI(types.Path(root + "/a.metal"))
	require.NoError(t, conn.Notify(context.Background(), "textDocument/didOpen", protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        uri,
			LanguageID: "metal",
			Version:    1,
			Text:       "float4 v;",
		},
	}))

	var hover protocol.Hover
	require.Eventually(t, func() bool {
		err := conn.Call(context.Background(), "textDocument/hover", protocol.HoverParams{
			TextDocumentPositionParams: protocol.TextDocumentPositionParams{
				TextDocument: protocol.TextDocumentIdentifier{URI: uri},
				Position:     protocol.Position{Line: 0, Character: 1},
			},
		}, &hover)
		return err == nil && hover.Contents.Value != ""
	}, 2*time.Second, 10*time.Millisecond)
}
