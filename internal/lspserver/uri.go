package lspserver

import (
	"path/filepath"
	"runtime"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/metalls/metalls/internal/types"
)

// pathToURI and uriToPath hand-roll the file:// conversion rather than
// reaching for go.lsp.dev/uri's own helpers, the way the client side of
// this same stack does it — a URI is just a path with a fixed prefix and
// Windows drive-letter escaping, not worth trusting to an unread API.
func pathToURI(path types.Path) protocol.DocumentURI {
	p := filepath.Clean(string(path))
	if runtime.GOOS == "windows" {
		p = strings.ReplaceAll(p, "\\", "/")
		return protocol.DocumentURI("file:///" + strings.ReplaceAll(p, ":", "%3A"))
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return protocol.DocumentURI("file://" + p)
}

func uriToPath(uri protocol.DocumentURI) types.Path {
	p := strings.TrimPrefix(string(uri), "file://")
	p = strings.ReplaceAll(p, "%3A", ":")
	return types.Path(filepath.FromSlash(p))
}
