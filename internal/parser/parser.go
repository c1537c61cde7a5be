// Package parser wraps the incremental tree-sitter parser configured with
// the C++ grammar. MSL is a C++ dialect and the ecosystem has no
// dedicated MSL grammar, so the C++ grammar gives a correct incremental
// parse tree; Metal's additional keywords (kernel/vertex/fragment/mesh/
// object, address space qualifiers, attribute syntax) parse as ordinary
// C++ identifiers and attribute-like constructs, which is sufficient for
// syntactic extraction.
//
// Trees are opaque outside this package: Adapter returns *tree_sitter.Tree
// values behind the types.Snapshot.Tree any field, and only internal/symbols
// is allowed to know node kinds.
package parser

import (
	"context"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
)

// Adapter parses MSL/C++ source text into tree-sitter trees. It keeps a
// small pool of *tree_sitter.Parser instances because the underlying CGO
// parser is not safe for concurrent use, and constructing one is not
// free (grammar table setup).
type Adapter struct {
	language *tree_sitter.Language

	mu   sync.Mutex
	pool []*tree_sitter.Parser
}

// New creates an Adapter configured with the C++ grammar.
func New() *Adapter {
	return &Adapter{language: tree_sitter.NewLanguage(tree_sitter_cpp.Language())}
}

// Language exposes the configured grammar for callers that need to build
// tree-sitter queries against it (internal/symbols).
func (a *Adapter) Language() *tree_sitter.Language { return a.language }

func (a *Adapter) acquire() (*tree_sitter.Parser, error) {
	a.mu.Lock()
	if n := len(a.pool); n > 0 {
		p := a.pool[n-1]
		a.pool = a.pool[:n-1]
		a.mu.Unlock()
		return p, nil
	}
	a.mu.Unlock()

	p := tree_sitter.NewParser()
	if err := p.SetLanguage(a.language); err != nil {
		return nil, err
	}
	return p, nil
}

func (a *Adapter) release(p *tree_sitter.Parser) {
	a.mu.Lock()
	a.pool = append(a.pool, p)
	a.mu.Unlock()
}

// Parse produces a tree for text, reusing previous when it is available
// and was produced by this Adapter (an incremental reparse). previous may
// be nil, in which case a full parse is performed.
//
// ctx is checked once before the (synchronous, CGO) parse call; tree-sitter
// itself has no cancellation hook mid-parse, so cancellation here only
// avoids starting parses that are already moot.
func (a *Adapter) Parse(ctx context.Context, previous *tree_sitter.Tree, text []byte) (*tree_sitter.Tree, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p, err := a.acquire()
	if err != nil {
		return nil, err
	}
	defer a.release(p)

	// tree-sitter's C library may mutate the buffer it is given; pass a
	// defensive copy so the snapshot's Text is never touched.
	buf := make([]byte, len(text))
	copy(buf, text)

	tree := p.Parse(buf, previous)
	return tree, nil
}
