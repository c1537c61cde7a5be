// Package types holds the data model shared across the indexing core:
// canonical paths, versioned snapshots, extracted declarations, include
// edges, diagnostics, and the request envelope the scheduler dispatches.
// Types here are intentionally inert — no package in this module may
// import types and then mutate a value it did not create; ownership is
// enforced by the package boundaries of the packages that build on it.
package types

import "context"

// Path is an absolute, canonicalized filesystem path. Two Paths are equal
// iff pathutil.Canonicalize produced the same string for both; callers
// are expected to canonicalize before constructing a Path.
type Path string

// Snapshot is an immutable view of a file's text at a specific version.
// The store hands out Snapshots by value; nothing downstream may mutate
// Text or Tree in place.
type Snapshot struct {
	Path    Path
	Version uint64
	Text    []byte
	Hash    uint64 // xxhash of Text, for cheap unchanged-content detection
	Tree    any    // *tree_sitter.Tree, opaque outside internal/parser
}

// Kind is the closed set of declaration kinds the extractor can produce.
type Kind int

const (
	KindFunction Kind = iota
	KindKernel
	KindMethod
	KindStruct
	KindUnion
	KindClass
	KindEnum
	KindEnumMember
	KindTypedef
	KindField
	KindMacro
	KindNamespace
	KindVariable
	KindParameter
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "Function"
	case KindKernel:
		return "Kernel"
	case KindMethod:
		return "Method"
	case KindStruct:
		return "Struct"
	case KindUnion:
		return "Union"
	case KindClass:
		return "Class"
	case KindEnum:
		return "Enum"
	case KindEnumMember:
		return "EnumMember"
	case KindTypedef:
		return "Typedef"
	case KindField:
		return "Field"
	case KindMacro:
		return "Macro"
	case KindNamespace:
		return "Namespace"
	case KindVariable:
		return "Variable"
	case KindParameter:
		return "Parameter"
	default:
		return "Unknown"
	}
}

// KernelQualifier names the MSL function qualifiers that turn a Function
// declaration into a Kernel declaration.
type KernelQualifier string

const (
	QualifierKernel   KernelQualifier = "kernel"
	QualifierVertex   KernelQualifier = "vertex"
	QualifierFragment KernelQualifier = "fragment"
	QualifierMesh     KernelQualifier = "mesh"
	QualifierObject   KernelQualifier = "object"
)

// Span is a half-open byte range plus the line/column of its start and
// end, 0-based, matching LSP Position conventions.
type Span struct {
	StartByte, EndByte     uint32
	StartLine, StartColumn uint32
	EndLine, EndColumn     uint32
}

// Declaration is a named, located, kinded entity extracted by the
// syntactic extractor. Declarations are immutable once constructed;
// replacing a file's declarations means discarding the old slice and
// inserting a new one, never mutating elements in place.
type Declaration struct {
	Name       string // qualified name, e.g. "fixture::scale_value"
	ShortName  string // trailing identifier, e.g. "scale_value"
	Kind       Kind
	Qualifier  KernelQualifier // set only when Kind == KindKernel
	SourcePath Path
	Range      Span
	Detail     string
	Signature  string // template params or macro parameter list, if any
}

// IncludeEdge is one #include relationship discovered in a file's current
// snapshot. To is empty when resolution failed (see Note).
type IncludeEdge struct {
	From   Path
	To     Path
	Quoted bool
	Span   Span
	Note   IncludeNote
}

// IncludeNote records a non-fatal observation made while resolving an
// edge.
type IncludeNote int

const (
	NoteNone IncludeNote = iota
	NoteAmbiguous
	NoteUnresolved
)

// Style is the resolved formatting style for one format request: either
// an inline clang-format style string, a request to let the formatter
// discover ".clang-format" itself, or "no style found".
type Style struct {
	Kind   StyleKind
	Inline string // valid when Kind == StyleInline
}

type StyleKind int

const (
	StyleNotFound StyleKind = iota
	StyleInline
	StyleFileDiscovery
)

// Severity is the closed set of diagnostic severities the compiler output
// maps onto.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
)

// Diagnostic is one structured diagnostic produced by the diagnostics
// runner. Diagnostics are not persisted across runs — each Diagnose call
// replaces the full set for its path.
type Diagnostic struct {
	Path     Path
	Range    Span
	Severity Severity
	Code     string // e.g. "-Wunused-variable"; empty if none
	Message  string
	Source   string // always "metal-compiler"
}

// RequestKind is the closed set of request kinds the scheduler accepts.
type RequestKind int

const (
	RequestIndexFile RequestKind = iota
	RequestDiagnose
	RequestFormat
	RequestHover
	RequestDefinition
	RequestCompletion
)

// Priority is the scheduling class a RequestKind belongs to.
type Priority int

const (
	PriorityInteractive Priority = iota // Hover, Definition, Completion
	PriorityOnChange                    // IndexFile, on-type Diagnose
	PriorityBackground                  // workspace scan
)

// Request is the envelope the scheduler dispatches. Cancel is called by
// the scheduler when the request is superseded, dropped for
// backpressure, or the client asks for cancellation; Ctx.Done() is
// checked at the handler's cooperative cancellation checkpoints.
type Request struct {
	ID       uint64
	Kind     RequestKind
	Path     Path
	Ctx      context.Context
	Cancel   context.CancelFunc
	OnSave   bool // true for save-triggered Diagnose requests, never coalesced
	Priority Priority
}

// Cancelled reports whether the request's context has been cancelled.
func (r *Request) Cancelled() bool {
	if r.Ctx == nil {
		return false
	}
	select {
	case <-r.Ctx.Done():
		return true
	default:
		return false
	}
}
