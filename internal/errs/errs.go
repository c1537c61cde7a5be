// Package errs holds the closed set of error kinds the core surfaces to
// clients as diagnostics or LSP errors. Errors that are recoverable
// locally — stale-version rejects, graph cycles, index duplicate
// removal, cancelled requests — are never wrapped in an Error here; they
// are plain bool/nil returns at the call site.
package errs

import (
	"fmt"

	"github.com/metalls/metalls/internal/types"
)

// Kind is the closed set of error kinds a component can raise.
type Kind string

const (
	KindCompilerMissing  Kind = "compiler_missing"
	KindSubprocessTimeout Kind = "subprocess_timeout"
	KindFormatterFailure  Kind = "formatter_failure"
	KindConfiguration     Kind = "configuration"
	KindIO                Kind = "io"
)

// Error is the typed error every fallible component operation returns.
// It wraps an underlying error (if any) and carries enough context to
// render a client-facing diagnostic or LSP error without the caller
// re-deriving it.
type Error struct {
	Kind   Kind
	Path   types.Path
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Path != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Detail, e.Path, e.Err)
		}
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Detail, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind.
func New(kind Kind, path types.Path, detail string, err error) *Error {
	return &Error{Kind: kind, Path: path, Detail: detail, Err: err}
}

// CompilerMissing reports that the platform Metal compiler (or SDK) could
// not be located.
func CompilerMissing(path types.Path, detail string) *Error {
	return New(KindCompilerMissing, path, detail, nil)
}

// Timeout reports that a subprocess call exceeded its deadline.
func Timeout(path types.Path, detail string) *Error {
	return New(KindSubprocessTimeout, path, detail, nil)
}

// FormatterFailure reports that the external formatter failed or produced
// no usable output.
func FormatterFailure(path types.Path, detail string, err error) *Error {
	return New(KindFormatterFailure, path, detail, err)
}

// Configuration reports a configuration key that could not be applied.
// Config.Validate returns one for the first offending key; it does not
// replace the offending value with that key's default.
func Configuration(detail string, err error) *Error {
	return New(KindConfiguration, "", detail, err)
}
