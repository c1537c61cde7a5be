package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/metalls/metalls/internal/types"
)

func TestErrorMessageIncludesPathWhenSet(t *testing.T) {
	e := CompilerMissing(types.Path("/a.metal"), "xcrun not found")
	assert.Contains(t, e.Error(), "compiler_missing")
	assert.Contains(t, e.Error(), "/a.metal")
}

func TestErrorMessageOmitsPathWhenUnset(t *testing.T) {
	e := Configuration("bad threadPool.workerThreads", nil)
	assert.NotContains(t, e.Error(), "()")
}

func TestUnwrapExposesWrappedError(t *testing.T) {
	inner := errors.New("exit status 1")
	e := FormatterFailure(types.Path("/b.metal"), "formatter produced no output", inner)
	assert.ErrorIs(t, e, inner)
}
