package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCodeForCliErrorUsesItsOwnCode(t *testing.T) {
	assert.Equal(t, 3, exitCodeFor(&cliError{code: 3, err: errors.New("boom")}))
	assert.Equal(t, 1, exitCodeFor(&cliError{code: 1, err: errors.New("would change")}))
}

func TestExitCodeForPlainErrorDefaultsToOne(t *testing.T) {
	assert.Equal(t, 1, exitCodeFor(errors.New("unexpected")))
}

func TestValidateFormatPathsRejectsUnsupportedExtension(t *testing.T) {
	err := validateFormatPaths([]string{"a.metal", "notes.txt"})
	require.Error(t, err)
	assert.Equal(t, 2, exitCodeFor(err))
}

func TestValidateFormatPathsAcceptsKnownExtensions(t *testing.T) {
	err := validateFormatPaths([]string{"a.metal", "b.h", "c.hpp", "d.metalh"})
	assert.NoError(t, err)
}
