package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalls/metalls/internal/config"
	"github.com/metalls/metalls/internal/types"
)

func TestParseOutputErrorLine(t *testing.T) {
	diags := parseOutput("shader.metal:10:5: error: use of undeclared identifier 'foo'")
	require.Len(t, diags, 1)
	assert.Equal(t, types.Path("shader.metal"), diags[0].Path)
	assert.Equal(t, uint32(9), diags[0].Range.StartLine)
	assert.Equal(t, uint32(4), diags[0].Range.StartColumn)
	assert.Equal(t, types.SeverityError, diags[0].Severity)
}

func TestParseOutputWarningLine(t *testing.T) {
	diags := parseOutput("/tmp/shader.metal:3:12: warning: unused variable 'x'")
	require.Len(t, diags, 1)
	assert.Equal(t, types.SeverityWarning, diags[0].Severity)
	assert.Equal(t, uint32(2), diags[0].Range.StartLine)
	assert.Equal(t, uint32(11), diags[0].Range.StartColumn)
}

func TestParseOutputNoteAttachesToPreviousDiagnostic(t *testing.T) {
	diags := parseOutput("shader.metal:1:1: error: redefinition of 'x'\nshader.metal:1:1: note: previous definition is here")
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "redefinition of 'x'")
	assert.Contains(t, diags[0].Message, "previous definition is here")
}

func TestParseOutputNoteWithoutPriorDiagnosticIsDiscarded(t *testing.T) {
	diags := parseOutput("shader.metal:1:1: note: orphan note")
	assert.Empty(t, diags)
}

func TestParseOutputCaretLineWidensRange(t *testing.T) {
	diags := parseOutput("shader.metal:1:5: error: bad token\n    ^~~~\n")
	require.Len(t, diags, 1)
	assert.Equal(t, uint32(4), diags[0].Range.StartColumn)
	assert.Equal(t, uint32(8), diags[0].Range.EndColumn)
}

func TestParseOutputIgnoresUnrelatedLines(t *testing.T) {
	diags := parseOutput("some random compiler banner\n")
	assert.Empty(t, diags)
}

func TestEffectiveFlagsInjectsMacosDefineByDefault(t *testing.T) {
	flags := effectiveFlags(config.Compiler{ExtraFlags: []string{"-std=metal3.1"}, Platform: config.PlatformAuto})
	assert.Equal(t, []string{"-std=metal3.1", macosDefine}, flags)
}

func TestEffectiveFlagsInjectsIOSDefineForIOSPlatform(t *testing.T) {
	flags := effectiveFlags(config.Compiler{Platform: config.PlatformIOS})
	assert.Equal(t, []string{iosDefine}, flags)
}

func TestEffectiveFlagsNoneInjectsNoDefine(t *testing.T) {
	flags := effectiveFlags(config.Compiler{ExtraFlags: []string{"-std=metal3.1"}, Platform: config.PlatformNone})
	assert.Equal(t, []string{"-std=metal3.1"}, flags)
}

func TestEffectiveFlagsUserDefineSuppressesInjection(t *testing.T) {
	flags := effectiveFlags(config.Compiler{ExtraFlags: []string{"-D__METAL_IOS__"}, Platform: config.PlatformMacOS})
	assert.Equal(t, []string{"-D__METAL_IOS__"}, flags)
}

func TestEffectiveFlagsTargetFlagSuppressesInjection(t *testing.T) {
	flags := effectiveFlags(config.Compiler{ExtraFlags: []string{"-target", "air64-apple-ios17.0"}, Platform: config.PlatformAuto})
	assert.Equal(t, []string{"-target", "air64-apple-ios17.0"}, flags)
}
