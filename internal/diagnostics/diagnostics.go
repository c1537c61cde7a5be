// Package diagnostics shells out to the platform Metal compiler
// (`xcrun metal`) to turn a file's snapshot text into structured
// diagnostics.
package diagnostics

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/metalls/metalls/internal/config"
	"github.com/metalls/metalls/internal/types"
)

// DefaultTimeout is the subprocess deadline used when the configuration
// does not override it.
const DefaultTimeout = 30 * time.Second

var diagnosticLine = regexp.MustCompile(`^(.*?):(\d+):(\d+):\s*(fatal error|error|warning|note):\s*(.*)$`)
var caretLine = regexp.MustCompile(`^\s*\^~*\s*$`)

const (
	macosDefine = "-D__METAL_MACOS__"
	iosDefine   = "-D__METAL_IOS__"
)

// Runner invokes the Metal compiler to diagnose shader source.
type Runner struct {
	timeout time.Duration
}

// New creates a Runner with the default 30s subprocess timeout.
func New() *Runner {
	return &Runner{timeout: DefaultTimeout}
}

// WithTimeout overrides the subprocess deadline, for tests.
func (r *Runner) WithTimeout(d time.Duration) *Runner {
	return &Runner{timeout: d}
}

// IsAvailable probes whether the Metal compiler toolchain can be found,
// via `xcrun --find metal`.
func (r *Runner) IsAvailable(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "xcrun", "--find", "metal")
	return cmd.Run() == nil
}

// Diagnose compiles snapshot's text through `xcrun metal`, reading the
// snapshot from the subprocess's stdin rather than disk so unsaved edits
// are diagnosed. It never returns a non-nil error for compiler failures —
// those become synthetic diagnostics per the failure-mode table; the
// returned error is reserved for a failure to even spawn the context
// (e.g. ctx already cancelled).
func (r *Runner) Diagnose(ctx context.Context, snap types.Snapshot, cfg config.Compiler) ([]types.Diagnostic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !r.IsAvailable(ctx) {
		return []types.Diagnostic{{
			Path:     snap.Path,
			Severity: types.SeverityError,
			Message:  "Metal compiler not found; install Xcode command line tools or set compiler.platform to \"none\"",
			Source:   "metal-compiler",
		}}, nil
	}

	timeout := r.timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := buildArgs(cfg)
	cmd := exec.CommandContext(runCtx, "xcrun", args...)
	cmd.Stdin = bytes.NewReader(snap.Text)

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	err := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return []types.Diagnostic{{
			Path:     snap.Path,
			Severity: types.SeverityError,
			Message:  fmt.Sprintf("Metal compiler timed out after %s", timeout),
			Source:   "metal-compiler",
		}}, nil
	}

	diags := parseOutput(combined.String())
	for i := range diags {
		if diags[i].Path == "" || diags[i].Path == "<stdin>" {
			diags[i].Path = snap.Path
		}
	}

	if err != nil && len(diags) == 0 {
		exitErr, ok := err.(*exec.ExitError)
		if ok {
			return []types.Diagnostic{{
				Path:     snap.Path,
				Severity: types.SeverityError,
				Message:  fmt.Sprintf("Metal compiler exited with status %d and produced no diagnostics", exitErr.ExitCode()),
				Source:   "metal-compiler",
			}}, nil
		}
		return []types.Diagnostic{{
			Path:     snap.Path,
			Severity: types.SeverityError,
			Message:  fmt.Sprintf("failed to run Metal compiler: %v", err),
			Source:   "metal-compiler",
		}}, nil
	}

	return diags, nil
}

func buildArgs(cfg config.Compiler) []string {
	args := []string{"metal", "-c", "-x", "metal", "-", "-o", "/dev/null", "-fno-color-diagnostics"}
	for _, inc := range cfg.IncludePaths {
		args = append(args, "-I", inc)
	}
	args = append(args, effectiveFlags(cfg)...)
	return args
}

func effectiveFlags(cfg config.Compiler) []string {
	flags := append([]string(nil), cfg.ExtraFlags...)
	if flagsDefinePlatformContext(flags) {
		return flags
	}
	switch cfg.Platform {
	case config.PlatformMacOS, config.PlatformAuto, "":
		return append(flags, macosDefine)
	case config.PlatformIOS:
		return append(flags, iosDefine)
	default:
		return flags
	}
}

func flagsDefinePlatformContext(flags []string) bool {
	for _, f := range flags {
		trimmed := strings.TrimSpace(f)
		lower := strings.ToLower(trimmed)
		if lower == "-target" || lower == "--target" || lower == "-isysroot" || lower == "-sdk" ||
			strings.HasPrefix(lower, "-target=") || strings.HasPrefix(lower, "--target=") ||
			strings.HasPrefix(lower, "-mtargetos=") || strings.HasPrefix(lower, "-isysroot=") ||
			strings.HasPrefix(lower, "-sdk=") {
			return true
		}
		if body, ok := stripDefinePrefix(trimmed); ok && isPlatformMacroName(body) {
			return true
		}
	}
	return false
}

func stripDefinePrefix(flag string) (string, bool) {
	if strings.HasPrefix(flag, "-D") || strings.HasPrefix(flag, "-d") {
		return flag[2:], true
	}
	return "", false
}

func isPlatformMacroName(body string) bool {
	name := body
	if idx := strings.IndexByte(body, '='); idx >= 0 {
		name = body[:idx]
	}
	name = strings.ToUpper(strings.TrimSpace(name))
	return name == "__METAL_MACOS__" || name == "__METAL_IOS__"
}

// parseOutput turns compiler stdout+stderr into Diagnostics. Caret
// underline lines widen the previous diagnostic's range; other non-blank
// lines that don't match the "path:line:col: severity: message" shape are
// attached as a "; "-separated note suffix to the previous diagnostic, or
// discarded when there is none yet.
func parseOutput(output string) []types.Diagnostic {
	var diags []types.Diagnostic
	var lastCol uint32

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := scanner.Text()
		if m := diagnosticLine.FindStringSubmatch(line); m != nil {
			lineNum, _ := strconv.ParseUint(m[2], 10, 32)
			col, _ := strconv.ParseUint(m[3], 10, 32)
			if lineNum > 0 {
				lineNum--
			}
			if col > 0 {
				col--
			}
			lastCol = uint32(col)

			severity := severityFor(m[4])
			if severity == types.SeverityNote {
				if len(diags) > 0 {
					diags[len(diags)-1].Message += "; " + m[5]
				}
				continue
			}

			diags = append(diags, types.Diagnostic{
				Path:     types.Path(m[1]),
				Range:    types.Span{StartLine: uint32(lineNum), StartColumn: uint32(col), EndLine: uint32(lineNum), EndColumn: uint32(col) + 1},
				Severity: severity,
				Message:  m[5],
				Source:   "metal-compiler",
			})
			continue
		}

		if caretLine.MatchString(line) {
			if len(diags) > 0 {
				width := uint32(strings.Count(strings.TrimSpace(line), "~")) + 1
				last := &diags[len(diags)-1]
				last.Range.StartColumn = lastCol
				last.Range.EndColumn = lastCol + width
			}
			continue
		}

		if trimmed := strings.TrimSpace(line); trimmed != "" && len(diags) > 0 {
			diags[len(diags)-1].Message += "; " + trimmed
		}
	}

	return diags
}

func severityFor(word string) types.Severity {
	switch word {
	case "fatal error", "error":
		return types.SeverityError
	case "warning":
		return types.SeverityWarning
	default:
		return types.SeverityNote
	}
}
