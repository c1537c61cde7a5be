// Package config holds the server's closed configuration schema: the
// object delivered over workspace/didChangeConfiguration, and the
// separate metalfmt.toml style file. Both are validated and given smart
// defaults before any other component reads them.
package config

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/metalls/metalls/internal/errs"
)

// Config is the top-level object, keyed "metalls" in the client's
// configuration payload.
type Config struct {
	Formatting  Formatting  `json:"formatting"`
	Diagnostics Diagnostics `json:"diagnostics"`
	Indexing    Indexing    `json:"indexing"`
	Compiler    Compiler    `json:"compiler"`
	Logging     Logging     `json:"logging"`
	ThreadPool  ThreadPool  `json:"threadPool"`
}

type Formatting struct {
	Enabled bool     `json:"enabled"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

type DiagnosticsScope string

const (
	ScopeOpenFiles DiagnosticsScope = "openFiles"
	ScopeWorkspace DiagnosticsScope = "workspace"
)

type Diagnostics struct {
	OnType     bool             `json:"onType"`
	OnSave     bool             `json:"onSave"`
	DebounceMs int              `json:"debounceMs"`
	Scope      DiagnosticsScope `json:"scope"`
}

type Indexing struct {
	Enabled              bool     `json:"enabled"`
	Concurrency          int      `json:"concurrency"`
	MaxFileSizeKb        int      `json:"maxFileSizeKb"`
	ProjectGraphDepth    int      `json:"projectGraphDepth"`
	ProjectGraphMaxNodes int      `json:"projectGraphMaxNodes"`
	ExcludePaths         []string `json:"excludePaths"`
}

type Platform string

const (
	PlatformAuto   Platform = "auto"
	PlatformMacOS  Platform = "macos"
	PlatformIOS    Platform = "ios"
	PlatformTVOS   Platform = "tvos"
	PlatformWatch  Platform = "watchos"
	PlatformXROS   Platform = "xros"
	PlatformNone   Platform = "none"
)

type Compiler struct {
	IncludePaths []string `json:"includePaths"`
	ExtraFlags   []string `json:"extraFlags"`
	Platform     Platform `json:"platform"`
}

type LogLevel string

const (
	LogError LogLevel = "error"
	LogWarn  LogLevel = "warn"
	LogInfo  LogLevel = "info"
	LogDebug LogLevel = "debug"
	LogTrace LogLevel = "trace"
)

type Logging struct {
	Level LogLevel `json:"level"`
}

// ThreadPool changes require a session restart (see RequiresRestart).
type ThreadPool struct {
	WorkerThreads     int `json:"workerThreads"`
	FormattingThreads int `json:"formattingThreads"`
}

// Default returns the configuration a freshly-started session assumes
// before the client sends its first didChangeConfiguration.
func Default() Config {
	return Config{
		Formatting: Formatting{Enabled: true, Command: "clang-format", Args: nil},
		Diagnostics: Diagnostics{
			OnType:     true,
			OnSave:     true,
			DebounceMs: 500,
			Scope:      ScopeOpenFiles,
		},
		Indexing: Indexing{
			Enabled:              true,
			Concurrency:          0,
			MaxFileSizeKb:        2048,
			ProjectGraphDepth:    4,
			ProjectGraphMaxNodes: 256,
		},
		Compiler: Compiler{Platform: PlatformAuto},
		Logging:  Logging{Level: LogInfo},
		ThreadPool: ThreadPool{
			WorkerThreads:     0,
			FormattingThreads: 0,
		},
	}
}

// Parse decodes a didChangeConfiguration payload for the "metalls" key
// on top of Default(), so omitted fields keep their defaults rather
// than zero-valuing.
func Parse(raw json.RawMessage) (Config, error) {
	cfg := Default()
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding metalls configuration: %w", err)
	}
	return cfg, nil
}

// Validate applies the schema's range checks and resolves zero-means-auto
// thread counts against the host's available parallelism.
func (c *Config) Validate() error {
	if c.Diagnostics.DebounceMs < 0 {
		return errs.Configuration("diagnostics.debounceMs", fmt.Errorf("must be >= 0, got %d", c.Diagnostics.DebounceMs))
	}
	switch c.Diagnostics.Scope {
	case ScopeOpenFiles, ScopeWorkspace, "":
	default:
		return errs.Configuration("diagnostics.scope", fmt.Errorf("must be %q or %q, got %q", ScopeOpenFiles, ScopeWorkspace, c.Diagnostics.Scope))
	}
	if c.Indexing.Concurrency < 0 {
		return errs.Configuration("indexing.concurrency", fmt.Errorf("must be >= 0, got %d", c.Indexing.Concurrency))
	}
	if c.Indexing.ProjectGraphDepth < 0 {
		return errs.Configuration("indexing.projectGraphDepth", fmt.Errorf("must be >= 0, got %d", c.Indexing.ProjectGraphDepth))
	}
	switch c.Compiler.Platform {
	case PlatformAuto, PlatformMacOS, PlatformIOS, PlatformTVOS, PlatformWatch, PlatformXROS, PlatformNone, "":
	default:
		return errs.Configuration("compiler.platform", fmt.Errorf("%q is not one of the recognized values", c.Compiler.Platform))
	}
	switch c.Logging.Level {
	case LogError, LogWarn, LogInfo, LogDebug, LogTrace, "":
	default:
		return errs.Configuration("logging.level", fmt.Errorf("%q is not one of the recognized values", c.Logging.Level))
	}

	if c.Indexing.Concurrency == 0 {
		c.Indexing.Concurrency = max(1, runtime.NumCPU()-1)
	}
	if c.ThreadPool.WorkerThreads == 0 {
		c.ThreadPool.WorkerThreads = max(1, runtime.NumCPU()-1)
	}
	if c.ThreadPool.FormattingThreads == 0 {
		c.ThreadPool.FormattingThreads = 1
	}
	return nil
}

// RequiresRestart reports whether updating from old to new touches a
// field the Design Notes require a session restart to apply.
func RequiresRestart(old, new Config) bool {
	return old.ThreadPool != new.ThreadPool
}
