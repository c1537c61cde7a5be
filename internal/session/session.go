// Package session is the one process-wide object the rest of the server
// builds on: it owns the live configuration, the lazily-discovered SDK
// search paths, and every indexing component (store, index, include
// graph, scheduler, diagnostics/formatting runners, query layer).
// Nothing outside this package may reach for an indexing component as
// an ambient global; every caller is handed a *Session.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/metalls/metalls/internal/config"
	"github.com/metalls/metalls/internal/diagnostics"
	"github.com/metalls/metalls/internal/formatting"
	"github.com/metalls/metalls/internal/include"
	"github.com/metalls/metalls/internal/index"
	"github.com/metalls/metalls/internal/parser"
	"github.com/metalls/metalls/internal/query"
	"github.com/metalls/metalls/internal/scheduler"
	"github.com/metalls/metalls/internal/store"
	"github.com/metalls/metalls/internal/symbols"
	"github.com/metalls/metalls/internal/types"
)

// PublishFunc is called whenever a Diagnose run produces a fresh
// diagnostic set for a path, so the LSP glue can turn it into a
// textDocument/publishDiagnostics notification.
type PublishFunc func(path types.Path, diags []types.Diagnostic)

// Session owns every component for one workspace root. It is created at
// initialize and torn down at shutdown; there is exactly one per server
// process.
type Session struct {
	log     zerolog.Logger
	root    string
	publish PublishFunc

	mu      sync.RWMutex
	cfg     config.Config
	exclude *config.ExcludeMatcher

	sdkMu        sync.Mutex
	sdkDiscovered bool
	sdkPaths     []string

	store  *store.Store
	graph  *include.Graph
	index  *index.Index
	parser *parser.Adapter
	query  *query.Layer

	diag    *diagnostics.Runner
	format  *formatting.Runner
	sched   *scheduler.Scheduler

	workMu sync.Mutex
	work   map[uint64]func(ctx context.Context)
}

// New builds a Session rooted at root with the given starting
// configuration. publish may be nil (diagnostics are then computed but
// never delivered anywhere, useful for the `format` CLI path which never
// runs diagnostics at all).
func New(root string, log zerolog.Logger, cfg config.Config, publish PublishFunc) *Session {
	graph := include.New()
	st := store.New(graph)
	idx := index.New()

	s := &Session{
		log:     log,
		root:    root,
		publish: publish,
		cfg:     cfg,
		exclude: config.NewExcludeMatcher(cfg.Indexing),
		store:   st,
		graph:   graph,
		index:   idx,
		parser:  parser.New(),
		diag:    diagnostics.New(),
		format:  formatting.New(),
		work:    make(map[uint64]func(ctx context.Context)),
	}
	s.query = &query.Layer{
		Index:                idx,
		Graph:                graph,
		ProjectGraphDepth:    cfg.Indexing.ProjectGraphDepth,
		ProjectGraphMaxNodes: cfg.Indexing.ProjectGraphMaxNodes,
		ProjectGraphFallback: true,
	}
	s.sched = scheduler.New(scheduler.Config{
		WorkerThreads:     cfg.ThreadPool.WorkerThreads,
		FormattingThreads: cfg.ThreadPool.FormattingThreads,
		DebounceMs:        cfg.Diagnostics.DebounceMs,
	}, s.dispatch)
	return s
}

// Close stops the scheduler's dispatcher and releases its timers. The
// session is not usable afterward.
func (s *Session) Close() {
	s.sched.Close()
}

// Config returns the session's current configuration.
func (s *Session) Config() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// UpdateConfig applies a new configuration. If the change touches a
// threadPool.* field, RequiresRestart reports true and the caller (the
// LSP glue) is responsible for telling the client to restart; the
// session keeps running under the old thread pool sizing either way,
// since the scheduler cannot be resized in place.
func (s *Session) UpdateConfig(cfg config.Config) (restartRequired bool) {
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	s.exclude = config.NewExcludeMatcher(cfg.Indexing)
	s.query.ProjectGraphDepth = cfg.Indexing.ProjectGraphDepth
	s.query.ProjectGraphMaxNodes = cfg.Indexing.ProjectGraphMaxNodes
	s.mu.Unlock()
	return config.RequiresRestart(old, cfg)
}

func (s *Session) dispatch(ctx context.Context, req *types.Request) {
	s.workMu.Lock()
	fn, ok := s.work[req.ID]
	delete(s.work, req.ID)
	s.workMu.Unlock()
	if !ok {
		return
	}
	fn(ctx)
}

// wrappedCancel ensures a request that is dropped for backpressure, or
// superseded by debounce, also forgets its registered work closure —
// dispatch only deletes the entry when the scheduler actually calls the
// handler, which never happens for a request cancelled before dispatch.
func (s *Session) wrappedCancel(id uint64, cancel context.CancelFunc) context.CancelFunc {
	return func() {
		cancel()
		s.workMu.Lock()
		delete(s.work, id)
		s.workMu.Unlock()
	}
}

// submit enqueues fire-and-forget work (IndexFile, on-type/on-save
// Diagnose) under the given priority; the caller does not wait for it.
func (s *Session) submit(kind types.RequestKind, path types.Path, priority types.Priority, onSave bool, fn func(ctx context.Context)) {
	id := s.sched.NextID()
	ctx, cancel := context.WithCancel(context.Background())
	cancel = s.wrappedCancel(id, cancel)
	s.workMu.Lock()
	s.work[id] = fn
	s.workMu.Unlock()
	s.sched.Submit(&types.Request{ID: id, Kind: kind, Path: path, Ctx: ctx, Cancel: cancel, OnSave: onSave, Priority: priority})
}

// submitSync enqueues work and blocks the caller until it runs, is
// dropped, or ctx is cancelled — the pattern Hover/Definition/Completion
// and the synchronous Format request use to go through the same bounded
// worker pool and priority queues as background indexing without the
// generic types.Request envelope needing a result field of its own.
func submitSync[T any](s *Session, ctx context.Context, kind types.RequestKind, path types.Path, priority types.Priority, fn func(ctx context.Context) T) (T, error) {
	var zero T
	id := s.sched.NextID()
	reqCtx, cancel := context.WithCancel(ctx)
	cancel = s.wrappedCancel(id, cancel)
	defer cancel()

	done := make(chan T, 1)
	s.workMu.Lock()
	s.work[id] = func(ctx context.Context) { done <- fn(ctx) }
	s.workMu.Unlock()

	s.sched.Submit(&types.Request{ID: id, Kind: kind, Path: path, Ctx: reqCtx, Cancel: cancel, Priority: priority})
	select {
	case v := <-done:
		return v, nil
	case <-reqCtx.Done():
		return zero, reqCtx.Err()
	}
}

// IndexFile parses text, extracts declarations, updates the symbol index
// and include graph, and — if diagnostics are enabled — schedules a
// Diagnose run. It returns once the store holds the new snapshot; the
// parse, index and include-graph updates and the Diagnose run (if any)
// happen asynchronously through the scheduler. Editor edits always index
// at OnChange priority.
func (s *Session) IndexFile(path types.Path, version uint64, text []byte, onSave bool) {
	s.indexFile(path, version, text, types.PriorityOnChange, onSave)
}

func (s *Session) indexFile(path types.Path, version uint64, text []byte, priority types.Priority, onSave bool) {
	snap, ok, changed := s.store.UpsertChanged(path, version, text)
	if !ok {
		return
	}
	// A version bump with byte-identical content — a background rescan
	// crossing a file already indexed at a newer version than its own
	// mtime implies, or a client resending its buffer — needs no reparse.
	if !changed {
		cfg := s.Config()
		if cfg.Diagnostics.OnType && !onSave || cfg.Diagnostics.OnSave && onSave {
			s.scheduleDiagnose(path, onSave)
		}
		return
	}

	s.submit(types.RequestIndexFile, path, priority, onSave, func(ctx context.Context) {
		tree, err := s.parser.Parse(ctx, nil, snap.Text)
		if err != nil {
			return
		}
		s.store.SetTree(path, version, tree)

		decls := symbols.Extract(tree, snap.Text, path)
		s.index.Replace(path, decls)

		_, stale := s.graph.Update(path, snap.Text, s.resolveSearchPaths(ctx))
		for _, p := range stale {
			s.store.ReleaseIfUnreferenced(p)
		}

		cfg := s.Config()
		if cfg.Diagnostics.OnType && !onSave || cfg.Diagnostics.OnSave && onSave {
			s.scheduleDiagnose(path, onSave)
		}
	})
}

// CloseFile marks a file closed (didClose); the store decides whether it can
// be evicted immediately based on inbound include edges.
func (s *Session) CloseFile(path types.Path) {
	s.store.Close(path)
}

// DocumentText returns the store's current text for path, for callers
// (textDocument/formatting) that only receive a document identifier on
// the wire and must already have the content from an earlier didOpen or
// didChange.
func (s *Session) DocumentText(path types.Path) ([]byte, bool) {
	snap, ok := s.store.Get(path)
	if !ok {
		return nil, false
	}
	return snap.Text, true
}

// Saved re-runs diagnostics for path against whatever text the store
// already holds, for the common didSave case where the client's save
// notification carries no text of its own (includeText is off).
func (s *Session) Saved(path types.Path) {
	cfg := s.Config()
	if cfg.Diagnostics.OnSave {
		s.scheduleDiagnose(path, true)
	}
}

// ScanWorkspace walks root indexing every .metal/.h/.hpp/.metalh file not
// matched by indexing.excludePaths and not over maxFileSizeKb, at
// Background priority so it yields to interactive and on-change work
// after every file. It stops early if ctx is cancelled or indexing is
// disabled.
func (s *Session) ScanWorkspace(ctx context.Context) error {
	cfg := s.Config()
	if !cfg.Indexing.Enabled {
		return nil
	}
	maxBytes := int64(cfg.Indexing.MaxFileSizeKb) * 1024

	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			if s.exclude.Matches(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isMetalSource(path) || s.exclude.Matches(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil || (maxBytes > 0 && info.Size() > maxBytes) {
			return nil
		}
		text, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		s.indexFile(types.Path(path), 1, text, types.PriorityBackground, false)
		return nil
	})
}

func isMetalSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".metal", ".h", ".hpp", ".metalh":
		return true
	default:
		return false
	}
}

// isHeaderPath reports whether path is a header rather than a
// translation unit the compiler can check on its own.
func isHeaderPath(path types.Path) bool {
	switch strings.ToLower(filepath.Ext(string(path))) {
	case ".h", ".hpp", ".metalh":
		return true
	default:
		return false
	}
}

// headerOwnerDiagnoseCap bounds how many including files runDiagnose will
// compile on a header's behalf.
const headerOwnerDiagnoseCap = 8

func (s *Session) scheduleDiagnose(path types.Path, onSave bool) {
	s.submit(types.RequestDiagnose, path, types.PriorityOnChange, onSave, func(ctx context.Context) {
		s.runDiagnose(ctx, path)
	})
}

// runDiagnose compiles path and publishes the resulting diagnostics. A
// header has no meaningful translation unit of its own, so it is routed
// through runDiagnoseHeader instead of being piped into the compiler
// standalone.
func (s *Session) runDiagnose(ctx context.Context, path types.Path) {
	cfg := s.Config()

	var diags []types.Diagnostic
	if isHeaderPath(path) {
		diags = s.runDiagnoseHeader(ctx, path, cfg)
	} else {
		snap, ok := s.store.Get(path)
		if !ok {
			return
		}
		diags, _ = s.diag.Diagnose(ctx, snap, cfg.Compiler)
	}

	if s.publish != nil {
		s.publish(path, diags)
	}
}

// runDiagnoseHeader finds path's owners (the files that #include it),
// compiles each in turn, and keeps only the diagnostics the compiler
// attributes back to path itself. A header with no known owner yet is
// left undiagnosed rather than fed to the compiler as a bare translation
// unit, which would misreport every undeclared symbol it relies on its
// owner to provide.
func (s *Session) runDiagnoseHeader(ctx context.Context, path types.Path, cfg config.Config) []types.Diagnostic {
	owners := s.graph.OwnersOf(path, headerOwnerDiagnoseCap)
	if len(owners) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var diags []types.Diagnostic
	for _, owner := range owners {
		text, ok := s.ownerText(owner)
		if !ok {
			continue
		}
		ownerDiags, _ := s.diag.Diagnose(ctx, types.Snapshot{Path: owner, Text: text}, cfg.Compiler)
		for _, d := range ownerDiags {
			if d.Path != path {
				continue
			}
			key := fmt.Sprintf("%d:%d:%d:%s", d.Range.StartLine, d.Range.StartColumn, int(d.Severity), d.Message)
			if seen[key] {
				continue
			}
			seen[key] = true
			diags = append(diags, d)
		}
	}
	return diags
}

// ownerText returns the text to compile for an owner path: the store's
// live buffer if it is open, otherwise its on-disk content.
func (s *Session) ownerText(owner types.Path) ([]byte, bool) {
	if snap, ok := s.store.Get(owner); ok {
		return snap.Text, true
	}
	text, err := os.ReadFile(string(owner))
	if err != nil {
		return nil, false
	}
	return text, true
}

// Hover, Definition, and Completion run at interactive priority so a
// burst of background indexing cannot starve them.

func (s *Session) Hover(ctx context.Context, path types.Path, line, column uint32) (query.HoverResult, error) {
	return submitSync(s, ctx, types.RequestHover, path, types.PriorityInteractive, func(ctx context.Context) query.HoverResult {
		snap, ok := s.store.Get(path)
		if !ok {
			return query.HoverResult{}
		}
		return s.query.Hover(snap, line, column)
	})
}

func (s *Session) Definition(ctx context.Context, path types.Path, line, column uint32) ([]types.Declaration, error) {
	return submitSync(s, ctx, types.RequestDefinition, path, types.PriorityInteractive, func(ctx context.Context) []types.Declaration {
		snap, ok := s.store.Get(path)
		if !ok {
			return nil
		}
		return s.query.Definition(snap, line, column)
	})
}

func (s *Session) Completion(ctx context.Context, path types.Path, line, column uint32) ([]query.CompletionItem, error) {
	return submitSync(s, ctx, types.RequestCompletion, path, types.PriorityInteractive, func(ctx context.Context) []query.CompletionItem {
		snap, ok := s.store.Get(path)
		if !ok {
			return nil
		}
		prefix := query.PrefixAt(snap.Text, line, column)
		return s.query.Completion(snap, prefix)
	})
}

// Format resolves the style for path and runs the configured formatter
// over text, returning the formatted text and the minimal edits against
// it. It acquires the scheduler's dedicated formatter slot rather than a
// general worker slot, so formatting never competes with indexing for
// the same concurrency budget.
func (s *Session) Format(ctx context.Context, path types.Path, text []byte) (string, []formatting.Edit, error) {
	cfg := s.Config()
	if !cfg.Formatting.Enabled {
		return string(text), nil, nil
	}

	if err := s.sched.AcquireFormatter(ctx); err != nil {
		return "", nil, err
	}
	defer s.sched.ReleaseFormatter()

	style := formatting.ResolveStyle(string(path))
	snap := types.Snapshot{Path: path, Text: text}
	after, err := s.format.Format(ctx, snap, style, cfg.Formatting)
	if err != nil {
		return "", nil, err
	}
	edits := formatting.Diff(path, string(text), after)
	return after, edits, nil
}

// resolveSearchPaths combines the configured include paths with the
// lazily-discovered SDK system include paths for one #include
// resolution pass.
func (s *Session) resolveSearchPaths(ctx context.Context) include.SearchPaths {
	cfg := s.Config()
	return include.SearchPaths{
		UserPaths: cfg.Compiler.IncludePaths,
		SDKRoots:  s.systemIncludePaths(ctx),
	}
}

// systemIncludePaths runs `xcrun metal -v -E -` once per session and
// caches the search paths parsed from its stderr — the compiler prints
// its "#include <...> search starts here:" block once told to
// preprocess an empty input.
func (s *Session) systemIncludePaths(ctx context.Context) []string {
	s.sdkMu.Lock()
	defer s.sdkMu.Unlock()
	if s.sdkDiscovered {
		return s.sdkPaths
	}
	s.sdkDiscovered = true

	cmd := exec.CommandContext(ctx, "xcrun", "metal", "-v", "-E", "-")
	cmd.Stdin = strings.NewReader("")
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil
	}
	if err := cmd.Start(); err != nil {
		return nil
	}

	var paths []string
	parsing := false
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "#include <...> search starts here:"):
			parsing = true
		case parsing && strings.HasPrefix(line, "End of search list."):
			parsing = false
		case parsing:
			paths = append(paths, line)
		}
	}
	_ = cmd.Wait()

	s.sdkPaths = paths
	s.log.Debug().Strs("paths", paths).Msg("discovered system include paths")
	return paths
}
