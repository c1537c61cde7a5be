// Package store is the exclusive owner of file text and parse trees,
// keyed by canonical path. It hands out Snapshots as immutable values
// and enforces the monotone version guard — an upsert with version <=
// current is rejected.
package store

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/metalls/metalls/internal/types"
)

// RefCounter reports how many inbound include edges a path currently has.
// internal/include implements this; a closed file may only be evicted
// once it is both closed and unreferenced.
type RefCounter interface {
	InboundCount(path types.Path) int
}

type entry struct {
	mu       sync.Mutex
	snapshot types.Snapshot
	closed   bool
	present  bool
}

// Store owns canonical file contents keyed by absolute path.
type Store struct {
	mu      sync.RWMutex
	entries map[types.Path]*entry
	refs    RefCounter
}

// New creates an empty Store. refs may be nil until the include graph is
// wired in with SetRefCounter; while it is nil every path counts as
// unreferenced, so Close evicts immediately.
func New(refs RefCounter) *Store {
	return &Store{entries: make(map[types.Path]*entry), refs: refs}
}

// SetRefCounter wires the include graph in after construction, breaking
// the store/include initialization cycle.
func (s *Store) SetRefCounter(refs RefCounter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs = refs
}

func (s *Store) entryFor(path types.Path) *entry {
	s.mu.RLock()
	e, ok := s.entries[path]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[path]; ok {
		return e
	}
	e = &entry{}
	s.entries[path] = e
	return e
}

// Upsert creates or updates the snapshot for path. If version is not
// strictly greater than the current snapshot's version, the upsert is
// rejected and the current snapshot is returned unchanged along with
// ok=false.
func (s *Store) Upsert(path types.Path, version uint64, text []byte) (types.Snapshot, bool) {
	snap, ok, _ := s.upsert(path, version, text)
	return snap, ok
}

// UpsertChanged behaves like Upsert but also reports whether the text
// differs from what was already stored, via a cheap xxhash comparison
// rather than a full byte-for-byte diff.
func (s *Store) UpsertChanged(path types.Path, version uint64, text []byte) (snap types.Snapshot, ok bool, changed bool) {
	return s.upsert(path, version, text)
}

func (s *Store) upsert(path types.Path, version uint64, text []byte) (types.Snapshot, bool, bool) {
	e := s.entryFor(path)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.present && version <= e.snapshot.Version {
		return e.snapshot, false, false
	}

	hash := xxhash.Sum64(text)
	changed := !e.present || hash != e.snapshot.Hash
	e.snapshot = types.Snapshot{Path: path, Version: version, Text: text, Hash: hash}
	e.present = true
	e.closed = false
	return e.snapshot, true, changed
}

// SetTree attaches a parsed tree to the current snapshot for path,
// provided the snapshot version has not moved on since version was
// computed (a racing newer Upsert wins and this call is a no-op).
func (s *Store) SetTree(path types.Path, version uint64, tree any) {
	e := s.entryFor(path)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.present && e.snapshot.Version == version {
		e.snapshot.Tree = tree
	}
}

// Get returns the current snapshot for path, if any.
func (s *Store) Get(path types.Path) (types.Snapshot, bool) {
	e := s.entryFor(path)
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.present {
		return types.Snapshot{}, false
	}
	return e.snapshot, true
}

// Close marks path as closed by the editor. The snapshot is evicted
// immediately if there are no inbound include edges; otherwise it is kept
// alive for cross-file resolution until the last referencing file is
// reindexed without the edge.
func (s *Store) Close(path types.Path) {
	e := s.entryFor(path)
	e.mu.Lock()
	e.closed = true
	shouldEvict := s.refs == nil || s.refs.InboundCount(path) == 0
	e.mu.Unlock()

	if shouldEvict {
		s.evict(path)
	}
}

// ReleaseIfUnreferenced re-checks eviction eligibility for path. The
// include graph calls this after removing an edge so that a header closed
// earlier, but kept alive only by that edge, is finally evicted.
func (s *Store) ReleaseIfUnreferenced(path types.Path) {
	e := s.entryFor(path)
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if !closed {
		return
	}
	if s.refs == nil || s.refs.InboundCount(path) == 0 {
		s.evict(path)
	}
}

func (s *Store) evict(path types.Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, path)
}

// Len returns the number of paths currently tracked, for tests and
// diagnostics.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
