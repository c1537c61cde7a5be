// Package scheduler dispatches types.Request values through a bounded
// worker pool, honoring three priority classes and debouncing bursts of
// same-path work the way a file watcher coalesces rapid edit events.
package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/metalls/metalls/internal/types"
)

// Handler runs one dispatched request. It must respect ctx cancellation
// at its own cooperative checkpoints.
type Handler func(ctx context.Context, req *types.Request)

const queueDepth = 256

// Scheduler owns the three priority queues, the debounce timers, and the
// bounded worker semaphore. Interactive work is never debounced; OnChange
// Diagnose work that is not on-save is debounced per-path, other OnChange
// work is queued directly; Background work is neither debounced nor
// prioritized over the other two classes.
type Scheduler struct {
	workers   *semaphore.Weighted
	formatter *semaphore.Weighted

	interactive chan *types.Request
	onChange    chan *types.Request
	background  chan *types.Request

	handler Handler

	debounce time.Duration

	mu      sync.Mutex
	timers  map[types.Path]*time.Timer
	pending map[types.Path]*types.Request
	nextID  uint64

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Config controls pool sizing and debounce behavior.
type Config struct {
	WorkerThreads     int
	FormattingThreads int
	DebounceMs        int
}

// New creates a Scheduler and starts its dispatcher loop. Call Close to
// stop the dispatcher and release any pending debounce timers.
func New(cfg Config, handler Handler) *Scheduler {
	workers := cfg.WorkerThreads
	if workers <= 0 {
		workers = 1
	}
	formatting := cfg.FormattingThreads
	if formatting <= 0 {
		formatting = 1
	}
	debounce := time.Duration(cfg.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		workers:     semaphore.NewWeighted(int64(workers)),
		formatter:   semaphore.NewWeighted(int64(formatting)),
		interactive: make(chan *types.Request, queueDepth),
		onChange:    make(chan *types.Request, queueDepth),
		background:  make(chan *types.Request, queueDepth),
		handler:     handler,
		debounce:    debounce,
		timers:      make(map[types.Path]*time.Timer),
		pending:     make(map[types.Path]*types.Request),
		cancel:      cancel,
	}
	s.wg.Add(1)
	go s.run(ctx)
	return s
}

// Close stops accepting new dispatch cycles and cancels outstanding
// debounce timers. In-flight handler invocations are not interrupted.
func (s *Scheduler) Close() {
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.mu.Unlock()
}

// Submit enqueues req for dispatch according to its Priority. OnChange
// Diagnose requests with OnSave == false are debounced per path: a new
// submission for the same path within the debounce window replaces the
// pending one and its Cancel is invoked immediately. OnSave requests,
// other OnChange kinds, and Interactive and Background requests are never
// debounced. OnChange and Background
// queues apply a drop-oldest backpressure policy: if a queue is full, the
// oldest queued request for that class is cancelled and dropped to make
// room. Interactive requests are never dropped this way — Submit blocks
// until a slot opens or the request's own context is done, per the
// invariant that interactive work may be delayed but never discarded.
func (s *Scheduler) Submit(req *types.Request) {
	if req.Kind == types.RequestDiagnose && req.Priority == types.PriorityOnChange && !req.OnSave {
		s.debounceSubmit(req)
		return
	}
	s.enqueue(req)
}

func (s *Scheduler) debounceSubmit(req *types.Request) {
	s.mu.Lock()
	if prev, ok := s.pending[req.Path]; ok {
		if prev.Cancel != nil {
			prev.Cancel()
		}
		if t, ok := s.timers[req.Path]; ok {
			t.Stop()
		}
	}
	s.pending[req.Path] = req
	s.timers[req.Path] = time.AfterFunc(s.debounce, func() { s.flush(req.Path) })
	s.mu.Unlock()
}

func (s *Scheduler) flush(path types.Path) {
	s.mu.Lock()
	req, ok := s.pending[path]
	delete(s.pending, path)
	delete(s.timers, path)
	s.mu.Unlock()
	if ok {
		s.enqueue(req)
	}
}

func (s *Scheduler) enqueue(req *types.Request) {
	if req.Priority == types.PriorityInteractive {
		// Interactive requests are never dropped, only delayed: block on
		// the send until a slot opens up, or the caller's own context gives
		// up waiting.
		select {
		case s.interactive <- req:
		case <-req.Ctx.Done():
			if req.Cancel != nil {
				req.Cancel()
			}
		}
		return
	}

	var q chan *types.Request
	if req.Priority == types.PriorityOnChange {
		q = s.onChange
	} else {
		q = s.background
	}

	select {
	case q <- req:
		return
	default:
	}

	select {
	case dropped := <-q:
		if dropped.Cancel != nil {
			dropped.Cancel()
		}
	default:
	}
	select {
	case q <- req:
	default:
		if req.Cancel != nil {
			req.Cancel()
		}
	}
}

// run is the dispatcher goroutine: it always prefers Interactive work
// over OnChange work over Background work, so a burst of background
// indexing never starves a hover request.
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	for {
		req := s.next(ctx)
		if req == nil {
			return
		}
		if req.Cancelled() {
			continue
		}
		if err := s.workers.Acquire(ctx, 1); err != nil {
			if req.Cancel != nil {
				req.Cancel()
			}
			continue
		}
		s.wg.Add(1)
		go func(r *types.Request) {
			defer s.wg.Done()
			defer s.workers.Release(1)
			s.handler(r.Ctx, r)
		}(req)
	}
}

func (s *Scheduler) next(ctx context.Context) *types.Request {
	select {
	case req := <-s.interactive:
		return req
	default:
	}
	select {
	case req := <-s.onChange:
		return req
	default:
	}
	select {
	case req := <-s.background:
		return req
	case req := <-s.interactive:
		return req
	case req := <-s.onChange:
		return req
	case <-ctx.Done():
		return nil
	}
}

// AcquireFormatter blocks until a formatter slot is available, for
// components (internal/formatting) whose subprocess spawns should not
// compete with the general worker pool.
func (s *Scheduler) AcquireFormatter(ctx context.Context) error {
	return s.formatter.Acquire(ctx, 1)
}

// ReleaseFormatter releases a slot acquired with AcquireFormatter.
func (s *Scheduler) ReleaseFormatter() {
	s.formatter.Release(1)
}

// NextID returns a monotonically increasing request ID, convenient for
// callers constructing types.Request values.
func (s *Scheduler) NextID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID
}
