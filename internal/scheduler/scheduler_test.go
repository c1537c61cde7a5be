package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/metalls/metalls/internal/types"
)

func newRequest(kind types.RequestKind, priority types.Priority, path string) *types.Request {
	ctx, cancel := context.WithCancel(context.Background())
	return &types.Request{Kind: kind, Priority: priority, Path: types.Path(path), Ctx: ctx, Cancel: cancel}
}

func TestInteractiveAndBackgroundRequestsBothRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	var order []string
	done := make(chan struct{}, 2)

	s := New(Config{WorkerThreads: 1, DebounceMs: 1}, func(ctx context.Context, req *types.Request) {
		mu.Lock()
		order = append(order, string(req.Path))
		mu.Unlock()
		done <- struct{}{}
	})
	defer s.Close()

	s.Submit(newRequest(types.RequestIndexFile, types.PriorityBackground, "/bg.metal"))
	s.Submit(newRequest(types.RequestHover, types.PriorityInteractive, "/hover.metal"))

	<-done
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
}

func TestDebounceCoalescesRapidOnChangeRequests(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls int32
	done := make(chan struct{})
	s := New(Config{WorkerThreads: 1, DebounceMs: 20}, func(ctx context.Context, req *types.Request) {
		atomic.AddInt32(&calls, 1)
		close(done)
	})
	defer s.Close()

	for i := 0; i < 5; i++ {
		s.Submit(newRequest(types.RequestDiagnose, types.PriorityOnChange, "/a.metal"))
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOnSaveDiagnoseIsNeverDebounced(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls int32
	s := New(Config{WorkerThreads: 1, DebounceMs: 500}, func(ctx context.Context, req *types.Request) {
		atomic.AddInt32(&calls, 1)
	})
	defer s.Close()

	for i := 0; i < 3; i++ {
		req := newRequest(types.RequestDiagnose, types.PriorityOnChange, "/a.metal")
		req.OnSave = true
		s.Submit(req)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 3 }, time.Second, 5*time.Millisecond)
}

func TestInteractiveSubmitBlocksInsteadOfDroppingWhenQueueIsFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	block := make(chan struct{})
	var cancelled int32
	s := New(Config{WorkerThreads: 1}, func(ctx context.Context, req *types.Request) {
		<-block
	})
	defer s.Close()

	// One request occupies the single worker slot (blocked in the
	// handler); one more is popped by the dispatcher but stuck waiting
	// for that slot; the rest fill the interactive channel to capacity.
	// Each Submit runs in its own goroutine so the test itself never
	// blocks on the fill, even if it races ahead of the dispatcher.
	var submitted int32
	for i := 0; i < queueDepth+2; i++ {
		req := newRequest(types.RequestHover, types.PriorityInteractive, "/held.metal")
		cancel := req.Cancel
		req.Cancel = func() {
			atomic.AddInt32(&cancelled, 1)
			cancel()
		}
		go func(r *types.Request) {
			s.Submit(r)
			atomic.AddInt32(&submitted, 1)
		}(req)
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&submitted) == int32(queueDepth+2) }, 2*time.Second, 5*time.Millisecond)

	overflow := newRequest(types.RequestHover, types.PriorityInteractive, "/overflow.metal")
	submitDone := make(chan struct{})
	go func() {
		s.Submit(overflow)
		close(submitDone)
	}()

	select {
	case <-submitDone:
		t.Fatal("Submit returned before a slot was free; the full queue should have blocked it")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&cancelled), "a full interactive queue must never drop-cancel an older request")

	close(block)
	select {
	case <-submitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("overflow submit never unblocked once the queue drained")
	}
}

func TestCancelledRequestIsSkipped(t *testing.T) {
	defer goleak.VerifyNone(t)

	var ran int32
	s := New(Config{WorkerThreads: 1}, func(ctx context.Context, req *types.Request) {
		atomic.AddInt32(&ran, 1)
	})
	defer s.Close()

	req := newRequest(types.RequestHover, types.PriorityInteractive, "/a.metal")
	req.Cancel()
	s.Submit(req)

	other := newRequest(types.RequestHover, types.PriorityInteractive, "/b.metal")
	done := make(chan struct{})
	s2 := New(Config{WorkerThreads: 1}, func(ctx context.Context, r *types.Request) { close(done) })
	defer s2.Close()
	s2.Submit(other)
	<-done

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
}
