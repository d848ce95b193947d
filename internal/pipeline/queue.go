package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/framerelay/internal/metrics"
	"github.com/user/framerelay/internal/types"
)

// Queue feeds capture events to the processor with a global concurrency
// bound. Events start in arrival order but run independently; there is no
// cross-event ordering guarantee once started.
type Queue struct {
	intake    chan *types.Record
	semaphore *semaphore.Weighted
	processor func(context.Context, *types.Record) error

	// pending counts events accepted but not yet finished, queued ones
	// included.
	pending atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue creates a Queue that allows up to maxConcurrent events to be
// processed simultaneously.
func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		intake:    make(chan *types.Record, 256),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context and dispatcher. Must be called
// before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.wg.Add(1)
	go q.dispatch()
}

// Stop cancels the queue context and waits for in-flight processors to
// finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

// Enqueue adds a record to the intake buffer. Returns an error when the
// buffer is full.
func (q *Queue) Enqueue(record *types.Record) error {
	select {
	case q.intake <- record:
		q.pending.Add(1)
		return nil
	default:
		return fmt.Errorf("queue full, rejecting event %s", record.Event.ID)
	}
}

// dispatch drains the intake, acquiring a semaphore slot before handing
// each record to its own worker goroutine.
func (q *Queue) dispatch() {
	defer q.wg.Done()
	for {
		select {
		case record := <-q.intake:
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				q.pending.Add(-1)
				return
			}
			q.wg.Add(1)
			go q.process(record)
		case <-q.ctx.Done():
			return
		}
	}
}

func (q *Queue) process(record *types.Record) {
	defer q.wg.Done()
	defer q.semaphore.Release(1)
	defer q.pending.Add(-1)

	if q.processor == nil {
		return
	}
	metrics.Inflight.Inc()
	defer metrics.Inflight.Dec()

	if err := q.processor(q.ctx, record); err != nil {
		slog.Error("event processing failed", "event_id", record.Event.ID, "error", err)
	}
}

// WaitIdle blocks until every accepted event has finished, or the timeout
// expires. Returns true if idle.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.pending.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// SetProcessor sets the function invoked for each dequeued record.
func (q *Queue) SetProcessor(fn func(context.Context, *types.Record) error) {
	q.processor = fn
}
