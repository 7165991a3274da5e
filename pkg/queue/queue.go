// Package queue implements the bounded FIFO shared by every capture source
// and drained by the single persistence worker.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/offlinefirst/activity-recorder/pkg/event"
	"github.com/offlinefirst/activity-recorder/pkg/throttle"
)

// ErrClosed is returned when enqueueing after Close.
var ErrClosed = errors.New("work queue closed")

// Queue is a bounded multi-producer, single-consumer FIFO.
type Queue struct {
	items     chan event.Event
	closed    chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
}

// New returns a queue with the given capacity, raised to the minimum floor.
func New(capacity int) *Queue {
	return &Queue{
		items:  make(chan event.Event, throttle.ClampQueueLimit(capacity)),
		closed: make(chan struct{}),
	}
}

// Enqueue blocks until the event is accepted, the queue closes, or ctx ends.
func (q *Queue) Enqueue(ctx context.Context, ev event.Event) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.items <- ev:
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryEnqueue accepts the event only if space is available right now. A
// rejected event is counted as dropped.
func (q *Queue) TryEnqueue(ev event.Event) bool {
	select {
	case <-q.closed:
		q.dropped.Add(1)
		return false
	default:
	}
	select {
	case q.items <- ev:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Dequeue blocks until an event is available. After Close it keeps returning
// buffered events and reports false once the queue is empty. A cancelled ctx
// also reports false.
func (q *Queue) Dequeue(ctx context.Context) (event.Event, bool) {
	select {
	case ev := <-q.items:
		return ev, true
	default:
	}
	select {
	case ev := <-q.items:
		return ev, true
	case <-q.closed:
		select {
		case ev := <-q.items:
			return ev, true
		default:
			return event.Event{}, false
		}
	case <-ctx.Done():
		return event.Event{}, false
	}
}

// Close stops accepting new events. Buffered events remain available to
// Dequeue. Producers must have stopped before Close is called.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}

// Len reports the number of buffered events.
func (q *Queue) Len() int { return len(q.items) }

// Cap reports the queue capacity.
func (q *Queue) Cap() int { return cap(q.items) }

// Dropped reports how many best-effort events were rejected.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }
