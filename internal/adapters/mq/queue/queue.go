// Package queue is an in-process bounded event queue. It stands in for the
// message broker in development: the sink chain publishes into it and the
// worker pool drains it into the store.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/adrec/internal/domain/model"
	"github.com/okian/adrec/pkg/metrics"
)

const defaultQueueCapacity = 10000

// Event represents the payload type flowing through the queue.
type Event = model.Event

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event; false means the queue was full or closed.
	Enqueue(ctx context.Context, e Event) bool
	// Dequeue streams events until the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Event
	Len(ctx context.Context) int
	// Close stops intake. Buffered events are still delivered by Dequeue.
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan Event
	capacity int
	mu       sync.RWMutex
	closed   bool

	// held keeps events a cancelled Dequeue had taken but not handed over.
	heldMu sync.Mutex
	held   []Event
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.observeDepth()
	return q
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Enqueue adds an event to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) bool { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	return q.offer(ctx, e) == nil
}

// Publish enqueues the event carried by rec. It never blocks.
func (q *InMemoryQueue) Publish(ctx context.Context, rec model.Record) error {
	return q.offer(ctx, rec.Event())
}

// Connected reports whether the queue still accepts events.
func (q *InMemoryQueue) Connected(context.Context) bool {
	return !q.IsClosed()
}

func (q *InMemoryQueue) offer(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: see Enqueue
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	// The read lock keeps Close from closing the channel mid-send.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.reject("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		q.reject("context_cancelled")
		return fmt.Errorf("%w: %w", ErrFull, err)
	}

	select {
	case q.events <- e:
		metrics.RecordQueueEnqueue()
		q.observeDepth()
		return nil
	default:
		q.reject("queue_full")
		return ErrFull
	}
}

func (q *InMemoryQueue) reject(reason string) {
	metrics.RecordQueueEnqueueError()
	metrics.RecordErrorByComponent("queue", reason)
}

func (q *InMemoryQueue) observeDepth() {
	size := len(q.events) + q.heldLen()
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}

// Dequeue returns a channel that will receive events as they become available.
// An event taken off the queue when ctx ends is kept for the next Dequeue.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			e, ok := q.takeHeld()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case e, ok = <-q.events:
					if !ok {
						return
					}
				}
			}
			select {
			case out <- e:
				metrics.RecordQueueDequeue()
				q.observeDepth()
			case <-ctx.Done():
				q.hold(e)
				return
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) takeHeld() (Event, bool) {
	q.heldMu.Lock()
	defer q.heldMu.Unlock()
	if len(q.held) == 0 {
		return Event{}, false
	}
	e := q.held[0]
	q.held = q.held[1:]
	return e, true
}

func (q *InMemoryQueue) hold(e Event) { //nolint:gocritic // hugeParam: see Enqueue
	q.heldMu.Lock()
	q.held = append(q.held, e)
	q.heldMu.Unlock()
}

func (q *InMemoryQueue) heldLen() int {
	q.heldMu.Lock()
	defer q.heldMu.Unlock()
	return len(q.held)
}

// Len returns the current number of queued events.
func (q *InMemoryQueue) Len(context.Context) int {
	q.observeDepth()
	return len(q.events) + q.heldLen()
}

// Close stops intake. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		close(q.events)
		q.closed = true
	}
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
