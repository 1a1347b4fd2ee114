// Package queue hands batches of events from producers to the single
// consumer that feeds the encounter engine.
//
// Delivery is FIFO: a batch is enqueued atomically, so events of concurrent
// producers never interleave inside a batch.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/fightlog/internal/domain/model"
	"github.com/okian/fightlog/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 100000
)

// Event is the payload type flowing through the queue.
type Event = model.Event

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds one event. It returns false when the queue is full or
	// closed.
	Enqueue(ctx context.Context, e Event) bool

	// EnqueueBatch adds all events or none of them.
	EnqueueBatch(ctx context.Context, events []Event) error

	// Dequeue returns the channel events are delivered on, in enqueue
	// order. Every call returns the same channel, which is closed once the
	// queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Event

	// Len returns the current number of queued events.
	Len(ctx context.Context) int

	// Close stops accepting events.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan Event
	capacity int

	mu     sync.Mutex
	closed bool

	out  chan Event
	once sync.Once
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds an event to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) bool {
	return q.EnqueueBatch(ctx, []Event{e}) == nil
}

// EnqueueBatch adds events atomically.
func (q *InMemoryQueue) EnqueueBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		q.reject("context_cancelled")
		return fmt.Errorf("enqueue: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.reject("closed")
		return ErrQueueClosed
	}
	if len(q.events)+len(events) > q.capacity {
		q.reject("queue_full")
		return fmt.Errorf("%w: %d queued, %d offered, capacity %d", ErrQueueFull, len(q.events), len(events), q.capacity)
	}

	// The capacity check under the lock guarantees these sends never block.
	for _, e := range events {
		q.events <- e
		metrics.RecordQueueEnqueue()
	}
	q.observe()
	return nil
}

func (q *InMemoryQueue) reject(reason string) {
	metrics.RecordQueueEnqueueError(reason)
	metrics.RecordErrorByComponent("queue", reason)
}

func (q *InMemoryQueue) observe() {
	size := len(q.events)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}

// Dequeue returns the delivery channel. The forwarding goroutine stops when
// the queue is drained after Close or when the first caller's ctx is done.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	q.once.Do(func() {
		q.out = make(chan Event)
		go func() {
			defer close(q.out)
			for event := range q.events {
				select {
				case q.out <- event:
					metrics.RecordQueueDequeue()
					q.observe()
				case <-ctx.Done():
					return
				}
			}
		}()
	})
	return q.out
}

// Len returns the current number of queued events.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.observe()
	return len(q.events)
}

// Capacity returns the maximum number of queued events.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close gracefully shuts down the queue. Events already queued are still
// delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
