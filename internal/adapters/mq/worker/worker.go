// Package worker drains the event queue into the encounter engine.
//
// Encounter reconstruction depends on event order, so there is exactly one
// consumer per queue.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/okian/fightlog/internal/domain/model"
	"github.com/okian/fightlog/pkg/logger"
	"github.com/okian/fightlog/pkg/metrics"
)

// Event is what the worker reads off the queue.
type Event = model.Event

// Handler consumes events in delivery order.
type Handler interface {
	HandleEvent(ctx context.Context, ev model.Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev model.Event)

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, ev model.Event) { f(ctx, ev) }

// Queue defines how the worker receives events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes events until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called
	// or the queue is drained and closed.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the loop to exit.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker on top of a Queue.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	name    string

	processed atomic.Int64

	shutdown chan struct{}
	stopped  atomic.Bool
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, handler Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		handler:  handler,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.OrDiscard("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	w.logger.Info(ctx, "worker started")
	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case ev, ok := <-events:
			if !ok {
				w.logger.Info(ctx, "queue drained", logger.Int64("processed", w.processed.Load()))
				return
			}
			w.process(ctx, ev)
		}
	}
}

// process hands one event to the handler. A panicking handler loses the
// event but not the worker.
func (w *InMemoryWorker) process(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("worker", "handler_panic")
			w.logger.Error(ctx, "handler panicked",
				logger.String("event.kind", string(ev.Kind())),
				logger.Time("event.at", ev.Time()),
				logger.Any("panic", r),
			)
		}
	}()
	w.handler.HandleEvent(ctx, ev)
	w.processed.Add(1)
}

// Processed returns how many events were handled.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Shutdown stops the worker. Calling it more than once is safe.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	if w.stopped.CompareAndSwap(false, true) {
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
