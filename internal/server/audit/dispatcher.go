package audit

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/taskboard/internal/logging"
)

// DefaultBuffer is the queue length used when NewDispatcher gets n <= 0.
const DefaultBuffer = 256

// Dispatcher is a Recorder that hands events to a Sink on a background
// goroutine. When the queue is full the event is dropped and logged.
type Dispatcher struct {
	sink   Sink
	log    logging.Logger
	queue  chan Event
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the delivery goroutine. Call Close to stop it.
func NewDispatcher(sink Sink, log logging.Logger, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	d := &Dispatcher{
		sink:  sink,
		log:   log.With("module", "audit"),
		queue: make(chan Event, buffer),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		if err := d.sink.Publish(context.Background(), e); err != nil {
			d.log.Error(context.Background(), "audit publish failed", "kind", string(e.Kind), "error", err)
		}
	}
}

// Record enqueues e without blocking.
func (d *Dispatcher) Record(ctx context.Context, e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn(ctx, "audit event after close", "kind", string(e.Kind))
		return
	}
	select {
	case d.queue <- e:
	default:
		d.log.Warn(ctx, "audit queue full, event dropped", "kind", string(e.Kind))
	}
}

// Close stops accepting events and waits until queued ones are delivered
// or ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
