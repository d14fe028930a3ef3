package chat

import (
	"context"
	"log/slog"
	"sync"
)

// dispatcher delivers events to the bus in submission order on a single
// goroutine, so publishers never wait for listeners.
type dispatcher struct {
	bus    *EventBus
	queue  []*Event
	wake   chan struct{}
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

func newDispatcher(bus *EventBus) *dispatcher {
	d := &dispatcher{
		bus:  bus,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

// enqueue never blocks. Events enqueued after close are dropped.
func (d *dispatcher) enqueue(event *Event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		slog.Debug("Dropping chat event after close", "event_type", event.Type)
		return
	}
	d.queue = append(d.queue, event)
	d.mu.Unlock()
	d.signal()
}

func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, event := range batch {
			if err := d.bus.Publish(context.Background(), event); err != nil {
				slog.Debug("Chat event not fully delivered", "event_type", event.Type, "error", err)
			}
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-d.wake
	}
}

// close stops accepting events and waits until the queue is drained, or for ctx.
func (d *dispatcher) close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.signal()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
