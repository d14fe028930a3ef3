package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/yougpt/store"
)

// EventType identifies a chat event.
type EventType string

const (
	EventConversationCreated  EventType = "conversation_created"
	EventConversationSelected EventType = "conversation_selected"
	EventConversationDeleted  EventType = "conversation_deleted"
	// EventUserMessage is fired when a prompt has been appended.
	EventUserMessage EventType = "user_message"
	// EventAssistantResponse is fired when a reply, including the fallback, has been appended.
	EventAssistantResponse EventType = "assistant_response"
	// EventGenerationFailed is fired when the engine failed. The fallback reply follows as an assistant response.
	EventGenerationFailed EventType = "generation_failed"
)

// Event describes a change to the conversation store.
type Event struct {
	Timestamp      time.Time      `json:"timestamp"`
	Message        *store.Message `json:"message,omitempty"`
	Type           EventType      `json:"type"`
	ConversationID string         `json:"conversationId"`
	Reason         string         `json:"reason,omitempty"`
}

// Listener processes chat events.
//
// Listeners run concurrently with a per-listener timeout and MUST respect ctx:
// a listener that ignores cancellation keeps running after the bus gave up on it.
type Listener func(ctx context.Context, event *Event) error

type subscription struct {
	listener Listener
	types    map[EventType]bool // nil means every type
	id       int
}

func (s *subscription) wants(t EventType) bool {
	return s.types == nil || s.types[t]
}

// EventBus fans chat events out to listeners.
type EventBus struct {
	subs    []*subscription
	nextID  int
	timeout time.Duration
	mu      sync.RWMutex
}

// NewEventBus creates an event bus with a 5 second per-listener timeout.
func NewEventBus() *EventBus {
	return &EventBus{timeout: 5 * time.Second}
}

// SetTimeout sets the timeout for event listeners.
func (b *EventBus) SetTimeout(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timeout = d
}

// Subscribe registers a listener for the given event types, or for every type when
// none are given. The returned function removes the listener.
func (b *EventBus) Subscribe(listener Listener, types ...EventType) (unsubscribe func()) {
	sub := &subscription{listener: listener}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub.id) })
	}
}

func (b *EventBus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers event to every interested listener and waits for them.
//
// A failing, panicking or slow listener never affects the others. The first
// error is returned after all listeners finished.
func (b *EventBus) Publish(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	timeout := b.timeout
	listeners := make([]Listener, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(event.Type) {
			listeners = append(listeners, s.listener)
		}
	}
	b.mu.RUnlock()

	if len(listeners) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		firstErr error
		errOnce  sync.Once
	)
	for i, listener := range listeners {
		wg.Add(1)
		go func(index int, l Listener) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Event listener panic", "event_type", event.Type, "listener_index", index, "panic", r)
					errOnce.Do(func() { firstErr = fmt.Errorf("listener panic: %v", r) })
				}
			}()

			listenerCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			err := l(listenerCtx, event)
			if err == nil && listenerCtx.Err() != nil {
				err = listenerCtx.Err()
			}
			if err != nil {
				slog.Warn("Event listener failed", "event_type", event.Type, "listener_index", index, "error", err)
				errOnce.Do(func() { firstErr = err })
			}
		}(i, listener)
	}

	wg.Wait()
	return firstErr
}
