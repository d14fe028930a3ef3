package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/yougpt/chat"
)

const (
	eventBufferSize   = 64
	heartbeatInterval = 15 * time.Second
)

// EventService streams chat events as server-sent events.
type EventService struct {
	Bus *chat.EventBus

	shutdown  chan struct{}
	closeOnce sync.Once
}

func NewEventService(bus *chat.EventBus) *EventService {
	return &EventService{Bus: bus, shutdown: make(chan struct{})}
}

// Close ends every open stream. HTTP shutdown does not cancel active
// requests, so this must run before it.
func (s *EventService) Close() {
	s.closeOnce.Do(func() { close(s.shutdown) })
}

func (s *EventService) StreamEvents(c echo.Context) error {
	events := make(chan *chat.Event, eventBufferSize)
	unsubscribe := s.Bus.Subscribe(func(_ context.Context, event *chat.Event) error {
		select {
		case events <- event:
		default:
			slog.Warn("Dropping event for slow stream client", "event_type", event.Type)
		}
		return nil
	})
	defer unsubscribe()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Tells the client the subscription is live.
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return nil
	}
	w.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.shutdown:
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case event := <-events:
			data, err := json.Marshal(event)
			if err != nil {
				slog.Error("failed to marshal event", "event_type", event.Type, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
