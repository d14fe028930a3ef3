package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/yougpt/chat"
	"github.com/hrygo/yougpt/store"
)

func TestPost(t *testing.T) {
	var got RequestPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"code":0,"message":"ok"}`))
	}))
	defer srv.Close()

	err := Post(context.Background(), &RequestPayload{
		URL:            srv.URL,
		ActivityType:   "assistant_response",
		ConversationID: "welcome",
	})
	require.NoError(t, err)
	assert.Equal(t, "assistant_response", got.ActivityType)
	assert.Equal(t, "welcome", got.ConversationID)
}

func TestPost_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "bad status", status: http.StatusInternalServerError, body: "oops"},
		{name: "error code", status: http.StatusOK, body: `{"code":7,"message":"rejected"}`},
		{name: "invalid json", status: http.StatusOK, body: "not json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := Post(context.Background(), &RequestPayload{URL: srv.URL})
			assert.Error(t, err)
		})
	}
}

func TestNewListener(t *testing.T) {
	received := make(chan RequestPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p RequestPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		received <- p
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	bus := chat.NewEventBus()
	bus.Subscribe(NewListener(srv.URL), chat.EventAssistantResponse)

	msg := &store.Message{ID: "m1", Role: store.RoleAssistant, Content: "hi"}
	require.NoError(t, bus.Publish(context.Background(), &chat.Event{
		Type:           chat.EventAssistantResponse,
		ConversationID: "welcome",
		Message:        msg,
	}))

	p := <-received
	assert.Equal(t, "assistant_response", p.ActivityType)
	require.NotNil(t, p.Message)
	assert.Equal(t, "hi", p.Message.Content)
}
