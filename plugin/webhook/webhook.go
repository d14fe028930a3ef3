// Package webhook forwards chat events to an external HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/yougpt/chat"
	"github.com/hrygo/yougpt/store"
)

var (
	// timeout is the timeout for webhook request. Default to 30 seconds.
	timeout = 30 * time.Second
)

type RequestPayload struct {
	Message        *store.Message `json:"message,omitempty"`
	URL            string         `json:"url"`
	ActivityType   string         `json:"activityType"`
	ConversationID string         `json:"conversationId"`
	Reason         string         `json:"reason,omitempty"`
}

// Post posts the payload to the webhook endpoint.
func Post(ctx context.Context, requestPayload *RequestPayload) error {
	body, err := json.Marshal(requestPayload)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal webhook request to %s", requestPayload.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestPayload.URL, bytes.NewBuffer(body))
	if err != nil {
		return errors.Wrapf(err, "failed to construct webhook request to %s", requestPayload.URL)
	}

	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{
		Timeout: timeout,
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to post webhook to %s", requestPayload.URL)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read webhook response from %s", requestPayload.URL)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("failed to post webhook %s, status code: %d, response body: %s", requestPayload.URL, resp.StatusCode, b)
	}

	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	response := &struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	}{}
	if err := json.Unmarshal(b, response); err != nil {
		return errors.Wrapf(err, "failed to unmarshal webhook response from %s", requestPayload.URL)
	}

	if response.Code != 0 {
		return errors.Errorf("receive error code sent by webhook server, code %d, msg: %s", response.Code, response.Message)
	}

	return nil
}

// NewListener returns an event listener that posts every event it receives to url.
// Delivery is bounded by the event bus listener timeout.
func NewListener(url string) chat.Listener {
	return func(ctx context.Context, event *chat.Event) error {
		err := Post(ctx, &RequestPayload{
			URL:            url,
			ActivityType:   string(event.Type),
			ConversationID: event.ConversationID,
			Message:        event.Message,
			Reason:         event.Reason,
		})
		if err != nil {
			slog.Warn("Failed to dispatch webhook",
				slog.String("url", url),
				slog.String("activityType", string(event.Type)),
				slog.Any("err", err))
		}
		return err
	}
}
