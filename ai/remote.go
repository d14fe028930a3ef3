package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const remoteEngineName = "remote"

const healthCheckTimeout = 2 * time.Second

// RemoteConfig configures a RemoteEngine.
type RemoteConfig struct {
	HTTPClient  *http.Client
	URL         string // chat endpoint receiving the JSON request
	HealthURL   string // defaults to URL + "/health"
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32
	RPS         float64 // outbound requests per second, 0 disables throttling
	Timeout     time.Duration
}

// remoteRequest is the JSON body posted to the chat endpoint.
type remoteRequest struct {
	Prompt      string    `json:"prompt"`
	Model       string    `json:"model"`
	History     []Message `json:"history"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
	TopP        float32   `json:"top_p"`
}

type remoteResponse struct {
	Response string `json:"response"`
}

// RemoteEngine forwards prompts to a model server speaking a small JSON protocol:
// it posts {prompt, history, model, max_tokens, temperature, top_p} and reads {response}.
type RemoteEngine struct {
	client  *http.Client
	limiter *rate.Limiter
	cfg     RemoteConfig
}

// NewRemoteEngine creates a remote engine.
func NewRemoteEngine(cfg RemoteConfig) (*RemoteEngine, error) {
	if cfg.URL == "" {
		return nil, errors.New("remote engine: URL is required")
	}
	if cfg.HealthURL == "" {
		cfg.HealthURL = strings.TrimSuffix(cfg.URL, "/") + "/health"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = newHTTPClient()
	}

	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}

	return &RemoteEngine{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		cfg:     cfg,
	}, nil
}

// Generate implements Engine.
func (e *RemoteEngine) Generate(ctx context.Context, prompt string, history []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	if err := e.limiter.Wait(ctx); err != nil {
		return "", failure(remoteEngineName, ReasonCanceled, err)
	}

	if history == nil {
		history = []Message{}
	}
	body, err := json.Marshal(remoteRequest{
		Prompt:      prompt,
		History:     history,
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		TopP:        e.cfg.TopP,
	})
	if err != nil {
		return "", failure(remoteEngineName, ReasonTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", failure(remoteEngineName, ReasonTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		slog.Warn("Remote engine request failed", "url", e.cfg.URL, "error", err)
		if ctx.Err() != nil {
			return "", failure(remoteEngineName, ReasonCanceled, err)
		}
		return "", failure(remoteEngineName, ReasonTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", failure(remoteEngineName, ReasonBadStatus,
			errors.Errorf("API call failed: %s: %s", resp.Status, strings.TrimSpace(string(snippet))))
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", failure(remoteEngineName, ReasonDecode, err)
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", failure(remoteEngineName, ReasonEmptyResponse, nil)
	}
	return out.Response, nil
}

// HealthCheck implements Engine with a GET against the health URL.
func (e *RemoteEngine) HealthCheck(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.HealthURL, http.NoBody)
	if err != nil {
		return HealthStatus{Status: HealthError, Detail: err.Error()}
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return HealthStatus{Status: HealthError, Detail: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return HealthStatus{Status: HealthError, Detail: fmt.Sprintf("health endpoint returned %s", resp.Status)}
	}
	return HealthStatus{Status: HealthHealthy, Detail: e.cfg.Model}
}

// ModelInfo implements Engine.
func (e *RemoteEngine) ModelInfo() ModelInfo {
	return ModelInfo{
		Name:         e.cfg.Model,
		Description:  fmt.Sprintf("Remote chat backend at %s", e.cfg.URL),
		Capabilities: []string{"Natural conversation", "Code assistance", "Question answering"},
	}
}
