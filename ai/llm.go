package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

const llmEngineName = "llm"

// defaultSystemPrompt frames every OpenAI-compatible request.
const defaultSystemPrompt = "You are YOUGPT, a friendly and collaborative AI assistant. " +
	"Answer clearly and use Markdown, including fenced code blocks for code."

// LLMConfig represents LLM engine configuration.
type LLMConfig struct {
	Provider     string // deepseek, openai, siliconflow, zai, dashscope, openrouter, ollama
	Model        string
	APIKey       string
	BaseURL      string
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
	TopP         float32
	Timeout      time.Duration
}

// LLMEngine answers prompts with an OpenAI-compatible chat completion endpoint.
type LLMEngine struct {
	client       *openai.Client
	provider     string
	model        string
	systemPrompt string
	maxTokens    int
	temperature  float32
	topP         float32
	timeout      time.Duration
}

// NewLLMEngine creates an LLM engine.
func NewLLMEngine(cfg *LLMConfig) (*LLMEngine, error) {
	if cfg.Model == "" {
		return nil, errors.Errorf("llm engine: model is required for provider %q", cfg.Provider)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = newHTTPClient()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	slog.Info("LLM engine configured", "provider", cfg.Provider, "model", cfg.Model, "base_url", clientConfig.BaseURL)

	return &LLMEngine{
		client:       openai.NewClientWithConfig(clientConfig),
		provider:     cfg.Provider,
		model:        cfg.Model,
		systemPrompt: systemPrompt,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		topP:         cfg.TopP,
		timeout:      timeout,
	}, nil
}

// Generate implements Engine.
func (e *LLMEngine) Generate(ctx context.Context, prompt string, history []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	startTime := time.Now()
	req := openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
		TopP:        e.topP,
		Messages:    convertMessages(e.systemPrompt, prompt, history),
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("LLM: chat request failed", "provider", e.provider, "error", err)
		if ctx.Err() != nil {
			return "", failure(llmEngineName, ReasonCanceled, err)
		}
		return "", failure(llmEngineName, ReasonTransport, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		slog.Warn("LLM: empty response", "provider", e.provider, "model", e.model)
		return "", failure(llmEngineName, ReasonEmptyResponse, nil)
	}

	slog.Debug("LLM: chat response received",
		"model", e.model,
		"total_tokens", resp.Usage.TotalTokens,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)
	return resp.Choices[0].Message.Content, nil
}

// HealthCheck implements Engine by listing models with a short deadline.
func (e *LLMEngine) HealthCheck(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if _, err := e.client.ListModels(ctx); err != nil {
		return HealthStatus{Status: HealthError, Detail: fmt.Sprintf("%s: %v", e.provider, err)}
	}
	return HealthStatus{Status: HealthHealthy, Detail: fmt.Sprintf("%s/%s", e.provider, e.model)}
}

// ModelInfo implements Engine.
func (e *LLMEngine) ModelInfo() ModelInfo {
	return ModelInfo{
		Name:         e.model,
		Description:  fmt.Sprintf("OpenAI-compatible model served by %s", e.provider),
		Capabilities: []string{"Natural conversation", "Code assistance", "Question answering"},
	}
}

func convertMessages(systemPrompt, prompt string, history []Message) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 120 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
