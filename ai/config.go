package ai

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/yougpt/internal/profile"
)

// Config represents response engine configuration.
type Config struct {
	Engine string // mock, remote, llm
	Mock   MockOptions
	Remote RemoteConfig
	LLM    LLMConfig
}

// NewConfigFromProfile creates engine config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Engine: p.Engine,
		Mock: MockOptions{
			MinDelay: time.Duration(p.MockMinDelayMs) * time.Millisecond,
			MaxDelay: time.Duration(p.MockMaxDelayMs) * time.Millisecond,
		},
		Remote: RemoteConfig{
			URL:         p.RemoteURL,
			Model:       p.Model,
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
			TopP:        p.TopP,
			RPS:         p.RemoteRPS,
			Timeout:     time.Duration(p.RemoteTimeout) * time.Second,
		},
		LLM: LLMConfig{
			Provider:    p.LLMProvider,
			Model:       p.Model,
			APIKey:      p.LLMAPIKey,
			BaseURL:     p.LLMBaseURL,
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
			TopP:        p.TopP,
			Timeout:     time.Duration(p.LLMTimeout) * time.Second,
		},
	}
	if cfg.Engine == "" {
		cfg.Engine = profile.EngineMock
	}
	return cfg
}

// NewEngine builds the engine selected by cfg.Engine. The observer, when non-nil,
// receives bucket selections from the mock engine.
func NewEngine(cfg *Config, observer BucketObserver) (Engine, error) {
	switch cfg.Engine {
	case profile.EngineMock:
		opts := cfg.Mock
		opts.Observer = observer
		return NewMockEngine(opts), nil
	case profile.EngineRemote:
		engine, err := NewRemoteEngine(cfg.Remote)
		if err != nil {
			return nil, err
		}
		return engine, nil
	case profile.EngineLLM:
		engine, err := NewLLMEngine(&cfg.LLM)
		if err != nil {
			return nil, err
		}
		return engine, nil
	default:
		return nil, errors.Errorf("unknown engine %q", cfg.Engine)
	}
}
