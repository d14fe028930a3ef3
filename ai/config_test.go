package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/yougpt/internal/profile"
)

func TestNewConfigFromProfile(t *testing.T) {
	prof := &profile.Profile{
		Engine:         profile.EngineRemote,
		MockMinDelayMs: 1000,
		MockMaxDelayMs: 3000,
		RemoteURL:      "http://localhost:8000/api/chat",
		RemoteRPS:      2,
		RemoteTimeout:  30,
		LLMProvider:    "deepseek",
		LLMAPIKey:      "key",
		LLMBaseURL:     "https://api.deepseek.com",
		LLMTimeout:     90,
		Model:          "deepseek-chat",
		MaxTokens:      512,
		Temperature:    0.7,
		TopP:           0.9,
	}

	cfg := NewConfigFromProfile(prof)

	assert.Equal(t, profile.EngineRemote, cfg.Engine)
	assert.Equal(t, time.Second, cfg.Mock.MinDelay)
	assert.Equal(t, 3*time.Second, cfg.Mock.MaxDelay)

	assert.Equal(t, "http://localhost:8000/api/chat", cfg.Remote.URL)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.InDelta(t, 2, cfg.Remote.RPS, 0.0001)
	assert.Equal(t, 512, cfg.Remote.MaxTokens)

	assert.Equal(t, "deepseek", cfg.LLM.Provider)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.InDelta(t, 0.9, cfg.LLM.TopP, 0.0001)
}

func TestNewConfigFromProfile_DefaultsToMock(t *testing.T) {
	cfg := NewConfigFromProfile(&profile.Profile{})
	assert.Equal(t, profile.EngineMock, cfg.Engine)
}

func TestNewEngine(t *testing.T) {
	t.Run("mock", func(t *testing.T) {
		engine, err := NewEngine(&Config{Engine: profile.EngineMock}, nil)
		require.NoError(t, err)
		assert.IsType(t, &MockEngine{}, engine)
	})

	t.Run("remote", func(t *testing.T) {
		engine, err := NewEngine(&Config{Engine: profile.EngineRemote, Remote: RemoteConfig{URL: "http://localhost:1"}}, nil)
		require.NoError(t, err)
		assert.IsType(t, &RemoteEngine{}, engine)
	})

	t.Run("remote without url", func(t *testing.T) {
		_, err := NewEngine(&Config{Engine: profile.EngineRemote}, nil)
		require.Error(t, err)
	})

	t.Run("llm", func(t *testing.T) {
		engine, err := NewEngine(&Config{Engine: profile.EngineLLM, LLM: LLMConfig{Provider: "ollama", Model: "tinyllama"}}, nil)
		require.NoError(t, err)
		assert.IsType(t, &LLMEngine{}, engine)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewEngine(&Config{Engine: "quantum"}, nil)
		require.Error(t, err)
	})
}
