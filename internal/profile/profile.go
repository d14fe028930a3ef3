package profile

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Engine kinds accepted by Profile.Engine.
const (
	EngineMock   = "mock"
	EngineRemote = "remote"
	EngineLLM    = "llm"
)

// Profile is configuration to start main server.
type Profile struct {
	// Response engine selection: mock, remote, llm
	Engine string

	// Mock engine latency window in milliseconds. Zero disables the delay.
	MockMinDelayMs int
	MockMaxDelayMs int

	// Remote engine (JSON over HTTP) configuration
	RemoteURL     string
	RemoteRPS     float64 // outbound requests per second, 0 means unlimited
	RemoteTimeout int     // seconds

	// Unified LLM configuration (OpenAI-compatible protocol)
	LLMProvider string // deepseek, openai, siliconflow, zai, dashscope, openrouter, ollama
	LLMAPIKey   string
	LLMBaseURL  string
	LLMTimeout  int // seconds

	// Generation parameters shared by the remote and llm engines
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32

	// WebhookURL receives every chat event as JSON when set
	WebhookURL string

	// Logging
	LogLevel  string
	LogFormat string // json or text
	LogFile   string // empty logs to stderr

	Mode    string
	Addr    string
	Version string
	Port    int
}

// Provider default configurations for LLM.
// Used when the base URL or model is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4.7",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-7B-Instruct",
	},
	"dashscope": {
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:   "qwen-max-latest",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "deepseek/deepseek-chat",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "tinyllama",
	},
}

// DefaultRemoteModel is sent to remote backends when no model is configured.
const DefaultRemoteModel = "TinyLlama-1.1B-Chat-v1.0"

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		slog.Warn("Ignoring invalid integer environment variable", "key", key, "value", value)
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		slog.Warn("Ignoring invalid number environment variable", "key", key, "value", value)
	}
	return defaultValue
}

// FromEnv loads engine configuration from environment variables.
// Values already set (for example from command-line flags) are kept.
func (p *Profile) FromEnv() {
	if p.Engine == "" {
		p.Engine = getEnvOrDefault("YOUGPT_ENGINE", EngineMock)
	}

	p.MockMinDelayMs = getEnvOrDefaultInt("YOUGPT_MOCK_MIN_DELAY_MS", 1000)
	p.MockMaxDelayMs = getEnvOrDefaultInt("YOUGPT_MOCK_MAX_DELAY_MS", 3000)

	p.RemoteURL = getEnvOrDefault("YOUGPT_REMOTE_URL", p.RemoteURL)
	p.RemoteRPS = getEnvOrDefaultFloat("YOUGPT_REMOTE_RPS", 2)
	p.RemoteTimeout = getEnvOrDefaultInt("YOUGPT_REMOTE_TIMEOUT_SECONDS", 60)

	p.LLMProvider = getEnvOrDefault("YOUGPT_LLM_PROVIDER", "ollama")
	p.LLMAPIKey = getEnvOrDefault("YOUGPT_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("YOUGPT_LLM_BASE_URL", "")
	p.LLMTimeout = getEnvOrDefaultInt("YOUGPT_LLM_TIMEOUT_SECONDS", 120)

	p.WebhookURL = getEnvOrDefault("YOUGPT_WEBHOOK_URL", p.WebhookURL)

	p.Model = getEnvOrDefault("YOUGPT_MODEL", "")
	p.MaxTokens = getEnvOrDefaultInt("YOUGPT_MAX_TOKENS", 512)
	p.Temperature = float32(getEnvOrDefaultFloat("YOUGPT_TEMPERATURE", 0.7))
	p.TopP = float32(getEnvOrDefaultFloat("YOUGPT_TOP_P", 0.9))

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		slog.Warn("Unknown LLM provider, using default: ollama", "provider", p.LLMProvider)
		p.LLMProvider = "ollama"
	}
	if p.Engine == EngineLLM {
		defaults := llmProviderDefaults[p.LLMProvider]
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = defaults.BaseURL
		}
		if p.Model == "" {
			p.Model = defaults.Model
		}
	}
	if p.Model == "" {
		p.Model = DefaultRemoteModel
	}
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	p.Engine = strings.ToLower(strings.TrimSpace(p.Engine))
	if p.Engine == "" {
		p.Engine = EngineMock
	}

	switch p.Engine {
	case EngineMock:
		if p.MockMinDelayMs < 0 || p.MockMaxDelayMs < 0 {
			return errors.Errorf("mock delay must not be negative (min=%d, max=%d)", p.MockMinDelayMs, p.MockMaxDelayMs)
		}
		if p.MockMaxDelayMs < p.MockMinDelayMs {
			return errors.Errorf("mock max delay %dms is below min delay %dms", p.MockMaxDelayMs, p.MockMinDelayMs)
		}
	case EngineRemote:
		if p.RemoteURL == "" {
			return errors.New("remote engine requires YOUGPT_REMOTE_URL")
		}
		if p.RemoteRPS < 0 {
			return errors.Errorf("remote rate limit must not be negative, got %v", p.RemoteRPS)
		}
	case EngineLLM:
		if p.LLMAPIKey == "" && p.LLMProvider != "ollama" {
			return errors.Errorf("llm engine with provider %q requires YOUGPT_LLM_API_KEY", p.LLMProvider)
		}
	default:
		return errors.Errorf("unknown engine %q, expected one of mock, remote, llm", p.Engine)
	}

	if p.Port < 0 || p.Port > 65535 {
		return errors.Errorf("invalid port %d", p.Port)
	}
	return nil
}
