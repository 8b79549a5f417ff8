// Package llm provides pluggable chat completion providers for the advisory
// channel.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrNoCredential is returned when a provider that needs an API key has none.
	ErrNoCredential = errors.New("no API credential configured")
	// ErrEmptyResponse is returned when the service answers without any candidate text.
	ErrEmptyResponse = errors.New("completion returned no candidates")
)

// ChatProvider is the interface for chat completion.
type ChatProvider interface {
	// Name returns the provider name (e.g., "gemini", "ollama").
	Name() string

	// HasCredential reports whether the provider can authenticate. Providers
	// that need no key always return true.
	HasCredential() bool

	// Health checks if the chat service is reachable and returns status.
	Health(ctx context.Context) (*HealthResult, error)

	// Chat sends messages and returns the assistant's reply.
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
}

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HealthResult contains the status of a chat provider.
type HealthResult struct {
	Ok       bool   `json:"ok"`
	Provider string `json:"provider"`
	BaseURL  string `json:"base_url"`
	Model    string `json:"model"`
	Error    string `json:"error,omitempty"`
}

// ChatConfig holds chat provider configuration.
type ChatConfig struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	TimeoutSecs int
	Temperature float64
	MaxTokens   int
}

// NewChatFromEnv creates a ChatProvider from environment variables.
// Environment variables:
//   - CHAT_PROVIDER: "gemini" (default), "openai", "ollama", or "echo"
//   - CHAT_BASE_URL: base URL (provider specific default)
//   - CHAT_MODEL: model name (default: "gemini-2.5-flash" for Gemini)
//   - CHAT_API_KEY: API key; GEMINI_API_KEY and API_KEY are accepted as aliases
//   - CHAT_TIMEOUT_SECONDS: request timeout (default: 30)
//   - CHAT_TEMPERATURE, CHAT_MAX_TOKENS: sampling controls
func NewChatFromEnv() (ChatProvider, error) {
	return NewChat(ChatConfigFromEnv())
}

// ChatConfigFromEnv resolves a ChatConfig without building the provider.
func ChatConfigFromEnv() ChatConfig {
	provider := strings.ToLower(envOrDefault("CHAT_PROVIDER", "gemini"))
	cfg := ChatConfig{
		Provider:    provider,
		BaseURL:     os.Getenv("CHAT_BASE_URL"),
		Model:       os.Getenv("CHAT_MODEL"),
		APIKey:      firstEnv("CHAT_API_KEY", "GEMINI_API_KEY", "API_KEY"),
		TimeoutSecs: envIntOrDefault("CHAT_TIMEOUT_SECONDS", 30),
		Temperature: envFloatOrDefault("CHAT_TEMPERATURE", 0.7),
		MaxTokens:   envIntOrDefault("CHAT_MAX_TOKENS", 1024),
	}
	return cfg
}

// NewChat builds the provider named in cfg, filling in provider defaults.
func NewChat(cfg ChatConfig) (ChatProvider, error) {
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = 30
	}

	switch cfg.Provider {
	case "", "gemini":
		cfg.Provider = "gemini"
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://generativelanguage.googleapis.com"
		}
		if cfg.Model == "" {
			cfg.Model = "gemini-2.5-flash"
		}
		return NewGeminiChat(cfg), nil

	case "ollama":
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:11434"
		}
		if cfg.Model == "" {
			cfg.Model = "llama3"
		}
		return NewOllamaChat(cfg), nil

	case "openai":
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:1234" // LM Studio default
		}
		return NewOpenAIChat(cfg), nil

	case "echo", "mock":
		// Echo provider for running without any LLM runtime
		return NewEchoChat(), nil

	default:
		return nil, fmt.Errorf("unknown chat provider: %s (valid: gemini, openai, ollama, echo)", cfg.Provider)
	}
}

// snippet trims a remote error body for inclusion in an error message.
func snippet(body []byte, max int) string {
	s := string(body)
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOrDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
