package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// transport carries what every HTTP backed provider shares.
type transport struct {
	name   string
	cfg    ChatConfig
	client *http.Client
}

func newTransport(name string, cfg ChatConfig) transport {
	return transport{
		name:   name,
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second},
	}
}

func (t transport) endpoint(path string) string {
	return strings.TrimRight(t.cfg.BaseURL, "/") + path
}

// probe issues a GET against url and reports reachability. Transport
// failures land in HealthResult.Error; the returned error is always nil.
func (t transport) probe(ctx context.Context, url string, headers map[string]string) (*HealthResult, error) {
	result := &HealthResult{Provider: t.name, BaseURL: t.cfg.BaseURL, Model: t.cfg.Model}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result, nil
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("failed to connect: %v", err)
		return result, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		result.Error = fmt.Sprintf("status %d: %s", resp.StatusCode, snippet(body, 100))
		return result, nil
	}
	result.Ok = true
	return result, nil
}

// post sends body as JSON and decodes a 200 response into out. Errors carry
// the provider name.
func (t transport) post(ctx context.Context, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", t.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", t.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: http request to %s: %w", t.name, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response body: %w", t.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %w", t.name, &StatusError{Code: resp.StatusCode, Body: snippet(raw, 200)})
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: unmarshal response: %w", t.name, err)
	}
	return nil
}

// StatusError is a non-200 reply from the completion service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, e.Body)
}

// OllamaChat talks to a local Ollama runtime over /api/chat.
type OllamaChat struct {
	transport
}

// NewOllamaChat creates a new Ollama chat provider.
func NewOllamaChat(cfg ChatConfig) *OllamaChat {
	return &OllamaChat{newTransport("ollama", cfg)}
}

func (o *OllamaChat) Name() string { return o.name }

func (o *OllamaChat) HasCredential() bool { return true }

// Health hits the root endpoint, which Ollama answers when running.
func (o *OllamaChat) Health(ctx context.Context) (*HealthResult, error) {
	return o.probe(ctx, o.endpoint(""), nil)
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []ChatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message ChatMessage `json:"message"`
	Done    bool        `json:"done"`
}

func (o *OllamaChat) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	req := ollamaRequest{
		Model:    o.cfg.Model,
		Messages: messages,
		Options:  &ollamaOptions{Temperature: o.cfg.Temperature, NumPredict: o.cfg.MaxTokens},
	}

	var resp ollamaResponse
	if err := o.post(ctx, o.endpoint("/api/chat"), nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// OpenAIChat targets any OpenAI-compatible /v1/chat/completions endpoint.
type OpenAIChat struct {
	transport
}

// NewOpenAIChat creates a new OpenAI-compatible chat provider.
func NewOpenAIChat(cfg ChatConfig) *OpenAIChat {
	return &OpenAIChat{newTransport("openai", cfg)}
}

func (o *OpenAIChat) Name() string { return o.name }

func (o *OpenAIChat) HasCredential() bool { return o.cfg.APIKey != "" }

func (o *OpenAIChat) headers() map[string]string {
	if o.cfg.APIKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + o.cfg.APIKey}
}

// Health lists models to check connectivity and the key together.
func (o *OpenAIChat) Health(ctx context.Context) (*HealthResult, error) {
	return o.probe(ctx, o.endpoint("/v1/models"), o.headers())
}

type openaiRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type openaiResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAIChat) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	req := openaiRequest{
		Model:       o.cfg.Model,
		Messages:    messages,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	}

	var resp openaiResponse
	if err := o.post(ctx, o.endpoint("/v1/chat/completions"), o.headers(), req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// EchoChat answers without any network, repeating the latest user turn.
// It backs tests and offline runs.
type EchoChat struct{}

// NewEchoChat creates a new echo chat provider.
func NewEchoChat() *EchoChat {
	return &EchoChat{}
}

func (e *EchoChat) Name() string { return "echo" }

func (e *EchoChat) HasCredential() bool { return true }

func (e *EchoChat) Health(ctx context.Context) (*HealthResult, error) {
	return &HealthResult{Ok: true, Provider: "echo", BaseURL: "local", Model: "echo-mock"}, nil
}

func (e *EchoChat) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser && messages[i].Content != "" {
			return "Echo: " + messages[i].Content, nil
		}
	}
	if len(messages) == 0 {
		return "Echo: (no messages)", nil
	}
	return "Echo: (no user message found)", nil
}
