package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// GeminiChat implements ChatProvider against the Generative Language
// generateContent endpoint.
type GeminiChat struct {
	transport
}

// NewGeminiChat creates a new Gemini chat provider.
func NewGeminiChat(cfg ChatConfig) *GeminiChat {
	return &GeminiChat{newTransport("gemini", cfg)}
}

func (g *GeminiChat) Name() string { return g.name }

func (g *GeminiChat) HasCredential() bool { return g.cfg.APIKey != "" }

func (g *GeminiChat) modelURL() string {
	return g.endpoint("/v1beta/models/" + url.PathEscape(g.cfg.Model))
}

func (g *GeminiChat) headers() map[string]string {
	return map[string]string{"x-goog-api-key": g.cfg.APIKey}
}

// Health fetches the model resource, which needs a valid key.
func (g *GeminiChat) Health(ctx context.Context) (*HealthResult, error) {
	if !g.HasCredential() {
		return &HealthResult{
			Provider: g.name,
			BaseURL:  g.cfg.BaseURL,
			Model:    g.cfg.Model,
			Error:    ErrNoCredential.Error(),
		}, nil
	}
	return g.probe(ctx, g.modelURL(), g.headers())
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// geminiRequest is the request body for models/{model}:generateContent.
type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// Chat folds system messages into the system instruction and maps the
// assistant role to "model".
func (g *GeminiChat) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	if !g.HasCredential() {
		return "", fmt.Errorf("gemini: %w", ErrNoCredential)
	}

	reqBody := geminiRequest{
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     g.cfg.Temperature,
			MaxOutputTokens: g.cfg.MaxTokens,
		},
	}

	var system []string
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant, "model":
			reqBody.Contents = append(reqBody.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			reqBody.Contents = append(reqBody.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}}}
	}

	var resp geminiResponse
	if err := g.post(ctx, g.modelURL()+":generateContent", g.headers(), reqBody, &resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
