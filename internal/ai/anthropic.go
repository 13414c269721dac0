package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	AnthropicName          = "anthropic"
	AnthropicVisionName    = "anthropic_vision"
	defaultAnthropicBase   = "https://api.anthropic.com/v1"
	anthropicVersion       = "2023-06-01"
	defaultAnthropicTokens = 4096
)

var (
	anthropicModels = []string{
		"claude-opus-4-5-20251101",
		"claude-sonnet-4-5-20250929",
		"claude-sonnet-4-20250514",
		"claude-3-5-sonnet-20241022",
		"claude-3-5-sonnet-20240620",
		"claude-3-opus-20240229",
		"claude-3-sonnet-20240229",
		"claude-3-haiku-20240307",
	}
	anthropicKeys = []string{"anthropic_api_key", "claude_api_key"}
)

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthropicRequest struct {
	Model         string             `json:"model"`
	MaxTokens     int                `json:"max_tokens"`
	System        string             `json:"system,omitempty"`
	Messages      []anthropicMessage `json:"messages"`
	Temperature   *float64           `json:"temperature,omitempty"`
	TopP          *float64           `json:"top_p,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

func (r *anthropicResponse) text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

func (r *anthropicResponse) usage() *Usage {
	if r.Usage == nil {
		return nil
	}
	return &Usage{
		PromptTokens:     r.Usage.InputTokens,
		CompletionTokens: r.Usage.OutputTokens,
		TotalTokens:      r.Usage.InputTokens + r.Usage.OutputTokens,
	}
}

func (r *anthropicResponse) raw() map[string]any {
	return map[string]any{"id": r.ID, "model": r.Model, "role": r.Role}
}

type AnthropicProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewAnthropicProvider(baseURL, apiKey, model string, client *http.Client) *AnthropicProvider {
	if baseURL == "" {
		baseURL = defaultAnthropicBase
	}
	return &AnthropicProvider{BaseURL: trimBase(baseURL), APIKey: apiKey, Model: model, Client: client}
}

func (p *AnthropicProvider) Name() string { return AnthropicName }

func (p *AnthropicProvider) messages(ctx context.Context, body anthropicRequest) (*anthropicResponse, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	headers := map[string]string{
		"x-api-key":         p.APIKey,
		"anthropic-version": anthropicVersion,
	}
	var decoded anthropicResponse
	if err := doJSON(ctx, p.Client, AnthropicName, http.MethodPost, p.BaseURL+"/messages", headers, body, &decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

func (p *AnthropicProvider) Generate(ctx context.Context, req TextRequest) TextResponse {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicTokens
	}
	body := anthropicRequest{
		Model:         p.Model,
		MaxTokens:     maxTokens,
		System:        req.SystemPrompt,
		Messages:      []anthropicMessage{{Role: "user", Content: req.Prompt}},
		Temperature:   req.Temperature,
		TopP:          req.Options.TopP,
		StopSequences: req.Options.StopSequences,
	}

	decoded, err := p.messages(ctx, body)
	if err != nil {
		return textFailure(AnthropicName, p.Model, fmt.Errorf("Anthropic API error: %w", err))
	}

	return TextResponse{
		Content:   decoded.text(),
		ModelUsed: p.Model,
		Provider:  AnthropicName,
		Usage:     decoded.usage(),
		Raw:       decoded.raw(),
		Success:   true,
	}
}

func (p *AnthropicProvider) ValidateCredentials(ctx context.Context) error {
	_, err := p.messages(ctx, anthropicRequest{
		Model:     p.Model,
		MaxTokens: 1,
		Messages:  []anthropicMessage{{Role: "user", Content: "test"}},
	})
	return err
}

type AnthropicVisionProvider struct {
	text *AnthropicProvider
}

func NewAnthropicVisionProvider(baseURL, apiKey, model string, client *http.Client) *AnthropicVisionProvider {
	return &AnthropicVisionProvider{text: NewAnthropicProvider(baseURL, apiKey, model, client)}
}

func (p *AnthropicVisionProvider) Name() string { return AnthropicVisionName }

func (p *AnthropicVisionProvider) ExtractText(ctx context.Context, req VisionRequest) VisionResponse {
	model := p.text.Model
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultVisionMaxTokens
	}

	content := []map[string]any{
		{
			"type": "image",
			"source": map[string]any{
				"type":       "base64",
				"media_type": MediaType(req.ImageType),
				"data":       base64.StdEncoding.EncodeToString(req.ImageData),
			},
		},
		{"type": "text", "text": req.Prompt},
	}

	decoded, err := p.text.messages(ctx, anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: content}},
	})
	if err != nil {
		return visionFailure(AnthropicVisionName, model, fmt.Errorf("Anthropic Vision API error: %w", err))
	}

	return VisionResponse{
		ExtractedText: decoded.text(),
		ModelUsed:     model,
		Provider:      AnthropicVisionName,
		Usage:         decoded.usage(),
		Raw:           decoded.raw(),
		Success:       true,
	}
}

func (p *AnthropicVisionProvider) ValidateCredentials(ctx context.Context) error {
	return p.text.ValidateCredentials(ctx)
}
