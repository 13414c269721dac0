package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"
)

const GeminiName = "gemini"

var (
	geminiModels = []string{"gemini-1.5-pro", "gemini-1.5-pro-latest", "gemini-1.5-flash", "gemini-1.5-flash-latest", "gemini-1.0-pro"}
	geminiKeys   = []string{"gemini_api_key", "google_ai_api_key"}
)

// GeminiProvider talks to the Gemini API through the genai SDK. The SDK client
// is created on first use so construction stays free of I/O.
type GeminiProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client

	once      sync.Once
	client    *genai.Client
	clientErr error
}

func NewGeminiProvider(baseURL, apiKey, model string, client *http.Client) *GeminiProvider {
	return &GeminiProvider{BaseURL: trimBase(baseURL), APIKey: apiKey, Model: model, Client: client}
}

func (p *GeminiProvider) Name() string { return GeminiName }

func (p *GeminiProvider) sdk(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		if strings.TrimSpace(p.APIKey) == "" {
			p.clientErr = errors.New("gemini: api key is required")
			return
		}
		cfg := &genai.ClientConfig{
			APIKey:     p.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: p.Client,
		}
		if p.BaseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.BaseURL}
		}
		p.client, p.clientErr = genai.NewClient(ctx, cfg)
	})
	return p.client, p.clientErr
}

func geminiConfig(req TextRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Options.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*req.Options.TopP))
	}
	if len(req.Options.StopSequences) > 0 {
		cfg.StopSequences = req.Options.StopSequences
	}
	return cfg
}

// geminiPrompt folds the system prompt into the user turn, separated by a blank line.
func geminiPrompt(req TextRequest) string {
	if req.SystemPrompt == "" {
		return req.Prompt
	}
	return req.SystemPrompt + "\n\n" + req.Prompt
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no response candidates returned")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("empty response content")
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

func (p *GeminiProvider) Generate(ctx context.Context, req TextRequest) TextResponse {
	client, err := p.sdk(ctx)
	if err != nil {
		return textFailure(GeminiName, p.Model, fmt.Errorf("Gemini API error: %w", err))
	}

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{genai.NewPartFromText(geminiPrompt(req))},
	}}

	resp, err := client.Models.GenerateContent(ctx, p.Model, contents, geminiConfig(req))
	if err != nil {
		return textFailure(GeminiName, p.Model, fmt.Errorf("Gemini API error: %w", err))
	}
	text, err := geminiText(resp)
	if err != nil {
		return textFailure(GeminiName, p.Model, fmt.Errorf("Gemini API error: %w", err))
	}

	var usage *Usage
	if resp.UsageMetadata != nil {
		usage = &Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return TextResponse{
		Content:   text,
		ModelUsed: p.Model,
		Provider:  GeminiName,
		Usage:     usage,
		Raw:       map[string]any{"model": p.Model},
		Success:   true,
	}
}

func (p *GeminiProvider) ValidateCredentials(ctx context.Context) error {
	client, err := p.sdk(ctx)
	if err != nil {
		return err
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{genai.NewPartFromText("test")}}}
	_, err = client.Models.GenerateContent(ctx, p.Model, contents, &genai.GenerateContentConfig{MaxOutputTokens: 1})
	return err
}
