package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	OpenAIName        = "openai"
	defaultOpenAIBase = "https://api.openai.com/v1"
)

var (
	openAIModels = []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-4", "gpt-3.5-turbo"}
	openAIKeys   = []string{"chatgpt_api_key", "openai_api_key"}
)

// chat/completions wire types, shared by the text, vision and LM Studio adapters.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (r *chatResponse) content() (string, error) {
	if r.Error != nil && r.Error.Message != "" {
		return "", errors.New(r.Error.Message)
	}
	if len(r.Choices) == 0 {
		return "", errors.New("empty response")
	}
	return r.Choices[0].Message.Content, nil
}

func (r *chatResponse) usage() *Usage {
	if r.Usage == nil {
		return nil
	}
	return &Usage{
		PromptTokens:     r.Usage.PromptTokens,
		CompletionTokens: r.Usage.CompletionTokens,
		TotalTokens:      r.Usage.TotalTokens,
	}
}

type OpenAIProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewOpenAIProvider(baseURL, apiKey, model string, client *http.Client) *OpenAIProvider {
	if baseURL == "" {
		baseURL = defaultOpenAIBase
	}
	return &OpenAIProvider{BaseURL: trimBase(baseURL), APIKey: apiKey, Model: model, Client: client}
}

func (p *OpenAIProvider) Name() string { return OpenAIName }

func (p *OpenAIProvider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.APIKey}
}

func (p *OpenAIProvider) Generate(ctx context.Context, req TextRequest) TextResponse {
	if strings.TrimSpace(p.APIKey) == "" {
		return textFailure(OpenAIName, p.Model, errors.New("openai: api key is required"))
	}

	msgs := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:       p.Model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.Options.TopP,
		Stop:        req.Options.StopSequences,
	}

	var decoded chatResponse
	if err := doJSON(ctx, p.Client, OpenAIName, http.MethodPost, p.BaseURL+"/chat/completions", p.headers(), body, &decoded); err != nil {
		return textFailure(OpenAIName, p.Model, fmt.Errorf("OpenAI API error: %w", err))
	}
	content, err := decoded.content()
	if err != nil {
		return textFailure(OpenAIName, p.Model, fmt.Errorf("OpenAI API error: %w", err))
	}

	return TextResponse{
		Content:   content,
		ModelUsed: p.Model,
		Provider:  OpenAIName,
		Usage:     decoded.usage(),
		Raw:       map[string]any{"id": decoded.ID, "model": decoded.Model},
		Success:   true,
	}
}

func (p *OpenAIProvider) ValidateCredentials(ctx context.Context) error {
	return doJSON(ctx, p.Client, OpenAIName, http.MethodGet, p.BaseURL+"/models", p.headers(), nil, nil)
}
