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
	OpenAIVisionName       = "openai_vision"
	defaultVisionMaxTokens = 4096
)

var openAIVisionModels = []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo"}

// MediaType maps an image extension to its MIME type.
func MediaType(imageType string) string {
	switch strings.ToLower(imageType) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

func dataURL(req VisionRequest) string {
	return "data:" + MediaType(req.ImageType) + ";base64," + base64.StdEncoding.EncodeToString(req.ImageData)
}

func visionMessages(req VisionRequest) []chatMessage {
	return []chatMessage{{
		Role: "user",
		Content: []map[string]any{
			{"type": "text", "text": req.Prompt},
			{"type": "image_url", "image_url": map[string]any{"url": dataURL(req), "detail": "high"}},
		},
	}}
}

type OpenAIVisionProvider struct {
	text *OpenAIProvider
}

func NewOpenAIVisionProvider(baseURL, apiKey, model string, client *http.Client) *OpenAIVisionProvider {
	return &OpenAIVisionProvider{text: NewOpenAIProvider(baseURL, apiKey, model, client)}
}

func (p *OpenAIVisionProvider) Name() string { return OpenAIVisionName }

func (p *OpenAIVisionProvider) ExtractText(ctx context.Context, req VisionRequest) VisionResponse {
	model := p.text.Model
	if strings.TrimSpace(p.text.APIKey) == "" {
		return visionFailure(OpenAIVisionName, model, errors.New("openai: api key is required"))
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultVisionMaxTokens
	}

	body := chatRequest{Model: model, Messages: visionMessages(req), MaxTokens: maxTokens}

	var decoded chatResponse
	if err := doJSON(ctx, p.text.Client, OpenAIVisionName, http.MethodPost, p.text.BaseURL+"/chat/completions", p.text.headers(), body, &decoded); err != nil {
		return visionFailure(OpenAIVisionName, model, fmt.Errorf("OpenAI Vision API error: %w", err))
	}
	content, err := decoded.content()
	if err != nil {
		return visionFailure(OpenAIVisionName, model, fmt.Errorf("OpenAI Vision API error: %w", err))
	}

	return VisionResponse{
		ExtractedText: content,
		ModelUsed:     model,
		Provider:      OpenAIVisionName,
		Usage:         decoded.usage(),
		Raw:           map[string]any{"id": decoded.ID, "model": decoded.Model},
		Success:       true,
	}
}

func (p *OpenAIVisionProvider) ValidateCredentials(ctx context.Context) error {
	return p.text.ValidateCredentials(ctx)
}
