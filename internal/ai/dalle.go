package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	DalleName   = "openai_dalle"
	defaultSize = "1024x1024"
)

var (
	dalleModels = []string{"dall-e-3", "dall-e-2"}
	dalle3Sizes = []string{"1024x1024", "1792x1024", "1024x1792"}
	dalle2Sizes = []string{"256x256", "512x512", "1024x1024"}
)

type DalleProvider struct {
	openai *OpenAIProvider
}

func NewDalleProvider(baseURL, apiKey, model string, client *http.Client) *DalleProvider {
	return &DalleProvider{openai: NewOpenAIProvider(baseURL, apiKey, model, client)}
}

func (p *DalleProvider) Name() string { return DalleName }

type dalleRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
}

type dalleResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

// dalleParams normalises the request for the model's limits: unknown sizes
// fall back to 1024x1024 and dall-e-3 only ever produces one image.
func dalleParams(model string, req ImageRequest) dalleRequest {
	out := dalleRequest{
		Model:          model,
		Prompt:         req.Prompt,
		Size:           req.Size,
		N:              req.N,
		ResponseFormat: "b64_json",
	}
	if out.N <= 0 {
		out.N = 1
	}
	switch model {
	case "dall-e-3":
		if !contains(dalle3Sizes, out.Size) {
			out.Size = defaultSize
		}
		out.N = 1
		out.Quality = req.Quality
		if out.Quality == "" {
			out.Quality = "standard"
		}
		out.Style = req.Style
		if out.Style == "" {
			out.Style = "vivid"
		}
	case "dall-e-2":
		if !contains(dalle2Sizes, out.Size) {
			out.Size = defaultSize
		}
	default:
		if out.Size == "" {
			out.Size = defaultSize
		}
	}
	return out
}

func (p *DalleProvider) GenerateImage(ctx context.Context, req ImageRequest) ImageResponse {
	model := p.openai.Model
	if strings.TrimSpace(p.openai.APIKey) == "" {
		return imageFailure(DalleName, model, errors.New("openai: api key is required"))
	}

	body := dalleParams(model, req)

	var decoded dalleResponse
	if err := doJSON(ctx, p.openai.Client, DalleName, http.MethodPost, p.openai.BaseURL+"/images/generations", p.openai.headers(), body, &decoded); err != nil {
		return imageFailure(DalleName, model, fmt.Errorf("DALL-E API error: %w", err))
	}
	if len(decoded.Data) == 0 {
		return imageFailure(DalleName, model, errors.New("DALL-E API error: empty response"))
	}

	first := decoded.Data[0]
	raw := map[string]any{"size": body.Size}
	if first.RevisedPrompt != "" {
		raw["revised_prompt"] = first.RevisedPrompt
	}
	if model == "dall-e-3" {
		raw["quality"] = body.Quality
		raw["style"] = body.Style
	}

	return ImageResponse{
		ImageData:     first.B64JSON,
		ImageURL:      first.URL,
		RevisedPrompt: first.RevisedPrompt,
		ModelUsed:     model,
		Provider:      DalleName,
		Raw:           raw,
		Success:       true,
	}
}

func (p *DalleProvider) ValidateCredentials(ctx context.Context) error {
	return p.openai.ValidateCredentials(ctx)
}
