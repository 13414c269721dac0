package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

const (
	LMStudioVisionName  = "lm_studio_vision"
	DefaultLMStudioURL  = "http://host.docker.internal:1234/v1"
	lmStudioUnreachable = "LM Studio is not running or not accessible. Please start LM Studio and load a vision model."
)

var lmStudioModels = []string{"llava-1.5-7b", "llava-1.6-mistral-7b", "llava-1.6-vicuna-7b", "llava-v1.6-mistral-7b-gguf"}

// LMStudioVisionProvider calls a local LM Studio server through its
// OpenAI-compatible API. It needs no credential.
type LMStudioVisionProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewLMStudioVisionProvider(baseURL, model string, client *http.Client) *LMStudioVisionProvider {
	if baseURL == "" {
		baseURL = DefaultLMStudioURL
	}
	return &LMStudioVisionProvider{BaseURL: trimBase(baseURL), Model: model, Client: client}
}

func (p *LMStudioVisionProvider) Name() string { return LMStudioVisionName }

// isConnectError reports whether err means the server could not be reached at all.
func isConnectError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var dnsErr *net.DNSError
		return errors.As(urlErr.Err, &dnsErr)
	}
	return false
}

func (p *LMStudioVisionProvider) ExtractText(ctx context.Context, req VisionRequest) VisionResponse {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultVisionMaxTokens
	}
	body := chatRequest{Model: p.Model, Messages: visionMessages(req), MaxTokens: maxTokens}

	var decoded chatResponse
	if err := doJSON(ctx, p.Client, "lm studio", http.MethodPost, p.BaseURL+"/chat/completions", nil, body, &decoded); err != nil {
		if isConnectError(err) {
			return visionFailure(LMStudioVisionName, p.Model, errors.New(lmStudioUnreachable))
		}
		return visionFailure(LMStudioVisionName, p.Model, fmt.Errorf("LM Studio API error: %w", err))
	}
	content, err := decoded.content()
	if err != nil {
		return visionFailure(LMStudioVisionName, p.Model, fmt.Errorf("LM Studio API error: %w", err))
	}

	return VisionResponse{
		ExtractedText: content,
		ModelUsed:     p.Model,
		Provider:      LMStudioVisionName,
		Usage:         decoded.usage(),
		Raw:           map[string]any{"id": decoded.ID, "model": decoded.Model},
		Success:       true,
	}
}

func (p *LMStudioVisionProvider) ValidateCredentials(ctx context.Context) error {
	err := doJSON(ctx, p.Client, "lm studio", http.MethodGet, p.BaseURL+"/models", nil, nil, nil)
	if err != nil && isConnectError(err) {
		return errors.New(lmStudioUnreachable)
	}
	return err
}
