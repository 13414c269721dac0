package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	FluxName              = "bfl_flux"
	defaultFluxBase       = "https://api.bfl.ml/v1"
	DefaultFluxPollEvery  = time.Second
	DefaultFluxMaxAttempt = 60

	fluxDefaultWidth    = 1024
	fluxDefaultHeight   = 1024
	fluxDefaultSteps    = 28
	fluxDefaultGuidance = 3.5
	fluxDefaultSafety   = 2
)

var (
	fluxModels = []string{"flux-pro-1.1", "flux-pro", "flux-dev"}
	fluxKeys   = []string{"bfl_api_key", "flux_api_key"}

	// ErrFluxTimeout is reported when the task is still not terminal after MaxAttempts polls.
	ErrFluxTimeout = errors.New("BFL generation timed out")
)

// FluxProvider submits a generation task to Black Forest Labs and polls for
// the result. Polling is bounded by MaxAttempts and stops as soon as ctx is done.
type FluxProvider struct {
	BaseURL      string
	APIKey       string
	Model        string
	Client       *http.Client
	PollInterval time.Duration
	MaxAttempts  int
}

func NewFluxProvider(baseURL, apiKey, model string, client *http.Client, pollInterval time.Duration, maxAttempts int) *FluxProvider {
	if baseURL == "" {
		baseURL = defaultFluxBase
	}
	if pollInterval <= 0 {
		pollInterval = DefaultFluxPollEvery
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultFluxMaxAttempt
	}
	return &FluxProvider{
		BaseURL:      trimBase(baseURL),
		APIKey:       apiKey,
		Model:        model,
		Client:       client,
		PollInterval: pollInterval,
		MaxAttempts:  maxAttempts,
	}
}

func (p *FluxProvider) Name() string { return FluxName }

func (p *FluxProvider) headers() map[string]string {
	return map[string]string{"X-Key": p.APIKey}
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// payload includes steps/guidance only for models that accept them, and
// safety_tolerance only for the pro models.
func (p *FluxProvider) payload(req ImageRequest) map[string]any {
	body := map[string]any{
		"prompt": req.Prompt,
		"width":  intOr(req.Width, fluxDefaultWidth),
		"height": intOr(req.Height, fluxDefaultHeight),
	}
	switch p.Model {
	case "flux-pro-1.1", "flux-pro":
		body["steps"] = intOr(req.Steps, fluxDefaultSteps)
		body["guidance"] = floatOr(req.Guidance, fluxDefaultGuidance)
		body["safety_tolerance"] = intOr(req.SafetyTolerance, fluxDefaultSafety)
	case "flux-dev":
		body["steps"] = intOr(req.Steps, fluxDefaultSteps)
		body["guidance"] = floatOr(req.Guidance, fluxDefaultGuidance)
	}
	return body
}

type fluxSubmitResponse struct {
	ID string `json:"id"`
}

type fluxResultResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result struct {
		Sample string `json:"sample"`
		Error  string `json:"error"`
	} `json:"result"`
}

func (p *FluxProvider) GenerateImage(ctx context.Context, req ImageRequest) ImageResponse {
	if strings.TrimSpace(p.APIKey) == "" {
		return imageFailure(FluxName, p.Model, errors.New("bfl: api key is required"))
	}

	body := p.payload(req)

	var submitted fluxSubmitResponse
	if err := doJSON(ctx, p.Client, FluxName, http.MethodPost, p.BaseURL+"/"+p.Model, p.headers(), body, &submitted); err != nil {
		return imageFailure(FluxName, p.Model, fmt.Errorf("BFL API error: %w", err))
	}
	if submitted.ID == "" {
		return imageFailure(FluxName, p.Model, errors.New("No task ID returned from BFL API"))
	}

	sampleURL, err := p.poll(ctx, submitted.ID)
	if err != nil {
		return imageFailure(FluxName, p.Model, err)
	}

	img, err := download(ctx, p.Client, FluxName, sampleURL)
	if err != nil {
		return imageFailure(FluxName, p.Model, fmt.Errorf("Failed to retrieve generated image: %w", err))
	}

	return ImageResponse{
		ImageData: base64.StdEncoding.EncodeToString(img),
		ImageURL:  sampleURL,
		ModelUsed: p.Model,
		Provider:  FluxName,
		Raw: map[string]any{
			"task_id": submitted.ID,
			"width":   body["width"],
			"height":  body["height"],
		},
		Success: true,
	}
}

// poll queries get_result at most MaxAttempts times and returns the sample URL
// once the task is Ready.
func (p *FluxProvider) poll(ctx context.Context, taskID string) (string, error) {
	pollURL := p.BaseURL + "/get_result?id=" + url.QueryEscape(taskID)

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		var res fluxResultResponse
		if err := doJSON(ctx, p.Client, FluxName, http.MethodGet, pollURL, p.headers(), nil, &res); err != nil {
			return "", fmt.Errorf("BFL API error: %w", err)
		}

		switch res.Status {
		case "Ready":
			if res.Result.Sample == "" {
				return "", errors.New("Failed to retrieve generated image")
			}
			return res.Result.Sample, nil
		case "Error":
			msg := res.Result.Error
			if msg == "" {
				msg = "Unknown error"
			}
			return "", fmt.Errorf("BFL generation error: %s", msg)
		case "Pending", "Processing":
		default:
			log.Printf("[Flux] unknown status task=%s status=%q attempt=%d", taskID, res.Status, attempt)
		}

		if attempt == p.MaxAttempts {
			break
		}
		timer := time.NewTimer(p.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("BFL polling cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrFluxTimeout, p.MaxAttempts)
}

// ValidateCredentials treats 200/400/404 on a dummy result lookup as an accepted key.
func (p *FluxProvider) ValidateCredentials(ctx context.Context) error {
	err := doJSON(ctx, p.Client, FluxName, http.MethodGet, p.BaseURL+"/get_result?id=test", p.headers(), nil, nil)
	switch statusCode(err) {
	case 0:
		return err
	case http.StatusBadRequest, http.StatusNotFound:
		return nil
	default:
		return err
	}
}
