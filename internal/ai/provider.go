package ai

import "context"

type Capability string

const (
	CapabilityText   Capability = "text"
	CapabilityImage  Capability = "image"
	CapabilityVision Capability = "vision"
)

func (c Capability) Valid() bool {
	switch c {
	case CapabilityText, CapabilityImage, CapabilityVision:
		return true
	}
	return false
}

// Provider is the part every vendor adapter shares regardless of capability.
type Provider interface {
	Name() string
	// ValidateCredentials performs the cheapest vendor call that proves the key is accepted.
	ValidateCredentials(ctx context.Context) error
}

// TextProvider generates text. Vendor failures are reported in the response, never as a panic or error.
type TextProvider interface {
	Provider
	Generate(ctx context.Context, req TextRequest) TextResponse
}

type ImageProvider interface {
	Provider
	GenerateImage(ctx context.Context, req ImageRequest) ImageResponse
}

type VisionProvider interface {
	Provider
	ExtractText(ctx context.Context, req VisionRequest) VisionResponse
}

// FailureKind tells callers which side of the provider boundary a failure came from.
type FailureKind string

const (
	FailureNone         FailureKind = ""
	FailurePrecondition FailureKind = "precondition"
	FailureProvider     FailureKind = "provider"
	FailureInternal     FailureKind = "internal"
)

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TextOptions holds the optional knobs the text vendors understand.
type TextOptions struct {
	TopP          *float64 `json:"top_p,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

type TextRequest struct {
	Prompt       string      `json:"prompt"`
	SystemPrompt string      `json:"system_prompt,omitempty"`
	MaxTokens    int         `json:"max_tokens,omitempty"`
	Temperature  *float64    `json:"temperature,omitempty"`
	Options      TextOptions `json:"options"`
}

type TextResponse struct {
	Content   string         `json:"content"`
	ModelUsed string         `json:"model_used"`
	Provider  string         `json:"provider"`
	Usage     *Usage         `json:"usage,omitempty"`
	Raw       map[string]any `json:"raw_response,omitempty"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	RequestID string         `json:"request_id"`
	Failure   FailureKind    `json:"failure_kind,omitempty"`
}

// ImageRequest carries both the DALL-E style (Size/Quality/Style/N) and the
// Flux style (Width/Height/Steps/Guidance/SafetyTolerance) parameters. Each
// provider reads the fields of its own family and ignores the rest.
type ImageRequest struct {
	Prompt string `json:"prompt"`

	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
	N       int    `json:"n,omitempty"`

	Width           *int     `json:"width,omitempty"`
	Height          *int     `json:"height,omitempty"`
	Steps           *int     `json:"steps,omitempty"`
	Guidance        *float64 `json:"guidance,omitempty"`
	SafetyTolerance *int     `json:"safety_tolerance,omitempty"`
}

type ImageResponse struct {
	ImageData     string         `json:"image_data,omitempty"`
	ImageURL      string         `json:"image_url,omitempty"`
	RevisedPrompt string         `json:"revised_prompt,omitempty"`
	ModelUsed     string         `json:"model_used"`
	Provider      string         `json:"provider"`
	Raw           map[string]any `json:"raw_response,omitempty"`
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
	RequestID     string         `json:"request_id"`
	Failure       FailureKind    `json:"failure_kind,omitempty"`
}

type VisionRequest struct {
	ImageData []byte `json:"-"`
	ImageType string `json:"image_type"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type VisionResponse struct {
	ExtractedText string         `json:"extracted_text"`
	ModelUsed     string         `json:"model_used"`
	Provider      string         `json:"provider"`
	Usage         *Usage         `json:"usage,omitempty"`
	Raw           map[string]any `json:"raw_response,omitempty"`
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
	RequestID     string         `json:"request_id"`
	Failure       FailureKind    `json:"failure_kind,omitempty"`
}

func textFailure(provider, model string, err error) TextResponse {
	return TextResponse{ModelUsed: model, Provider: provider, Error: err.Error(), Failure: FailureProvider}
}

func imageFailure(provider, model string, err error) ImageResponse {
	return ImageResponse{ModelUsed: model, Provider: provider, Error: err.Error(), Failure: FailureProvider}
}

func visionFailure(provider, model string, err error) VisionResponse {
	return VisionResponse{ModelUsed: model, Provider: provider, Error: err.Error(), Failure: FailureProvider}
}
