package ai

import (
	"net/http"
	"time"
)

// Options configures the built-in providers. Zero values fall back to the
// public vendor endpoints.
type Options struct {
	HTTPTimeout time.Duration

	OpenAIBaseURL    string
	AnthropicBaseURL string
	GeminiBaseURL    string
	FluxBaseURL      string
	LMStudioURL      string
	BedrockRegion    string

	FluxPollInterval time.Duration
	FluxMaxAttempts  int

	// HTTPClient overrides the per-provider client; tests point it at httptest servers.
	HTTPClient *http.Client
}

func (o Options) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return newHTTPClient(o.HTTPTimeout)
}

// RegisterBuiltins registers every provider postcraft ships with.
func RegisterBuiltins(reg *Registry, opts Options) {
	// text
	reg.Register(Descriptor{
		Capability:     CapabilityText,
		Name:           OpenAIName,
		Models:         openAIModels,
		CredentialKeys: openAIKeys,
		New: func(apiKey, modelID string) Provider {
			return NewOpenAIProvider(opts.OpenAIBaseURL, apiKey, modelID, opts.client())
		},
	})
	reg.Register(Descriptor{
		Capability:     CapabilityText,
		Name:           AnthropicName,
		Models:         anthropicModels,
		CredentialKeys: anthropicKeys,
		New: func(apiKey, modelID string) Provider {
			return NewAnthropicProvider(opts.AnthropicBaseURL, apiKey, modelID, opts.client())
		},
	})
	reg.Register(Descriptor{
		Capability:     CapabilityText,
		Name:           GeminiName,
		Models:         geminiModels,
		CredentialKeys: geminiKeys,
		New: func(apiKey, modelID string) Provider {
			return NewGeminiProvider(opts.GeminiBaseURL, apiKey, modelID, opts.client())
		},
	})
	reg.Register(Descriptor{
		Capability: CapabilityText,
		Name:       BedrockName,
		Models:     bedrockModels,
		New: func(_, modelID string) Provider {
			return NewBedrockProvider(opts.BedrockRegion, modelID, opts.HTTPTimeout)
		},
	})

	// image
	reg.Register(Descriptor{
		Capability:     CapabilityImage,
		Name:           DalleName,
		Models:         dalleModels,
		CredentialKeys: openAIKeys,
		New: func(apiKey, modelID string) Provider {
			return NewDalleProvider(opts.OpenAIBaseURL, apiKey, modelID, opts.client())
		},
	})
	reg.Register(Descriptor{
		Capability:     CapabilityImage,
		Name:           FluxName,
		Models:         fluxModels,
		CredentialKeys: fluxKeys,
		New: func(apiKey, modelID string) Provider {
			return NewFluxProvider(opts.FluxBaseURL, apiKey, modelID, opts.client(), opts.FluxPollInterval, opts.FluxMaxAttempts)
		},
	})

	// vision
	reg.Register(Descriptor{
		Capability:     CapabilityVision,
		Name:           OpenAIVisionName,
		Models:         openAIVisionModels,
		CredentialKeys: openAIKeys,
		New: func(apiKey, modelID string) Provider {
			return NewOpenAIVisionProvider(opts.OpenAIBaseURL, apiKey, modelID, opts.client())
		},
	})
	reg.Register(Descriptor{
		Capability:     CapabilityVision,
		Name:           AnthropicVisionName,
		Models:         anthropicModels,
		CredentialKeys: anthropicKeys,
		New: func(apiKey, modelID string) Provider {
			return NewAnthropicVisionProvider(opts.AnthropicBaseURL, apiKey, modelID, opts.client())
		},
	})
	reg.Register(Descriptor{
		Capability: CapabilityVision,
		Name:       LMStudioVisionName,
		Models:     lmStudioModels,
		New: func(_, modelID string) Provider {
			return NewLMStudioVisionProvider(opts.LMStudioURL, modelID, opts.client())
		},
	})
}
