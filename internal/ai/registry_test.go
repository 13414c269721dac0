package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubText struct {
	key, model string
}

func (s *stubText) Name() string { return "stub" }
func (s *stubText) ValidateCredentials(ctx context.Context) error { return nil }

func (s *stubText) Generate(ctx context.Context, req TextRequest) TextResponse {
	return TextResponse{Content: req.Prompt, ModelUsed: s.model, Provider: "stub", Success: true}
}

func TestRegistry_ResolveIsCaseInsensitive(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Descriptor{
		Capability:     CapabilityText,
		Name:           "Stub",
		CredentialKeys: []string{"stub_key", "stub_alt"},
		New:            func(k, m string) Provider { return &stubText{key: k, model: m} },
	})

	d, ok := reg.Resolve(CapabilityText, "  STUB ")
	require.True(t, ok)
	assert.Equal(t, "stub", d.Name)

	_, ok = reg.Resolve(CapabilityImage, "stub")
	assert.False(t, ok, "capability is part of the key")
}

func TestRegistry_AcceptedKeys(t *testing.T) {
	reg := NewRegistry()
	RegisterBuiltins(reg, Options{})

	assert.Equal(t, []string{"chatgpt_api_key", "openai_api_key"}, reg.AcceptedKeys(CapabilityText, "openai"))
	assert.Equal(t, []string{"anthropic_api_key", "claude_api_key"}, reg.AcceptedKeys(CapabilityVision, "anthropic_vision"))
	assert.Equal(t, []string{"bfl_api_key", "flux_api_key"}, reg.AcceptedKeys(CapabilityImage, "bfl_flux"))
	assert.Empty(t, reg.AcceptedKeys(CapabilityText, "bedrock"))
	assert.Empty(t, reg.AcceptedKeys(CapabilityVision, "lm_studio_vision"))
	assert.Nil(t, reg.AcceptedKeys(CapabilityText, "unknown"))

	keys := reg.AcceptedKeys(CapabilityText, "openai")
	keys[0] = "mutated"
	assert.Equal(t, "chatgpt_api_key", reg.AcceptedKeys(CapabilityText, "openai")[0])
}

func TestRegistry_TypedHelpers(t *testing.T) {
	reg := NewRegistry()
	RegisterBuiltins(reg, Options{})

	p, ok := reg.Text("openai", "sk-test", "gpt-4o")
	require.True(t, ok)
	assert.Equal(t, OpenAIName, p.Name())

	_, ok = reg.Text("openai_dalle", "sk-test", "dall-e-3")
	assert.False(t, ok, "image providers are not text providers")

	img, ok := reg.Image("bfl_flux", "k", "flux-dev")
	require.True(t, ok)
	assert.Equal(t, FluxName, img.Name())

	v, ok := reg.Vision("lm_studio_vision", "", "llava-1.5-7b")
	require.True(t, ok)
	assert.Equal(t, LMStudioVisionName, v.Name())

	_, ok = reg.Vision("nope", "", "")
	assert.False(t, ok)

	inst, ok := reg.Instance(CapabilityImage, "openai_dalle", "k", "dall-e-2")
	require.True(t, ok)
	assert.Equal(t, DalleName, inst.Name())
}

func TestRegistry_ProvidersSortedByName(t *testing.T) {
	reg := NewRegistry()
	RegisterBuiltins(reg, Options{})

	var names []string
	for _, d := range reg.Providers(CapabilityText) {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"anthropic", "bedrock", "gemini", "openai"}, names)
	assert.Len(t, reg.Providers(CapabilityImage), 2)
	assert.Len(t, reg.Providers(CapabilityVision), 3)
}

func TestRegistry_RegisterRejectsBadDescriptors(t *testing.T) {
	reg := NewRegistry()
	assert.Panics(t, func() { reg.Register(Descriptor{Capability: "audio", Name: "x", New: func(string, string) Provider { return nil }}) })
	assert.Panics(t, func() { reg.Register(Descriptor{Capability: CapabilityText, Name: "x"}) })
}

func TestRegistry_FactoryGetsKeyAndModel(t *testing.T) {
	reg := NewRegistry()
	var got *stubText
	reg.Register(Descriptor{
		Capability: CapabilityText,
		Name:       "stub",
		New: func(k, m string) Provider {
			got = &stubText{key: k, model: m}
			return got
		},
	})

	p, ok := reg.Text("stub", "secret", "m1")
	require.True(t, ok)
	resp := p.Generate(context.Background(), TextRequest{Prompt: "hi"})
	assert.True(t, resp.Success)
	assert.Equal(t, "secret", got.key)
	assert.Equal(t, "m1", resp.ModelUsed)
}
