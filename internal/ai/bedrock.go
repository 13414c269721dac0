package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	BedrockName             = "bedrock"
	bedrockAnthropicVersion = "bedrock-2023-05-31"
)

var bedrockModels = []string{
	"anthropic.claude-3-5-sonnet-20240620-v1:0",
	"anthropic.claude-3-haiku-20240307-v1:0",
}

// bedrockInvoker is the slice of the bedrockruntime client this adapter uses.
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockProvider runs Anthropic models hosted on Amazon Bedrock. It needs no
// stored credential: the AWS default chain (env, profile, instance role)
// supplies one, loaded lazily on first call.
type BedrockProvider struct {
	Region string
	Model  string
	// Timeout bounds every InvokeModel call.
	Timeout time.Duration

	once   sync.Once
	svc    bedrockInvoker
	svcErr error
}

func NewBedrockProvider(region, model string, timeout time.Duration) *BedrockProvider {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &BedrockProvider{Region: strings.TrimSpace(region), Model: model, Timeout: timeout}
}

func (p *BedrockProvider) Name() string { return BedrockName }

func (p *BedrockProvider) client(ctx context.Context) (bedrockInvoker, error) {
	p.once.Do(func() {
		if p.svc != nil {
			return
		}
		var cfg aws.Config
		var err error
		if p.Region != "" {
			cfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.Region))
		} else {
			cfg, err = awsconfig.LoadDefaultConfig(ctx)
		}
		if err != nil {
			p.svcErr = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}
		if cfg.Region == "" {
			p.svcErr = errors.New("AWS region not resolved. Set BEDROCK_REGION or AWS_REGION")
			return
		}
		p.svc = bedrockruntime.NewFromConfig(cfg)
	})
	return p.svc, p.svcErr
}

type bedrockContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockMessage struct {
	Role    string           `json:"role"`
	Content []bedrockContent `json:"content"`
}

type bedrockPayload struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Temperature      *float64         `json:"temperature,omitempty"`
	TopP             *float64         `json:"top_p,omitempty"`
	StopSequences    []string         `json:"stop_sequences,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
}

func (p *BedrockProvider) invoke(ctx context.Context, payload bedrockPayload) (*anthropicResponse, error) {
	svc, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	out, err := svc.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.Model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke error: %w", err)
	}
	var decoded anthropicResponse
	if err := json.Unmarshal(out.Body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode Bedrock response: %w", err)
	}
	return &decoded, nil
}

func (p *BedrockProvider) Generate(ctx context.Context, req TextRequest) TextResponse {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicTokens
	}
	decoded, err := p.invoke(ctx, bedrockPayload{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        maxTokens,
		System:           req.SystemPrompt,
		Temperature:      req.Temperature,
		TopP:             req.Options.TopP,
		StopSequences:    req.Options.StopSequences,
		Messages: []bedrockMessage{{
			Role:    "user",
			Content: []bedrockContent{{Type: "text", Text: req.Prompt}},
		}},
	})
	if err != nil {
		return textFailure(BedrockName, p.Model, err)
	}
	text := decoded.text()
	if strings.TrimSpace(text) == "" {
		return textFailure(BedrockName, p.Model, errors.New("empty response from Bedrock Anthropic model"))
	}
	return TextResponse{
		Content:   text,
		ModelUsed: p.Model,
		Provider:  BedrockName,
		Usage:     decoded.usage(),
		Raw:       decoded.raw(),
		Success:   true,
	}
}

func (p *BedrockProvider) ValidateCredentials(ctx context.Context) error {
	_, err := p.invoke(ctx, bedrockPayload{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        1,
		Messages: []bedrockMessage{{
			Role:    "user",
			Content: []bedrockContent{{Type: "text", Text: "test"}},
		}},
	})
	return err
}
