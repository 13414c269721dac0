package generation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/suPer8Hu/postcraft/internal/ai"
	"github.com/suPer8Hu/postcraft/internal/credential"
	"github.com/suPer8Hu/postcraft/internal/metrics"
	"github.com/suPer8Hu/postcraft/internal/modelconfig"
	"github.com/suPer8Hu/postcraft/internal/prompt"
	"github.com/suPer8Hu/postcraft/internal/template"
	"gorm.io/gorm"
)

const (
	DefaultTemperature = 0.7
	DefaultOCRPrompt   = "Extract all text from this image. Return only the extracted text, preserving the original formatting and structure as much as possible."
	MaxImageBytes      = 20 * 1024 * 1024
	ocrTemplateNameMax = 255
)

var (
	SupportedImageTypes = []string{"png", "jpg", "jpeg", "gif", "webp"}
	defaultOCRTags      = []string{"ocr", "extracted"}
)

type PromptStore interface {
	FindByIDAndUser(ctx context.Context, id, userID uint64) (*prompt.Prompt, error)
}

type ModelConfigStore interface {
	FindByIDAndUser(ctx context.Context, id, userID uint64) (*modelconfig.ModelConfig, error)
}

// CredentialStore hands out sealed values; Decrypt opens them.
type CredentialStore interface {
	FindByAcceptedKeys(ctx context.Context, userID uint64, keys []string) (string, error)
	Decrypt(sealed string) (string, error)
}

type PersonaRenderer interface {
	Render(ctx context.Context, userID uint64, tmpl string, selection map[string]bool) (string, error)
}

type TemplateCreator interface {
	CreateFromOCR(ctx context.Context, userID uint64, name, content string, tags []string) (*template.Template, error)
}

type Deps struct {
	Prompts     PromptStore
	Models      ModelConfigStore
	Credentials CredentialStore
	Persona     PersonaRenderer
	Templates   TemplateCreator
	Metrics     *metrics.Recorder
}

// Orchestrator turns a stored prompt or an image plus a model config into one
// provider call. Precondition problems come back as failed responses, never
// as Go errors, and every response carries a fresh request id.
type Orchestrator struct {
	reg  *ai.Registry
	deps Deps

	newID func() string
}

func NewOrchestrator(reg *ai.Registry, deps Deps) *Orchestrator {
	return &Orchestrator{reg: reg, deps: deps, newID: uuid.NewString}
}

type TextInput struct {
	PromptID      uint64   `json:"prompt_id"`
	ModelConfigID uint64   `json:"model_config_id"`
	Temperature   *float64 `json:"temperature"`
	MaxTokens     int      `json:"max_tokens"`
	SystemPrompt  string   `json:"system_prompt"`
	TopP          *float64 `json:"top_p"`
	StopSequences []string `json:"stop_sequences"`
}

type ImageInput struct {
	Prompt          string   `json:"prompt"`
	ModelConfigID   uint64   `json:"model_config_id"`
	Size            string   `json:"size"`
	Quality         string   `json:"quality"`
	Style           string   `json:"style"`
	N               int      `json:"n"`
	Width           *int     `json:"width"`
	Height          *int     `json:"height"`
	Steps           *int     `json:"steps"`
	Guidance        *float64 `json:"guidance"`
	SafetyTolerance *int     `json:"safety_tolerance"`
}

type OCRInput struct {
	ImageData     []byte
	Filename      string
	ModelConfigID uint64
	Prompt        string
	TemplateName  string
	TemplateTags  []string
}

// stepError is a failure raised before or instead of the provider call.
type stepError struct {
	kind ai.FailureKind
	msg  string
}

func (e *stepError) Error() string { return e.msg }

func precondition(format string, args ...any) error {
	return &stepError{kind: ai.FailurePrecondition, msg: fmt.Sprintf(format, args...)}
}

func internal(what string, err error) error {
	return &stepError{kind: ai.FailureInternal, msg: fmt.Sprintf("%s: %v", what, err)}
}

func failureOf(err error) (ai.FailureKind, string) {
	var se *stepError
	if errors.As(err, &se) {
		return se.kind, se.msg
	}
	return ai.FailureInternal, err.Error()
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, modelconfig.ErrNotFound) ||
		errors.Is(err, credential.ErrNotFound)
}

func (o *Orchestrator) model(ctx context.Context, userID, id uint64, capability ai.Capability) (*modelconfig.ModelConfig, error) {
	m, err := o.deps.Models.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, precondition("Model configuration with ID %d not found", id)
		}
		return nil, internal("Failed to load model configuration", err)
	}
	if m.ModelType != string(capability) {
		return nil, precondition("Model %s is not %s %s model", m.ModelID, article(string(capability)), capability)
	}
	if !m.IsEnabled {
		return nil, precondition("Model %s is disabled", m.ModelID)
	}
	return m, nil
}

func article(word string) string {
	if word != "" && strings.ContainsRune("aeiou", rune(word[0])) {
		return "an"
	}
	return "a"
}

// apiKey resolves the decrypted key for provider. Providers that accept no
// keys get "" without touching the credential store.
func (o *Orchestrator) apiKey(ctx context.Context, userID uint64, capability ai.Capability, provider string) (string, error) {
	keys := o.reg.AcceptedKeys(capability, provider)
	if len(keys) == 0 {
		return "", nil
	}
	sealed, err := o.deps.Credentials.FindByAcceptedKeys(ctx, userID, keys)
	if err != nil {
		if isNotFound(err) {
			return "", precondition("No credentials found for provider '%s'. Please add one of: %s", provider, strings.Join(keys, ", "))
		}
		return "", internal("Failed to load credentials", err)
	}
	plain, err := o.deps.Credentials.Decrypt(sealed)
	if err != nil {
		return "", precondition("Failed to decrypt credential: %v", err)
	}
	return plain, nil
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func recovered(tag, requestID string, r any) error {
	log.Printf("[%s] request_id=%s panic=%v", tag, requestID, r)
	return &stepError{kind: ai.FailureInternal, msg: fmt.Sprintf("internal error: %v", r)}
}

// GenerateText renders the prompt with persona data and runs it through the
// configured text model.
func (o *Orchestrator) GenerateText(ctx context.Context, userID uint64, in TextInput) (resp ai.TextResponse) {
	requestID := o.newID()
	provider := ""
	defer func() {
		if r := recover(); r != nil {
			kind, msg := failureOf(recovered("TextGeneration", requestID, r))
			resp = ai.TextResponse{Error: msg, Failure: kind, RequestID: requestID, Provider: provider}
		}
	}()

	fail := func(err error) ai.TextResponse {
		kind, msg := failureOf(err)
		log.Printf("[TextGeneration] request_id=%s user=%d prompt=%d model_config=%d kind=%s err=%s",
			requestID, userID, in.PromptID, in.ModelConfigID, kind, msg)
		o.deps.Metrics.ObserveProvider(string(ai.CapabilityText), provider, string(kind), 0)
		return ai.TextResponse{Error: msg, Failure: kind, RequestID: requestID, Provider: provider}
	}

	p, err := o.deps.Prompts.FindByIDAndUser(ctx, in.PromptID, userID)
	if err != nil {
		if isNotFound(err) {
			return fail(precondition("Prompt with ID %d not found", in.PromptID))
		}
		return fail(internal("Failed to load prompt", err))
	}

	text, err := o.deps.Persona.Render(ctx, userID, p.Details, p.Selection())
	if err != nil {
		return fail(internal("Failed to load customer info", err))
	}

	m, err := o.model(ctx, userID, in.ModelConfigID, ai.CapabilityText)
	if err != nil {
		return fail(err)
	}
	provider = m.Provider

	key, err := o.apiKey(ctx, userID, ai.CapabilityText, m.Provider)
	if err != nil {
		return fail(err)
	}

	tp, ok := o.reg.Text(m.Provider, key, m.ModelID)
	if !ok {
		return fail(precondition("Provider '%s' not found", m.Provider))
	}

	temp := DefaultTemperature
	if in.Temperature != nil {
		temp = *in.Temperature
	}

	start := time.Now()
	resp = tp.Generate(ctx, ai.TextRequest{
		Prompt:       text,
		SystemPrompt: in.SystemPrompt,
		MaxTokens:    in.MaxTokens,
		Temperature:  &temp,
		Options:      ai.TextOptions{TopP: in.TopP, StopSequences: in.StopSequences},
	})
	took := time.Since(start)
	resp.RequestID = requestID
	o.deps.Metrics.ObserveProvider(string(ai.CapabilityText), m.Provider, outcome(resp.Success), took)

	if resp.Success {
		total := 0
		if resp.Usage != nil {
			total = resp.Usage.TotalTokens
		}
		log.Printf("[TextGeneration] request_id=%s provider=%s model=%s tokens=%d cost=%s",
			requestID, m.Provider, m.ModelID, total, took)
	} else {
		log.Printf("[TextGeneration] request_id=%s provider=%s model=%s cost=%s err=%s",
			requestID, m.Provider, m.ModelID, took, resp.Error)
	}
	return resp
}

func (o *Orchestrator) GenerateImage(ctx context.Context, userID uint64, in ImageInput) (resp ai.ImageResponse) {
	requestID := o.newID()
	provider := ""
	defer func() {
		if r := recover(); r != nil {
			kind, msg := failureOf(recovered("ImageGeneration", requestID, r))
			resp = ai.ImageResponse{Error: msg, Failure: kind, RequestID: requestID, Provider: provider}
		}
	}()

	fail := func(err error) ai.ImageResponse {
		kind, msg := failureOf(err)
		log.Printf("[ImageGeneration] request_id=%s user=%d model_config=%d kind=%s err=%s",
			requestID, userID, in.ModelConfigID, kind, msg)
		o.deps.Metrics.ObserveProvider(string(ai.CapabilityImage), provider, string(kind), 0)
		return ai.ImageResponse{Error: msg, Failure: kind, RequestID: requestID, Provider: provider}
	}

	if strings.TrimSpace(in.Prompt) == "" {
		return fail(precondition("Prompt is required"))
	}

	m, err := o.model(ctx, userID, in.ModelConfigID, ai.CapabilityImage)
	if err != nil {
		return fail(err)
	}
	provider = m.Provider

	key, err := o.apiKey(ctx, userID, ai.CapabilityImage, m.Provider)
	if err != nil {
		return fail(err)
	}

	ip, ok := o.reg.Image(m.Provider, key, m.ModelID)
	if !ok {
		return fail(precondition("Image provider '%s' not found", m.Provider))
	}

	start := time.Now()
	resp = ip.GenerateImage(ctx, ai.ImageRequest{
		Prompt:          in.Prompt,
		Size:            in.Size,
		Quality:         in.Quality,
		Style:           in.Style,
		N:               in.N,
		Width:           in.Width,
		Height:          in.Height,
		Steps:           in.Steps,
		Guidance:        in.Guidance,
		SafetyTolerance: in.SafetyTolerance,
	})
	took := time.Since(start)
	resp.RequestID = requestID
	o.deps.Metrics.ObserveProvider(string(ai.CapabilityImage), m.Provider, outcome(resp.Success), took)

	if resp.Success {
		log.Printf("[ImageGeneration] request_id=%s provider=%s model=%s cost=%s", requestID, m.Provider, m.ModelID, took)
	} else {
		log.Printf("[ImageGeneration] request_id=%s provider=%s model=%s cost=%s err=%s",
			requestID, m.Provider, m.ModelID, took, resp.Error)
	}
	return resp
}

// ImageType returns the lowercase extension of filename without the dot.
func ImageType(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

func supportedImage(t string) bool {
	for _, s := range SupportedImageTypes {
		if s == t {
			return true
		}
	}
	return false
}

func ocrTemplateName(in OCRInput) string {
	name := strings.TrimSpace(in.TemplateName)
	if name == "" {
		base := filepath.Base(in.Filename)
		name = "OCR: " + strings.TrimSuffix(base, filepath.Ext(base))
	}
	if r := []rune(name); len(r) > ocrTemplateNameMax {
		name = string(r[:ocrTemplateNameMax])
	}
	return name
}

// ProcessImage extracts text from an image with a vision model. On success
// the text is also saved as an ocr template; that save is best effort and the
// returned template is nil when it fails.
func (o *Orchestrator) ProcessImage(ctx context.Context, userID uint64, in OCRInput) (resp ai.VisionResponse, tpl *template.Template) {
	requestID := o.newID()
	provider := ""
	defer func() {
		if r := recover(); r != nil {
			kind, msg := failureOf(recovered("OCR", requestID, r))
			resp = ai.VisionResponse{Error: msg, Failure: kind, RequestID: requestID, Provider: provider}
			tpl = nil
		}
	}()

	fail := func(err error) (ai.VisionResponse, *template.Template) {
		kind, msg := failureOf(err)
		log.Printf("[OCR] request_id=%s user=%d file=%q model_config=%d kind=%s err=%s",
			requestID, userID, in.Filename, in.ModelConfigID, kind, msg)
		o.deps.Metrics.ObserveProvider(string(ai.CapabilityVision), provider, string(kind), 0)
		return ai.VisionResponse{Error: msg, Failure: kind, RequestID: requestID, Provider: provider}, nil
	}

	imageType := ImageType(in.Filename)
	if !supportedImage(imageType) {
		return fail(precondition("Unsupported image type. Supported: %s", strings.Join(SupportedImageTypes, ", ")))
	}
	if len(in.ImageData) > MaxImageBytes {
		return fail(precondition("Image too large. Maximum size: %dMB", MaxImageBytes/(1024*1024)))
	}
	log.Printf("[OCR] request_id=%s processing file=%q bytes=%d", requestID, in.Filename, len(in.ImageData))

	m, err := o.model(ctx, userID, in.ModelConfigID, ai.CapabilityVision)
	if err != nil {
		return fail(err)
	}
	provider = m.Provider

	key, err := o.apiKey(ctx, userID, ai.CapabilityVision, m.Provider)
	if err != nil {
		return fail(err)
	}

	vp, ok := o.reg.Vision(m.Provider, key, m.ModelID)
	if !ok {
		return fail(precondition("Vision provider '%s' not found", m.Provider))
	}

	promptText := in.Prompt
	if strings.TrimSpace(promptText) == "" {
		promptText = DefaultOCRPrompt
	}

	start := time.Now()
	resp = vp.ExtractText(ctx, ai.VisionRequest{
		ImageData: in.ImageData,
		ImageType: imageType,
		Prompt:    promptText,
	})
	took := time.Since(start)
	resp.RequestID = requestID
	o.deps.Metrics.ObserveProvider(string(ai.CapabilityVision), m.Provider, outcome(resp.Success), took)

	if !resp.Success {
		log.Printf("[OCR] request_id=%s provider=%s model=%s cost=%s err=%s", requestID, m.Provider, m.ModelID, took, resp.Error)
		return resp, nil
	}

	if resp.ExtractedText != "" && o.deps.Templates != nil {
		tags := in.TemplateTags
		if len(tags) == 0 {
			tags = defaultOCRTags
		}
		created, err := o.deps.Templates.CreateFromOCR(ctx, userID, ocrTemplateName(in), resp.ExtractedText, tags)
		if err != nil {
			log.Printf("[OCR] request_id=%s save template failed: %v", requestID, err)
		} else {
			tpl = created
			log.Printf("[OCR] request_id=%s created template=%d", requestID, created.ID)
		}
	}
	log.Printf("[OCR] request_id=%s provider=%s model=%s chars=%d cost=%s",
		requestID, m.Provider, m.ModelID, len(resp.ExtractedText), took)
	return resp, tpl
}
