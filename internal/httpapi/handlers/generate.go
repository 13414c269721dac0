package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/postcraft/internal/ai"
	"github.com/suPer8Hu/postcraft/internal/common"
	"github.com/suPer8Hu/postcraft/internal/generation"
	"github.com/suPer8Hu/postcraft/internal/media"
)

const referencePrefix = "reference-images"

type textResult struct {
	ai.TextResponse
	PromptID uint64 `json:"prompt_id"`
}

func (h *Handler) GenerateText(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var in generation.TextInput
	if !bindJSON(c, &in) {
		return
	}
	if in.Temperature != nil && (*in.Temperature < 0 || *in.Temperature > 2) {
		common.Fail(c, http.StatusBadRequest, 10002, "temperature must be between 0 and 2")
		return
	}
	resp := h.Gen.GenerateText(c.Request.Context(), uid, in)
	out := textResult{TextResponse: resp, PromptID: in.PromptID}
	if !resp.Success {
		status, code := failureStatus(resp.Failure)
		common.FailWith(c, status, code, resp.Error, out)
		return
	}
	common.OK(c, out)
}

type imageData struct {
	Base64Data    string `json:"base64_data,omitempty"`
	URL           string `json:"url,omitempty"`
	Format        string `json:"format"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

type imageResult struct {
	Images    []imageData    `json:"images"`
	ModelUsed string         `json:"model_used"`
	Provider  string         `json:"provider"`
	RequestID string         `json:"request_id"`
	Raw       map[string]any `json:"raw_response,omitempty"`
}

func (h *Handler) GenerateImage(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var in generation.ImageInput
	if !bindJSON(c, &in) {
		return
	}
	if in.Size == "" {
		in.Size = "1024x1024"
	}
	if in.Quality == "" {
		in.Quality = "standard"
	}
	if in.Style == "" {
		in.Style = "vivid"
	}
	if in.N == 0 {
		in.N = 1
	}
	if in.N < 1 || in.N > 4 {
		common.Fail(c, http.StatusBadRequest, 10002, "n must be between 1 and 4")
		return
	}

	resp := h.Gen.GenerateImage(c.Request.Context(), uid, in)
	if !resp.Success {
		status, code := failureStatus(resp.Failure)
		common.FailWith(c, status, code, resp.Error, resp)
		return
	}
	out := imageResult{
		Images:    []imageData{},
		ModelUsed: resp.ModelUsed,
		Provider:  resp.Provider,
		RequestID: resp.RequestID,
		Raw:       resp.Raw,
	}
	if resp.ImageData != "" || resp.ImageURL != "" {
		out.Images = append(out.Images, imageData{
			Base64Data:    resp.ImageData,
			URL:           resp.ImageURL,
			Format:        "png",
			RevisedPrompt: resp.RevisedPrompt,
		})
	}
	common.OK(c, out)
}

// UploadReferenceImage stores an image the user wants to steer generation with.
func (h *Handler) UploadReferenceImage(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	if h.Media == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50302, "media storage not configured")
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10005, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10006, "failed to read file")
		return
	}
	defer f.Close()

	url, err := media.Upload(c.Request.Context(), h.Media, referencePrefix, uid, fh.Filename, f, fh.Size, h.MaxUploadBytes)
	if err != nil {
		mediaFailed(c, err)
		return
	}
	key, _ := h.Media.KeyFromURL(url)
	ct, _ := media.ContentType(fh.Filename)
	common.OK(c, gin.H{"s3_url": url, "s3_key": key, "filename": fh.Filename, "content_type": ct})
}

func mediaFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, media.ErrUnsupportedType):
		common.Fail(c, http.StatusBadRequest, 10007, err.Error())
	case errors.Is(err, media.ErrTooLarge):
		common.Fail(c, http.StatusRequestEntityTooLarge, 41301, err.Error())
	default:
		log.Printf("[Media] upload failed err=%v", err)
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to upload file")
	}
}

type ocrResult struct {
	ai.VisionResponse
	TemplateID   *uint64 `json:"template_id"`
	TemplateName *string `json:"template_name"`
}

func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ProcessOCR extracts text from an uploaded image. A provider failure is
// still a 200 carrying success=false, only precondition failures are 400s.
func (h *Handler) ProcessOCR(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	modelID, err := strconv.ParseUint(c.PostForm("model_config_id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "model_config_id is required")
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10005, "file is required")
		return
	}
	if ct := fh.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		common.Fail(c, http.StatusBadRequest, 10007, "File must be an image")
		return
	}
	f, err := fh.Open()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10006, "failed to read file")
		return
	}
	defer f.Close()
	// one byte past the limit is enough for the size check to trip
	data, err := io.ReadAll(io.LimitReader(f, generation.MaxImageBytes+1))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10006, "failed to read file")
		return
	}

	filename := fh.Filename
	if filename == "" {
		filename = "image.png"
	}
	resp, tpl := h.Gen.ProcessImage(c.Request.Context(), uid, generation.OCRInput{
		ImageData:     data,
		Filename:      filename,
		ModelConfigID: modelID,
		Prompt:        c.PostForm("custom_prompt"),
		TemplateName:  c.PostForm("template_name"),
		TemplateTags:  splitTags(c.PostForm("template_tags")),
	})
	out := ocrResult{VisionResponse: resp}
	if tpl != nil {
		out.TemplateID, out.TemplateName = &tpl.ID, &tpl.Name
	}
	if !resp.Success && resp.Failure != ai.FailureProvider {
		status, code := failureStatus(resp.Failure)
		common.FailWith(c, status, code, resp.Error, out)
		return
	}
	common.OK(c, out)
}

type ocrProvider struct {
	Name                string   `json:"name"`
	DisplayName         string   `json:"display_name"`
	AvailableModels     []string `json:"available_models"`
	ValidCredentialKeys []string `json:"valid_credential_keys"`
	IsLocal             bool     `json:"is_local"`
}

var visionDisplayNames = map[string]string{
	ai.OpenAIVisionName:    "OpenAI GPT-4 Vision",
	ai.AnthropicVisionName: "Anthropic Claude Vision",
	ai.LMStudioVisionName:  "LM Studio (Local)",
}

func (h *Handler) OCRProviders(c *gin.Context) {
	ds := h.Registry.Providers(ai.CapabilityVision)
	out := make([]ocrProvider, 0, len(ds))
	for _, d := range ds {
		keys := d.CredentialKeys
		if keys == nil {
			keys = []string{}
		}
		name, ok := visionDisplayNames[d.Name]
		if !ok {
			name = d.Name
		}
		out = append(out, ocrProvider{
			Name:                d.Name,
			DisplayName:         name,
			AvailableModels:     d.Models,
			ValidCredentialKeys: keys,
			IsLocal:             len(keys) == 0,
		})
	}
	common.OK(c, gin.H{"providers": out})
}
