package modelconfig

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/suPer8Hu/postcraft/internal/ai"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("Model configuration not found")
	ErrInvalidType   = errors.New("model_type must be one of: text, image, vision")
	ErrAlreadyExists = errors.New("model config already exists")
	ErrUnknownModel  = errors.New("model not available")
)

type CreateInput struct {
	Provider  string `json:"provider"`
	ModelID   string `json:"model_id"`
	ModelType string `json:"model_type"`
	IsEnabled *bool  `json:"is_enabled"`
	IsDefault bool   `json:"is_default"`
}

type UpdateInput struct {
	IsEnabled *bool `json:"is_enabled"`
	IsDefault *bool `json:"is_default"`
}

type Service struct {
	repo *Repo
	reg  *ai.Registry
}

func NewService(repo *Repo, reg *ai.Registry) *Service {
	return &Service{repo: repo, reg: reg}
}

// FindByIDAndUser returns ErrNotFound for missing or foreign configs.
func (s *Service) FindByIDAndUser(ctx context.Context, id, userID uint64) (*ModelConfig, error) {
	m, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, userID uint64, modelType string, skip, limit int) ([]ModelConfig, int64, error) {
	return s.repo.List(ctx, userID, modelType, skip, limit)
}

func (s *Service) Create(ctx context.Context, userID uint64, in CreateInput) (*ModelConfig, error) {
	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	in.ModelID = strings.TrimSpace(in.ModelID)
	capability := ai.Capability(in.ModelType)
	if !capability.Valid() {
		return nil, ErrInvalidType
	}

	d, ok := s.reg.Resolve(capability, in.Provider)
	if !ok || len(d.Models) == 0 {
		return nil, fmt.Errorf("%w: Provider '%s' not found or has no models", ErrUnknownModel, in.Provider)
	}
	if !slices.Contains(d.Models, in.ModelID) {
		return nil, fmt.Errorf("%w: Model '%s' not available for provider '%s'", ErrUnknownModel, in.ModelID, in.Provider)
	}

	existing, _, err := s.repo.List(ctx, userID, in.ModelType, 0, -1)
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if e.Provider == in.Provider && e.ModelID == in.ModelID {
			return nil, fmt.Errorf("%w: %s/%s", ErrAlreadyExists, in.Provider, in.ModelID)
		}
	}

	m := &ModelConfig{
		UserID:    userID,
		Provider:  in.Provider,
		ModelID:   in.ModelID,
		ModelType: in.ModelType,
		IsEnabled: in.IsEnabled == nil || *in.IsEnabled,
		IsDefault: in.IsDefault,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) Update(ctx context.Context, userID, id uint64, in UpdateInput) (*ModelConfig, error) {
	m, err := s.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if in.IsEnabled != nil {
		m.IsEnabled = *in.IsEnabled
	}
	if in.IsDefault != nil {
		m.IsDefault = *in.IsDefault
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uint64) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// ProviderInfo is one entry of the provider catalogue.
type ProviderInfo struct {
	Name                string   `json:"name"`
	AvailableModels     []string `json:"available_models"`
	ValidCredentialKeys []string `json:"valid_credential_keys"`
}

type Catalogue struct {
	TextProviders   []ProviderInfo `json:"text_providers"`
	ImageProviders  []ProviderInfo `json:"image_providers"`
	VisionProviders []ProviderInfo `json:"vision_providers"`
}

func (s *Service) Catalogue() Catalogue {
	return Catalogue{
		TextProviders:   s.providers(ai.CapabilityText),
		ImageProviders:  s.providers(ai.CapabilityImage),
		VisionProviders: s.providers(ai.CapabilityVision),
	}
}

func (s *Service) providers(c ai.Capability) []ProviderInfo {
	ds := s.reg.Providers(c)
	out := make([]ProviderInfo, 0, len(ds))
	for _, d := range ds {
		keys := d.CredentialKeys
		if keys == nil {
			keys = []string{}
		}
		out = append(out, ProviderInfo{Name: d.Name, AvailableModels: d.Models, ValidCredentialKeys: keys})
	}
	return out
}
