package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/postcraft/internal/ai"
)

var (
	ErrNotFound      = errors.New("credential not found")
	ErrKeyRequired   = errors.New("credential key and value are required")
	ErrUnknownTarget = errors.New("unknown provider")
)

// View is what the API returns: never the value, only a masked preview.
type View struct {
	ID          uint64    `json:"id"`
	Key         string    `json:"key"`
	Preview     string    `json:"preview"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Mask keeps the first and last four characters of long secrets.
func Mask(plain string) string {
	r := []rune(plain)
	if len(r) <= 12 {
		return strings.Repeat("*", 8)
	}
	return string(r[:4]) + "..." + string(r[len(r)-4:])
}

type Service struct {
	repo   *Repo
	cipher *Cipher
	reg    *ai.Registry
}

func NewService(repo *Repo, cipher *Cipher, reg *ai.Registry) *Service {
	return &Service{repo: repo, cipher: cipher, reg: reg}
}

func (s *Service) view(c *Credential) View {
	preview := strings.Repeat("*", 8)
	if plain, err := s.cipher.Decrypt(c.Value); err == nil {
		preview = Mask(plain)
	}
	return View{
		ID:          c.ID,
		Key:         c.Key,
		Preview:     preview,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// Set stores or replaces the value for key.
func (s *Service) Set(ctx context.Context, userID uint64, key, value string, description *string) (View, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return View{}, ErrKeyRequired
	}
	sealed, err := s.cipher.Encrypt(value)
	if err != nil {
		return View{}, err
	}
	c := &Credential{UserID: userID, Key: key, Value: sealed, Description: description}
	if err := s.repo.Upsert(ctx, c); err != nil {
		return View{}, err
	}
	stored, err := s.repo.Get(ctx, userID, key)
	if err != nil {
		return View{}, err
	}
	return s.view(stored), nil
}

func (s *Service) List(ctx context.Context, userID uint64) ([]View, error) {
	creds, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(creds))
	for i := range creds {
		out = append(out, s.view(&creds[i]))
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, userID uint64, key string) (View, error) {
	c, err := s.repo.Get(ctx, userID, strings.ToLower(key))
	if err != nil {
		if IsNotFound(err) {
			return View{}, ErrNotFound
		}
		return View{}, err
	}
	return s.view(c), nil
}

func (s *Service) Delete(ctx context.Context, userID uint64, key string) error {
	err := s.repo.Delete(ctx, userID, strings.ToLower(key))
	if IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

// FindByAcceptedKeys returns the sealed value of the first stored key in keys.
func (s *Service) FindByAcceptedKeys(ctx context.Context, userID uint64, keys []string) (string, error) {
	c, err := s.repo.FindByAcceptedKeys(ctx, userID, keys)
	if err != nil {
		if IsNotFound(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return c.Value, nil
}

func (s *Service) Decrypt(sealed string) (string, error) {
	return s.cipher.Decrypt(sealed)
}

// Validate decrypts the stored key and asks the provider whether it accepts it.
func (s *Service) Validate(ctx context.Context, userID uint64, key string, capability ai.Capability, provider, modelID string) error {
	c, err := s.repo.Get(ctx, userID, strings.ToLower(key))
	if err != nil {
		if IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	plain, err := s.cipher.Decrypt(c.Value)
	if err != nil {
		return fmt.Errorf("Failed to decrypt credential: %w", err)
	}
	if modelID == "" {
		if d, ok := s.reg.Resolve(capability, provider); ok && len(d.Models) > 0 {
			modelID = d.Models[0]
		}
	}
	p, ok := s.reg.Instance(capability, provider, plain, modelID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, provider)
	}
	return p.ValidateCredentials(ctx)
}
