package persona

import (
	"context"
	"errors"

	"gorm.io/datatypes"
)

var ErrInvalidCategory = errors.New("invalid customer info category")

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

type CategoryInfo struct {
	Name   Category `json:"name"`
	Policy Policy   `json:"policy"`
}

func (s *Service) Categories() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(Categories))
	for _, c := range Categories {
		out = append(out, CategoryInfo{Name: c, Policy: c.Policy()})
	}
	return out
}

// Initialize makes sure the user has a record for every category.
func (s *Service) Initialize(ctx context.Context, userID uint64) ([]Record, error) {
	if err := s.repo.CreateMissing(ctx, userID, Categories); err != nil {
		return nil, err
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) List(ctx context.Context, userID uint64) ([]Record, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID uint64, name string) (*Record, error) {
	c, ok := ParseCategory(name)
	if !ok {
		return nil, ErrInvalidCategory
	}
	return s.repo.Get(ctx, userID, c)
}

// Replace stores pairs as the full pair list for the category. Nothing is merged.
func (s *Service) Replace(ctx context.Context, userID uint64, name string, pairs []Pair, description *string) (*Record, error) {
	c, ok := ParseCategory(name)
	if !ok {
		return nil, ErrInvalidCategory
	}
	if pairs == nil {
		pairs = []Pair{}
	}
	rec := &Record{
		UserID:      userID,
		Category:    c,
		Details:     datatypes.JSONSlice[Pair](pairs),
		Description: description,
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID, c)
}
