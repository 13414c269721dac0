package template

import (
	"context"
	"errors"
	"slices"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("Template not found")
	ErrInvalidCategory = errors.New("category must be one of: ocr, manual, custom")
	ErrMissingFields   = errors.New("template name and content are required")
)

const maxNameLen = 255

type Input struct {
	Name     *string   `json:"name"`
	Category *Category `json:"category"`
	Tags     *[]string `json:"tags"`
	Content  *string   `json:"content"`
}

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

func cleanTags(tags []string) datatypes.JSONSlice[string] {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func (in Input) apply(t *Template) error {
	if in.Name != nil {
		t.Name = truncate(strings.TrimSpace(*in.Name), maxNameLen)
	}
	if in.Category != nil {
		if !in.Category.Valid() {
			return ErrInvalidCategory
		}
		t.Category = *in.Category
	}
	if in.Tags != nil {
		t.Tags = cleanTags(*in.Tags)
	}
	if in.Content != nil {
		t.Content = *in.Content
	}
	if t.Name == "" || t.Content == "" {
		return ErrMissingFields
	}
	return nil
}

func (s *Service) Create(ctx context.Context, userID uint64, in Input) (*Template, error) {
	t := &Template{UserID: userID, Category: CategoryManual, Tags: datatypes.JSONSlice[string]{}}
	if err := in.apply(t); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// CreateFromOCR stores extracted text as an ocr template.
func (s *Service) CreateFromOCR(ctx context.Context, userID uint64, name, content string, tags []string) (*Template, error) {
	cat := CategoryOCR
	return s.Create(ctx, userID, Input{Name: &name, Category: &cat, Tags: &tags, Content: &content})
}

func (s *Service) Get(ctx context.Context, userID, id uint64) (*Template, error) {
	t, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return t, err
}

func (s *Service) List(ctx context.Context, userID uint64, f ListFilter) ([]Template, int64, error) {
	if f.Category != "" && !f.Category.Valid() {
		return nil, 0, ErrInvalidCategory
	}
	return s.repo.List(ctx, userID, f)
}

func (s *Service) Update(ctx context.Context, userID, id uint64, in Input) (*Template, error) {
	t, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(t); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uint64) error {
	err := s.repo.Delete(ctx, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Tags returns the distinct tags used across the user's templates, sorted.
func (s *Service) Tags(ctx context.Context, userID uint64) ([]string, error) {
	lists, err := s.repo.TagLists(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, l := range lists {
		for _, tag := range l {
			if _, ok := seen[tag]; !ok {
				seen[tag] = struct{}{}
				out = append(out, tag)
			}
		}
	}
	slices.Sort(out)
	return out, nil
}
