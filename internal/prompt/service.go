package prompt

import (
	"context"
	"errors"
	"strings"

	"gorm.io/datatypes"
)

var ErrNameRequired = errors.New("prompt name and details are required")

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

// Input is the writable part of a prompt. Nil fields are left untouched on update.
type Input struct {
	Name               *string          `json:"name"`
	Details            *string          `json:"details"`
	SelectedCustomers  *map[string]bool `json:"selected_customers"`
	URL                *string          `json:"url"`
	MediaFilePath      *string          `json:"media_file_path"`
	AWSFolderURL       *string          `json:"aws_folder_url"`
	ArtworkDescription *string          `json:"artwork_description"`
	ExampleImage       *string          `json:"example_image"`
	TagID              *uint64          `json:"tag_id"`
}

func (in Input) apply(p *Prompt) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Details != nil {
		p.Details = *in.Details
	}
	if in.SelectedCustomers != nil {
		p.SelectedCustomers = datatypes.NewJSONType(*in.SelectedCustomers)
	}
	if in.URL != nil {
		p.URL = *in.URL
	}
	if in.MediaFilePath != nil {
		p.MediaFilePath = *in.MediaFilePath
	}
	if in.AWSFolderURL != nil {
		p.AWSFolderURL = *in.AWSFolderURL
	}
	if in.ArtworkDescription != nil {
		p.ArtworkDescription = *in.ArtworkDescription
	}
	if in.ExampleImage != nil {
		p.ExampleImage = *in.ExampleImage
	}
	if in.TagID != nil {
		p.TagID = in.TagID
	}
}

func (s *Service) Create(ctx context.Context, userID uint64, in Input) (*Prompt, error) {
	p := &Prompt{UserID: userID, SelectedCustomers: datatypes.NewJSONType(map[string]bool{})}
	in.apply(p)
	if p.Name == "" || p.Details == "" {
		return nil, ErrNameRequired
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, userID, id uint64) (*Prompt, error) {
	return s.repo.FindByIDAndUser(ctx, id, userID)
}

func (s *Service) List(ctx context.Context, userID uint64, f ListFilter) ([]Prompt, int64, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
	return s.repo.List(ctx, userID, f)
}

func (s *Service) Update(ctx context.Context, userID, id uint64, in Input) (*Prompt, error) {
	p, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	in.apply(p)
	if p.Name == "" || p.Details == "" {
		return nil, ErrNameRequired
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uint64) error {
	return s.repo.Delete(ctx, id, userID)
}

func (s *Service) Tags(ctx context.Context) ([]Tag, error) {
	return s.repo.ListTags(ctx)
}
