package post

import (
	"context"
	"errors"
	"io"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/suPer8Hu/postcraft/internal/media"
	"gorm.io/datatypes"
)

const (
	maxListLimit   = 500
	maxExportLimit = 10000
	mediaPrefix    = "posts"
)

var (
	ErrContentRequired = errors.New("post content is required")
	ErrInvalidStatus   = errors.New("invalid post status")
	ErrAlreadyArchived = errors.New("post is already archived")
	ErrNoPostIDs       = errors.New("post_ids must not be empty")
	ErrMediaDisabled   = errors.New("media storage not configured")
)

type Service struct {
	repo     *Repo
	media    media.Store
	maxBytes int64
	now      func() time.Time
}

// NewService wires the post repo to a media store. store may be nil, in which
// case uploads fail with ErrMediaDisabled.
func NewService(repo *Repo, store media.Store, maxUploadBytes int64) *Service {
	return &Service{repo: repo, media: store, maxBytes: maxUploadBytes, now: time.Now}
}

// Input is shared by create and update. On update nil fields are left untouched.
type Input struct {
	Content            *string    `json:"content"`
	Caption            *string    `json:"caption"`
	AltText            *string    `json:"alt_text"`
	Status             *Status    `json:"status"`
	GraphicType        *string    `json:"graphic_type"`
	SourceURL          *string    `json:"source_url"`
	OriginalPromptName *string    `json:"original_prompt_name"`
	Keep               *bool      `json:"keep"`
	ForDeletion        *bool      `json:"for_deletion"`
	IsArchived         *bool      `json:"is_archived"`
	ScheduledAt        *time.Time `json:"scheduled_at"`
	PromptID           *uint64    `json:"prompt_id"`
	MediaURLs          *[]string  `json:"media_urls"`
}

func (in Input) apply(p *Post, now time.Time) error {
	if in.Content != nil {
		p.Content = *in.Content
	}
	if strings.TrimSpace(p.Content) == "" {
		return ErrContentRequired
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return ErrInvalidStatus
		}
		p.Status = *in.Status
	}
	if in.Caption != nil {
		p.Caption = in.Caption
	}
	if in.AltText != nil {
		p.AltText = in.AltText
	}
	if in.GraphicType != nil {
		p.GraphicType = in.GraphicType
	}
	if in.SourceURL != nil {
		p.SourceURL = in.SourceURL
	}
	if in.OriginalPromptName != nil {
		p.OriginalPromptName = in.OriginalPromptName
	}
	if in.Keep != nil {
		p.Keep = *in.Keep
	}
	if in.ForDeletion != nil {
		p.ForDeletion = *in.ForDeletion
	}
	if in.IsArchived != nil && *in.IsArchived != p.IsArchived {
		p.IsArchived = *in.IsArchived
		p.ArchivedAt = nil
		if p.IsArchived {
			p.ArchivedAt = &now
		}
	}
	if in.ScheduledAt != nil {
		p.ScheduledAt = in.ScheduledAt
	}
	if in.PromptID != nil {
		p.PromptID = in.PromptID
	}
	if in.MediaURLs != nil {
		p.MediaURLs = datatypes.JSONSlice[string](slices.Clone(*in.MediaURLs))
	}
	return nil
}

func (s *Service) Create(ctx context.Context, userID uint64, in Input) (*Post, error) {
	p := &Post{UserID: userID, Status: StatusDraft, MediaURLs: datatypes.JSONSlice[string]{}}
	if err := in.apply(p, s.now()); err != nil {
		return nil, err
	}
	if p.MediaURLs == nil {
		p.MediaURLs = datatypes.JSONSlice[string]{}
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	log.Printf("[Post] created post=%d user=%d", p.ID, userID)
	return p, nil
}

func (s *Service) Get(ctx context.Context, userID, id uint64) (*Post, error) {
	return s.repo.FindByIDAndUser(ctx, id, userID)
}

func (s *Service) List(ctx context.Context, userID uint64, f ListFilter) ([]Post, int64, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = 100
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
	return s.repo.List(ctx, userID, f)
}

func (s *Service) Update(ctx context.Context, userID, id uint64, in Input) (*Post, error) {
	p, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := in.apply(p, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uint64) error {
	return s.repo.Delete(ctx, id, userID)
}

func (s *Service) Publish(ctx context.Context, userID, id uint64) (*Post, error) {
	p, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p.Status = StatusPublished
	p.PublishedAt = &now
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	log.Printf("[Post] published post=%d user=%d", id, userID)
	return p, nil
}

func (s *Service) Archive(ctx context.Context, userID, id uint64) (*Post, error) {
	p, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if p.IsArchived {
		return nil, ErrAlreadyArchived
	}
	now := s.now().UTC()
	p.IsArchived = true
	p.ArchivedAt = &now
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Restore unarchives a post. Restoring a post that is not archived is a no-op.
func (s *Service) Restore(ctx context.Context, userID, id uint64) (*Post, error) {
	p, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !p.IsArchived {
		return p, nil
	}
	p.IsArchived = false
	p.ArchivedAt = nil
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// BulkArchive archives the caller's posts among ids and reports how many changed.
// Foreign, missing and already archived ids are skipped.
func (s *Service) BulkArchive(ctx context.Context, userID uint64, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrNoPostIDs
	}
	return s.repo.SetArchived(ctx, userID, ids, true, s.now().UTC())
}

func (s *Service) BulkRestore(ctx context.Context, userID uint64, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrNoPostIDs
	}
	return s.repo.SetArchived(ctx, userID, ids, false, s.now().UTC())
}

// AddMedia appends url to the post's media list unless it is already there.
func (s *Service) AddMedia(ctx context.Context, userID, id uint64, url string) (*Post, error) {
	p, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if slices.Contains(p.MediaURLs, url) {
		return p, nil
	}
	p.MediaURLs = append(p.MediaURLs, url)
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RemoveMedia drops url from the post and then deletes the blob. The blob
// delete is best effort: the post is updated even if it fails.
func (s *Service) RemoveMedia(ctx context.Context, userID, id uint64, url string) (*Post, error) {
	p, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if i := slices.Index(p.MediaURLs, url); i >= 0 {
		p.MediaURLs = slices.Delete(p.MediaURLs, i, i+1)
		if err := s.repo.Save(ctx, p); err != nil {
			return nil, err
		}
	}
	if s.media != nil {
		if key, ok := s.media.KeyFromURL(url); ok {
			if err := s.media.Delete(ctx, key); err != nil {
				log.Printf("[Post] media delete failed post=%d key=%s err=%v", id, key, err)
			}
		}
	}
	return p, nil
}

type UploadResult struct {
	URL         string `json:"s3_url"`
	Key         string `json:"s3_key"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// UploadMedia stores the file and attaches its URL to the post.
func (s *Service) UploadMedia(ctx context.Context, userID, id uint64, filename string, body io.Reader, size int64) (*UploadResult, error) {
	if s.media == nil {
		return nil, ErrMediaDisabled
	}
	if _, err := s.repo.FindByIDAndUser(ctx, id, userID); err != nil {
		return nil, err
	}
	ct, err := media.ContentType(filename)
	if err != nil {
		return nil, err
	}
	url, err := media.Upload(ctx, s.media, mediaPrefix, userID, filename, body, size, s.maxBytes)
	if err != nil {
		return nil, err
	}
	if _, err := s.AddMedia(ctx, userID, id, url); err != nil {
		return nil, err
	}
	key, _ := s.media.KeyFromURL(url)
	return &UploadResult{URL: url, Key: key, Filename: filename, ContentType: ct}, nil
}

// Export returns every post matching f, ignoring its paging, up to the export cap.
func (s *Service) Export(ctx context.Context, userID uint64, f ListFilter) ([]Post, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	f.Skip, f.Limit = 0, maxExportLimit
	posts, _, err := s.repo.List(ctx, userID, f)
	return posts, err
}
