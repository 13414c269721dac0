package prompt

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, p *Prompt) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// FindByIDAndUser returns gorm.ErrRecordNotFound when the prompt does not exist or belongs to someone else.
func (r *Repo) FindByIDAndUser(ctx context.Context, id, userID uint64) (*Prompt, error) {
	var p Prompt
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) FindByName(ctx context.Context, userID uint64, name string) (*Prompt, error) {
	var p Prompt
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

type ListFilter struct {
	Search string
	TagID  *uint64
	Skip   int
	Limit  int
}

func (r *Repo) List(ctx context.Context, userID uint64, f ListFilter) ([]Prompt, int64, error) {
	q := r.db.WithContext(ctx).Model(&Prompt{}).Where("user_id = ?", userID)
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("name LIKE ? OR details LIKE ?", like, like)
	}
	if f.TagID != nil {
		q = q.Where("tag_id = ?", *f.TagID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []Prompt
	if err := q.Order("id DESC").Offset(f.Skip).Limit(f.Limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repo) Save(ctx context.Context, p *Prompt) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *Repo) Delete(ctx context.Context, id, userID uint64) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&Prompt{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// EnsureTag returns the tag with this name, creating it when missing. created reports a new row.
func (r *Repo) EnsureTag(ctx context.Context, name string) (*Tag, bool, error) {
	var t Tag
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&t).Error
	if err == nil {
		return &t, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	t = Tag{Name: name}
	if err := r.db.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, false, err
	}
	return &t, true, nil
}

func (r *Repo) ListTags(ctx context.Context) ([]Tag, error) {
	var out []Tag
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
