package post

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

type ListFilter struct {
	Status     *Status
	IsArchived *bool
	DateFrom   *time.Time
	DateTo     *time.Time
	Search     string
	Skip       int
	Limit      int
}

func (r *Repo) Create(ctx context.Context, p *Post) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// FindByIDAndUser returns gorm.ErrRecordNotFound for missing and foreign posts alike.
func (r *Repo) FindByIDAndUser(ctx context.Context, id, userID uint64) (*Post, error) {
	var p Post
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) List(ctx context.Context, userID uint64, f ListFilter) ([]Post, int64, error) {
	q := r.db.WithContext(ctx).Model(&Post{}).Where("user_id = ?", userID)
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.IsArchived != nil {
		q = q.Where("is_archived = ?", *f.IsArchived)
	}
	if f.DateFrom != nil {
		q = q.Where("created_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.Where("created_at <= ?", *f.DateTo)
	}
	if f.Search != "" {
		q = q.Where("LOWER(content) LIKE ?", "%"+strings.ToLower(f.Search)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []Post
	if err := q.Order("created_at DESC, id DESC").Offset(f.Skip).Limit(f.Limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repo) Save(ctx context.Context, p *Post) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *Repo) Delete(ctx context.Context, id, userID uint64) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&Post{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetArchived flips is_archived on the user's posts in ids that are not
// already in the target state, returning how many rows changed.
func (r *Repo) SetArchived(ctx context.Context, userID uint64, ids []uint64, archived bool, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	updates := map[string]any{"is_archived": archived, "archived_at": nil}
	if archived {
		updates["archived_at"] = at
	}
	res := r.db.WithContext(ctx).Model(&Post{}).
		Where("user_id = ? AND id IN ? AND is_archived = ?", userID, ids, !archived).
		Updates(updates)
	return res.RowsAffected, res.Error
}
