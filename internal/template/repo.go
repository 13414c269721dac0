package template

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, t *Template) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repo) FindByIDAndUser(ctx context.Context, id, userID uint64) (*Template, error) {
	var t Template
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

type ListFilter struct {
	Category Category
	Tag      string
	Search   string
	Skip     int
	Limit    int
}

func (r *Repo) List(ctx context.Context, userID uint64, f ListFilter) ([]Template, int64, error) {
	q := r.db.WithContext(ctx).Model(&Template{}).Where("user_id = ?", userID)
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("name LIKE ? OR content LIKE ?", like, like)
	}
	if f.Tag != "" {
		q = q.Where(datatypes.JSONArrayQuery("tags").Contains(f.Tag))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []Template
	if err := q.Order("created_at DESC, id DESC").Offset(f.Skip).Limit(f.Limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repo) Save(ctx context.Context, t *Template) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *Repo) Delete(ctx context.Context, id, userID uint64) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&Template{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repo) TagLists(ctx context.Context, userID uint64) ([]datatypes.JSONSlice[string], error) {
	var rows []Template
	if err := r.db.WithContext(ctx).Select("tags").Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]datatypes.JSONSlice[string], 0, len(rows))
	for _, t := range rows {
		out = append(out, t.Tags)
	}
	return out, nil
}
