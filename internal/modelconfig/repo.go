package modelconfig

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) FindByIDAndUser(ctx context.Context, id, userID uint64) (*ModelConfig, error) {
	var m ModelConfig
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) List(ctx context.Context, userID uint64, modelType string, skip, limit int) ([]ModelConfig, int64, error) {
	q := r.db.WithContext(ctx).Model(&ModelConfig{}).Where("user_id = ?", userID)
	if modelType != "" {
		q = q.Where("model_type = ?", modelType)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []ModelConfig
	if err := q.Order("id ASC").Offset(skip).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// save writes m inside one transaction. When m is the default, every other
// default of the same (user, model_type) is cleared first.
func (r *Repo) save(ctx context.Context, m *ModelConfig, create bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m.IsDefault {
			// lock the user's rows of this type so concurrent writers serialise
			var ids []uint64
			if err := tx.Model(&ModelConfig{}).
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("user_id = ? AND model_type = ?", m.UserID, m.ModelType).
				Pluck("id", &ids).Error; err != nil {
				return err
			}
			unset := tx.Model(&ModelConfig{}).
				Where("user_id = ? AND model_type = ? AND is_default = ?", m.UserID, m.ModelType, true)
			if !create {
				unset = unset.Where("id <> ?", m.ID)
			}
			if err := unset.Update("is_default", false).Error; err != nil {
				return err
			}
		}
		if create {
			return tx.Create(m).Error
		}
		return tx.Save(m).Error
	})
}

func (r *Repo) Create(ctx context.Context, m *ModelConfig) error {
	return r.save(ctx, m, true)
}

func (r *Repo) Update(ctx context.Context, m *ModelConfig) error {
	return r.save(ctx, m, false)
}

func (r *Repo) Delete(ctx context.Context, id, userID uint64) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&ModelConfig{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repo) CountDefaults(ctx context.Context, userID uint64, modelType string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&ModelConfig{}).
		Where("user_id = ? AND model_type = ? AND is_default = ?", userID, modelType, true).
		Count(&n).Error
	return n, err
}
