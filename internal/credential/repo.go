package credential

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// FindByAcceptedKeys returns the credential whose key comes first in keys.
// It returns gorm.ErrRecordNotFound when none of the keys is stored.
func (r *Repo) FindByAcceptedKeys(ctx context.Context, userID uint64, keys []string) (*Credential, error) {
	if len(keys) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var found []Credential
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND `key` IN ?", userID, keys).
		Find(&found).Error; err != nil {
		return nil, err
	}
	for _, k := range keys {
		for i := range found {
			if found[i].Key == k {
				return &found[i], nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *Repo) Get(ctx context.Context, userID uint64, key string) (*Credential, error) {
	var c Credential
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND `key` = ?", userID, key).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) List(ctx context.Context, userID uint64) ([]Credential, error) {
	var out []Credential
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("`key` ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert writes c keyed by (user_id, key).
func (r *Repo) Upsert(ctx context.Context, c *Credential) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
	}).Create(c).Error
}

func (r *Repo) Delete(ctx context.Context, userID uint64, key string) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND `key` = ?", userID, key).Delete(&Credential{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
