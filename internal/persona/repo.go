package persona

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// FindByUserAndCategories returns the user's records for the given categories in id order.
func (r *Repo) FindByUserAndCategories(ctx context.Context, userID uint64, categories []Category) ([]Record, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	var out []Record
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND category IN ?", userID, categories).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID uint64) ([]Record, error) {
	var out []Record
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Get(ctx context.Context, userID uint64, category Category) (*Record, error) {
	var rec Record
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND category = ?", userID, category).
		First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// Upsert replaces the pair list (and description) for (user, category), creating the record if needed.
func (r *Repo) Upsert(ctx context.Context, rec *Record) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{"details", "description", "updated_at"}),
	}).Create(rec).Error
}

// CreateMissing inserts empty records for categories the user does not have yet.
func (r *Repo) CreateMissing(ctx context.Context, userID uint64, categories []Category) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range categories {
			var rec Record
			err := tx.Where("user_id = ? AND category = ?", userID, c).First(&rec).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err := tx.Create(&Record{UserID: userID, Category: c, Details: datatypes.JSONSlice[Pair]{}}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
