package modelconfig

import "time"

// ModelConfig enables one (provider, model) pair for a user. At most one
// config per (user, model_type) is the default.
type ModelConfig struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64    `gorm:"not null;uniqueIndex:idx_user_model,priority:1" json:"user_id"`
	Provider  string    `gorm:"type:varchar(50);not null;index;uniqueIndex:idx_user_model,priority:2" json:"provider"`
	ModelID   string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_user_model,priority:3" json:"model_id"`
	ModelType string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_user_model,priority:4" json:"model_type"`
	IsEnabled bool      `gorm:"not null;default:true" json:"is_enabled"`
	IsDefault bool      `gorm:"not null;default:false" json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ModelConfig) TableName() string { return "model_configs" }
