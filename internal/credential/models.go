package credential

import "time"

// Credential is one named secret of a user, e.g. "openai_api_key". Value is
// always the sealed form.
type Credential struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint64    `gorm:"not null;uniqueIndex:idx_user_credential_key,priority:1" json:"user_id"`
	Key         string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_user_credential_key,priority:2" json:"key"`
	Value       string    `gorm:"type:text;not null" json:"-"`
	Description *string   `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Credential) TableName() string { return "credentials" }
