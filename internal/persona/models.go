package persona

import (
	"time"

	"gorm.io/datatypes"
)

type Pair struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// Record holds one user's pairs for one category.
type Record struct {
	ID          uint64                    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint64                    `gorm:"not null;uniqueIndex:idx_user_customer_category,priority:1" json:"user_id"`
	Category    Category                  `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_user_customer_category,priority:2" json:"category"`
	Details     datatypes.JSONSlice[Pair] `gorm:"not null" json:"details"`
	Description *string                   `gorm:"type:text" json:"description"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

func (Record) TableName() string { return "customer_info" }
