package template

import (
	"time"

	"gorm.io/datatypes"
)

type Category string

const (
	CategoryOCR    Category = "ocr"
	CategoryManual Category = "manual"
	CategoryCustom Category = "custom"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryOCR, CategoryManual, CategoryCustom:
		return true
	}
	return false
}

// Template is a reusable text snippet, typed by hand or extracted by OCR.
type Template struct {
	ID        uint64                      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64                      `gorm:"index;not null" json:"user_id"`
	Name      string                      `gorm:"type:varchar(255);index;not null" json:"name"`
	Category  Category                    `gorm:"type:varchar(20);not null;default:manual" json:"category"`
	Tags      datatypes.JSONSlice[string] `gorm:"not null" json:"tags"`
	Content   string                      `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

func (Template) TableName() string { return "templates" }
