package post

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusPublished:
		return true
	}
	return false
}

// GraphicTypes are the suggested values for Post.GraphicType. Other values are accepted.
var GraphicTypes = []string{
	"Infographic", "Short Video", "Illustration", "Photo", "Carousel",
	"Quote", "Meme", "Story", "Reel", "Other",
}

type Post struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint64 `gorm:"index;not null" json:"user_id"`

	Content string  `gorm:"type:text;not null" json:"content"`
	Caption *string `gorm:"type:text" json:"caption"`
	AltText *string `gorm:"type:text" json:"alt_text"`
	Status  Status  `gorm:"type:varchar(16);index;not null;default:draft" json:"status"`

	GraphicType        *string `gorm:"type:varchar(100)" json:"graphic_type"`
	OriginalPromptName *string `gorm:"type:varchar(255)" json:"original_prompt_name"`
	SourceURL          *string `gorm:"type:varchar(500)" json:"source_url"`

	Keep        bool       `gorm:"not null;default:false" json:"keep"`
	ForDeletion bool       `gorm:"not null;default:false" json:"for_deletion"`
	IsArchived  bool       `gorm:"index;not null;default:false" json:"is_archived"`
	ArchivedAt  *time.Time `json:"archived_at"`

	ScheduledAt *time.Time `json:"scheduled_at"`
	PublishedAt *time.Time `json:"published_at"`

	MediaURLs datatypes.JSONSlice[string] `gorm:"not null" json:"media_urls"`
	PromptID  *uint64                     `gorm:"index" json:"prompt_id"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Post) TableName() string { return "posts" }
