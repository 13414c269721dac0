package prompt

import (
	"time"

	"gorm.io/datatypes"
)

// Prompt is a user's prompt template. SelectedCustomers maps a persona
// category name to whether it should be injected when the prompt is rendered.
type Prompt struct {
	ID                 uint64                              `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID             uint64                              `gorm:"index;not null" json:"user_id"`
	Name               string                              `gorm:"type:varchar(255);index;not null" json:"name"`
	Details            string                              `gorm:"type:text;not null" json:"details"`
	SelectedCustomers  datatypes.JSONType[map[string]bool] `gorm:"not null" json:"selected_customers"`
	URL                string                              `gorm:"type:varchar(500)" json:"url"`
	MediaFilePath      string                              `gorm:"type:varchar(500)" json:"media_file_path"`
	AWSFolderURL       string                              `gorm:"type:varchar(500)" json:"aws_folder_url"`
	ArtworkDescription string                              `gorm:"type:text" json:"artwork_description"`
	ExampleImage       string                              `gorm:"type:varchar(500)" json:"example_image"`
	TagID              *uint64                             `gorm:"index" json:"tag_id"`
	CreatedAt          time.Time                           `json:"created_at"`
	UpdatedAt          time.Time                           `json:"updated_at"`
}

func (Prompt) TableName() string { return "prompts" }

// Selection returns the persona selection map, never nil.
func (p *Prompt) Selection() map[string]bool {
	m := p.SelectedCustomers.Data()
	if m == nil {
		return map[string]bool{}
	}
	return m
}

// Tag is a global label shared by all users.
type Tag struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Description *string   `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Tag) TableName() string { return "tags" }
