package generation

import (
	"time"

	"github.com/suPer8Hu/postcraft/internal/ai"
	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one queued text generation. The worker runs Input through
// Orchestrator.GenerateText and fills in the result columns.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	UserID uint64                        `gorm:"index;not null;uniqueIndex:uniq_user_idempo,priority:1" json:"user_id"`
	Input  datatypes.JSONType[TextInput] `gorm:"not null" json:"input"`

	IdempotencyKey *string `gorm:"type:varchar(128);uniqueIndex:uniq_user_idempo,priority:2" json:"idempotency_key"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	// Attempts counts worker claims, retries included.
	Attempts int `gorm:"not null;default:0" json:"attempts"`

	// Filled when the provider call ran
	RequestID *string `gorm:"type:varchar(64)" json:"request_id"`
	Content   *string `gorm:"type:text" json:"content"`

	// Filled when failed
	Error   *string        `gorm:"type:text" json:"error"`
	Failure ai.FailureKind `gorm:"type:varchar(16)" json:"failure_kind,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Job) TableName() string { return "generation_jobs" }
