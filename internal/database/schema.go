package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusPending  string = "PENDING"
	StatusApproved string = "APPROVED"
	StatusRejected string = "REJECTED"
)

const (
	CategoryScript    string = "script"
	CategoryVoiceover string = "voiceover"
	CategoryEditing   string = "editing"
	CategoryPreview   string = "preview"
	CategoryUpload    string = "upload"
)

// Categories lists every claimable task category in menu order.
var Categories = []string{
	CategoryScript,
	CategoryVoiceover,
	CategoryEditing,
	CategoryPreview,
	CategoryUpload,
}

func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

const (
	FileDocument string = "document"
	FilePhoto    string = "photo"
	FileVideo    string = "video"
)

const (
	DecisionApprove string = "APPROVE"
	DecisionReject  string = "REJECT"
)

type Project struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Title       string `gorm:"size:255;not null"`
	Description string

	CreationTime time.Time

	Claims []TaskClaim `gorm:"foreignKey:ProjectId;constraint:OnDelete:CASCADE"`
}

// TaskClaim binds one category within one project to one claimant. The
// composite unique index is the atomic-claim guarantee: two concurrent
// claims race on the insert and the loser gets a duplicate key error.
type TaskClaim struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	ProjectId uuid.UUID `gorm:"type:uuid;not null;index:idx_task_claim_project_category,unique,priority:1"`
	Project   *Project  `gorm:"foreignKey:ProjectId"`

	Category   string `gorm:"size:20;not null;index:idx_task_claim_project_category,unique,priority:2"`
	ClaimantId int64  `gorm:"not null;index"`

	Status    string `gorm:"size:20;not null"`
	Completed bool   `gorm:"default:false"`

	CreationTime time.Time

	Submissions []Submission `gorm:"foreignKey:TaskId;constraint:OnDelete:CASCADE"`
}

// Submission holds a Telegram file id attached to a claim. Duplicate
// file ids within a task are rejected by the unique index and treated
// as an idempotent attach.
type Submission struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	TaskId uuid.UUID  `gorm:"type:uuid;not null;index:idx_submission_task_file,unique,priority:1"`
	Task   *TaskClaim `gorm:"foreignKey:TaskId"`

	FileId string `gorm:"size:255;not null;index:idx_submission_task_file,unique,priority:2"`
	Kind   string `gorm:"size:20;not null"`

	UploadTime time.Time
}

// ReviewNote is the audit record of a review decision. The rejection
// reason lives here rather than on the claim; the claim only carries
// its current status.
type ReviewNote struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	TaskId uuid.UUID  `gorm:"type:uuid;not null;index"`
	Task   *TaskClaim `gorm:"foreignKey:TaskId"`

	ReviewerId int64  `gorm:"not null"`
	Decision   string `gorm:"size:20;not null"`
	Reason     string

	Payload datatypes.JSON `gorm:"type:jsonb"` // notification payload as sent

	CreationTime time.Time
}
