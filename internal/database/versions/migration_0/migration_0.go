package migration_0

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Snapshot of the schema at migration 0. These types are copies, not
// references to the live schema package, so later schema changes do not
// rewrite history.

type Project struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Title       string `gorm:"size:255;not null"`
	Description string

	CreationTime time.Time

	Claims []TaskClaim `gorm:"foreignKey:ProjectId;constraint:OnDelete:CASCADE"`
}

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

type Submission struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	TaskId uuid.UUID  `gorm:"type:uuid;not null;index:idx_submission_task_file,unique,priority:1"`
	Task   *TaskClaim `gorm:"foreignKey:TaskId"`

	FileId string `gorm:"size:255;not null;index:idx_submission_task_file,unique,priority:2"`
	Kind   string `gorm:"size:20;not null"`

	UploadTime time.Time
}

type ReviewNote struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	TaskId uuid.UUID  `gorm:"type:uuid;not null;index"`
	Task   *TaskClaim `gorm:"foreignKey:TaskId"`

	ReviewerId int64  `gorm:"not null"`
	Decision   string `gorm:"size:20;not null"`
	Reason     string

	Payload datatypes.JSON `gorm:"type:jsonb"`

	CreationTime time.Time
}

func Migration(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Project{}, &TaskClaim{}, &Submission{}, &ReviewNote{},
	)
	if err != nil {
		return fmt.Errorf("initial migration failed: %w", err)
	}
	return nil
}
