package models

import (
	"time"

	"github.com/google/uuid"
)

// --- Notification Payload Structs ---

// ReviewNotification is queued by the lifecycle engine when a review
// decision lands and delivered to the claimant by the notifier worker.
type ReviewNotification struct {
	TaskId       uuid.UUID
	ClaimantId   int64
	ProjectTitle string
	Category     string
	Decision     string
	Reason       string
}

// --- API DTOs ---

type Project struct {
	Id           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	CreationTime time.Time `json:"creation_time"`
}

type TaskClaim struct {
	Id           uuid.UUID    `json:"id"`
	ProjectId    uuid.UUID    `json:"project_id"`
	Category     string       `json:"category"`
	ClaimantId   int64        `json:"claimant_id"`
	Status       string       `json:"status"`
	Completed    bool         `json:"completed"`
	CreationTime time.Time    `json:"creation_time"`
	Submissions  []Submission `json:"submissions,omitempty"`
}

type Submission struct {
	Id         uuid.UUID `json:"id"`
	TaskId     uuid.UUID `json:"task_id"`
	FileId     string    `json:"file_id"`
	Kind       string    `json:"kind"`
	UploadTime time.Time `json:"upload_time"`
}

type CreateProjectRequest struct {
	ActorId     int64  `json:"actor_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type CreateProjectResponse struct {
	Message string    `json:"message"`
	Id      uuid.UUID `json:"id"`
}
