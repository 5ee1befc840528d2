package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crewflow/internal/database"
	"crewflow/internal/messaging"
	"crewflow/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Engine implements the task-claim and review lifecycle. All admin-only
// operations take the caller's identity explicitly and enforce the
// allow-list here, independent of whatever the bot layer checks.
type Engine struct {
	db        *gorm.DB
	publisher messaging.Publisher
	admins    map[int64]struct{}
}

func NewEngine(db *gorm.DB, publisher messaging.Publisher, adminIds []int64) *Engine {
	admins := make(map[int64]struct{}, len(adminIds))
	for _, id := range adminIds {
		admins[id] = struct{}{}
	}
	return &Engine{db: db, publisher: publisher, admins: admins}
}

func (e *Engine) IsAdmin(userId int64) bool {
	_, ok := e.admins[userId]
	return ok
}

func (e *Engine) CreateProject(ctx context.Context, actorId int64, title, description string) (*database.Project, error) {
	if !e.IsAdmin(actorId) {
		return nil, ErrUnauthorized
	}

	project := &database.Project{
		Id:           uuid.New(),
		Title:        title,
		Description:  description,
		CreationTime: time.Now().UTC(),
	}

	if err := e.db.WithContext(ctx).Create(project).Error; err != nil {
		slog.Error("error creating project", "error", err)
		return nil, fmt.Errorf("error creating project: %w", err)
	}

	slog.Info("project created", "project_id", project.Id, "title", title, "actor_id", actorId)
	return project, nil
}

func (e *Engine) GetProject(ctx context.Context, projectId uuid.UUID) (*database.Project, error) {
	var project database.Project
	if err := e.db.WithContext(ctx).First(&project, "id = ?", projectId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("error getting project: %w", err)
	}
	return &project, nil
}

func (e *Engine) ListProjects(ctx context.Context) ([]database.Project, error) {
	var projects []database.Project
	if err := e.db.WithContext(ctx).Order("creation_time").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("error listing projects: %w", err)
	}
	return projects, nil
}

// ClaimTask is insert-first: the row is created optimistically and the
// unique index on (project_id, category) decides the race. The loser's
// duplicate key error is resolved into ErrAlreadyYours or
// ErrCategoryTaken by reading the winning row.
func (e *Engine) ClaimTask(ctx context.Context, projectId uuid.UUID, category string, claimantId int64) (*database.TaskClaim, error) {
	if !database.ValidCategory(category) {
		return nil, ErrUnknownCategory
	}

	if _, err := e.GetProject(ctx, projectId); err != nil {
		return nil, err
	}

	claim := &database.TaskClaim{
		Id:           uuid.New(),
		ProjectId:    projectId,
		Category:     category,
		ClaimantId:   claimantId,
		Status:       database.StatusPending,
		CreationTime: time.Now().UTC(),
	}

	err := e.db.WithContext(ctx).Create(claim).Error
	if err == nil {
		slog.Info("task claimed", "task_id", claim.Id, "project_id", projectId, "category", category, "claimant_id", claimantId)
		return claim, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		slog.Error("error creating task claim", "project_id", projectId, "category", category, "error", err)
		return nil, fmt.Errorf("error creating task claim: %w", err)
	}

	var existing database.TaskClaim
	if err := e.db.WithContext(ctx).
		First(&existing, "project_id = ? AND category = ?", projectId, category).Error; err != nil {
		return nil, fmt.Errorf("error resolving claim conflict: %w", err)
	}

	if existing.ClaimantId == claimantId {
		return &existing, ErrAlreadyYours
	}
	return nil, ErrCategoryTaken
}

// AttachSubmission records a deliverable file against a claim. It never
// changes the claim's status; attaching after a rejection leaves the
// claim rejected until the administrator re-reviews. Approved claims
// are closed and accept nothing.
func (e *Engine) AttachSubmission(ctx context.Context, taskId uuid.UUID, fileId, kind string) (*database.Submission, error) {
	switch kind {
	case database.FileDocument, database.FilePhoto, database.FileVideo:
	default:
		return nil, ErrUnknownFileKind
	}

	submission := &database.Submission{
		Id:         uuid.New(),
		TaskId:     taskId,
		FileId:     fileId,
		Kind:       kind,
		UploadTime: time.Now().UTC(),
	}

	// The status check and the insert share a transaction so an approval
	// cannot land in between and close the task under the submission.
	err := e.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var claim database.TaskClaim
		if err := txn.First(&claim, "id = ?", taskId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return fmt.Errorf("error getting task: %w", err)
		}
		if claim.Status == database.StatusApproved {
			return ErrTaskClosed
		}

		return txn.Create(submission).Error
	})
	if err == nil {
		slog.Info("submission attached", "task_id", taskId, "submission_id", submission.Id, "kind", kind)
		return submission, nil
	}
	if errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrTaskClosed) {
		return nil, err
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		slog.Error("error creating submission", "task_id", taskId, "error", err)
		return nil, fmt.Errorf("error creating submission: %w", err)
	}

	var existing database.Submission
	if err := e.db.WithContext(ctx).
		First(&existing, "task_id = ? AND file_id = ?", taskId, fileId).Error; err != nil {
		return nil, fmt.Errorf("error resolving duplicate submission: %w", err)
	}
	return &existing, ErrDuplicateFile
}

func (e *Engine) GetTask(ctx context.Context, taskId uuid.UUID) (*database.TaskClaim, error) {
	var claim database.TaskClaim
	if err := e.db.WithContext(ctx).First(&claim, "id = ?", taskId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("error getting task: %w", err)
	}
	return &claim, nil
}

// ReviewTask applies an approve/reject decision. Approval is terminal:
// reviewing an approved claim fails with ErrTaskClosed. The decision
// and reason are written to the review audit log in the same
// transaction as the status change; the claimant notification is
// queued afterwards and its failure never rolls the decision back.
func (e *Engine) ReviewTask(ctx context.Context, reviewerId int64, taskId uuid.UUID, decision, reason string) (*database.TaskClaim, error) {
	if !e.IsAdmin(reviewerId) {
		return nil, ErrUnauthorized
	}
	if decision != database.DecisionApprove && decision != database.DecisionReject {
		return nil, ErrUnknownDecision
	}

	var claim database.TaskClaim
	err := e.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		if err := txn.Preload("Project").First(&claim, "id = ?", taskId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return fmt.Errorf("error getting task: %w", err)
		}
		if claim.Status == database.StatusApproved {
			return ErrTaskClosed
		}

		updates := map[string]any{}
		if decision == database.DecisionApprove {
			updates["status"] = database.StatusApproved
			updates["completed"] = true
		} else {
			updates["status"] = database.StatusRejected
			updates["completed"] = false
		}

		if err := txn.Model(&database.TaskClaim{}).Where("id = ?", taskId).Updates(updates).Error; err != nil {
			return fmt.Errorf("error updating task status: %w", err)
		}
		claim.Status = updates["status"].(string)
		claim.Completed = updates["completed"].(bool)

		payload := e.notification(&claim, decision, reason)
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("error marshaling notification payload: %w", err)
		}

		note := database.ReviewNote{
			Id:           uuid.New(),
			TaskId:       taskId,
			ReviewerId:   reviewerId,
			Decision:     decision,
			Reason:       reason,
			Payload:      raw,
			CreationTime: time.Now().UTC(),
		}
		if err := txn.Create(&note).Error; err != nil {
			return fmt.Errorf("error saving review note: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := e.publisher.PublishReviewNotification(ctx, e.notification(&claim, decision, reason)); err != nil {
		// The decision is authoritative whether or not the claimant can be
		// reached.
		slog.Error("error queueing review notification", "task_id", taskId, "claimant_id", claim.ClaimantId, "error", err)
	}

	slog.Info("task reviewed", "task_id", taskId, "decision", decision, "reviewer_id", reviewerId)
	return &claim, nil
}

func (e *Engine) notification(claim *database.TaskClaim, decision, reason string) models.ReviewNotification {
	title := ""
	if claim.Project != nil {
		title = claim.Project.Title
	}
	return models.ReviewNotification{
		TaskId:       claim.Id,
		ClaimantId:   claim.ClaimantId,
		ProjectTitle: title,
		Category:     claim.Category,
		Decision:     decision,
		Reason:       reason,
	}
}
