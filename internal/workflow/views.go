package workflow

import (
	"context"
	"fmt"

	"crewflow/internal/database"

	"github.com/google/uuid"
)

// CategorySlot pairs a category with its claim, if any. Claim is nil
// for an open category.
type CategorySlot struct {
	Category string
	Claim    *database.TaskClaim
}

// ClaimBoard projects the fixed category enumeration against the
// claims of one project, in menu order.
func (e *Engine) ClaimBoard(ctx context.Context, projectId uuid.UUID) ([]CategorySlot, error) {
	if _, err := e.GetProject(ctx, projectId); err != nil {
		return nil, err
	}

	var claims []database.TaskClaim
	if err := e.db.WithContext(ctx).Where("project_id = ?", projectId).Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("error listing claims: %w", err)
	}

	byCategory := make(map[string]*database.TaskClaim, len(claims))
	for i := range claims {
		byCategory[claims[i].Category] = &claims[i]
	}

	board := make([]CategorySlot, 0, len(database.Categories))
	for _, category := range database.Categories {
		board = append(board, CategorySlot{Category: category, Claim: byCategory[category]})
	}
	return board, nil
}

// SubmittableTasks lists a claimant's open claims. Approved claims are
// closed and excluded.
func (e *Engine) SubmittableTasks(ctx context.Context, claimantId int64) ([]database.TaskClaim, error) {
	var claims []database.TaskClaim
	if err := e.db.WithContext(ctx).
		Preload("Project").
		Where("claimant_id = ? AND status <> ?", claimantId, database.StatusApproved).
		Order("creation_time").
		Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("error listing submittable tasks: %w", err)
	}
	return claims, nil
}

// TasksWithSubmissions lists claims carrying at least one submission,
// optionally scoped to a project. Used by the review queue.
func (e *Engine) TasksWithSubmissions(ctx context.Context, projectId *uuid.UUID) ([]database.TaskClaim, error) {
	query := e.db.WithContext(ctx).
		Preload("Project").
		Preload("Submissions").
		Where("id IN (?)", e.db.Model(&database.Submission{}).Select("task_id")).
		Order("creation_time")
	if projectId != nil {
		query = query.Where("project_id = ?", *projectId)
	}

	var claims []database.TaskClaim
	if err := query.Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("error listing tasks with submissions: %w", err)
	}
	return claims, nil
}

func (e *Engine) TasksByClaimant(ctx context.Context, claimantId int64) ([]database.TaskClaim, error) {
	var claims []database.TaskClaim
	if err := e.db.WithContext(ctx).
		Preload("Project").
		Preload("Submissions").
		Where("claimant_id = ?", claimantId).
		Order("creation_time").
		Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("error listing tasks by claimant: %w", err)
	}
	return claims, nil
}

func (e *Engine) TasksByCategory(ctx context.Context, projectId uuid.UUID, category string) ([]database.TaskClaim, error) {
	if !database.ValidCategory(category) {
		return nil, ErrUnknownCategory
	}

	var claims []database.TaskClaim
	if err := e.db.WithContext(ctx).
		Preload("Submissions").
		Where("project_id = ? AND category = ?", projectId, category).
		Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("error listing tasks by category: %w", err)
	}
	return claims, nil
}

// Submissions lists every file attached to a task across all review
// cycles.
func (e *Engine) Submissions(ctx context.Context, taskId uuid.UUID) ([]database.Submission, error) {
	if _, err := e.GetTask(ctx, taskId); err != nil {
		return nil, err
	}

	var submissions []database.Submission
	if err := e.db.WithContext(ctx).
		Where("task_id = ?", taskId).
		Order("upload_time").
		Find(&submissions).Error; err != nil {
		return nil, fmt.Errorf("error listing submissions: %w", err)
	}
	return submissions, nil
}

// ReviewHistory lists the audit log for a task, oldest first.
func (e *Engine) ReviewHistory(ctx context.Context, taskId uuid.UUID) ([]database.ReviewNote, error) {
	var notes []database.ReviewNote
	if err := e.db.WithContext(ctx).
		Where("task_id = ?", taskId).
		Order("creation_time").
		Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("error listing review history: %w", err)
	}
	return notes, nil
}
