package workflow_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"crewflow/internal/database"
	"crewflow/internal/messaging"
	"crewflow/internal/workflow"
	"crewflow/pkg/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	adminId = int64(1000)
	userA   = int64(2001)
	userB   = int64(2002)
)

func createDB(t *testing.T, create ...any) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	for _, c := range create {
		require.NoError(t, db.Create(c).Error)
	}

	return db
}

func createEngine(t *testing.T, create ...any) (*workflow.Engine, *messaging.InMemoryQueue) {
	queue := messaging.NewInMemoryQueue()
	engine := workflow.NewEngine(createDB(t, create...), queue, []int64{adminId})
	return engine, queue
}

func drainNotification(t *testing.T, queue *messaging.InMemoryQueue) models.ReviewNotification {
	select {
	case task := <-queue.Tasks():
		var payload models.ReviewNotification
		require.NoError(t, json.Unmarshal(task.Payload(), &payload))
		return payload
	case <-time.After(time.Second):
		t.Fatal("expected a queued notification")
		return models.ReviewNotification{}
	}
}

func TestCreateProject(t *testing.T) {
	engine, _ := createEngine(t)
	ctx := context.Background()

	project, err := engine.CreateProject(ctx, adminId, "Trailer A", "desc")
	require.NoError(t, err)
	assert.Equal(t, "Trailer A", project.Title)

	got, err := engine.GetProject(ctx, project.Id)
	require.NoError(t, err)
	assert.Equal(t, "desc", got.Description)
}

func TestCreateProjectUnauthorized(t *testing.T) {
	engine, _ := createEngine(t)

	_, err := engine.CreateProject(context.Background(), userA, "Trailer A", "desc")
	assert.ErrorIs(t, err, workflow.ErrUnauthorized)

	projects, err := engine.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestClaimTask(t *testing.T) {
	projectId := uuid.New()
	engine, _ := createEngine(t, &database.Project{Id: projectId, Title: "Trailer A", CreationTime: time.Now()})
	ctx := context.Background()

	claim, err := engine.ClaimTask(ctx, projectId, database.CategoryEditing, userA)
	require.NoError(t, err)
	assert.Equal(t, database.StatusPending, claim.Status)
	assert.Equal(t, userA, claim.ClaimantId)

	t.Run("ReclaimByOwnerIsIdempotent", func(t *testing.T) {
		again, err := engine.ClaimTask(ctx, projectId, database.CategoryEditing, userA)
		assert.ErrorIs(t, err, workflow.ErrAlreadyYours)
		assert.Equal(t, claim.Id, again.Id)
	})

	t.Run("ClaimByOtherUserRejected", func(t *testing.T) {
		_, err := engine.ClaimTask(ctx, projectId, database.CategoryEditing, userB)
		assert.ErrorIs(t, err, workflow.ErrCategoryTaken)

		current, err := engine.GetTask(ctx, claim.Id)
		require.NoError(t, err)
		assert.Equal(t, userA, current.ClaimantId)
	})

	t.Run("SingleClaimPerCategory", func(t *testing.T) {
		claims, err := engine.TasksByCategory(ctx, projectId, database.CategoryEditing)
		require.NoError(t, err)
		assert.Len(t, claims, 1)
	})
}

func TestClaimTaskValidation(t *testing.T) {
	projectId := uuid.New()
	engine, _ := createEngine(t, &database.Project{Id: projectId, Title: "Trailer A", CreationTime: time.Now()})
	ctx := context.Background()

	_, err := engine.ClaimTask(ctx, projectId, "catering", userA)
	assert.ErrorIs(t, err, workflow.ErrUnknownCategory)

	_, err = engine.ClaimTask(ctx, uuid.New(), database.CategoryScript, userA)
	assert.ErrorIs(t, err, workflow.ErrProjectNotFound)
}

func TestAttachSubmission(t *testing.T) {
	projectId, taskId := uuid.New(), uuid.New()
	engine, _ := createEngine(t,
		&database.Project{Id: projectId, Title: "Trailer A", CreationTime: time.Now()},
		&database.TaskClaim{Id: taskId, ProjectId: projectId, Category: database.CategoryEditing, ClaimantId: userA, Status: database.StatusPending, CreationTime: time.Now()},
	)
	ctx := context.Background()

	submission, err := engine.AttachSubmission(ctx, taskId, "file-1", database.FileVideo)
	require.NoError(t, err)
	assert.Equal(t, taskId, submission.TaskId)

	t.Run("DuplicateFileIsNoOp", func(t *testing.T) {
		again, err := engine.AttachSubmission(ctx, taskId, "file-1", database.FileVideo)
		assert.ErrorIs(t, err, workflow.ErrDuplicateFile)
		assert.Equal(t, submission.Id, again.Id)

		submissions, err := engine.Submissions(ctx, taskId)
		require.NoError(t, err)
		assert.Len(t, submissions, 1)
	})

	t.Run("StatusUnchangedByAttach", func(t *testing.T) {
		claim, err := engine.GetTask(ctx, taskId)
		require.NoError(t, err)
		assert.Equal(t, database.StatusPending, claim.Status)
	})

	t.Run("UnknownTask", func(t *testing.T) {
		_, err := engine.AttachSubmission(ctx, uuid.New(), "file-2", database.FileVideo)
		assert.ErrorIs(t, err, workflow.ErrTaskNotFound)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		_, err := engine.AttachSubmission(ctx, taskId, "file-2", "audio")
		assert.ErrorIs(t, err, workflow.ErrUnknownFileKind)
	})
}

func TestAttachSubmissionClosedAfterApproval(t *testing.T) {
	projectId, taskId := uuid.New(), uuid.New()
	engine, _ := createEngine(t,
		&database.Project{Id: projectId, Title: "Trailer A", CreationTime: time.Now()},
		&database.TaskClaim{Id: taskId, ProjectId: projectId, Category: database.CategoryEditing, ClaimantId: userA, Status: database.StatusApproved, Completed: true, CreationTime: time.Now()},
	)

	_, err := engine.AttachSubmission(context.Background(), taskId, "file-1", database.FileVideo)
	assert.ErrorIs(t, err, workflow.ErrTaskClosed)

	// The rejected attach must leave no row behind.
	submissions, err := engine.Submissions(context.Background(), taskId)
	require.NoError(t, err)
	assert.Empty(t, submissions)
}

func TestAttachSubmissionAfterConcurrentApproval(t *testing.T) {
	projectId, taskId := uuid.New(), uuid.New()
	engine, queue := createEngine(t,
		&database.Project{Id: projectId, Title: "Trailer A", CreationTime: time.Now()},
		&database.TaskClaim{Id: taskId, ProjectId: projectId, Category: database.CategoryEditing, ClaimantId: userA, Status: database.StatusPending, CreationTime: time.Now()},
	)
	ctx := context.Background()

	_, err := engine.AttachSubmission(ctx, taskId, "file-1", database.FileVideo)
	require.NoError(t, err)

	// Approval landing between the claimant's attaches closes the task;
	// the late attach is refused and writes nothing.
	_, err = engine.ReviewTask(ctx, adminId, taskId, database.DecisionApprove, "")
	require.NoError(t, err)
	drainNotification(t, queue)

	_, err = engine.AttachSubmission(ctx, taskId, "file-2", database.FileVideo)
	assert.ErrorIs(t, err, workflow.ErrTaskClosed)

	submissions, err := engine.Submissions(ctx, taskId)
	require.NoError(t, err)
	require.Len(t, submissions, 1)
	assert.Equal(t, "file-1", submissions[0].FileId)
}

func TestReviewTask(t *testing.T) {
	projectId, taskId := uuid.New(), uuid.New()
	engine, queue := createEngine(t,
		&database.Project{Id: projectId, Title: "Trailer A", CreationTime: time.Now()},
		&database.TaskClaim{Id: taskId, ProjectId: projectId, Category: database.CategoryEditing, ClaimantId: userA, Status: database.StatusPending, CreationTime: time.Now()},
	)
	ctx := context.Background()

	t.Run("Unauthorized", func(t *testing.T) {
		_, err := engine.ReviewTask(ctx, userB, taskId, database.DecisionApprove, "")
		assert.ErrorIs(t, err, workflow.ErrUnauthorized)
	})

	t.Run("Reject", func(t *testing.T) {
		claim, err := engine.ReviewTask(ctx, adminId, taskId, database.DecisionReject, "blurry")
		require.NoError(t, err)
		assert.Equal(t, database.StatusRejected, claim.Status)
		assert.False(t, claim.Completed)

		payload := drainNotification(t, queue)
		assert.Equal(t, database.DecisionReject, payload.Decision)
		assert.Equal(t, "blurry", payload.Reason)
		assert.Equal(t, "Trailer A", payload.ProjectTitle)
		assert.Equal(t, userA, payload.ClaimantId)
	})

	t.Run("RejectionReasonAudited", func(t *testing.T) {
		notes, err := engine.ReviewHistory(ctx, taskId)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, database.DecisionReject, notes[0].Decision)
		assert.Equal(t, "blurry", notes[0].Reason)
		assert.Equal(t, adminId, notes[0].ReviewerId)
	})

	t.Run("ApproveAfterReject", func(t *testing.T) {
		claim, err := engine.ReviewTask(ctx, adminId, taskId, database.DecisionApprove, "")
		require.NoError(t, err)
		assert.Equal(t, database.StatusApproved, claim.Status)
		assert.True(t, claim.Completed)

		payload := drainNotification(t, queue)
		assert.Equal(t, database.DecisionApprove, payload.Decision)
	})

	t.Run("ApprovalIsTerminal", func(t *testing.T) {
		_, err := engine.ReviewTask(ctx, adminId, taskId, database.DecisionReject, "changed my mind")
		assert.ErrorIs(t, err, workflow.ErrTaskClosed)

		claim, err := engine.GetTask(ctx, taskId)
		require.NoError(t, err)
		assert.Equal(t, database.StatusApproved, claim.Status)
	})

	t.Run("UnknownDecision", func(t *testing.T) {
		_, err := engine.ReviewTask(ctx, adminId, taskId, "ESCALATE", "")
		assert.ErrorIs(t, err, workflow.ErrUnknownDecision)
	})
}

func TestReviewTaskNotFound(t *testing.T) {
	engine, _ := createEngine(t)

	_, err := engine.ReviewTask(context.Background(), adminId, uuid.New(), database.DecisionApprove, "")
	assert.ErrorIs(t, err, workflow.ErrTaskNotFound)
}

func TestFullReviewCycle(t *testing.T) {
	engine, queue := createEngine(t)
	ctx := context.Background()

	project, err := engine.CreateProject(ctx, adminId, "Trailer A", "desc")
	require.NoError(t, err)

	claim, err := engine.ClaimTask(ctx, project.Id, database.CategoryEditing, userA)
	require.NoError(t, err)

	_, err = engine.ClaimTask(ctx, project.Id, database.CategoryEditing, userB)
	assert.ErrorIs(t, err, workflow.ErrCategoryTaken)

	_, err = engine.AttachSubmission(ctx, claim.Id, "F1", database.FileVideo)
	require.NoError(t, err)

	_, err = engine.ReviewTask(ctx, adminId, claim.Id, database.DecisionReject, "blurry")
	require.NoError(t, err)
	drainNotification(t, queue)

	_, err = engine.AttachSubmission(ctx, claim.Id, "F2", database.FileVideo)
	require.NoError(t, err)

	final, err := engine.ReviewTask(ctx, adminId, claim.Id, database.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, database.StatusApproved, final.Status)
	assert.True(t, final.Completed)
	assert.Equal(t, userA, final.ClaimantId)

	submissions, err := engine.Submissions(ctx, claim.Id)
	require.NoError(t, err)
	fileIds := []string{submissions[0].FileId, submissions[1].FileId}
	assert.ElementsMatch(t, []string{"F1", "F2"}, fileIds)
}
