package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"crewflow/internal/database"
	"crewflow/internal/workflow"
	"crewflow/pkg/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// BackendService is the operational read surface over the workflow
// engine. Mutations happen through the bot; the API only mirrors
// project creation for tooling parity.
type BackendService struct {
	engine *workflow.Engine
}

func NewBackendService(engine *workflow.Engine) *BackendService {
	return &BackendService{engine: engine}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListProjects))
		r.Post("/", RestHandler(s.CreateProject))
		r.Get("/{project_id}", RestHandler(s.GetProject))
		r.Get("/{project_id}/board", RestHandler(s.GetClaimBoard))
	})
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListTasks))
		r.Get("/{task_id}", RestHandler(s.GetTask))
		r.Get("/{task_id}/reviews", RestHandler(s.GetReviewHistory))
	})
}

// translateError maps the engine's taxonomy onto HTTP codes.
func translateError(err error) error {
	switch {
	case errors.Is(err, workflow.ErrProjectNotFound), errors.Is(err, workflow.ErrTaskNotFound):
		return CodedError(http.StatusNotFound, err)
	case errors.Is(err, workflow.ErrUnauthorized):
		return CodedError(http.StatusForbidden, err)
	case errors.Is(err, workflow.ErrUnknownCategory), errors.Is(err, workflow.ErrUnknownDecision), errors.Is(err, workflow.ErrUnknownFileKind):
		return CodedError(http.StatusUnprocessableEntity, err)
	default:
		return CodedError(http.StatusInternalServerError, err)
	}
}

func (s *BackendService) ListProjects(r *http.Request) (any, error) {
	projects, err := s.engine.ListProjects(r.Context())
	if err != nil {
		return nil, translateError(err)
	}

	res := make([]models.Project, 0, len(projects))
	for _, project := range projects {
		res = append(res, models.Project{
			Id:           project.Id,
			Title:        project.Title,
			Description:  project.Description,
			CreationTime: project.CreationTime,
		})
	}
	return res, nil
}

func (s *BackendService) CreateProject(r *http.Request) (any, error) {
	req, err := ParseRequest[models.CreateProjectRequest](r)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "title is required")
	}

	project, err := s.engine.CreateProject(r.Context(), req.ActorId, req.Title, req.Description)
	if err != nil {
		return nil, translateError(err)
	}

	return models.CreateProjectResponse{Message: "Project created", Id: project.Id}, nil
}

func (s *BackendService) GetProject(r *http.Request) (any, error) {
	projectId, err := URLParamUUID(r, "project_id")
	if err != nil {
		return nil, err
	}

	project, err := s.engine.GetProject(r.Context(), projectId)
	if err != nil {
		return nil, translateError(err)
	}

	return models.Project{
		Id:           project.Id,
		Title:        project.Title,
		Description:  project.Description,
		CreationTime: project.CreationTime,
	}, nil
}

type boardSlot struct {
	Category  string     `json:"category"`
	ClaimedBy *int64     `json:"claimed_by,omitempty"`
	TaskId    *uuid.UUID `json:"task_id,omitempty"`
	Status    string     `json:"status,omitempty"`
}

func (s *BackendService) GetClaimBoard(r *http.Request) (any, error) {
	projectId, err := URLParamUUID(r, "project_id")
	if err != nil {
		return nil, err
	}

	board, err := s.engine.ClaimBoard(r.Context(), projectId)
	if err != nil {
		return nil, translateError(err)
	}

	res := make([]boardSlot, 0, len(board))
	for _, slot := range board {
		entry := boardSlot{Category: slot.Category}
		if slot.Claim != nil {
			entry.ClaimedBy = &slot.Claim.ClaimantId
			entry.TaskId = &slot.Claim.Id
			entry.Status = slot.Claim.Status
		}
		res = append(res, entry)
	}
	return res, nil
}

type listTasksParams struct {
	ProjectId       string `schema:"project_id"`
	ClaimantId      int64  `schema:"claimant_id"`
	Category        string `schema:"category"`
	WithSubmissions bool   `schema:"with_submissions"`
}

func (s *BackendService) ListTasks(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[listTasksParams](r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	var claims []database.TaskClaim
	switch {
	case params.Category != "":
		projectId, parseErr := uuid.Parse(params.ProjectId)
		if parseErr != nil {
			return nil, CodedErrorf(http.StatusBadRequest, "project_id is required when filtering by category")
		}
		claims, err = s.engine.TasksByCategory(ctx, projectId, params.Category)
	case params.ClaimantId != 0:
		claims, err = s.engine.TasksByClaimant(ctx, params.ClaimantId)
	case params.WithSubmissions:
		var projectId *uuid.UUID
		if params.ProjectId != "" {
			id, parseErr := uuid.Parse(params.ProjectId)
			if parseErr != nil {
				return nil, CodedErrorf(http.StatusBadRequest, "invalid project_id")
			}
			projectId = &id
		}
		claims, err = s.engine.TasksWithSubmissions(ctx, projectId)
	default:
		projectId, parseErr := uuid.Parse(params.ProjectId)
		if parseErr != nil {
			return nil, CodedErrorf(http.StatusBadRequest, "project_id is required")
		}
		board, boardErr := s.engine.ClaimBoard(ctx, projectId)
		if boardErr != nil {
			return nil, translateError(boardErr)
		}
		for _, slot := range board {
			if slot.Claim != nil {
				claims = append(claims, *slot.Claim)
			}
		}
	}
	if err != nil {
		return nil, translateError(err)
	}

	res := make([]models.TaskClaim, 0, len(claims))
	for i := range claims {
		res = append(res, taskToModel(&claims[i]))
	}
	return res, nil
}

type reviewEntry struct {
	Id           uuid.UUID `json:"id"`
	TaskId       uuid.UUID `json:"task_id"`
	ReviewerId   int64     `json:"reviewer_id"`
	Decision     string    `json:"decision"`
	Reason       string    `json:"reason,omitempty"`
	CreationTime time.Time `json:"creation_time"`
}

func (s *BackendService) GetReviewHistory(r *http.Request) (any, error) {
	taskId, err := URLParamUUID(r, "task_id")
	if err != nil {
		return nil, err
	}

	notes, err := s.engine.ReviewHistory(r.Context(), taskId)
	if err != nil {
		return nil, translateError(err)
	}

	res := make([]reviewEntry, 0, len(notes))
	for _, note := range notes {
		res = append(res, reviewEntry{
			Id:           note.Id,
			TaskId:       note.TaskId,
			ReviewerId:   note.ReviewerId,
			Decision:     note.Decision,
			Reason:       note.Reason,
			CreationTime: note.CreationTime,
		})
	}
	return res, nil
}

func taskToModel(claim *database.TaskClaim) models.TaskClaim {
	res := models.TaskClaim{
		Id:           claim.Id,
		ProjectId:    claim.ProjectId,
		Category:     claim.Category,
		ClaimantId:   claim.ClaimantId,
		Status:       claim.Status,
		Completed:    claim.Completed,
		CreationTime: claim.CreationTime,
	}
	for _, submission := range claim.Submissions {
		res.Submissions = append(res.Submissions, models.Submission{
			Id:         submission.Id,
			TaskId:     submission.TaskId,
			FileId:     submission.FileId,
			Kind:       submission.Kind,
			UploadTime: submission.UploadTime,
		})
	}
	return res
}

func (s *BackendService) GetTask(r *http.Request) (any, error) {
	taskId, err := URLParamUUID(r, "task_id")
	if err != nil {
		return nil, err
	}

	ctx := r.Context()
	task, err := s.engine.GetTask(ctx, taskId)
	if err != nil {
		return nil, translateError(err)
	}
	submissions, err := s.engine.Submissions(ctx, taskId)
	if err != nil {
		return nil, translateError(err)
	}

	res := taskToModel(task)
	for _, submission := range submissions {
		res.Submissions = append(res.Submissions, models.Submission{
			Id:         submission.Id,
			TaskId:     submission.TaskId,
			FileId:     submission.FileId,
			Kind:       submission.Kind,
			UploadTime: submission.UploadTime,
		})
	}
	return res, nil
}
