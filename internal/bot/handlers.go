package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crewflow/internal/database"
	"crewflow/internal/telegram"
	"crewflow/internal/workflow"

	"github.com/google/uuid"
)

const (
	msgNotAdmin       = "You don't have administrator rights."
	msgUnknownCommand = "Unknown command. Try /start."
	msgIdleHint       = "Use /projects to claim a task, /submit to send files, or /mytasks to check your work."
)

func (b *Bot) handleStart(ctx context.Context, userId int64) error {
	b.send(ctx, userId, "Hi! I coordinate production work.\n\n"+
		"/projects — see projects and claim a task\n"+
		"/submit — send files for a claimed task\n"+
		"/mytasks — your tasks and their review status\n"+
		"/cancel — abandon the current dialogue")
	return nil
}

func (b *Bot) handleAdmin(ctx context.Context, userId int64) error {
	b.sendMenu(ctx, userId, "Admin panel", [][]telegram.Button{
		{{Text: "New project", Data: "new_project"}},
		{{Text: "Review queue", Data: "review_queue"}},
	})
	return nil
}

func (b *Bot) handleCancel(ctx context.Context, userId int64) error {
	b.sessions.Clear(userId)
	b.send(ctx, userId, "Cancelled.")
	return nil
}

func (b *Bot) handleCallbackCancel(ctx context.Context, userId int64, _ string) error {
	return b.handleCancel(ctx, userId)
}

// --- project creation (admin) ---

func (b *Bot) handleNewProject(ctx context.Context, userId int64, _ string) error {
	b.sessions.Put(userId, Session{Step: StepProjectTitle})
	b.send(ctx, userId, "Enter the project title:")
	return nil
}

func (b *Bot) handleProjectTitle(ctx context.Context, userId int64, text string) error {
	title := strings.TrimSpace(text)
	if title == "" {
		b.send(ctx, userId, "The title cannot be empty. Enter the project title:")
		return nil
	}
	b.sessions.Put(userId, Session{Step: StepProjectDescription, ProjectTitle: title})
	b.send(ctx, userId, "Enter the project description:")
	return nil
}

func (b *Bot) handleProjectDescription(ctx context.Context, userId int64, text string) error {
	session := b.sessions.Get(userId)

	project, err := b.engine.CreateProject(ctx, userId, session.ProjectTitle, strings.TrimSpace(text))
	if err != nil {
		return err
	}

	b.sessions.Clear(userId)
	b.send(ctx, userId, fmt.Sprintf("Project created!\n\nTitle: %s\nDescription: %s", project.Title, project.Description))
	return nil
}

// --- claim flow ---

func (b *Bot) handleProjects(ctx context.Context, userId int64) error {
	projects, err := b.engine.ListProjects(ctx)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		b.send(ctx, userId, "There are no projects yet.")
		return nil
	}

	keyboard := make([][]telegram.Button, 0, len(projects))
	for _, project := range projects {
		keyboard = append(keyboard, []telegram.Button{
			{Text: project.Title, Data: "claim_project:" + project.Id.String()},
		})
	}
	b.sendMenu(ctx, userId, "Pick a project:", keyboard)
	return nil
}

func (b *Bot) handleClaimProject(ctx context.Context, userId int64, arg string) error {
	projectId, err := uuid.Parse(arg)
	if err != nil {
		return workflow.ErrProjectNotFound
	}

	board, err := b.engine.ClaimBoard(ctx, projectId)
	if err != nil {
		return err
	}

	var keyboard [][]telegram.Button
	for _, slot := range board {
		if slot.Claim == nil {
			keyboard = append(keyboard, []telegram.Button{
				{Text: slot.Category, Data: fmt.Sprintf("claim:%s:%s", projectId, slot.Category)},
			})
		}
	}
	if len(keyboard) == 0 {
		b.send(ctx, userId, boardText(board)+"\n\nEvery category is taken.")
		return nil
	}
	b.sendMenu(ctx, userId, boardText(board)+"\n\nPick a category to claim:", keyboard)
	return nil
}

func (b *Bot) handleClaim(ctx context.Context, userId int64, arg string) error {
	idPart, category, found := strings.Cut(arg, ":")
	if !found {
		return workflow.ErrUnknownCategory
	}
	projectId, err := uuid.Parse(idPart)
	if err != nil {
		return workflow.ErrProjectNotFound
	}

	claim, err := b.engine.ClaimTask(ctx, projectId, category, userId)
	if err != nil {
		return err
	}

	project, err := b.engine.GetProject(ctx, claim.ProjectId)
	if err != nil {
		return err
	}
	b.send(ctx, userId, fmt.Sprintf("You claimed %s on %q. Use /submit to send your files when ready.", claim.Category, project.Title))
	return nil
}

// --- submission flow ---

func (b *Bot) handleSubmit(ctx context.Context, userId int64) error {
	tasks, err := b.engine.SubmittableTasks(ctx, userId)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		b.send(ctx, userId, "You have no open tasks. Claim one with /projects first.")
		return nil
	}

	keyboard := make([][]telegram.Button, 0, len(tasks))
	for _, task := range tasks {
		keyboard = append(keyboard, []telegram.Button{
			{Text: taskLabel(&task), Data: "submit_task:" + task.Id.String()},
		})
	}
	b.sendMenu(ctx, userId, "Which task are the files for?", keyboard)
	return nil
}

func (b *Bot) handleSubmitTask(ctx context.Context, userId int64, arg string) error {
	taskId, err := uuid.Parse(arg)
	if err != nil {
		return workflow.ErrTaskNotFound
	}
	if _, err := b.engine.GetTask(ctx, taskId); err != nil {
		return err
	}

	b.sessions.Put(userId, Session{Step: StepSubmitFiles, TaskId: taskId})
	b.sendMenu(ctx, userId, "Send your files (documents, photos, or videos). Press Done when finished.", [][]telegram.Button{
		{{Text: "Done", Data: "submit_done"}, {Text: "Cancel", Data: "cancel"}},
	})
	return nil
}

func (b *Bot) handleFile(ctx context.Context, userId int64, file telegram.FileItem) error {
	session := b.sessions.Get(userId)
	if session.Step != StepSubmitFiles {
		b.send(ctx, userId, "Use /submit to pick a task before sending files.")
		return nil
	}

	// Files accumulate in the session and are only attached on Done, so
	// Cancel discards them without touching the store.
	for _, existing := range session.Files {
		if existing.FileId == file.FileId {
			b.send(ctx, userId, "This file is already in the batch.")
			return nil
		}
	}
	session.Files = append(session.Files, file)
	b.sessions.Put(userId, session)
	b.send(ctx, userId, fmt.Sprintf("Got it. %d file(s) in this batch.", len(session.Files)))
	return nil
}

// Plain text while collecting files neither adds to the batch nor
// abandons it.
func (b *Bot) handleSubmitFilesText(ctx context.Context, userId int64, _ string) error {
	session := b.sessions.Get(userId)
	b.send(ctx, userId, fmt.Sprintf("%d file(s) in this batch. Send more files, or press Done or Cancel.", len(session.Files)))
	return nil
}

func (b *Bot) handleSubmitDone(ctx context.Context, userId int64, _ string) error {
	session := b.sessions.Get(userId)
	if session.Step != StepSubmitFiles {
		b.send(ctx, userId, msgIdleHint)
		return nil
	}
	if len(session.Files) == 0 {
		b.send(ctx, userId, "No files received yet. Send them first, or press Cancel.")
		return nil
	}

	attached, duplicates := 0, 0
	for _, file := range session.Files {
		_, err := b.engine.AttachSubmission(ctx, session.TaskId, file.FileId, file.Kind)
		switch {
		case err == nil:
			attached++
		case errors.Is(err, workflow.ErrDuplicateFile):
			duplicates++
		default:
			return err
		}
	}

	b.sessions.Clear(userId)
	msg := fmt.Sprintf("Submitted %d file(s) for review.", attached)
	if duplicates > 0 {
		msg += fmt.Sprintf(" %d file(s) were already attached.", duplicates)
	}
	b.send(ctx, userId, msg)
	return nil
}

func (b *Bot) handleMyTasks(ctx context.Context, userId int64) error {
	tasks, err := b.engine.TasksByClaimant(ctx, userId)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		b.send(ctx, userId, "You have no tasks yet. Claim one with /projects.")
		return nil
	}

	var lines []string
	for _, task := range tasks {
		lines = append(lines, fmt.Sprintf("%s — %d file(s)", taskLabel(&task), len(task.Submissions)))
	}
	b.send(ctx, userId, "Your tasks:\n"+strings.Join(lines, "\n"))
	return nil
}

// --- review flow (admin) ---

func (b *Bot) handleReviewQueue(ctx context.Context, userId int64, _ string) error {
	tasks, err := b.engine.TasksWithSubmissions(ctx, nil)
	if err != nil {
		return err
	}

	var keyboard [][]telegram.Button
	for _, task := range tasks {
		if task.Status == database.StatusApproved {
			continue
		}
		keyboard = append(keyboard, []telegram.Button{
			{Text: taskLabel(&task), Data: "review:" + task.Id.String()},
		})
	}
	if len(keyboard) == 0 {
		b.send(ctx, userId, "Nothing waiting for review.")
		return nil
	}
	b.sendMenu(ctx, userId, "Tasks waiting for review:", keyboard)
	return nil
}

func (b *Bot) handleReview(ctx context.Context, userId int64, arg string) error {
	taskId, err := uuid.Parse(arg)
	if err != nil {
		return workflow.ErrTaskNotFound
	}

	task, err := b.engine.GetTask(ctx, taskId)
	if err != nil {
		return err
	}
	project, err := b.engine.GetProject(ctx, task.ProjectId)
	if err != nil {
		return err
	}
	submissions, err := b.engine.Submissions(ctx, taskId)
	if err != nil {
		return err
	}

	items := make([]telegram.FileItem, 0, len(submissions))
	for _, submission := range submissions {
		items = append(items, telegram.FileItem{FileId: submission.FileId, Kind: submission.Kind})
	}
	caption := fmt.Sprintf("%s — %s, %d file(s)", project.Title, task.Category, len(items))
	if err := b.gateway.SendFileGroup(ctx, userId, items, caption); err != nil {
		return fmt.Errorf("error relaying submissions: %w", err)
	}

	b.sendMenu(ctx, userId, "Your decision:", [][]telegram.Button{
		{{Text: "Approve", Data: "approve:" + taskId.String()}, {Text: "Reject", Data: "reject:" + taskId.String()}},
	})
	return nil
}

func (b *Bot) handleApprove(ctx context.Context, userId int64, arg string) error {
	taskId, err := uuid.Parse(arg)
	if err != nil {
		return workflow.ErrTaskNotFound
	}

	if _, err := b.engine.ReviewTask(ctx, userId, taskId, database.DecisionApprove, ""); err != nil {
		return err
	}
	b.send(ctx, userId, "Approved. The claimant has been notified.")
	return nil
}

func (b *Bot) handleReject(ctx context.Context, userId int64, arg string) error {
	taskId, err := uuid.Parse(arg)
	if err != nil {
		return workflow.ErrTaskNotFound
	}
	if _, err := b.engine.GetTask(ctx, taskId); err != nil {
		return err
	}

	b.sessions.Put(userId, Session{Step: StepRejectReason, TaskId: taskId})
	b.send(ctx, userId, "Send the rejection reason, or /skip to reject without one.")
	return nil
}

func (b *Bot) handleRejectReason(ctx context.Context, userId int64, text string) error {
	return b.rejectWithReason(ctx, userId, strings.TrimSpace(text))
}

func (b *Bot) handleSkip(ctx context.Context, userId int64) error {
	session := b.sessions.Get(userId)
	if session.Step != StepRejectReason {
		b.send(ctx, userId, "Nothing to skip.")
		return nil
	}
	return b.rejectWithReason(ctx, userId, "")
}

func (b *Bot) rejectWithReason(ctx context.Context, userId int64, reason string) error {
	session := b.sessions.Get(userId)

	if _, err := b.engine.ReviewTask(ctx, userId, session.TaskId, database.DecisionReject, reason); err != nil {
		return err
	}
	b.sessions.Clear(userId)
	b.send(ctx, userId, "Rejected. The claimant has been notified.")
	return nil
}
