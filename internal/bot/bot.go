package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"crewflow/internal/telegram"
	"crewflow/internal/workflow"
)

// UpdateSource is the inbound half of the Telegram client.
type UpdateSource interface {
	Updates(ctx context.Context, offset int64, timeout int) ([]telegram.Update, error)
}

const pollTimeoutSeconds = 30

// Bot wires the conversation flows to the lifecycle engine and the
// Telegram gateway.
type Bot struct {
	engine   *workflow.Engine
	gateway  telegram.Gateway
	sessions *SessionStore
	router   *Router
}

func NewBot(engine *workflow.Engine, gateway telegram.Gateway) *Bot {
	b := &Bot{
		engine:   engine,
		gateway:  gateway,
		sessions: NewSessionStore(),
	}

	r := NewRouter()

	r.Command("/start", b.handleStart)
	r.Command("/projects", b.handleProjects)
	r.Command("/submit", b.handleSubmit)
	r.Command("/mytasks", b.handleMyTasks)
	r.Command("/cancel", b.handleCancel)
	r.Command("/skip", b.handleSkip)
	r.AdminCommand("/admin", b.handleAdmin)

	r.AdminCallback("new_project", b.handleNewProject)
	r.AdminCallback("review_queue", b.handleReviewQueue)
	r.AdminCallback("review:", b.handleReview)
	r.AdminCallback("approve:", b.handleApprove)
	r.AdminCallback("reject:", b.handleReject)
	r.Callback("claim_project:", b.handleClaimProject)
	r.Callback("claim:", b.handleClaim)
	r.Callback("submit_task:", b.handleSubmitTask)
	r.Callback("submit_done", b.handleSubmitDone)
	r.Callback("cancel", b.handleCallbackCancel)

	r.Step(StepProjectTitle, b.handleProjectTitle)
	r.Step(StepProjectDescription, b.handleProjectDescription)
	r.Step(StepSubmitFiles, b.handleSubmitFilesText)
	r.Step(StepRejectReason, b.handleRejectReason)

	b.router = r
	return b
}

// Run long-polls for updates until the context is cancelled. Each
// update is handled in its own goroutine; ordering is only meaningful
// within a single user's session anyway.
func (b *Bot) Run(ctx context.Context, source UpdateSource) error {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := source.Updates(ctx, offset, pollTimeoutSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("error polling telegram updates", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, update := range updates {
			if update.UpdateId >= offset {
				offset = update.UpdateId + 1
			}
			go b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate dispatches a single inbound event through the router.
func (b *Bot) HandleUpdate(ctx context.Context, update telegram.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *telegram.CallbackQuery) {
	userId := query.From.Id

	if err := b.gateway.AnswerCallback(ctx, query.Id); err != nil {
		slog.Error("error answering callback", "user_id", userId, "error", err)
	}

	route, arg, ok := b.router.lookupCallback(query.Data)
	if !ok {
		slog.Warn("unroutable callback", "user_id", userId, "data", query.Data)
		return
	}
	if route.adminOnly && !b.engine.IsAdmin(userId) {
		b.send(ctx, userId, msgNotAdmin)
		return
	}

	if err := route.handler(ctx, userId, arg); err != nil {
		b.reportError(ctx, userId, err)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *telegram.Message) {
	userId := message.From.Id

	if file, ok := fileOf(message); ok {
		if err := b.handleFile(ctx, userId, file); err != nil {
			b.reportError(ctx, userId, err)
		}
		return
	}

	if len(message.Text) > 0 && message.Text[0] == '/' {
		route, ok := b.router.lookupCommand(message.Text)
		if !ok {
			b.send(ctx, userId, msgUnknownCommand)
			return
		}
		if route.adminOnly && !b.engine.IsAdmin(userId) {
			b.send(ctx, userId, msgNotAdmin)
			return
		}
		if err := route.handler(ctx, userId); err != nil {
			b.reportError(ctx, userId, err)
		}
		return
	}

	session := b.sessions.Get(userId)
	handler, ok := b.router.lookupStep(session.Step)
	if !ok {
		b.send(ctx, userId, msgIdleHint)
		return
	}
	if err := handler(ctx, userId, message.Text); err != nil {
		b.reportError(ctx, userId, err)
	}
}

// fileOf extracts the attached file, if any. Telegram sends photos as a
// size ladder; the last entry is the largest.
func fileOf(message *telegram.Message) (telegram.FileItem, bool) {
	switch {
	case message.Document != nil:
		return telegram.FileItem{FileId: message.Document.FileId, Kind: "document"}, true
	case message.Video != nil:
		return telegram.FileItem{FileId: message.Video.FileId, Kind: "video"}, true
	case len(message.Photo) > 0:
		return telegram.FileItem{FileId: message.Photo[len(message.Photo)-1].FileId, Kind: "photo"}, true
	}
	return telegram.FileItem{}, false
}

// reportError translates a domain error into a user-facing message and
// resets the session; anything else is an internal failure and is only
// logged.
func (b *Bot) reportError(ctx context.Context, userId int64, err error) {
	if msg, ok := userMessage(err); ok {
		b.sessions.Clear(userId)
		b.send(ctx, userId, msg)
		return
	}
	slog.Error("error handling update", "user_id", userId, "error", err)
}

func userMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, workflow.ErrProjectNotFound):
		return "That project no longer exists.", true
	case errors.Is(err, workflow.ErrTaskNotFound):
		return "That task no longer exists.", true
	case errors.Is(err, workflow.ErrCategoryTaken):
		return "This category is already taken by someone else.", true
	case errors.Is(err, workflow.ErrAlreadyYours):
		return "You already claimed this category.", true
	case errors.Is(err, workflow.ErrTaskClosed):
		return "This task is approved and closed.", true
	case errors.Is(err, workflow.ErrUnauthorized):
		return msgNotAdmin, true
	case errors.Is(err, workflow.ErrUnknownCategory), errors.Is(err, workflow.ErrUnknownDecision), errors.Is(err, workflow.ErrUnknownFileKind):
		return "That option is not available.", true
	}
	return "", false
}

func (b *Bot) send(ctx context.Context, chatId int64, text string) {
	if err := b.gateway.SendText(ctx, chatId, text); err != nil {
		slog.Error("error sending message", "chat_id", chatId, "error", err)
	}
}

func (b *Bot) sendMenu(ctx context.Context, chatId int64, text string, keyboard [][]telegram.Button) {
	if err := b.gateway.SendMenu(ctx, chatId, text, keyboard); err != nil {
		slog.Error("error sending menu", "chat_id", chatId, "error", err)
	}
}
