package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"crewflow/internal/database"
	"crewflow/pkg/models"
)

// NotificationSender is the slice of the Telegram gateway the notifier
// needs.
type NotificationSender interface {
	SendText(ctx context.Context, chatId int64, text string) error
}

// Notifier drains the notification queue and delivers review decisions
// to claimants. Delivery failure is logged and the message rejected;
// the review decision itself is already committed and unaffected.
type Notifier struct {
	receiver Receiver
	sender   NotificationSender

	wg   sync.WaitGroup
	stop chan struct{}
}

func NewNotifier(receiver Receiver, sender NotificationSender) *Notifier {
	return &Notifier{
		receiver: receiver,
		sender:   sender,
		stop:     make(chan struct{}),
	}
}

func (n *Notifier) Start() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case task, ok := <-n.receiver.Tasks():
				if !ok {
					return
				}
				n.process(task)
			case <-n.stop:
				return
			}
		}
	}()
}

func (n *Notifier) Stop() {
	close(n.stop)
	n.wg.Wait()
}

func (n *Notifier) process(task Task) {
	if task.Type() != NotificationQueue {
		slog.Error("notifier received task from unexpected queue", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting task", "error", err)
		}
		return
	}

	var payload models.ReviewNotification
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		slog.Error("error parsing notification payload", "error", err)
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting task", "error", err)
		}
		return
	}

	if err := n.sender.SendText(context.Background(), payload.ClaimantId, FormatNotification(payload)); err != nil {
		slog.Error("error delivering review notification", "task_id", payload.TaskId, "claimant_id", payload.ClaimantId, "error", err)
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting task", "error", err)
		}
		return
	}

	if err := task.Ack(); err != nil {
		slog.Error("error acking notification task", "error", err)
	}
}

func FormatNotification(payload models.ReviewNotification) string {
	if payload.Decision == database.DecisionApprove {
		return fmt.Sprintf("Your %s work for %q has been approved. Nice job!", payload.Category, payload.ProjectTitle)
	}
	msg := fmt.Sprintf("Your %s work for %q has been rejected.", payload.Category, payload.ProjectTitle)
	if payload.Reason != "" {
		msg += fmt.Sprintf(" Reason: %s", payload.Reason)
	}
	msg += " You can submit new files for this task."
	return msg
}
