package bot

import (
	"fmt"
	"strings"

	"crewflow/internal/database"
	"crewflow/internal/workflow"
)

func statusWord(status string) string {
	switch status {
	case database.StatusApproved:
		return "approved"
	case database.StatusRejected:
		return "rejected"
	default:
		return "pending review"
	}
}

func taskLabel(task *database.TaskClaim) string {
	title := "?"
	if task.Project != nil {
		title = task.Project.Title
	}
	return fmt.Sprintf("%s — %s (%s)", title, task.Category, statusWord(task.Status))
}

func boardText(board []workflow.CategorySlot) string {
	lines := make([]string, 0, len(board))
	for _, slot := range board {
		if slot.Claim == nil {
			lines = append(lines, fmt.Sprintf("%s: open", slot.Category))
		} else {
			lines = append(lines, fmt.Sprintf("%s: taken (%s)", slot.Category, statusWord(slot.Claim.Status)))
		}
	}
	return strings.Join(lines, "\n")
}
