package workflow

import "errors"

var (
	// ErrProjectNotFound is returned when a project id references no record.
	ErrProjectNotFound = errors.New("project not found")

	// ErrTaskNotFound is returned when a task id references no claim.
	ErrTaskNotFound = errors.New("task not found")

	// ErrUnknownCategory is returned for a category outside the fixed set.
	ErrUnknownCategory = errors.New("unknown task category")

	// ErrUnknownFileKind is returned for a submission kind outside the fixed set.
	ErrUnknownFileKind = errors.New("unknown file kind")

	// ErrUnknownDecision is returned for a review decision outside approve/reject.
	ErrUnknownDecision = errors.New("unknown review decision")

	// ErrCategoryTaken is returned when a claim attempt loses to a different
	// claimant. No state changes.
	ErrCategoryTaken = errors.New("category already claimed by another user")

	// ErrAlreadyYours is returned alongside the existing claim when a user
	// re-claims their own category. Callers treat it as an informational
	// outcome, not a failure.
	ErrAlreadyYours = errors.New("category already claimed by you")

	// ErrDuplicateFile is returned alongside the existing submission when a
	// file id is attached twice to the same task. Callers treat it as
	// success.
	ErrDuplicateFile = errors.New("file already attached to task")

	// ErrTaskClosed is returned when a claim is approved and therefore
	// terminal: it accepts no further submissions and no further reviews.
	ErrTaskClosed = errors.New("task is approved and closed")

	// ErrUnauthorized is returned when a non-administrator invokes an
	// administrator-only operation.
	ErrUnauthorized = errors.New("operation requires administrator rights")
)
