package service

import (
	"errors"
	"fmt"

	"github.com/usst-spm/course-api/internal/lifecycle"
)

// Typed failures surfaced at the engine boundary. Handlers translate these
// to HTTP statuses; nothing below this layer returns a generic fault for a
// business-rule violation.
var (
	// ErrAssignmentNotFound indicates the assignment is absent or soft-deleted.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrSubmissionNotFound indicates the submission is absent or soft-deleted.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrGradeNotFound indicates no grade exists for the submission.
	ErrGradeNotFound = errors.New("grade not found")
	// ErrAnnouncementNotFound indicates the announcement is absent or soft-deleted.
	ErrAnnouncementNotFound = errors.New("announcement not found")
	// ErrInvalidSourceState rejects republishing anything but a published or
	// closed assignment.
	ErrInvalidSourceState = errors.New("only published or closed assignments can be republished")
	// ErrHasSubmissions blocks deleting a published assignment that already
	// received work.
	ErrHasSubmissions = errors.New("assignment has active submissions and cannot be deleted, archive it instead")
	// ErrNotEditable rejects edits to closed or archived assignments.
	ErrNotEditable = errors.New("assignment is not editable in its current state")
	// ErrNotDeletable rejects deleting a closed assignment; it must be
	// archived first.
	ErrNotDeletable = errors.New("closed assignments cannot be deleted, archive them first")
	// ErrPastDue rejects submissions after the deadline.
	ErrPastDue = errors.New("assignment is past due")
	// ErrResubmitNotAllowed rejects a second submission when resubmission is
	// disabled.
	ErrResubmitNotAllowed = errors.New("assignment does not allow resubmission")
	// ErrResubmitLimitExceeded rejects a resubmission beyond the configured
	// quota.
	ErrResubmitLimitExceeded = errors.New("resubmission limit exceeded")
	// ErrReasonRequired rejects mutations that must be justified but carry a
	// blank reason.
	ErrReasonRequired = errors.New("a non-blank reason is required")
	// ErrTitleRequired rejects publishing a draft with a blank title.
	ErrTitleRequired = errors.New("title must not be blank to publish")
	// ErrDueDateRequired rejects publishing a draft without a due date.
	ErrDueDateRequired = errors.New("a due date is required to publish")
	// ErrScoreOutOfRange rejects scores outside [0, totalScore].
	ErrScoreOutOfRange = errors.New("score is outside the assignment's score range")
	// ErrForbidden rejects reads of records the requester does not own.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict reports a concurrent-write race that one retry could not
	// resolve.
	ErrConflict = errors.New("conflicting concurrent update, please retry")
)

// ImmutableFieldError names the field an edit attempted to change while the
// assignment's state locks it.
type ImmutableFieldError struct {
	Field  string
	Status lifecycle.Status
}

func (e *ImmutableFieldError) Error() string {
	return fmt.Sprintf("%s cannot be changed while %s", e.Field, e.Status)
}
