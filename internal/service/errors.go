package service

import (
	"errors"
	"fmt"

	"tasky/internal/store"
)

// Error kinds. Every failure returned by this package matches exactly one of
// them with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrStore               = errors.New("store call failed")
	ErrPartialReplacement  = errors.New("assignments removed but not replaced")
	ErrCascadeInconsistent = errors.New("children deleted but parent kept")
	ErrDuplicateName       = errors.New("display name already taken")
	ErrNotConfirmed        = errors.New("deletion not confirmed")
)

// Error carries the kind of failure and the message to show. For store
// failures Message is the backend's text, unmodified.
type Error struct {
	Kind    error
	Op      string
	Message string
	// TaskID is set when a task row was left behind: an orphan after a
	// failed creation, or the task stripped by a partial replacement.
	TaskID uint
	Err    error
	// Fallback is the fallback deleter's failure in an inconsistent cascade.
	Fallback error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Fallback != nil {
		errs = append(errs, e.Fallback)
	}
	return errs
}

func validationError(op, msg string) error {
	return &Error{Kind: ErrValidation, Op: op, Message: msg}
}

func storeError(op string, err error) error {
	return &Error{Kind: ErrStore, Op: op, Message: store.MessageOf(err), Err: err}
}

const manualCheck = "Manual verification is required."

// UserMessage renders err for an operator. Each kind reads differently.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		return "Unexpected error: " + err.Error()
	}
	switch {
	case errors.Is(err, ErrValidation):
		return "Invalid input: " + svcErr.Message
	case errors.Is(err, ErrDuplicateName):
		return fmt.Sprintf("The user name %q already exists.", svcErr.Message)
	case errors.Is(err, ErrNotConfirmed):
		return "Deletion cancelled: " + svcErr.Message
	case errors.Is(err, ErrPartialReplacement):
		return fmt.Sprintf("Task #%d lost its previous assignments but the new ones could not be saved (%s). The task has no assignees now. %s",
			svcErr.TaskID, svcErr.Message, manualCheck)
	case errors.Is(err, ErrCascadeInconsistent):
		return fmt.Sprintf("The related assignments were deleted but the record itself could not be removed (%s). %s",
			svcErr.Message, manualCheck)
	case svcErr.TaskID != 0:
		return fmt.Sprintf("Task #%d was created but its assignments could not be saved (%s). %s",
			svcErr.TaskID, svcErr.Message, manualCheck)
	default:
		return "The backend rejected the request: " + svcErr.Message
	}
}
