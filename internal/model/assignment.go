package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is the progress of one user on one task. The numeric values are
// the ones stored in task_assignments.status.
type Status int

const (
	StatusCompleted  Status = 1
	StatusPending    Status = 2
	StatusInProgress Status = 3
)

// Statuses lists the known values in the order operators pick them.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

// Known reports whether s is one of the three stored values.
func (s Status) Known() bool {
	switch s {
	case StatusCompleted, StatusPending, StatusInProgress:
		return true
	default:
		return false
	}
}

// String returns the display label. Unknown codes render as "Unknown".
func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "Completed"
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In progress"
	default:
		return "Unknown"
	}
}

// Color returns the badge colour paired with the label.
func (s Status) Color() string {
	switch s {
	case StatusCompleted:
		return "#8bc34a"
	case StatusPending:
		return "#ff9800"
	case StatusInProgress:
		return "#03a9f4"
	default:
		return "#9e9e9e"
	}
}

// DisplayStatus maps a raw status code to its label.
func DisplayStatus(code int) string {
	return Status(code).String()
}

// ParseStatus reads operator input: a label ("pending", "in-progress",
// "in progress", "completed", "done") or a numeric code.
func ParseStatus(raw string) (Status, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "pending", "todo":
		return StatusPending, nil
	case "in-progress", "in progress", "in_progress", "progress", "wip":
		return StatusInProgress, nil
	case "completed", "complete", "done":
		return StatusCompleted, nil
	}
	code, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("unknown status %q", raw)
	}
	return Status(code), nil
}

// Assignment links one task to one user.
type Assignment struct {
	ID     uint   `gorm:"primaryKey" json:"id,omitempty" db:"id"`
	TaskID uint   `gorm:"index" json:"task_id" db:"task_id"`
	UserID uint   `gorm:"index" json:"user_id" db:"user_id"`
	Status Status `json:"status" db:"status"`
}

func (Assignment) TableName() string { return "task_assignments" }
