package model

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Task is a unit of work. CreatedAt is assigned by the store.
type Task struct {
	ID          uint      `gorm:"primaryKey" json:"id,omitempty" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description Text      `json:"description" db:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at,omitzero" db:"created_at"`

	// Assignments is filled by the engine after creation; it is never
	// persisted through the task row.
	Assignments []Assignment `gorm:"-" json:"-" db:"-"`
}

func (Task) TableName() string { return "tasks" }

// Text is an optional text column. NULL reads as "" and "" means none.
type Text string

func (t *Text) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*t = ""
	case string:
		*t = Text(v)
	case []byte:
		*t = Text(v)
	default:
		return fmt.Errorf("scan text: unsupported type %T", value)
	}
	return nil
}

func (t Text) Value() (driver.Value, error) {
	return string(t), nil
}
