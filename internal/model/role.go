package model

// Role is read-only from the application's point of view.
type Role struct {
	ID   uint   `gorm:"primaryKey" json:"id,omitempty" db:"id"`
	Name string `json:"name" db:"name"`
}

func (Role) TableName() string { return "roles" }
