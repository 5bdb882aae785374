package model

// User is a person tasks can be assigned to. DisplayName is unique by
// convention only; the store does not enforce it.
type User struct {
	ID          uint   `gorm:"primaryKey" json:"id,omitempty" db:"id"`
	DisplayName string `gorm:"index" json:"display_name" db:"display_name"`
	RoleID      *uint  `gorm:"index" json:"role_id" db:"role_id"`
}

func (User) TableName() string { return "users" }
