package models

import "time"

// Role groups permissions that users inherit through assignment.
type Role struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// UserRole links a user to a role. The pair is unique.
type UserRole struct {
	UserID    string    `db:"user_id" json:"userId"`
	RoleID    string    `db:"role_id" json:"roleId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// RoleFilter captures filtering criteria for listing roles.
type RoleFilter struct {
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
