package models

import "time"

// Module is a top-level navigation group such as "Patient Management".
type Module struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  *string   `db:"description" json:"description,omitempty"`
	DisplayOrder int       `db:"display_order" json:"displayOrder"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// ModuleDocument links a document into a module. A document may sit under many modules.
type ModuleDocument struct {
	ModuleID   string    `db:"module_id" json:"moduleId"`
	DocumentID string    `db:"document_id" json:"documentId"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// ModuleFilter captures filtering criteria for listing modules.
type ModuleFilter struct {
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
