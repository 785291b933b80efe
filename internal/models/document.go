package models

import "time"

// Document is a single screen of the portal, addressed by a logical route path.
type Document struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Path         string    `db:"path" json:"path"`
	DisplayOrder int       `db:"display_order" json:"displayOrder"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// DocumentFilter captures filtering criteria for listing documents.
type DocumentFilter struct {
	Active   *bool
	Search   string
	Path     string
	Page     int
	PageSize int
}
