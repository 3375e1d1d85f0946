package model

import "time"

// Bundle is a named group of boxes sold or granted together. BoxIDs is stored
// as a jsonb array and decoded at the repository boundary.
type Bundle struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	BoxIDs       []string  `db:"box_ids" json:"box_ids"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
