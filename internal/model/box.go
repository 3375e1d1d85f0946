package model

import "time"

// Box is a purchasable card deck in the catalog. Sample boxes are free teaser
// decks; a sample's FullBoxID points at the paid box it previews.
type Box struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	Color        string    `db:"color" json:"color"`
	PriceCents   int64     `db:"price_cents" json:"price_cents"`
	IsSample     bool      `db:"is_sample" json:"is_sample"`
	FullBoxID    *string   `db:"full_box_id" json:"full_box_id,omitempty"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// BoxWithAccess is a catalog entry annotated with whether the requesting user
// may open it.
type BoxWithAccess struct {
	Box
	HasAccess bool `json:"has_access"`
}
