package dto

import "time"

// BoxResponseDTO is one catalog entry annotated with access.
type BoxResponseDTO struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Color        string  `json:"color"`
	PriceCents   int64   `json:"price_cents"`
	IsSample     bool    `json:"is_sample"`
	FullBoxID    *string `json:"full_box_id,omitempty"`
	DisplayOrder int     `json:"display_order"`
	HasAccess    bool    `json:"has_access"`
}

// CatalogResponseDTO is the visibility-filtered box list plus the raw
// entitlement data it was derived from.
type CatalogResponseDTO struct {
	Boxes            []BoxResponseDTO `json:"boxes"`
	EntitledBoxIDs   []string         `json:"entitled_box_ids"`
	HasMembership    bool             `json:"has_membership"`
	MembershipExpiry *time.Time       `json:"membership_expiry,omitempty"`
}

// EntitlementResponseDTO is the raw resolved entitlement for a user.
type EntitlementResponseDTO struct {
	BoxIDs           []string   `json:"box_ids"`
	HasMembership    bool       `json:"has_membership"`
	MembershipExpiry *time.Time `json:"membership_expiry,omitempty"`
}

// BoxAccessResponseDTO answers a single-box access check.
type BoxAccessResponseDTO struct {
	BoxID     string `json:"box_id"`
	HasAccess bool   `json:"has_access"`
}
