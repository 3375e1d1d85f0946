package dto

// PriceResponseDTO is a store price point.
type PriceResponseDTO struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	IsMembership   bool   `json:"is_membership"`
	MembershipDays *int   `json:"membership_days,omitempty"`
	DisplayOrder   int    `json:"display_order"`
}

// BundleResponseDTO is a store bundle listing.
type BundleResponseDTO struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	BoxIDs       []string `json:"box_ids"`
	DisplayOrder int      `json:"display_order"`
}
