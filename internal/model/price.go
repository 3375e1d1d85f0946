package model

import "time"

// Price is a purchasable price point. A non-nil MembershipDays marks the price
// as an all-access membership tier rather than a single-bundle price.
type Price struct {
	ID             string    `db:"id" json:"id"`
	Label          string    `db:"label" json:"label"`
	AmountCents    int64     `db:"amount_cents" json:"amount_cents"`
	Currency       string    `db:"currency" json:"currency"`
	IsMembership   bool      `db:"is_membership" json:"is_membership"`
	MembershipDays *int      `db:"membership_days" json:"membership_days,omitempty"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	DisplayOrder   int       `db:"display_order" json:"display_order"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
