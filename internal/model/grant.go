package model

import "time"

// UserProduct is a direct one-time purchase grant for a single box. A nil
// ExpiresAt means the grant never expires.
type UserProduct struct {
	ID                   string     `db:"id" json:"id"`
	UserID               string     `db:"user_id" json:"user_id"`
	BoxID                *string    `db:"box_id" json:"box_id,omitempty"`
	PurchaseType         string     `db:"purchase_type" json:"purchase_type"`
	StripeSessionID      *string    `db:"stripe_session_id" json:"stripe_session_id,omitempty"`
	StripeSubscriptionID *string    `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	ExpiresAt            *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	IsActive             bool       `db:"is_active" json:"is_active"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
}

// UserMembership is a time-bounded subscription grant, optionally tied to a
// bundle or an all-access price. Unlike UserProduct, a membership without an
// expiry is never considered active.
type UserMembership struct {
	ID                   string     `db:"id" json:"id"`
	UserID               string     `db:"user_id" json:"user_id"`
	BundleID             *string    `db:"bundle_id" json:"bundle_id,omitempty"`
	PriceID              *string    `db:"price_id" json:"price_id,omitempty"`
	StripeSessionID      *string    `db:"stripe_session_id" json:"stripe_session_id,omitempty"`
	StripeSubscriptionID *string    `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	ExpiresAt            *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	IsActive             bool       `db:"is_active" json:"is_active"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
}
