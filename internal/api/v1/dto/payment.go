package dto

// PurchaseBoxRequest starts checkout for a single box.
type PurchaseBoxRequest struct {
	BoxID string `json:"box_id" validate:"required"`
}

// MembershipCheckoutRequest starts checkout for a membership price,
// optionally scoped to a bundle.
type MembershipCheckoutRequest struct {
	PriceID  string  `json:"price_id" validate:"required"`
	BundleID *string `json:"bundle_id,omitempty"`
}

// CancelSubscriptionRequest cancels the subscription behind a purchase.
type CancelSubscriptionRequest struct {
	PurchaseID string `json:"purchase_id" validate:"required"`
}

// CheckoutResponseDTO carries the Stripe Checkout session URL.
type CheckoutResponseDTO struct {
	URL string `json:"url"`
}
