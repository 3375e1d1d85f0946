package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"app/internal/config"
	"app/internal/model"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrBoxNotFound      = errors.New("box not found")
	ErrSampleBoxFree    = errors.New("sample box is free")
	ErrPriceNotFound    = errors.New("price not found")
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrNotSubscription  = errors.New("purchase is not a subscription")
)

// renewalWindow is how far each subscription renewal pushes the grant expiry:
// one month plus a buffer so access does not lapse between invoices.
const renewalWindow = 35 * 24 * time.Hour

// StripeService manages checkout session creation and webhook-driven grant
// writes. It is the only writer of user_products and user_memberships.
type StripeService struct {
	cfg            *config.Config
	boxRepo        repository.BoxRepository
	priceRepo      repository.PriceRepository
	productRepo    repository.ProductRepository
	membershipRepo repository.MembershipRepository
	logger         zerolog.Logger
}

// NewStripeService initializes the Stripe key and returns the service with a
// scoped logger.
func NewStripeService(
	cfg *config.Config,
	boxRepo repository.BoxRepository,
	priceRepo repository.PriceRepository,
	productRepo repository.ProductRepository,
	membershipRepo repository.MembershipRepository,
	logger zerolog.Logger,
) *StripeService {
	stripe.Key = cfg.StripeSecretKey
	return &StripeService{
		cfg:            cfg,
		boxRepo:        boxRepo,
		priceRepo:      priceRepo,
		productRepo:    productRepo,
		membershipRepo: membershipRepo,
		logger:         logger.With().Str("service", "StripeService").Logger(),
	}
}

// CreateBoxCheckout creates a one-time payment Checkout session for a single
// non-sample box and returns the session URL.
func (s *StripeService) CreateBoxCheckout(ctx context.Context, userID, email, boxID string) (string, error) {
	box, err := s.boxRepo.GetBoxByID(ctx, boxID)
	if err != nil {
		s.logger.Error().Err(err).Str("box_id", boxID).Msg("Failed to fetch box for checkout")
		return "", fmt.Errorf("fetch box: %w", err)
	}
	if box == nil || !box.IsActive {
		return "", ErrBoxNotFound
	}
	if box.IsSample {
		return "", ErrSampleBoxFree
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String("usd"),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String("AS WE ALL ARE - " + box.Name),
					Description: stripe.String(boxDescription(box)),
				},
				UnitAmount: stripe.Int64(box.PriceCents),
			},
			Quantity: stripe.Int64(1),
		}},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.cfg.CheckoutBaseURL + "?payment=success&box=" + boxID),
		CancelURL:         stripe.String(s.cfg.CheckoutBaseURL + "?payment=cancelled"),
		ClientReferenceID: stripe.String(userID),
		CustomerEmail:     stripe.String(email),
		Metadata: map[string]string{
			"box_id":        boxID,
			"purchase_type": "one_time",
		},
	}
	sess, err := checkoutsession.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("box_id", boxID).Msg("Failed to create box checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreateMembershipCheckout creates a Checkout session for a membership price,
// optionally scoped to a bundle. The grant duration comes from the price's
// membership_days; the webhook computes the expiry at completion time.
func (s *StripeService) CreateMembershipCheckout(ctx context.Context, userID, email, priceID string, bundleID *string) (string, error) {
	price, err := s.priceRepo.GetPriceByID(ctx, priceID)
	if err != nil {
		s.logger.Error().Err(err).Str("price_id", priceID).Msg("Failed to fetch price for checkout")
		return "", fmt.Errorf("fetch price: %w", err)
	}
	if price == nil || !price.IsActive {
		return "", ErrPriceNotFound
	}

	currency := price.Currency
	if currency == "" {
		currency = "usd"
	}
	metadata := map[string]string{
		"price_id":      priceID,
		"purchase_type": "membership",
	}
	if bundleID != nil {
		metadata["bundle_id"] = *bundleID
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String("AS WE ALL ARE - " + price.Label),
					Description: stripe.String("Membership access to card boxes"),
				},
				UnitAmount: stripe.Int64(price.AmountCents),
			},
			Quantity: stripe.Int64(1),
		}},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.cfg.CheckoutBaseURL + "?payment=success&membership=true"),
		CancelURL:         stripe.String(s.cfg.CheckoutBaseURL + "?payment=cancelled"),
		ClientReferenceID: stripe.String(userID),
		CustomerEmail:     stripe.String(email),
		Metadata:          metadata,
	}
	sess, err := checkoutsession.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("price_id", priceID).Msg("Failed to create membership checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CancelSubscription cancels the Stripe subscription behind a purchase owned
// by the user and deactivates the grant.
func (s *StripeService) CancelSubscription(ctx context.Context, userID, purchaseID string) error {
	purchase, err := s.productRepo.GetProductForUser(ctx, purchaseID, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("purchase_id", purchaseID).Msg("Failed to fetch purchase for cancellation")
		return fmt.Errorf("fetch purchase: %w", err)
	}
	if purchase == nil {
		return ErrPurchaseNotFound
	}
	if purchase.StripeSubscriptionID == nil || *purchase.StripeSubscriptionID == "" {
		return ErrNotSubscription
	}

	if _, err := subscriptionpkg.Cancel(*purchase.StripeSubscriptionID, nil); err != nil {
		s.logger.Error().Err(err).
			Str("subscription_id", *purchase.StripeSubscriptionID).
			Msg("Failed to cancel Stripe subscription")
		return fmt.Errorf("cancel subscription: %w", err)
	}
	if err := s.productRepo.DeactivateProduct(ctx, purchaseID); err != nil {
		s.logger.Error().Err(err).Str("purchase_id", purchaseID).Msg("Failed to deactivate cancelled purchase")
		return err
	}
	return nil
}

// HandleWebhook processes Stripe webhook events and maintains the grant
// tables.
func (s *StripeService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read Stripe webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Signature verification failed for Stripe webhook")
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}
	s.logger.Info().Str("event_type", string(event.Type)).Msg("Stripe webhook received")

	ctx := r.Context()
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			s.logger.Error().Err(err).Msg("Invalid checkout.session data")
			http.Error(w, "invalid checkout.session data", http.StatusBadRequest)
			return
		}
		if err := s.handleCheckoutCompleted(ctx, &cs); err != nil {
			s.logger.Error().Err(err).Str("session_id", cs.ID).Msg("Failed to grant access on checkout.session.completed")
			http.Error(w, "failed to grant access", http.StatusInternalServerError)
			return
		}

	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			s.logger.Error().Err(err).Msg("Invalid invoice.payment_succeeded payload")
			http.Error(w, "invalid invoice data", http.StatusBadRequest)
			return
		}
		subID := invoiceSubscriptionID(&invoice)
		if subID == "" {
			s.logger.Info().Str("invoice_id", invoice.ID).Msg("Invoice has no subscription, skipping grant extension")
			w.WriteHeader(http.StatusOK)
			return
		}
		newExpiry := time.Now().Add(renewalWindow)
		if err := s.extendGrants(ctx, subID, newExpiry); err != nil {
			s.logger.Error().Err(err).Str("subscription_id", subID).Msg("Failed to extend grants on renewal")
			http.Error(w, "failed to extend grants", http.StatusInternalServerError)
			return
		}
		s.logger.Info().Str("subscription_id", subID).Time("expires_at", newExpiry).Msg("Extended subscription grants")

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			s.logger.Error().Err(err).Msg("Invalid customer.subscription.deleted payload")
			http.Error(w, "invalid subscription data", http.StatusBadRequest)
			return
		}
		if err := s.setGrantsActive(ctx, sub.ID, false); err != nil {
			s.logger.Error().Err(err).Str("subscription_id", sub.ID).Msg("Failed to deactivate grants on subscription deletion")
			http.Error(w, "failed to deactivate grants", http.StatusInternalServerError)
			return
		}
		s.logger.Info().Str("subscription_id", sub.ID).Msg("Deactivated subscription grants")

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			s.logger.Error().Err(err).Msg("Invalid customer.subscription.updated payload")
			http.Error(w, "invalid subscription data", http.StatusBadRequest)
			return
		}
		switch sub.Status {
		case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusPastDue:
			if err := s.setGrantsActive(ctx, sub.ID, false); err != nil {
				s.logger.Error().Err(err).Str("subscription_id", sub.ID).Msg("Failed to deactivate grants on subscription update")
				http.Error(w, "failed to update grants", http.StatusInternalServerError)
				return
			}
		case stripe.SubscriptionStatusActive:
			if err := s.setGrantsActive(ctx, sub.ID, true); err != nil {
				s.logger.Error().Err(err).Str("subscription_id", sub.ID).Msg("Failed to reactivate grants on subscription update")
				http.Error(w, "failed to update grants", http.StatusInternalServerError)
				return
			}
		}

	default:
		s.logger.Warn().Str("event_type", string(event.Type)).Msg("Unhandled Stripe webhook event")
	}
	w.WriteHeader(http.StatusOK)
}

// handleCheckoutCompleted turns a completed Checkout session into a grant row:
// a user_memberships row for membership purchases, a user_products row for
// one-time box purchases.
func (s *StripeService) handleCheckoutCompleted(ctx context.Context, cs *stripe.CheckoutSession) error {
	userID := cs.ClientReferenceID
	if userID == "" {
		return errors.New("missing client reference id in checkout session")
	}

	var sessionID *string
	if cs.ID != "" {
		sessionID = &cs.ID
	}
	var subscriptionID *string
	if cs.Subscription != nil && cs.Subscription.ID != "" {
		subscriptionID = &cs.Subscription.ID
	}

	if cs.Metadata["purchase_type"] == "membership" || cs.Metadata["price_id"] != "" {
		return s.grantMembership(ctx, userID, cs.Metadata, sessionID, subscriptionID)
	}
	return s.grantProduct(ctx, userID, cs.Metadata, sessionID, subscriptionID, cs.Mode)
}

func (s *StripeService) grantMembership(ctx context.Context, userID string, metadata map[string]string, sessionID, subscriptionID *string) error {
	var priceID, bundleID *string
	if v := metadata["price_id"]; v != "" {
		priceID = &v
	}
	if v := metadata["bundle_id"]; v != "" {
		bundleID = &v
	}

	// A membership only grants access while its expiry is in the future, so
	// every grant gets one. The duration comes from the price row; the renewal
	// window is the fallback when the price cannot be resolved.
	days := 0
	if priceID != nil {
		price, err := s.priceRepo.GetPriceByID(ctx, *priceID)
		if err != nil {
			s.logger.Warn().Err(err).Str("price_id", *priceID).Msg("Price lookup failed while granting membership, using renewal window")
		} else if price != nil && price.MembershipDays != nil {
			days = *price.MembershipDays
		}
	}
	expiresAt := time.Now().Add(renewalWindow)
	if days > 0 {
		expiresAt = time.Now().AddDate(0, 0, days)
	}

	m := &model.UserMembership{
		ID:                   uuid.NewString(),
		UserID:               userID,
		BundleID:             bundleID,
		PriceID:              priceID,
		StripeSessionID:      sessionID,
		StripeSubscriptionID: subscriptionID,
		ExpiresAt:            &expiresAt,
		IsActive:             true,
	}
	if err := s.membershipRepo.InsertMembership(ctx, m); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Time("expires_at", expiresAt).Msg("Granted membership")
	return nil
}

func (s *StripeService) grantProduct(ctx context.Context, userID string, metadata map[string]string, sessionID, subscriptionID *string, mode stripe.CheckoutSessionMode) error {
	var boxID *string
	if v := metadata["box_id"]; v != "" {
		boxID = &v
	}
	purchaseType := metadata["purchase_type"]
	if purchaseType == "" {
		purchaseType = "one_time"
	}

	// One-time purchases never expire; subscription-mode sessions get the
	// renewal window and are extended on each paid invoice.
	var expiresAt *time.Time
	if mode == stripe.CheckoutSessionModeSubscription {
		t := time.Now().Add(renewalWindow)
		expiresAt = &t
	}

	p := &model.UserProduct{
		ID:                   uuid.NewString(),
		UserID:               userID,
		BoxID:                boxID,
		PurchaseType:         purchaseType,
		StripeSessionID:      sessionID,
		StripeSubscriptionID: subscriptionID,
		ExpiresAt:            expiresAt,
		IsActive:             true,
	}
	if err := s.productRepo.InsertProduct(ctx, p); err != nil {
		// A repeat webhook delivery for the same (user, box) pair refreshes
		// the existing grant instead.
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Product insert failed, refreshing existing grant")
		if err := s.productRepo.UpsertProduct(ctx, p); err != nil {
			return err
		}
	}
	s.logger.Info().Str("user_id", userID).Str("purchase_type", purchaseType).Msg("Granted product access")
	return nil
}

func (s *StripeService) extendGrants(ctx context.Context, subscriptionID string, expiresAt time.Time) error {
	if err := s.productRepo.ExtendBySubscriptionID(ctx, subscriptionID, expiresAt); err != nil {
		return err
	}
	return s.membershipRepo.ExtendBySubscriptionID(ctx, subscriptionID, expiresAt)
}

func (s *StripeService) setGrantsActive(ctx context.Context, subscriptionID string, active bool) error {
	if err := s.productRepo.SetActiveBySubscriptionID(ctx, subscriptionID, active); err != nil {
		return err
	}
	return s.membershipRepo.SetActiveBySubscriptionID(ctx, subscriptionID, active)
}

func invoiceSubscriptionID(invoice *stripe.Invoice) string {
	if invoice.Parent != nil &&
		invoice.Parent.SubscriptionDetails != nil &&
		invoice.Parent.SubscriptionDetails.Subscription != nil {
		return invoice.Parent.SubscriptionDetails.Subscription.ID
	}
	return ""
}

func boxDescription(box *model.Box) string {
	if box.Description != "" {
		return box.Description
	}
	return fmt.Sprintf("Unlock the %s card collection", box.Name)
}
