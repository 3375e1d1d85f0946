package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// PaymentHandler handles checkout, cancellation and the Stripe webhook.
type PaymentHandler struct {
	stripeSvc *service.StripeService
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(stripeSvc *service.StripeService, v *validator.Validate, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{stripeSvc: stripeSvc, validate: v, logger: logger}
}

// RegisterRoutes mounts v1 payment routes. The webhook route is authenticated
// by Stripe's signature, not a bearer token.
func (h *PaymentHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/payment/purchase-box", authMw(http.HandlerFunc(h.purchaseBox)))
	mux.Handle("/payment/subscribe-membership", authMw(http.HandlerFunc(h.subscribeMembership)))
	mux.Handle("/payment/cancel-subscription", authMw(http.HandlerFunc(h.cancelSubscription)))
	mux.HandleFunc("/payment/webhook", h.webhook)
}

// purchaseBox godoc
// @Summary Start checkout for a single box
// @Description Creates a Stripe Checkout session for a one-time box purchase and returns its URL.
// @Tags payment
// @Accept json
// @Produce json
// @Param purchase body dto.PurchaseBoxRequest true "Box purchase request"
// @Success 200 {object} dto.CheckoutResponseDTO
// @Failure 400 {string} string "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "box not found"
// @Failure 500 {string} string "failed to create checkout session"
// @Router /payment/purchase-box [post]
func (h *PaymentHandler) purchaseBox(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req dto.PurchaseBoxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	email := middleware.EmailFromContext(r.Context())
	url, err := h.stripeSvc.CreateBoxCheckout(r.Context(), userID, email, req.BoxID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBoxNotFound):
			http.Error(w, "box not found", http.StatusNotFound)
		case errors.Is(err, service.ErrSampleBoxFree):
			http.Error(w, "sample box is free", http.StatusBadRequest)
		default:
			h.logger.Error().Err(err).Msg("failed to create box checkout session")
			http.Error(w, "failed to create checkout session", http.StatusInternalServerError)
		}
		return
	}

	h.writeCheckoutURL(w, url)
}

// subscribeMembership godoc
// @Summary Start checkout for a membership
// @Description Creates a Stripe Checkout session for a membership price and returns its URL.
// @Tags payment
// @Accept json
// @Produce json
// @Param membership body dto.MembershipCheckoutRequest true "Membership checkout request"
// @Success 200 {object} dto.CheckoutResponseDTO
// @Failure 400 {string} string "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "price not found"
// @Failure 500 {string} string "failed to create checkout session"
// @Router /payment/subscribe-membership [post]
func (h *PaymentHandler) subscribeMembership(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req dto.MembershipCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	email := middleware.EmailFromContext(r.Context())
	url, err := h.stripeSvc.CreateMembershipCheckout(r.Context(), userID, email, req.PriceID, req.BundleID)
	if err != nil {
		if errors.Is(err, service.ErrPriceNotFound) {
			http.Error(w, "price not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to create membership checkout session")
		http.Error(w, "failed to create checkout session", http.StatusInternalServerError)
		return
	}

	h.writeCheckoutURL(w, url)
}

func (h *PaymentHandler) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req dto.CancelSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.stripeSvc.CancelSubscription(r.Context(), userID, req.PurchaseID); err != nil {
		switch {
		case errors.Is(err, service.ErrPurchaseNotFound):
			http.Error(w, "purchase not found", http.StatusNotFound)
		case errors.Is(err, service.ErrNotSubscription):
			http.Error(w, "this is not a subscription", http.StatusBadRequest)
		default:
			h.logger.Error().Err(err).Msg("failed to cancel subscription")
			http.Error(w, "failed to cancel subscription", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
}

func (h *PaymentHandler) webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	h.stripeSvc.HandleWebhook(w, r)
}

func (h *PaymentHandler) writeCheckoutURL(w http.ResponseWriter, url string) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(dto.CheckoutResponseDTO{URL: url}); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
