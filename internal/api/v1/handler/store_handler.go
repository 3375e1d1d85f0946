package handler

import (
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// StoreHandler serves the public store listings.
type StoreHandler struct {
	storeSvc service.StoreService
	logger   zerolog.Logger
}

// NewStoreHandler creates a new StoreHandler.
func NewStoreHandler(storeSvc service.StoreService, logger zerolog.Logger) *StoreHandler {
	return &StoreHandler{storeSvc: storeSvc, logger: logger}
}

// RegisterRoutes mounts v1 store routes. These are public.
func (h *StoreHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/store/prices", h.getPrices)
	mux.HandleFunc("/store/bundles", h.getBundles)
}

func (h *StoreHandler) getPrices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	prices, err := h.storeSvc.ListPrices(r.Context())
	if err != nil {
		http.Error(w, "failed to list prices", http.StatusInternalServerError)
		return
	}

	resp := make([]dto.PriceResponseDTO, 0, len(prices))
	for _, p := range prices {
		resp = append(resp, dto.PriceResponseDTO{
			ID:             p.ID,
			Label:          p.Label,
			AmountCents:    p.AmountCents,
			Currency:       p.Currency,
			IsMembership:   p.IsMembership,
			MembershipDays: p.MembershipDays,
			DisplayOrder:   p.DisplayOrder,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *StoreHandler) getBundles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	bundles, err := h.storeSvc.ListBundles(r.Context())
	if err != nil {
		http.Error(w, "failed to list bundles", http.StatusInternalServerError)
		return
	}

	resp := make([]dto.BundleResponseDTO, 0, len(bundles))
	for _, b := range bundles {
		resp = append(resp, dto.BundleResponseDTO{
			ID:           b.ID,
			Name:         b.Name,
			BoxIDs:       b.BoxIDs,
			DisplayOrder: b.DisplayOrder,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
