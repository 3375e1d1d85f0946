package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// CatalogHandler serves the deck catalog and entitlement reads. All routes
// accept anonymous callers; a valid Bearer token widens the result to the
// user's purchases.
type CatalogHandler struct {
	entitlementSvc service.EntitlementService
	logger         zerolog.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(entitlementSvc service.EntitlementService, logger zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{entitlementSvc: entitlementSvc, logger: logger}
}

// RegisterRoutes mounts v1 catalog routes.
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux, optionalAuthMw func(http.Handler) http.Handler) {
	mux.Handle("/boxes", optionalAuthMw(http.HandlerFunc(h.getBoxes)))
	mux.Handle("/boxes/", optionalAuthMw(http.HandlerFunc(h.handleBox)))
	mux.Handle("/entitlements", optionalAuthMw(http.HandlerFunc(h.getEntitlements)))
}

// getBoxes godoc
// @Summary List visible boxes
// @Description Returns active boxes ordered by display_order, annotated with access. Sample boxes whose full box is owned are hidden.
// @Tags catalog
// @Produce json
// @Success 200 {object} dto.CatalogResponseDTO
// @Failure 500 {string} string "entitlement lookup failed"
// @Router /boxes [get]
func (h *CatalogHandler) getBoxes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	catalog, err := h.entitlementSvc.VisibleCatalog(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	resp := dto.CatalogResponseDTO{
		Boxes:            make([]dto.BoxResponseDTO, 0, len(catalog.Boxes)),
		EntitledBoxIDs:   catalog.Entitlement.SortedBoxIDs(),
		HasMembership:    catalog.Entitlement.HasMembership,
		MembershipExpiry: catalog.Entitlement.MembershipExpiry,
	}
	for _, b := range catalog.Boxes {
		resp.Boxes = append(resp.Boxes, toBoxDTO(b))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleBox dispatches /boxes/{boxId}/access.
func (h *CatalogHandler) handleBox(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/boxes/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "access" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	boxID := parts[0]
	hasAccess, err := h.entitlementSvc.HasBoxAccess(r.Context(), middleware.UserIDFromContext(r.Context()), boxID)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dto.BoxAccessResponseDTO{BoxID: boxID, HasAccess: hasAccess})
}

func (h *CatalogHandler) getEntitlements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	ent, err := h.entitlementSvc.Resolve(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	resp := dto.EntitlementResponseDTO{
		BoxIDs:           ent.SortedBoxIDs(),
		HasMembership:    ent.HasMembership,
		MembershipExpiry: ent.MembershipExpiry,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeResolveError maps resolution failures to responses. A failed primary
// lookup must never come back as an empty entitlement set.
func (h *CatalogHandler) writeResolveError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrEntitlementLookup) {
		h.logger.Error().Err(err).Msg("Entitlement resolution failed")
		http.Error(w, "entitlement lookup failed", http.StatusInternalServerError)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func toBoxDTO(b model.BoxWithAccess) dto.BoxResponseDTO {
	return dto.BoxResponseDTO{
		ID:           b.ID,
		Name:         b.Name,
		Description:  b.Description,
		Color:        b.Color,
		PriceCents:   b.PriceCents,
		IsSample:     b.IsSample,
		FullBoxID:    b.FullBoxID,
		DisplayOrder: b.DisplayOrder,
		HasAccess:    b.HasAccess,
	}
}
