package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"app/internal/api/v1/dto"
	"app/internal/model"

	"github.com/rs/zerolog"
)

type fakeStoreService struct {
	prices  []model.Price
	bundles []model.Bundle
	err     error
}

func (f *fakeStoreService) ListPrices(ctx context.Context) ([]model.Price, error) {
	return f.prices, f.err
}

func (f *fakeStoreService) ListBundles(ctx context.Context) ([]model.Bundle, error) {
	return f.bundles, f.err
}

func TestGetPrices(t *testing.T) {
	days := 365
	svc := &fakeStoreService{prices: []model.Price{
		{ID: "price_box", Label: "Single box", AmountCents: 1900, Currency: "eur", DisplayOrder: 1},
		{ID: "price_all", Label: "Yearly membership", AmountCents: 4900, Currency: "eur", IsMembership: true, MembershipDays: &days, DisplayOrder: 2},
	}}
	h := NewStoreHandler(svc, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/store/prices", nil)
	rec := httptest.NewRecorder()
	h.getPrices(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp []dto.PriceResponseDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected 2 prices, got %d", len(resp))
	}
	if resp[1].MembershipDays == nil || *resp[1].MembershipDays != 365 {
		t.Errorf("expected membership_days=365, got %v", resp[1].MembershipDays)
	}
}

func TestGetPricesStoreFailure(t *testing.T) {
	h := NewStoreHandler(&fakeStoreService{err: errors.New("db down")}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/store/prices", nil)
	rec := httptest.NewRecorder()
	h.getPrices(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestGetBundles(t *testing.T) {
	svc := &fakeStoreService{bundles: []model.Bundle{
		{ID: "bundle_ab", Name: "A+B", BoxIDs: []string{"box_a", "box_b"}, DisplayOrder: 1},
	}}
	h := NewStoreHandler(svc, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/store/bundles", nil)
	rec := httptest.NewRecorder()
	h.getBundles(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp []dto.BundleResponseDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("expected 1 bundle, got %d", len(resp))
	}
	if !reflect.DeepEqual(resp[0].BoxIDs, []string{"box_a", "box_b"}) {
		t.Errorf("expected box_ids [box_a box_b], got %v", resp[0].BoxIDs)
	}
}

func TestGetBundlesMethodNotAllowed(t *testing.T) {
	h := NewStoreHandler(&fakeStoreService{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodDelete, "/store/bundles", nil)
	rec := httptest.NewRecorder()
	h.getBundles(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
