package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
)

// fakeBoxRepo serves boxes from memory in insertion order.
type fakeBoxRepo struct {
	boxes   []model.Box
	listErr error
}

func (f *fakeBoxRepo) ListActiveBoxes(ctx context.Context) ([]model.Box, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.Box
	for _, b := range f.boxes {
		if b.IsActive {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBoxRepo) ListActiveSampleBoxIDs(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var ids []string
	for _, b := range f.boxes {
		if b.IsActive && b.IsSample {
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

func (f *fakeBoxRepo) ListActiveBoxIDs(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var ids []string
	for _, b := range f.boxes {
		if b.IsActive {
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

func (f *fakeBoxRepo) GetBoxByID(ctx context.Context, boxID string) (*model.Box, error) {
	for _, b := range f.boxes {
		if b.ID == boxID {
			box := b
			return &box, nil
		}
	}
	return nil, nil
}

type fakeProductRepo struct {
	products  []model.UserProduct
	listErr   error
	insertErr error

	extendedSub   string
	extendedUntil time.Time
	activeSub     string
	activeState   bool
}

func (f *fakeProductRepo) ListActiveProducts(ctx context.Context, userID string) ([]model.UserProduct, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.UserProduct
	for _, p := range f.products {
		if p.UserID == userID && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProductRepo) GetProductForUser(ctx context.Context, productID, userID string) (*model.UserProduct, error) {
	for _, p := range f.products {
		if p.ID == productID && p.UserID == userID {
			product := p
			return &product, nil
		}
	}
	return nil, nil
}

func (f *fakeProductRepo) InsertProduct(ctx context.Context, p *model.UserProduct) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.products = append(f.products, *p)
	return nil
}

func (f *fakeProductRepo) UpsertProduct(ctx context.Context, p *model.UserProduct) error {
	for i := range f.products {
		if f.products[i].UserID == p.UserID && eqStrPtr(f.products[i].BoxID, p.BoxID) {
			f.products[i].StripeSessionID = p.StripeSessionID
			f.products[i].StripeSubscriptionID = p.StripeSubscriptionID
			f.products[i].ExpiresAt = p.ExpiresAt
			f.products[i].IsActive = true
		}
	}
	return nil
}

func (f *fakeProductRepo) DeactivateProduct(ctx context.Context, productID string) error {
	for i := range f.products {
		if f.products[i].ID == productID {
			f.products[i].IsActive = false
		}
	}
	return nil
}

func (f *fakeProductRepo) ExtendBySubscriptionID(ctx context.Context, subscriptionID string, expiresAt time.Time) error {
	f.extendedSub = subscriptionID
	f.extendedUntil = expiresAt
	return nil
}

func (f *fakeProductRepo) SetActiveBySubscriptionID(ctx context.Context, subscriptionID string, active bool) error {
	f.activeSub = subscriptionID
	f.activeState = active
	return nil
}

func eqStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type fakeMembershipRepo struct {
	memberships []model.UserMembership
	listErr     error

	extendedSub   string
	extendedUntil time.Time
	activeSub     string
	activeState   bool
}

func (f *fakeMembershipRepo) ListActiveMemberships(ctx context.Context, userID string) ([]model.UserMembership, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.UserMembership
	for _, m := range f.memberships {
		if m.UserID == userID && m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMembershipRepo) InsertMembership(ctx context.Context, m *model.UserMembership) error {
	f.memberships = append(f.memberships, *m)
	return nil
}

func (f *fakeMembershipRepo) ExtendBySubscriptionID(ctx context.Context, subscriptionID string, expiresAt time.Time) error {
	f.extendedSub = subscriptionID
	f.extendedUntil = expiresAt
	return nil
}

func (f *fakeMembershipRepo) SetActiveBySubscriptionID(ctx context.Context, subscriptionID string, active bool) error {
	f.activeSub = subscriptionID
	f.activeState = active
	return nil
}

type fakeBundleRepo struct {
	bundles map[string]model.Bundle
	getErr  error
}

func (f *fakeBundleRepo) GetBundleByID(ctx context.Context, bundleID string) (*model.Bundle, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.bundles[bundleID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (f *fakeBundleRepo) ListActiveBundles(ctx context.Context) ([]model.Bundle, error) {
	var out []model.Bundle
	for _, b := range f.bundles {
		if b.IsActive {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakePriceRepo struct {
	prices map[string]model.Price
	getErr error
}

func (f *fakePriceRepo) GetPriceByID(ctx context.Context, priceID string) (*model.Price, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.prices[priceID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakePriceRepo) ListActivePrices(ctx context.Context) ([]model.Price, error) {
	var out []model.Price
	for _, p := range f.prices {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func intPtr(i int) *int { return &i }

func newTestService(boxes *fakeBoxRepo, products *fakeProductRepo, memberships *fakeMembershipRepo, bundles *fakeBundleRepo, prices *fakePriceRepo) EntitlementService {
	if boxes == nil {
		boxes = &fakeBoxRepo{}
	}
	if products == nil {
		products = &fakeProductRepo{}
	}
	if memberships == nil {
		memberships = &fakeMembershipRepo{}
	}
	if bundles == nil {
		bundles = &fakeBundleRepo{}
	}
	if prices == nil {
		prices = &fakePriceRepo{}
	}
	return NewEntitlementService(boxes, products, memberships, bundles, prices, zerolog.Nop())
}

func sampleBox(id string) model.Box {
	return model.Box{ID: id, Name: id, IsSample: true, IsActive: true}
}

func fullBox(id string) model.Box {
	return model.Box{ID: id, Name: id, IsActive: true}
}

func TestResolveSampleBoxesAlwaysEntitled(t *testing.T) {
	boxes := &fakeBoxRepo{boxes: []model.Box{sampleBox("box_demo"), fullBox("box_red")}}
	svc := newTestService(boxes, nil, nil, nil, nil)

	for name, userID := range map[string]*string{
		"anonymous":     nil,
		"empty":         strPtr(""),
		"authenticated": strPtr("u1"),
	} {
		ent, err := svc.Resolve(context.Background(), userID)
		if err != nil {
			t.Fatalf("%s: Resolve returned error: %v", name, err)
		}
		if !ent.Entitled("box_demo") {
			t.Errorf("%s: expected sample box_demo to be entitled", name)
		}
		if ent.Entitled("box_red") {
			t.Errorf("%s: did not expect box_red to be entitled", name)
		}
	}
}

func TestResolveAnonymousHasNoMembership(t *testing.T) {
	boxes := &fakeBoxRepo{boxes: []model.Box{sampleBox("box_demo")}}
	memberships := &fakeMembershipRepo{memberships: []model.UserMembership{
		{ID: "m1", UserID: "u1", ExpiresAt: timePtr(time.Now().Add(24 * time.Hour)), IsActive: true},
	}}
	svc := newTestService(boxes, nil, memberships, nil, nil)

	ent, err := svc.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if ent.HasMembership {
		t.Error("expected hasMembership=false for anonymous caller")
	}
	if ent.MembershipExpiry != nil {
		t.Errorf("expected nil membershipExpiry for anonymous caller, got %v", ent.MembershipExpiry)
	}
	if got := ent.SortedBoxIDs(); !reflect.DeepEqual(got, []string{"box_demo"}) {
		t.Errorf("expected only sample boxes, got %v", got)
	}
}

func TestResolveProductNilExpiryIsPerpetual(t *testing.T) {
	boxes := &fakeBoxRepo{boxes: []model.Box{fullBox("box_red")}}
	products := &fakeProductRepo{products: []model.UserProduct{
		{ID: "p1", UserID: "u1", BoxID: strPtr("box_red"), IsActive: true},
	}}
	svc := newTestService(boxes, products, nil, nil, nil)

	for i := 0; i < 2; i++ {
		ent, err := svc.Resolve(context.Background(), strPtr("u1"))
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if !ent.Entitled("box_red") {
			t.Fatalf("call %d: expected perpetual product grant to entitle box_red", i+1)
		}
	}
}

func TestResolveExpiredProductExcluded(t *testing.T) {
	boxes := &fakeBoxRepo{boxes: []model.Box{fullBox("box_red")}}
	products := &fakeProductRepo{products: []model.UserProduct{
		{ID: "p1", UserID: "u1", BoxID: strPtr("box_red"), ExpiresAt: timePtr(time.Now().Add(-time.Hour)), IsActive: true},
	}}
	svc := newTestService(boxes, products, nil, nil, nil)

	ent, err := svc.Resolve(context.Background(), strPtr("u1"))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if ent.Entitled("box_red") {
		t.Error("expected expired product grant to be excluded")
	}
}

func TestResolveProductNilBoxIDSkipped(t *testing.T) {
	products := &fakeProductRepo{products: []model.UserProduct{
		{ID: "p1", UserID: "u1", BoxID: nil, IsActive: true},
	}}
	svc := newTestService(nil, products, nil, nil, nil)

	ent, err := svc.Resolve(context.Background(), strPtr("u1"))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(ent.BoxIDs) != 0 {
		t.Errorf("expected empty entitlement set, got %v", ent.SortedBoxIDs())
	}
}

func TestResolveMembershipNilExpiryNeverActive(t *testing.T) {
	bundles := &fakeBundleRepo{bundles: map[string]model.Bundle{
		"bundle_ab": {ID: "bundle_ab", BoxIDs: []string{"box_a", "box_b"}, IsActive: true},
	}}
	memberships := &fakeMembershipRepo{memberships: []model.UserMembership{
		{ID: "m1", UserID: "u1", BundleID: strPtr("bundle_ab"), ExpiresAt: nil, IsActive: true},
	}}
	svc := newTestService(nil, nil, memberships, bundles, nil)

	ent, err := svc.Resolve(context.Background(), strPtr("u1"))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if ent.HasMembership {
		t.Error("expected membership with nil expiry to never be active")
	}
	if ent.Entitled("box_a") || ent.Entitled("box_b") {
		t.Errorf("expected no bundle boxes from inactive membership, got %v", ent.SortedBoxIDs())
	}
}

func TestResolveMembershipExpiryIsMax(t *testing.T) {
	t1 := time.Now().Add(30 * 24 * time.Hour).Truncate(time.Second)
	t2 := time.Now().Add(365 * 24 * time.Hour).Truncate(time.Second)
	memberships := &fakeMembershipRepo{memberships: []model.UserMembership{
		{ID: "m1", UserID: "u1", ExpiresAt: &t1, IsActive: true},
		{ID: "m2", UserID: "u1", ExpiresAt: &t2, IsActive: true},
	}}
	svc := newTestService(nil, nil, memberships, nil, nil)

	ent, err := svc.Resolve(context.Background(), strPtr("u1"))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !ent.HasMembership {
		t.Fatal("expected hasMembership=true")
	}
	if ent.MembershipExpiry == nil || !ent.MembershipExpiry.Equal(t2) {
		t.Errorf("expected membershipExpiry=%v, got %v", t2, ent.MembershipExpiry)
	}
}

func TestResolveAllAccessPriceGrantsWholeCatalog(t *testing.T) {
	boxes := &fakeBoxRepo{boxes: []model.Box{
		fullBox("box_a"),
		fullBox("box_b"),
		fullBox("box_unrelated"),
		{ID: "box_retired", IsActive: false},
	}}
	bundles := &fakeBundleRepo{bundles: map[string]model.Bundle{
		"bundle_ab": {ID: "bundle_ab", BoxIDs: []string{"box_a", "box_b"}, IsActive: true},
	}}
	prices := &fakePriceRepo{prices: map[string]model.Price{
		"price_all": {ID: "price_all", IsMembership: true, MembershipDays: intPtr(365), IsActive: true},
	}}
	memberships := &fakeMembershipRepo{memberships: []model.UserMembership{
		{
			ID: "m1", UserID: "u1",
			BundleID:  strPtr("bundle_ab"),
			PriceID:   strPtr("price_all"),
			ExpiresAt: timePtr(time.Now().Add(24 * time.Hour)),
			IsActive:  true,
		},
	}}
	svc := newTestService(boxes, nil, memberships, bundles, prices)

	ent, err := svc.Resolve(context.Background(), strPtr("u1"))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	want := []string{"box_a", "box_b", "box_unrelated"}
	if got := ent.SortedBoxIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected all-access set %v, got %v", want, got)
	}
	if ent.Entitled("box_retired") {
		t.Error("inactive box must not be granted by an all-access price")
	}
}

func TestResolveSecondaryLookupFailureIsBestEffort(t *testing.T) {
	bundles := &fakeBundleRepo{getErr: errors.New("bundle store down")}
	prices := &fakePriceRepo{getErr: errors.New("price store down")}
	expiry := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	memberships := &fakeMembershipRepo{memberships: []model.UserMembership{
		{
			ID: "m1", UserID: "u1",
			BundleID:  strPtr("bundle_ab"),
			PriceID:   strPtr("price_all"),
			ExpiresAt: &expiry,
			IsActive:  true,
		},
	}}
	svc := newTestService(nil, nil, memberships, bundles, prices)

	ent, err := svc.Resolve(context.Background(), strPtr("u1"))
	if err != nil {
		t.Fatalf("expected best-effort resolution, got error: %v", err)
	}
	if !ent.HasMembership {
		t.Error("membership status must survive secondary lookup failures")
	}
	if ent.MembershipExpiry == nil || !ent.MembershipExpiry.Equal(expiry) {
		t.Errorf("expected membershipExpiry=%v, got %v", expiry, ent.MembershipExpiry)
	}
	if len(ent.BoxIDs) != 0 {
		t.Errorf("failed lookups must contribute no boxes, got %v", ent.SortedBoxIDs())
	}
}

func TestResolvePrimaryFailureSurfaces(t *testing.T) {
	storeErr := errors.New("connection refused")

	tests := []struct {
		name string
		svc  EntitlementService
	}{
		{"boxes", newTestService(&fakeBoxRepo{listErr: storeErr}, nil, nil, nil, nil)},
		{"products", newTestService(nil, &fakeProductRepo{listErr: storeErr}, nil, nil, nil)},
		{"memberships", newTestService(nil, nil, &fakeMembershipRepo{listErr: storeErr}, nil, nil)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ent, err := tc.svc.Resolve(context.Background(), strPtr("u1"))
			if err == nil {
				t.Fatalf("expected error, got entitlement %v", ent)
			}
			if !errors.Is(err, ErrEntitlementLookup) {
				t.Errorf("expected ErrEntitlementLookup, got %v", err)
			}
		})
	}
}

func TestResolveIdempotent(t *testing.T) {
	boxes := &fakeBoxRepo{boxes: []model.Box{sampleBox("box_demo"), fullBox("box_red"), fullBox("box_a"), fullBox("box_b")}}
	products := &fakeProductRepo{products: []model.UserProduct{
		{ID: "p1", UserID: "u1", BoxID: strPtr("box_red"), IsActive: true},
	}}
	bundles := &fakeBundleRepo{bundles: map[string]model.Bundle{
		"bundle_ab": {ID: "bundle_ab", BoxIDs: []string{"box_a", "box_b"}, IsActive: true},
	}}
	memberships := &fakeMembershipRepo{memberships: []model.UserMembership{
		{ID: "m1", UserID: "u1", BundleID: strPtr("bundle_ab"), ExpiresAt: timePtr(time.Now().Add(time.Hour)), IsActive: true},
	}}
	svc := newTestService(boxes, products, memberships, bundles, nil)

	first, err := svc.Resolve(context.Background(), strPtr("u1"))
	if err != nil {
		t.Fatalf("first Resolve returned error: %v", err)
	}
	second, err := svc.Resolve(context.Background(), strPtr("u1"))
	if err != nil {
		t.Fatalf("second Resolve returned error: %v", err)
	}
	if !reflect.DeepEqual(first.SortedBoxIDs(), second.SortedBoxIDs()) {
		t.Errorf("repeated resolution differs: %v vs %v", first.SortedBoxIDs(), second.SortedBoxIDs())
	}
	if first.HasMembership != second.HasMembership {
		t.Error("repeated resolution differs on hasMembership")
	}
}

func TestResolveEndToEnd(t *testing.T) {
	expiry := time.Now().Add(365 * 24 * time.Hour).Truncate(time.Second)
	boxes := &fakeBoxRepo{boxes: []model.Box{
		sampleBox("box_demo"),
		fullBox("box_red"),
		fullBox("box_a"),
		fullBox("box_b"),
	}}
	products := &fakeProductRepo{products: []model.UserProduct{
		{ID: "p1", UserID: "u42", BoxID: strPtr("box_red"), ExpiresAt: nil, IsActive: true},
	}}
	bundles := &fakeBundleRepo{bundles: map[string]model.Bundle{
		"bundle_ab": {ID: "bundle_ab", Name: "A+B", BoxIDs: []string{"box_a", "box_b"}, IsActive: true},
	}}
	memberships := &fakeMembershipRepo{memberships: []model.UserMembership{
		{ID: "m1", UserID: "u42", BundleID: strPtr("bundle_ab"), PriceID: nil, ExpiresAt: &expiry, IsActive: true},
	}}
	svc := newTestService(boxes, products, memberships, bundles, nil)

	ent, err := svc.Resolve(context.Background(), strPtr("u42"))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	want := []string{"box_a", "box_b", "box_demo", "box_red"}
	if got := ent.SortedBoxIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected boxIds %v, got %v", want, got)
	}
	if !ent.HasMembership {
		t.Error("expected hasMembership=true")
	}
	if ent.MembershipExpiry == nil || !ent.MembershipExpiry.Equal(expiry) {
		t.Errorf("expected membershipExpiry=%v, got %v", expiry, ent.MembershipExpiry)
	}
}

func TestVisibleCatalogHidesOwnedSample(t *testing.T) {
	sample := sampleBox("box_red_sample")
	sample.FullBoxID = strPtr("box_red")
	sample.DisplayOrder = 1
	full := fullBox("box_red")
	full.DisplayOrder = 2
	boxes := &fakeBoxRepo{boxes: []model.Box{sample, full}}
	products := &fakeProductRepo{products: []model.UserProduct{
		{ID: "p1", UserID: "u1", BoxID: strPtr("box_red"), IsActive: true},
	}}
	svc := newTestService(boxes, products, nil, nil, nil)

	catalog, err := svc.VisibleCatalog(context.Background(), strPtr("u1"))
	if err != nil {
		t.Fatalf("VisibleCatalog returned error: %v", err)
	}
	if len(catalog.Boxes) != 1 {
		t.Fatalf("expected 1 visible box, got %d", len(catalog.Boxes))
	}
	if catalog.Boxes[0].ID != "box_red" {
		t.Errorf("expected box_red to remain visible, got %s", catalog.Boxes[0].ID)
	}
	if !catalog.Boxes[0].HasAccess {
		t.Error("expected owned full box to have access")
	}
	// The entitlement set itself is untouched by display filtering.
	if !catalog.Entitlement.Entitled("box_red_sample") {
		t.Error("hidden sample must stay in the entitlement set")
	}
}

func TestVisibleCatalogKeepsSampleWhenFullNotOwned(t *testing.T) {
	sample := sampleBox("box_red_sample")
	sample.FullBoxID = strPtr("box_red")
	boxes := &fakeBoxRepo{boxes: []model.Box{sample, fullBox("box_red")}}
	svc := newTestService(boxes, nil, nil, nil, nil)

	catalog, err := svc.VisibleCatalog(context.Background(), strPtr("u1"))
	if err != nil {
		t.Fatalf("VisibleCatalog returned error: %v", err)
	}
	if len(catalog.Boxes) != 2 {
		t.Fatalf("expected 2 visible boxes, got %d", len(catalog.Boxes))
	}
	var sampleEntry *model.BoxWithAccess
	for i := range catalog.Boxes {
		if catalog.Boxes[i].ID == "box_red_sample" {
			sampleEntry = &catalog.Boxes[i]
		}
	}
	if sampleEntry == nil {
		t.Fatal("expected unowned sample to stay visible")
	}
	if !sampleEntry.HasAccess {
		t.Error("samples are always directly entitled")
	}
}

func TestVisibleCatalogOrderIsStable(t *testing.T) {
	b1 := fullBox("box_c")
	b1.DisplayOrder = 3
	b2 := fullBox("box_a")
	b2.DisplayOrder = 1
	b3 := fullBox("box_b")
	b3.DisplayOrder = 2
	// The repository is responsible for ordering; the fake mirrors the query.
	boxes := &fakeBoxRepo{boxes: []model.Box{b2, b3, b1}}
	svc := newTestService(boxes, nil, nil, nil, nil)

	catalog, err := svc.VisibleCatalog(context.Background(), nil)
	if err != nil {
		t.Fatalf("VisibleCatalog returned error: %v", err)
	}
	want := []string{"box_a", "box_b", "box_c"}
	for i, b := range catalog.Boxes {
		if b.ID != want[i] {
			t.Fatalf("expected order %v, got %s at position %d", want, b.ID, i)
		}
	}
}

func TestHasBoxAccess(t *testing.T) {
	boxes := &fakeBoxRepo{boxes: []model.Box{sampleBox("box_demo"), fullBox("box_red")}}
	svc := newTestService(boxes, nil, nil, nil, nil)

	ok, err := svc.HasBoxAccess(context.Background(), nil, "box_demo")
	if err != nil {
		t.Fatalf("HasBoxAccess returned error: %v", err)
	}
	if !ok {
		t.Error("expected anonymous access to sample box")
	}

	ok, err = svc.HasBoxAccess(context.Background(), nil, "box_red")
	if err != nil {
		t.Fatalf("HasBoxAccess returned error: %v", err)
	}
	if ok {
		t.Error("did not expect anonymous access to paid box")
	}
}
