package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrEntitlementLookup marks a failed primary read (boxes, products or
// memberships). Callers must surface it as a server error rather than treat it
// as "no access".
var ErrEntitlementLookup = errors.New("entitlement lookup failed")

// EntitlementService resolves which boxes a user may access and applies the
// catalog visibility rules. All operations are read-only and recomputed per
// call.
type EntitlementService interface {
	// Resolve computes the entitlement set for a user. A nil userID is the
	// anonymous caller, who gets only the active sample boxes.
	Resolve(ctx context.Context, userID *string) (*model.Entitlement, error)
	// VisibleCatalog returns the active boxes ordered by display_order, with
	// sample boxes hidden once the user owns the full box they preview, each
	// annotated with access.
	VisibleCatalog(ctx context.Context, userID *string) (*model.Catalog, error)
	// HasBoxAccess reports whether the user is entitled to a single box.
	HasBoxAccess(ctx context.Context, userID *string, boxID string) (bool, error)
}

type entitlementService struct {
	boxRepo        repository.BoxRepository
	productRepo    repository.ProductRepository
	membershipRepo repository.MembershipRepository
	bundleRepo     repository.BundleRepository
	priceRepo      repository.PriceRepository
	logger         zerolog.Logger
}

// NewEntitlementService creates a new EntitlementService with a scoped logger.
func NewEntitlementService(
	boxRepo repository.BoxRepository,
	productRepo repository.ProductRepository,
	membershipRepo repository.MembershipRepository,
	bundleRepo repository.BundleRepository,
	priceRepo repository.PriceRepository,
	logger zerolog.Logger,
) EntitlementService {
	return &entitlementService{
		boxRepo:        boxRepo,
		productRepo:    productRepo,
		membershipRepo: membershipRepo,
		bundleRepo:     bundleRepo,
		priceRepo:      priceRepo,
		logger:         logger.With().Str("service", "EntitlementService").Logger(),
	}
}

func (s *entitlementService) Resolve(ctx context.Context, userID *string) (*model.Entitlement, error) {
	ent := model.NewEntitlement()

	// Sample boxes are accessible to everyone, authenticated or not.
	sampleIDs, err := s.boxRepo.ListActiveSampleBoxIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list sample boxes")
		return nil, fmt.Errorf("%w: %v", ErrEntitlementLookup, err)
	}
	for _, id := range sampleIDs {
		ent.Grant(id)
	}

	if userID == nil || *userID == "" {
		return ent, nil
	}

	now := time.Now()

	products, err := s.productRepo.ListActiveProducts(ctx, *userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", *userID).Msg("Failed to list user products")
		return nil, fmt.Errorf("%w: %v", ErrEntitlementLookup, err)
	}
	for _, p := range products {
		// A nil expiry means permanent access; expired grants are skipped
		// silently.
		if p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
			continue
		}
		if p.BoxID == nil {
			continue
		}
		ent.Grant(*p.BoxID)
	}

	memberships, err := s.membershipRepo.ListActiveMemberships(ctx, *userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", *userID).Msg("Failed to list user memberships")
		return nil, fmt.Errorf("%w: %v", ErrEntitlementLookup, err)
	}

	// A membership without an expiry never grants access. This differs from
	// the product rule above and is intentional.
	var active []model.UserMembership
	for _, m := range memberships {
		if m.ExpiresAt == nil || !m.ExpiresAt.After(now) {
			continue
		}
		active = append(active, m)
		ent.HasMembership = true
		if ent.MembershipExpiry == nil || m.ExpiresAt.After(*ent.MembershipExpiry) {
			expiry := *m.ExpiresAt
			ent.MembershipExpiry = &expiry
		}
	}

	// Bundle and price lookups are independent across memberships, so they fan
	// out concurrently and join before the set is assembled. A failed lookup
	// means that membership contributes no extra boxes; it never fails the
	// whole resolution.
	contributions := make([][]string, len(active))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range active {
		i, m := i, m
		g.Go(func() error {
			contributions[i] = s.membershipBoxIDs(gctx, m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntitlementLookup, err)
	}
	for _, ids := range contributions {
		for _, id := range ids {
			ent.Grant(id)
		}
	}

	return ent, nil
}

// membershipBoxIDs collects the box IDs one active membership contributes:
// the boxes of its bundle, and the whole active catalog when its price is an
// all-access membership tier.
func (s *entitlementService) membershipBoxIDs(ctx context.Context, m model.UserMembership) []string {
	var ids []string

	if m.BundleID != nil {
		bundle, err := s.bundleRepo.GetBundleByID(ctx, *m.BundleID)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("membership_id", m.ID).
				Str("bundle_id", *m.BundleID).
				Msg("Bundle lookup failed, membership contributes no bundle boxes")
		} else if bundle != nil {
			ids = append(ids, bundle.BoxIDs...)
		}
	}

	if m.PriceID != nil {
		price, err := s.priceRepo.GetPriceByID(ctx, *m.PriceID)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).
				Str("membership_id", m.ID).
				Str("price_id", *m.PriceID).
				Msg("Price lookup failed, membership contributes no all-access boxes")
		case price != nil && price.MembershipDays != nil:
			all, err := s.boxRepo.ListActiveBoxIDs(ctx)
			if err != nil {
				s.logger.Warn().Err(err).
					Str("membership_id", m.ID).
					Msg("Active box listing failed, membership contributes no all-access boxes")
			} else {
				ids = append(ids, all...)
			}
		}
	}

	return ids
}

func (s *entitlementService) VisibleCatalog(ctx context.Context, userID *string) (*model.Catalog, error) {
	ent, err := s.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	boxes, err := s.boxRepo.ListActiveBoxes(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list active boxes")
		return nil, fmt.Errorf("%w: %v", ErrEntitlementLookup, err)
	}

	// Full (non-sample) boxes the user owns; their sample teasers get hidden.
	ownedFull := make(map[string]struct{})
	for _, b := range boxes {
		if !b.IsSample && ent.Entitled(b.ID) {
			ownedFull[b.ID] = struct{}{}
		}
	}

	visible := make([]model.BoxWithAccess, 0, len(boxes))
	for _, b := range boxes {
		if b.IsSample && b.FullBoxID != nil {
			if _, owned := ownedFull[*b.FullBoxID]; owned {
				continue
			}
		}
		visible = append(visible, model.BoxWithAccess{Box: b, HasAccess: ent.Entitled(b.ID)})
	}

	return &model.Catalog{Boxes: visible, Entitlement: ent}, nil
}

func (s *entitlementService) HasBoxAccess(ctx context.Context, userID *string, boxID string) (bool, error) {
	ent, err := s.Resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	return ent.Entitled(boxID), nil
}
