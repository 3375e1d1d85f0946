package service

import (
	"context"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// StoreService exposes the public store listings.
type StoreService interface {
	ListPrices(ctx context.Context) ([]model.Price, error)
	ListBundles(ctx context.Context) ([]model.Bundle, error)
}

type storeService struct {
	priceRepo  repository.PriceRepository
	bundleRepo repository.BundleRepository
	logger     zerolog.Logger
}

// NewStoreService creates a new StoreService with a scoped logger.
func NewStoreService(priceRepo repository.PriceRepository, bundleRepo repository.BundleRepository, logger zerolog.Logger) StoreService {
	return &storeService{
		priceRepo:  priceRepo,
		bundleRepo: bundleRepo,
		logger:     logger.With().Str("service", "StoreService").Logger(),
	}
}

func (s *storeService) ListPrices(ctx context.Context) ([]model.Price, error) {
	prices, err := s.priceRepo.ListActivePrices(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list store prices")
		return nil, err
	}
	return prices, nil
}

func (s *storeService) ListBundles(ctx context.Context) ([]model.Bundle, error) {
	bundles, err := s.bundleRepo.ListActiveBundles(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list store bundles")
		return nil, err
	}
	return bundles, nil
}
