package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"app/internal/model"
)

// PriceRepository defines methods for accessing price points.
type PriceRepository interface {
	// GetPriceByID returns a price, or (nil, nil) when it does not exist.
	GetPriceByID(ctx context.Context, priceID string) (*model.Price, error)
	// ListActivePrices returns active prices ordered by display_order.
	ListActivePrices(ctx context.Context) ([]model.Price, error)
}

type priceRepo struct {
	db *sql.DB
}

// NewPriceRepo creates a new PriceRepository.
func NewPriceRepo(db *sql.DB) PriceRepository {
	return &priceRepo{db: db}
}

func (r *priceRepo) GetPriceByID(ctx context.Context, priceID string) (*model.Price, error) {
	const q = `
        SELECT id, label, amount_cents, currency, is_membership, membership_days,
               is_active, display_order, created_at
        FROM prices
        WHERE id = $1
    `
	var p model.Price
	err := r.db.QueryRowContext(ctx, q, priceID).Scan(
		&p.ID,
		&p.Label,
		&p.AmountCents,
		&p.Currency,
		&p.IsMembership,
		&p.MembershipDays,
		&p.IsActive,
		&p.DisplayOrder,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch price %s: %w", priceID, err)
	}
	return &p, nil
}

func (r *priceRepo) ListActivePrices(ctx context.Context) ([]model.Price, error) {
	const q = `
        SELECT id, label, amount_cents, currency, is_membership, membership_days,
               is_active, display_order, created_at
        FROM prices
        WHERE is_active = TRUE
        ORDER BY display_order ASC, created_at ASC
    `
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list active prices: %w", err)
	}
	defer rows.Close()

	var prices []model.Price
	for rows.Next() {
		var p model.Price
		if err := rows.Scan(
			&p.ID,
			&p.Label,
			&p.AmountCents,
			&p.Currency,
			&p.IsMembership,
			&p.MembershipDays,
			&p.IsActive,
			&p.DisplayOrder,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		prices = append(prices, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list active prices: %w", err)
	}

	if len(prices) == 0 {
		return []model.Price{}, nil
	}
	return prices, nil
}
