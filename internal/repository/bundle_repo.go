package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"app/internal/model"
)

// BundleRepository defines methods for accessing box bundles.
type BundleRepository interface {
	// GetBundleByID returns a bundle, or (nil, nil) when it does not exist.
	GetBundleByID(ctx context.Context, bundleID string) (*model.Bundle, error)
	// ListActiveBundles returns active bundles ordered by display_order.
	ListActiveBundles(ctx context.Context) ([]model.Bundle, error)
}

type bundleRepo struct {
	db *sql.DB
}

// NewBundleRepo creates a new BundleRepository.
func NewBundleRepo(db *sql.DB) BundleRepository {
	return &bundleRepo{db: db}
}

func (r *bundleRepo) GetBundleByID(ctx context.Context, bundleID string) (*model.Bundle, error) {
	const q = `
        SELECT id, name, box_ids, is_active, display_order, created_at
        FROM bundles
        WHERE id = $1
    `
	var b model.Bundle
	var rawBoxIDs []byte
	err := r.db.QueryRowContext(ctx, q, bundleID).Scan(
		&b.ID,
		&b.Name,
		&rawBoxIDs,
		&b.IsActive,
		&b.DisplayOrder,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch bundle %s: %w", bundleID, err)
	}
	if err := unmarshalBoxIDs(rawBoxIDs, &b); err != nil {
		return nil, fmt.Errorf("bundle %s: %w", bundleID, err)
	}
	return &b, nil
}

func (r *bundleRepo) ListActiveBundles(ctx context.Context) ([]model.Bundle, error) {
	const q = `
        SELECT id, name, box_ids, is_active, display_order, created_at
        FROM bundles
        WHERE is_active = TRUE
        ORDER BY display_order ASC, created_at ASC
    `
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list active bundles: %w", err)
	}
	defer rows.Close()

	var bundles []model.Bundle
	for rows.Next() {
		var b model.Bundle
		var rawBoxIDs []byte
		if err := rows.Scan(
			&b.ID,
			&b.Name,
			&rawBoxIDs,
			&b.IsActive,
			&b.DisplayOrder,
			&b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		if err := unmarshalBoxIDs(rawBoxIDs, &b); err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list active bundles: %w", err)
	}

	if len(bundles) == 0 {
		return []model.Bundle{}, nil
	}
	return bundles, nil
}

// unmarshalBoxIDs decodes the jsonb box_ids column. A SQL NULL decodes to an
// empty set rather than an error.
func unmarshalBoxIDs(raw []byte, b *model.Bundle) error {
	if len(raw) == 0 {
		b.BoxIDs = []string{}
		return nil
	}
	if err := json.Unmarshal(raw, &b.BoxIDs); err != nil {
		return fmt.Errorf("unmarshal box_ids: %w", err)
	}
	if b.BoxIDs == nil {
		b.BoxIDs = []string{}
	}
	return nil
}
