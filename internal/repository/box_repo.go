package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"app/internal/model"
)

// BoxRepository defines methods for accessing the box catalog.
type BoxRepository interface {
	// ListActiveBoxes returns all active boxes ordered by display_order,
	// ties broken by insertion order.
	ListActiveBoxes(ctx context.Context) ([]model.Box, error)
	// ListActiveSampleBoxIDs returns the IDs of active sample boxes.
	ListActiveSampleBoxIDs(ctx context.Context) ([]string, error)
	// ListActiveBoxIDs returns the IDs of every active box.
	ListActiveBoxIDs(ctx context.Context) ([]string, error)
	GetBoxByID(ctx context.Context, boxID string) (*model.Box, error)
}

type boxRepo struct {
	db *sql.DB
}

// NewBoxRepo creates a new BoxRepository.
func NewBoxRepo(db *sql.DB) BoxRepository {
	return &boxRepo{db: db}
}

func (r *boxRepo) ListActiveBoxes(ctx context.Context) ([]model.Box, error) {
	const q = `
        SELECT id, name, description, color, price_cents, is_sample, full_box_id,
               is_active, display_order, created_at, updated_at
        FROM boxes
        WHERE is_active = TRUE
        ORDER BY display_order ASC, created_at ASC
    `
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list active boxes: %w", err)
	}
	defer rows.Close()

	var boxes []model.Box
	for rows.Next() {
		var b model.Box
		if err := rows.Scan(
			&b.ID,
			&b.Name,
			&b.Description,
			&b.Color,
			&b.PriceCents,
			&b.IsSample,
			&b.FullBoxID,
			&b.IsActive,
			&b.DisplayOrder,
			&b.CreatedAt,
			&b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan box: %w", err)
		}
		boxes = append(boxes, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list active boxes: %w", err)
	}

	if len(boxes) == 0 {
		return []model.Box{}, nil
	}
	return boxes, nil
}

func (r *boxRepo) ListActiveSampleBoxIDs(ctx context.Context) ([]string, error) {
	const q = `SELECT id FROM boxes WHERE is_sample = TRUE AND is_active = TRUE`
	return r.listIDs(ctx, q)
}

func (r *boxRepo) ListActiveBoxIDs(ctx context.Context) ([]string, error) {
	const q = `SELECT id FROM boxes WHERE is_active = TRUE`
	return r.listIDs(ctx, q)
}

func (r *boxRepo) listIDs(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list box ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan box id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list box ids: %w", err)
	}
	return ids, nil
}

// GetBoxByID returns a single box, or (nil, nil) when it does not exist.
func (r *boxRepo) GetBoxByID(ctx context.Context, boxID string) (*model.Box, error) {
	const q = `
        SELECT id, name, description, color, price_cents, is_sample, full_box_id,
               is_active, display_order, created_at, updated_at
        FROM boxes
        WHERE id = $1
    `
	var b model.Box
	err := r.db.QueryRowContext(ctx, q, boxID).Scan(
		&b.ID,
		&b.Name,
		&b.Description,
		&b.Color,
		&b.PriceCents,
		&b.IsSample,
		&b.FullBoxID,
		&b.IsActive,
		&b.DisplayOrder,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch box %s: %w", boxID, err)
	}
	return &b, nil
}
