package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"app/internal/model"
)

// ProductRepository defines methods for accessing one-time purchase grants.
// Reads serve entitlement resolution; writes are driven by Stripe webhook and
// cancellation flows.
type ProductRepository interface {
	// ListActiveProducts returns all is_active product grants for a user,
	// including expired ones. Expiry is evaluated by the caller.
	ListActiveProducts(ctx context.Context, userID string) ([]model.UserProduct, error)
	GetProductForUser(ctx context.Context, productID, userID string) (*model.UserProduct, error)
	InsertProduct(ctx context.Context, p *model.UserProduct) error
	// UpsertProduct updates the Stripe references on an existing (user, box)
	// grant, used when a duplicate insert is detected.
	UpsertProduct(ctx context.Context, p *model.UserProduct) error
	DeactivateProduct(ctx context.Context, productID string) error
	// ExtendBySubscriptionID pushes the expiry of all grants tied to a Stripe
	// subscription and reactivates them (renewal).
	ExtendBySubscriptionID(ctx context.Context, subscriptionID string, expiresAt time.Time) error
	// SetActiveBySubscriptionID flips is_active on all grants tied to a Stripe
	// subscription (cancellation / reactivation).
	SetActiveBySubscriptionID(ctx context.Context, subscriptionID string, active bool) error
}

type productRepo struct {
	db *sql.DB
}

// NewProductRepo creates a new ProductRepository.
func NewProductRepo(db *sql.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) ListActiveProducts(ctx context.Context, userID string) ([]model.UserProduct, error) {
	const q = `
        SELECT id, user_id, box_id, purchase_type, stripe_session_id,
               stripe_subscription_id, expires_at, is_active, created_at
        FROM user_products
        WHERE user_id = $1 AND is_active = TRUE
    `
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list products for user %s: %w", userID, err)
	}
	defer rows.Close()

	var products []model.UserProduct
	for rows.Next() {
		var p model.UserProduct
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.BoxID,
			&p.PurchaseType,
			&p.StripeSessionID,
			&p.StripeSubscriptionID,
			&p.ExpiresAt,
			&p.IsActive,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list products for user %s: %w", userID, err)
	}

	if len(products) == 0 {
		return []model.UserProduct{}, nil
	}
	return products, nil
}

// GetProductForUser returns a grant scoped to its owner, or (nil, nil) when no
// such row exists.
func (r *productRepo) GetProductForUser(ctx context.Context, productID, userID string) (*model.UserProduct, error) {
	const q = `
        SELECT id, user_id, box_id, purchase_type, stripe_session_id,
               stripe_subscription_id, expires_at, is_active, created_at
        FROM user_products
        WHERE id = $1 AND user_id = $2
    `
	var p model.UserProduct
	err := r.db.QueryRowContext(ctx, q, productID, userID).Scan(
		&p.ID,
		&p.UserID,
		&p.BoxID,
		&p.PurchaseType,
		&p.StripeSessionID,
		&p.StripeSubscriptionID,
		&p.ExpiresAt,
		&p.IsActive,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch product %s for user %s: %w", productID, userID, err)
	}
	return &p, nil
}

func (r *productRepo) InsertProduct(ctx context.Context, p *model.UserProduct) error {
	const q = `
        INSERT INTO user_products
            (id, user_id, box_id, purchase_type, stripe_session_id,
             stripe_subscription_id, expires_at, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
    `
	_, err := r.db.ExecContext(ctx, q,
		p.ID, p.UserID, p.BoxID, p.PurchaseType, p.StripeSessionID,
		p.StripeSubscriptionID, p.ExpiresAt, p.IsActive,
	)
	if err != nil {
		return fmt.Errorf("insert product for user %s: %w", p.UserID, err)
	}
	return nil
}

func (r *productRepo) UpsertProduct(ctx context.Context, p *model.UserProduct) error {
	const q = `
        UPDATE user_products
        SET stripe_session_id = $3,
            stripe_subscription_id = $4,
            expires_at = $5,
            is_active = TRUE
        WHERE user_id = $1 AND box_id = $2
    `
	_, err := r.db.ExecContext(ctx, q,
		p.UserID, p.BoxID, p.StripeSessionID, p.StripeSubscriptionID, p.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert product for user %s: %w", p.UserID, err)
	}
	return nil
}

func (r *productRepo) DeactivateProduct(ctx context.Context, productID string) error {
	const q = `UPDATE user_products SET is_active = FALSE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, q, productID); err != nil {
		return fmt.Errorf("deactivate product %s: %w", productID, err)
	}
	return nil
}

func (r *productRepo) ExtendBySubscriptionID(ctx context.Context, subscriptionID string, expiresAt time.Time) error {
	const q = `
        UPDATE user_products
        SET expires_at = $2, is_active = TRUE
        WHERE stripe_subscription_id = $1
    `
	if _, err := r.db.ExecContext(ctx, q, subscriptionID, expiresAt); err != nil {
		return fmt.Errorf("extend products for subscription %s: %w", subscriptionID, err)
	}
	return nil
}

func (r *productRepo) SetActiveBySubscriptionID(ctx context.Context, subscriptionID string, active bool) error {
	const q = `UPDATE user_products SET is_active = $2 WHERE stripe_subscription_id = $1`
	if _, err := r.db.ExecContext(ctx, q, subscriptionID, active); err != nil {
		return fmt.Errorf("set products active=%t for subscription %s: %w", active, subscriptionID, err)
	}
	return nil
}
