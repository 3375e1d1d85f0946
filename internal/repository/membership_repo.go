package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"app/internal/model"
)

// MembershipRepository defines methods for accessing subscription-style grants.
type MembershipRepository interface {
	// ListActiveMemberships returns all is_active memberships for a user.
	// Expiry is evaluated by the caller; a NULL expiry row is returned as-is.
	ListActiveMemberships(ctx context.Context, userID string) ([]model.UserMembership, error)
	InsertMembership(ctx context.Context, m *model.UserMembership) error
	ExtendBySubscriptionID(ctx context.Context, subscriptionID string, expiresAt time.Time) error
	SetActiveBySubscriptionID(ctx context.Context, subscriptionID string, active bool) error
}

type membershipRepo struct {
	db *sql.DB
}

// NewMembershipRepo creates a new MembershipRepository.
func NewMembershipRepo(db *sql.DB) MembershipRepository {
	return &membershipRepo{db: db}
}

func (r *membershipRepo) ListActiveMemberships(ctx context.Context, userID string) ([]model.UserMembership, error) {
	const q = `
        SELECT id, user_id, bundle_id, price_id, stripe_session_id,
               stripe_subscription_id, expires_at, is_active, created_at
        FROM user_memberships
        WHERE user_id = $1 AND is_active = TRUE
    `
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships for user %s: %w", userID, err)
	}
	defer rows.Close()

	var memberships []model.UserMembership
	for rows.Next() {
		var m model.UserMembership
		if err := rows.Scan(
			&m.ID,
			&m.UserID,
			&m.BundleID,
			&m.PriceID,
			&m.StripeSessionID,
			&m.StripeSubscriptionID,
			&m.ExpiresAt,
			&m.IsActive,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list memberships for user %s: %w", userID, err)
	}

	if len(memberships) == 0 {
		return []model.UserMembership{}, nil
	}
	return memberships, nil
}

func (r *membershipRepo) InsertMembership(ctx context.Context, m *model.UserMembership) error {
	const q = `
        INSERT INTO user_memberships
            (id, user_id, bundle_id, price_id, stripe_session_id,
             stripe_subscription_id, expires_at, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
    `
	_, err := r.db.ExecContext(ctx, q,
		m.ID, m.UserID, m.BundleID, m.PriceID, m.StripeSessionID,
		m.StripeSubscriptionID, m.ExpiresAt, m.IsActive,
	)
	if err != nil {
		return fmt.Errorf("insert membership for user %s: %w", m.UserID, err)
	}
	return nil
}

func (r *membershipRepo) ExtendBySubscriptionID(ctx context.Context, subscriptionID string, expiresAt time.Time) error {
	const q = `
        UPDATE user_memberships
        SET expires_at = $2, is_active = TRUE
        WHERE stripe_subscription_id = $1
    `
	if _, err := r.db.ExecContext(ctx, q, subscriptionID, expiresAt); err != nil {
		return fmt.Errorf("extend memberships for subscription %s: %w", subscriptionID, err)
	}
	return nil
}

func (r *membershipRepo) SetActiveBySubscriptionID(ctx context.Context, subscriptionID string, active bool) error {
	const q = `UPDATE user_memberships SET is_active = $2 WHERE stripe_subscription_id = $1`
	if _, err := r.db.ExecContext(ctx, q, subscriptionID, active); err != nil {
		return fmt.Errorf("set memberships active=%t for subscription %s: %w", active, subscriptionID, err)
	}
	return nil
}
