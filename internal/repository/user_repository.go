package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"localmart/api/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

const userColumns = `
	id, email, password_hash, google_id, display_name, phone, city, state, role, is_active,
	is_subscribed, has_used_trial, trial_ends_at, expires_at, cancelled_at, subscription_id,
	created_at, updated_at
`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, email, password_hash, google_id, display_name, phone, city, state, role, is_active,
			is_subscribed, has_used_trial, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.GoogleID,
		user.DisplayName,
		user.Phone,
		user.City,
		user.State,
		user.Role,
		user.IsActive,
		user.Subscription.IsSubscribed,
		user.Subscription.HasUsedTrial,
	)
	return err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role models.UserRole) error {
	const query = `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, role)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// StartTrial consumes the one-time trial in the same statement that changes
// the role. The has_used_trial guard in the WHERE clause makes a concurrent
// double-adoption a no-op rather than a second trial.
func (r *UserRepository) StartTrial(ctx context.Context, id string, role models.UserRole, trialEndsAt time.Time) (bool, error) {
	const query = `
		UPDATE users
		SET role = $2,
		    has_used_trial = TRUE,
		    trial_ends_at = $3,
		    updated_at = NOW()
		WHERE id = $1 AND has_used_trial = FALSE
	`
	cmd, err := r.pool.Exec(ctx, query, id, role, trialEndsAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// ActivateSubscription applies a verified payment: marks the account
// subscribed until expiresAt, points it at the new audit record and clears
// any earlier cancellation marker.
func (r *UserRepository) ActivateSubscription(ctx context.Context, id string, subscriptionID string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET is_subscribed = TRUE,
		    subscription_id = $2,
		    expires_at = $3,
		    cancelled_at = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, subscriptionID, expiresAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CancelSubscription records a do-not-renew request. expires_at is left
// untouched so access continues until natural expiry.
func (r *UserRepository) CancelSubscription(ctx context.Context, id string, cancelledAt time.Time) error {
	const query = `
		UPDATE users
		SET is_subscribed = FALSE,
		    cancelled_at = $2,
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, cancelledAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) scanOne(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.GoogleID,
		&user.DisplayName,
		&user.Phone,
		&user.City,
		&user.State,
		&user.Role,
		&user.IsActive,
		&user.Subscription.IsSubscribed,
		&user.Subscription.HasUsedTrial,
		&user.Subscription.TrialEndsAt,
		&user.Subscription.ExpiresAt,
		&user.Subscription.CancelledAt,
		&user.Subscription.SubscriptionID,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
