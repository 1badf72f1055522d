package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"localmart/api/internal/models"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

// SubscriptionRepository is the immutable payment audit log. Records are
// inserted on verification and only ever touched again to stamp the
// cancelled marker.
type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub models.Subscription) error {
	const query = `
		INSERT INTO subscriptions (
			id, user_id, plan_type, amount, status, start_date, end_date,
			order_id, payment_id, signature, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		sub.ID,
		sub.UserID,
		sub.PlanType,
		sub.Amount,
		sub.Status,
		sub.StartDate,
		sub.EndDate,
		sub.OrderID,
		sub.PaymentID,
		sub.Signature,
	)
	return err
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (models.Subscription, error) {
	const query = `
		SELECT id, user_id, plan_type, amount, status, start_date, end_date,
		       order_id, payment_id, signature, cancelled_at, created_at
		FROM subscriptions WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	var sub models.Subscription
	if err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.PlanType,
		&sub.Amount,
		&sub.Status,
		&sub.StartDate,
		&sub.EndDate,
		&sub.OrderID,
		&sub.PaymentID,
		&sub.Signature,
		&sub.CancelledAt,
		&sub.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Subscription{}, ErrSubscriptionNotFound
		}
		return models.Subscription{}, err
	}
	return sub, nil
}

// ExistsByPayment guards against a replayed verification request creating a
// second audit record for the same provider payment.
func (r *SubscriptionRepository) ExistsByPayment(ctx context.Context, orderID, paymentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE order_id = $1 AND payment_id = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, orderID, paymentID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *SubscriptionRepository) MarkCancelled(ctx context.Context, id string, cancelledAt time.Time) error {
	const query = `
		UPDATE subscriptions
		SET status = $2, cancelled_at = $3
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, models.SubscriptionStatusCancelled, cancelledAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
