package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathieu-neron/nichescope/internal/model"
)

type SubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

// FindByUserID returns a user's subscription. Returns pgx.ErrNoRows for users
// who never subscribed.
func (r *SubscriptionRepo) FindByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	var s model.Subscription
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, plan, status, expires_at
		FROM subscriptions
		WHERE user_id = $1`, userID).Scan(&s.UserID, &s.Plan, &s.Status, &s.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
