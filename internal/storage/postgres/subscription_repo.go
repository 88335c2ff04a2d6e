package postgres

import (
	"context"

	"github.com/google/uuid"

	"burger-house/internal/domain"
)

type subscriptionRepo Store

// Save upserts by endpoint: re-subscribing the same endpoint moves it to the
// new order instead of duplicating it.
func (r *subscriptionRepo) Save(ctx context.Context, s *domain.PushSubscription) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return (*Store)(r).q(ctx).QueryRow(ctx, `
		INSERT INTO push_subscriptions (id, endpoint, order_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (endpoint) DO UPDATE SET order_id = EXCLUDED.order_id
		RETURNING id, created_at`,
		s.ID, s.Endpoint, s.OrderID,
	).Scan(&s.ID, &s.CreatedAt)
}

func (r *subscriptionRepo) ListByOrder(ctx context.Context, orderID int64) ([]domain.PushSubscription, error) {
	return r.list(ctx, `WHERE order_id = $1`, orderID)
}

func (r *subscriptionRepo) ListAll(ctx context.Context) ([]domain.PushSubscription, error) {
	return r.list(ctx, ``)
}

func (r *subscriptionRepo) list(ctx context.Context, where string, args ...any) ([]domain.PushSubscription, error) {
	rows, err := (*Store)(r).q(ctx).Query(ctx,
		`SELECT id, endpoint, order_id, created_at FROM push_subscriptions `+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PushSubscription
	for rows.Next() {
		var s domain.PushSubscription
		if err := rows.Scan(&s.ID, &s.Endpoint, &s.OrderID, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *subscriptionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := (*Store)(r).q(ctx).Exec(ctx, `DELETE FROM push_subscriptions WHERE id = $1`, id)
	return err
}
