package postgres

import (
	"context"

	"github.com/google/uuid"

	"burger-house/internal/domain"
)

type movementRepo Store

const movementColumns = `id, sku_id, kind, quantity, balance_before, balance_after, order_id, reason, actor, created_at`

func (r *movementRepo) Append(ctx context.Context, m *domain.Movement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return (*Store)(r).q(ctx).QueryRow(ctx, `
		INSERT INTO stock_movements (id, sku_id, kind, quantity, balance_before, balance_after, order_id, reason, actor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		m.ID, m.SKUID, m.Kind, m.Quantity, m.BalanceBefore, m.BalanceAfter, m.OrderID, m.Reason, m.Actor,
	).Scan(&m.CreatedAt)
}

func (r *movementRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Movement, error) {
	var m domain.Movement
	err := (*Store)(r).q(ctx).QueryRow(ctx,
		`SELECT `+movementColumns+` FROM stock_movements WHERE id = $1`, id,
	).Scan(&m.ID, &m.SKUID, &m.Kind, &m.Quantity, &m.BalanceBefore, &m.BalanceAfter,
		&m.OrderID, &m.Reason, &m.Actor, &m.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *movementRepo) ListBySKU(ctx context.Context, skuID int64) ([]domain.Movement, error) {
	return r.list(ctx, `WHERE sku_id = $1`, skuID)
}

func (r *movementRepo) ListByOrder(ctx context.Context, orderID int64) ([]domain.Movement, error) {
	return r.list(ctx, `WHERE order_id = $1`, orderID)
}

func (r *movementRepo) list(ctx context.Context, where string, arg any) ([]domain.Movement, error) {
	rows, err := (*Store)(r).q(ctx).Query(ctx,
		`SELECT `+movementColumns+` FROM stock_movements `+where+` ORDER BY seq`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Movement
	for rows.Next() {
		var m domain.Movement
		if err := rows.Scan(&m.ID, &m.SKUID, &m.Kind, &m.Quantity, &m.BalanceBefore, &m.BalanceAfter,
			&m.OrderID, &m.Reason, &m.Actor, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
