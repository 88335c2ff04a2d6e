package postgres

import (
	"context"

	"burger-house/internal/domain"
)

type skuRepo Store

const skuColumns = `id, kind, name, unit, balance, min_balance, unit_cost, unit_price, active, created_at, updated_at`

func (r *skuRepo) Create(ctx context.Context, s *domain.SKU) error {
	return (*Store)(r).q(ctx).QueryRow(ctx, `
		INSERT INTO skus (kind, name, unit, balance, min_balance, unit_cost, unit_price, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		s.Kind, s.Name, s.Unit, s.Balance, s.MinBalance, s.UnitCost, s.UnitPrice, s.Active,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *skuRepo) Get(ctx context.Context, id int64) (*domain.SKU, error) {
	return r.get(ctx, id, "")
}

func (r *skuRepo) GetForUpdate(ctx context.Context, id int64) (*domain.SKU, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *skuRepo) get(ctx context.Context, id int64, suffix string) (*domain.SKU, error) {
	var s domain.SKU
	err := (*Store)(r).q(ctx).QueryRow(ctx,
		`SELECT `+skuColumns+` FROM skus WHERE id = $1`+suffix, id,
	).Scan(&s.ID, &s.Kind, &s.Name, &s.Unit, &s.Balance, &s.MinBalance,
		&s.UnitCost, &s.UnitPrice, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *skuRepo) UpdateBalance(ctx context.Context, id int64, balance int64) error {
	tag, err := (*Store)(r).q(ctx).Exec(ctx,
		`UPDATE skus SET balance = $2, updated_at = now() WHERE id = $1`, id, balance)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *skuRepo) List(ctx context.Context, onlyActive bool) ([]domain.SKU, error) {
	query := `SELECT ` + skuColumns + ` FROM skus`
	if onlyActive {
		query += ` WHERE active`
	}
	query += ` ORDER BY id`

	rows, err := (*Store)(r).q(ctx).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SKU
	for rows.Next() {
		var s domain.SKU
		if err := rows.Scan(&s.ID, &s.Kind, &s.Name, &s.Unit, &s.Balance, &s.MinBalance,
			&s.UnitCost, &s.UnitPrice, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *skuRepo) Deactivate(ctx context.Context, id int64) error {
	tag, err := (*Store)(r).q(ctx).Exec(ctx,
		`UPDATE skus SET active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
