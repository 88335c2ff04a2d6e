package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"burger-house/internal/domain"
)

type orderRepo Store

const orderColumns = `id, number, status, customer_name, customer_phone, address, delivery_kind,
	subtotal, delivery_fee, discount, total, cost_total, profit,
	payment_status, cancellation_reason, created_at, updated_at, cancelled_at`

func (r *orderRepo) Create(ctx context.Context, o *domain.Order) error {
	q := (*Store)(r).q(ctx)
	err := q.QueryRow(ctx, `
		INSERT INTO orders (number, status, customer_name, customer_phone, address, delivery_kind,
			subtotal, delivery_fee, discount, total, cost_total, profit, payment_status, cancellation_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`,
		o.Number, o.Status, o.CustomerName, o.CustomerPhone, o.Address, o.DeliveryKind,
		o.Subtotal, o.DeliveryFee, o.Discount, o.Total, o.CostTotal, o.Profit,
		o.PaymentStatus, o.CancellationReason,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "orders_number_key" {
			return domain.ErrDuplicateNumber
		}
		return err
	}

	for i := range o.Lines {
		ln := &o.Lines[i]
		ln.OrderID = o.ID
		if err := q.QueryRow(ctx, `
			INSERT INTO order_lines (order_id, name, quantity, unit_price, unit_cost)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			o.ID, ln.Name, ln.Quantity, ln.UnitPrice, ln.UnitCost,
		).Scan(&ln.ID); err != nil {
			return err
		}
		for _, ing := range ln.Ingredients {
			if _, err := q.Exec(ctx, `
				INSERT INTO order_line_ingredients (line_id, sku_id, name, unit_price, unit_cost)
				VALUES ($1, $2, $3, $4, $5)`,
				ln.ID, ing.SKUID, ing.Name, ing.UnitPrice, ing.UnitCost); err != nil {
				return err
			}
		}
	}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := q.QueryRow(ctx, `
			INSERT INTO order_items (order_id, sku_id, name, quantity, unit_price, unit_cost)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			o.ID, it.SKUID, it.Name, it.Quantity, it.UnitPrice, it.UnitCost,
		).Scan(&it.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *orderRepo) Get(ctx context.Context, id int64) (*domain.Order, error) {
	return r.get(ctx, id, "")
}

func (r *orderRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *orderRepo) get(ctx context.Context, id int64, suffix string) (*domain.Order, error) {
	var o domain.Order
	err := (*Store)(r).q(ctx).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`+suffix, id,
	).Scan(&o.ID, &o.Number, &o.Status, &o.CustomerName, &o.CustomerPhone, &o.Address, &o.DeliveryKind,
		&o.Subtotal, &o.DeliveryFee, &o.Discount, &o.Total, &o.CostTotal, &o.Profit,
		&o.PaymentStatus, &o.CancellationReason, &o.CreatedAt, &o.UpdatedAt, &o.CancelledAt)
	if err != nil {
		return nil, notFound(err)
	}
	if err := r.loadLines(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) loadLines(ctx context.Context, o *domain.Order) error {
	q := (*Store)(r).q(ctx)

	rows, err := q.Query(ctx, `
		SELECT id, order_id, name, quantity, unit_price, unit_cost
		FROM order_lines WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ln domain.OrderLine
		if err := rows.Scan(&ln.ID, &ln.OrderID, &ln.Name, &ln.Quantity, &ln.UnitPrice, &ln.UnitCost); err != nil {
			return err
		}
		o.Lines = append(o.Lines, ln)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range o.Lines {
		ln := &o.Lines[i]
		ingRows, err := q.Query(ctx, `
			SELECT sku_id, name, unit_price, unit_cost
			FROM order_line_ingredients WHERE line_id = $1 ORDER BY id`, ln.ID)
		if err != nil {
			return err
		}
		for ingRows.Next() {
			var ing domain.LineIngredient
			if err := ingRows.Scan(&ing.SKUID, &ing.Name, &ing.UnitPrice, &ing.UnitCost); err != nil {
				ingRows.Close()
				return err
			}
			ln.Ingredients = append(ln.Ingredients, ing)
		}
		ingRows.Close()
		if err := ingRows.Err(); err != nil {
			return err
		}
	}

	itemRows, err := q.Query(ctx, `
		SELECT id, order_id, sku_id, name, quantity, unit_price, unit_cost
		FROM order_items WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var it domain.OrderLineItem
		if err := itemRows.Scan(&it.ID, &it.OrderID, &it.SKUID, &it.Name, &it.Quantity, &it.UnitPrice, &it.UnitCost); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return itemRows.Err()
}

// Update rewrites the mutable order columns. Lines and items are immutable
// after creation and are not touched.
func (r *orderRepo) Update(ctx context.Context, o *domain.Order) error {
	tag, err := (*Store)(r).q(ctx).Exec(ctx, `
		UPDATE orders SET status = $2, payment_status = $3, cancellation_reason = $4,
			cancelled_at = $5, updated_at = now()
		WHERE id = $1`,
		o.ID, o.Status, o.PaymentStatus, o.CancellationReason, o.CancelledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *orderRepo) ListActive(ctx context.Context, limit int) ([]domain.Order, error) {
	rows, err := (*Store)(r).q(ctx).Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE status NOT IN ($1, $2) ORDER BY created_at LIMIT $3`,
		domain.StatusEntregue, domain.StatusCancelado, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.Number, &o.Status, &o.CustomerName, &o.CustomerPhone, &o.Address, &o.DeliveryKind,
			&o.Subtotal, &o.DeliveryFee, &o.Discount, &o.Total, &o.CostTotal, &o.Profit,
			&o.PaymentStatus, &o.CancellationReason, &o.CreatedAt, &o.UpdatedAt, &o.CancelledAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *orderRepo) AppendStatusLog(ctx context.Context, orderID int64, status domain.OrderStatus, changedBy, notes string) error {
	_, err := (*Store)(r).q(ctx).Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, notes)
		VALUES ($1, $2, $3, $4)`, orderID, status, changedBy, notes)
	return err
}

func (r *orderRepo) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := (*Store)(r).q(ctx).QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE created_at >= $1`, since).Scan(&n)
	return n, err
}
