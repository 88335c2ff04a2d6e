package postgres

import (
	"context"

	"burger-house/internal/domain"
)

type deliveryRepo Store

const deliveryColumns = `id, order_id, token, status, courier, latitude, longitude,
	last_update_at, started_at, finished_at, created_at`

func (r *deliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	return (*Store)(r).q(ctx).QueryRow(ctx, `
		INSERT INTO deliveries (order_id, token, status, courier)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		d.OrderID, d.Token, d.Status, d.Courier,
	).Scan(&d.ID, &d.CreatedAt)
}

func (r *deliveryRepo) GetByOrder(ctx context.Context, orderID int64) (*domain.Delivery, error) {
	return r.get(ctx, `order_id = $1`, orderID, "")
}

func (r *deliveryRepo) GetByToken(ctx context.Context, token string) (*domain.Delivery, error) {
	return r.get(ctx, `token = $1`, token, "")
}

func (r *deliveryRepo) GetByTokenForUpdate(ctx context.Context, token string) (*domain.Delivery, error) {
	return r.get(ctx, `token = $1`, token, " FOR UPDATE")
}

func (r *deliveryRepo) get(ctx context.Context, where string, arg any, suffix string) (*domain.Delivery, error) {
	var d domain.Delivery
	err := (*Store)(r).q(ctx).QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE `+where+suffix, arg,
	).Scan(&d.ID, &d.OrderID, &d.Token, &d.Status, &d.Courier, &d.Latitude, &d.Longitude,
		&d.LastUpdateAt, &d.StartedAt, &d.FinishedAt, &d.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (r *deliveryRepo) Update(ctx context.Context, d *domain.Delivery) error {
	tag, err := (*Store)(r).q(ctx).Exec(ctx, `
		UPDATE deliveries SET status = $2, courier = $3, latitude = $4, longitude = $5,
			last_update_at = $6, started_at = $7, finished_at = $8
		WHERE id = $1`,
		d.ID, d.Status, d.Courier, d.Latitude, d.Longitude,
		d.LastUpdateAt, d.StartedAt, d.FinishedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *deliveryRepo) AppendSample(ctx context.Context, s *domain.LocationSample) error {
	return (*Store)(r).q(ctx).QueryRow(ctx, `
		INSERT INTO location_samples (delivery_id, latitude, longitude, accuracy, speed, heading)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		s.DeliveryID, s.Latitude, s.Longitude, s.Accuracy, s.Speed, s.Heading,
	).Scan(&s.ID, &s.CreatedAt)
}

// ListSamples returns the newest samples first.
func (r *deliveryRepo) ListSamples(ctx context.Context, deliveryID int64, limit int) ([]domain.LocationSample, error) {
	rows, err := (*Store)(r).q(ctx).Query(ctx, `
		SELECT id, delivery_id, latitude, longitude, accuracy, speed, heading, created_at
		FROM location_samples WHERE delivery_id = $1 ORDER BY id DESC LIMIT $2`,
		deliveryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LocationSample
	for rows.Next() {
		var s domain.LocationSample
		if err := rows.Scan(&s.ID, &s.DeliveryID, &s.Latitude, &s.Longitude,
			&s.Accuracy, &s.Speed, &s.Heading, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *deliveryRepo) ListActive(ctx context.Context, limit int) ([]domain.Delivery, error) {
	rows, err := (*Store)(r).q(ctx).Query(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries
		 WHERE status NOT IN ($1, $2) ORDER BY created_at LIMIT $3`,
		domain.DeliveryEntregue, domain.DeliveryCancelada, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Delivery
	for rows.Next() {
		var d domain.Delivery
		if err := rows.Scan(&d.ID, &d.OrderID, &d.Token, &d.Status, &d.Courier, &d.Latitude, &d.Longitude,
			&d.LastUpdateAt, &d.StartedAt, &d.FinishedAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
