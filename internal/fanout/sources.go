package fanout

import (
	"context"
	"strconv"

	"burger-house/internal/domain"
)

// OrderLister is the slice of the order service the kitchen stream needs.
type OrderLister interface {
	ListActive(ctx context.Context, limit int) ([]domain.Order, error)
}

// OrderSource exposes active orders as snapshot items keyed by order id and
// grouped by status. The fingerprint folds in updatedAt so edits to an order
// surface even when the status did not move.
type OrderSource struct {
	Orders OrderLister
}

func (s OrderSource) Snapshot(ctx context.Context, limit int) ([]Item, error) {
	orders, err := s.Orders.ListActive(ctx, limit)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		items = append(items, Item{
			ID:          strconv.FormatInt(o.ID, 10),
			Fingerprint: string(o.Status) + "|" + o.UpdatedAt.UTC().String(),
			Group:       string(o.Status),
			Payload:     o,
		})
	}
	return items, nil
}

// DeliveryLister is the slice of the tracker the delivery stream needs.
type DeliveryLister interface {
	ListActive(ctx context.Context, limit int) ([]domain.Delivery, error)
}

// DeliverySource exposes in-flight deliveries grouped by delivery status.
// Location reports bump lastUpdateAt, so each report shows up as a change.
type DeliverySource struct {
	Deliveries DeliveryLister
}

func (s DeliverySource) Snapshot(ctx context.Context, limit int) ([]Item, error) {
	deliveries, err := s.Deliveries.ListActive(ctx, limit)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(deliveries))
	for i := range deliveries {
		d := &deliveries[i]
		fp := string(d.Status)
		if d.LastUpdateAt != nil {
			fp += "|" + d.LastUpdateAt.UTC().String()
		}
		items = append(items, Item{
			ID:          strconv.FormatInt(d.ID, 10),
			Fingerprint: fp,
			Group:       string(d.Status),
			Payload:     d,
		})
	}
	return items, nil
}
