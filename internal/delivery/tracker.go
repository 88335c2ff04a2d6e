// Package delivery owns the delivery sub-status and location history of
// dispatchable orders.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"burger-house/internal/domain"
	"burger-house/internal/logging"
	"burger-house/internal/orders"
	"burger-house/internal/storage"
)

type Tracker struct {
	store  storage.Store
	events orders.Events
	log    *logging.Logger
}

func NewTracker(store storage.Store, events orders.Events) *Tracker {
	if events == nil {
		events = orders.NopEvents{}
	}
	return &Tracker{store: store, events: events, log: logging.New("delivery-tracker")}
}

// Dispatch creates the delivery record for an order. Only delivery orders in
// PREPARANDO or PRONTO may acquire one, and only once.
func (t *Tracker) Dispatch(ctx context.Context, orderID int64, courier string, actor domain.Actor) (*domain.Delivery, error) {
	var created *domain.Delivery
	err := t.store.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := t.store.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.DeliveryKind != domain.KindDelivery {
			return domain.ErrNotDeliverable
		}
		if o.Status != domain.StatusPreparando && o.Status != domain.StatusPronto {
			return &domain.IllegalTransitionError{From: string(o.Status), To: "despacho"}
		}
		if _, err := t.store.Deliveries().GetByOrder(ctx, orderID); err == nil {
			return domain.ErrAlreadyDispatched
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		created = &domain.Delivery{
			OrderID: orderID,
			Token:   uuid.NewString(),
			Status:  domain.DeliveryAguardando,
			Courier: courier,
		}
		return t.store.Deliveries().Create(ctx, created)
	})
	if err != nil {
		return nil, err
	}
	t.log.Info("delivery_dispatched", map[string]any{"order_id": orderID, "delivery_id": created.ID})
	return created, nil
}

type LocationInput struct {
	Latitude  float64
	Longitude float64
	Accuracy  *float64
	Speed     *float64
	Heading   *float64
}

// ReportLocation appends a location sample and updates the current position
// atomically. The first report of a waiting delivery advances it to
// A_CAMINHO and stamps startedAt.
func (t *Tracker) ReportLocation(ctx context.Context, token string, in LocationInput) (*domain.Delivery, error) {
	if in.Latitude < -90 || in.Latitude > 90 {
		return nil, domain.Validationf("latitude fora do intervalo: %v", in.Latitude)
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		return nil, domain.Validationf("longitude fora do intervalo: %v", in.Longitude)
	}

	var updated *domain.Delivery
	err := t.store.WithTransaction(ctx, func(ctx context.Context) error {
		d, err := t.store.Deliveries().GetByTokenForUpdate(ctx, token)
		if err != nil {
			return err
		}
		if d.Status.Terminal() {
			return domain.ErrDeliveryFinished
		}
		if err := t.store.Deliveries().AppendSample(ctx, &domain.LocationSample{
			DeliveryID: d.ID,
			Latitude:   in.Latitude,
			Longitude:  in.Longitude,
			Accuracy:   in.Accuracy,
			Speed:      in.Speed,
			Heading:    in.Heading,
		}); err != nil {
			return err
		}
		now := time.Now().UTC()
		d.Latitude, d.Longitude = &in.Latitude, &in.Longitude
		d.LastUpdateAt = &now
		if d.Status == domain.DeliveryAguardando {
			d.Status = domain.DeliveryACaminho
			d.StartedAt = &now
		}
		if err := t.store.Deliveries().Update(ctx, d); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetStatus advances the delivery along its graph. Reaching ENTREGUE also
// marks the parent order ENTREGUE in the same transaction.
func (t *Tracker) SetStatus(ctx context.Context, token string, target domain.DeliveryStatus, actor domain.Actor) (*domain.Delivery, error) {
	if !target.Valid() {
		return nil, domain.Validationf("status de entrega desconhecido: %q", target)
	}

	var (
		updated *domain.Delivery
		ev      *domain.StatusChange
	)
	err := t.store.WithTransaction(ctx, func(ctx context.Context) error {
		d, err := t.store.Deliveries().GetByTokenForUpdate(ctx, token)
		if err != nil {
			return err
		}
		if d.Status.Terminal() {
			return domain.ErrDeliveryFinished
		}
		if !d.Status.CanTransitionTo(target) {
			return &domain.IllegalTransitionError{From: string(d.Status), To: string(target)}
		}
		now := time.Now().UTC()
		d.Status = target
		d.LastUpdateAt = &now
		if target == domain.DeliveryEntregue {
			d.FinishedAt = &now

			o, err := t.store.Orders().GetForUpdate(ctx, d.OrderID)
			if err != nil {
				return err
			}
			from := o.Status
			o.Status = domain.StatusEntregue
			if err := t.store.Orders().Update(ctx, o); err != nil {
				return err
			}
			if err := t.store.Orders().AppendStatusLog(ctx, o.ID, o.Status, actor.ID, "entrega concluída"); err != nil {
				return err
			}
			ev = &domain.StatusChange{
				OrderID: o.ID, OrderNumber: o.Number,
				OldStatus: from, NewStatus: domain.StatusEntregue,
				ChangedBy: actor.ID, Timestamp: now,
			}
		}
		if err := t.store.Deliveries().Update(ctx, d); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	if ev != nil {
		if pubErr := t.events.OrderStatusChanged(ctx, *ev); pubErr != nil {
			t.log.Error("event_publish_failed", pubErr, map[string]any{"order_id": ev.OrderID})
		}
	}
	t.log.Info("delivery_status", map[string]any{"delivery_id": updated.ID, "status": updated.Status})
	return updated, nil
}

// TrackView is the courier/customer read model: the delivery plus its most
// recent location samples.
type TrackView struct {
	Delivery domain.Delivery
	Samples  []domain.LocationSample
}

func (t *Tracker) Track(ctx context.Context, token string) (*TrackView, error) {
	d, err := t.store.Deliveries().GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	samples, err := t.store.Deliveries().ListSamples(ctx, d.ID, 50)
	if err != nil {
		return nil, err
	}
	return &TrackView{Delivery: *d, Samples: samples}, nil
}

// ListActive feeds the delivery live view.
func (t *Tracker) ListActive(ctx context.Context, limit int) ([]domain.Delivery, error) {
	return t.store.Deliveries().ListActive(ctx, limit)
}
