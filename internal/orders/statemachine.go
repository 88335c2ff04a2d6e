package orders

import (
	"context"
	"errors"
	"time"

	"burger-house/internal/domain"
	"burger-house/internal/ledger"
	"burger-house/internal/logging"
	"burger-house/internal/storage"
)

// StateMachine validates and applies order status transitions. Transitions
// for one order are serialized by the store's row lock; a request that loses
// the race re-reads the new status and fails with IllegalTransition when its
// target is no longer reachable.
type StateMachine struct {
	store  storage.Store
	ledger *ledger.Ledger
	events Events
	log    *logging.Logger
}

func NewStateMachine(store storage.Store, lg *ledger.Ledger, events Events) *StateMachine {
	if events == nil {
		events = NopEvents{}
	}
	return &StateMachine{store: store, ledger: lg, events: events, log: logging.New("order-fsm")}
}

// Transition moves an order to target. Cancellation reverses the order's
// saida movements exactly once and forces an owned delivery to CANCELADA;
// repeating a cancellation is a benign no-op. Exactly one event is published
// per accepted transition, after the transaction commits.
func (m *StateMachine) Transition(ctx context.Context, orderID int64, target domain.OrderStatus, actor domain.Actor, reason string) (*domain.Order, error) {
	if !target.Valid() {
		return nil, domain.Validationf("status desconhecido: %q", target)
	}

	var (
		updated *domain.Order
		ev      *domain.StatusChange
	)
	err := m.store.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := m.store.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if target == domain.StatusCancelado && o.Status == domain.StatusCancelado {
			// idempotent replay of a cancellation
			updated = o
			return nil
		}
		if !allowedTransition(o, target) {
			return &domain.IllegalTransitionError{From: string(o.Status), To: string(target)}
		}

		from := o.Status
		if target == domain.StatusCancelado {
			if from == domain.StatusEmEntrega && !actor.Privileged() {
				return domain.ErrForbidden
			}
			// a reversal failure aborts the whole cancellation; the order
			// stays in its prior status rather than half-reversed
			if _, err := m.ledger.ReverseOrder(ctx, o.ID, actor.ID); err != nil {
				return err
			}
			if err := m.cancelDelivery(ctx, o.ID); err != nil {
				return err
			}
			now := time.Now().UTC()
			o.CancelledAt = &now
			o.CancellationReason = reason
		}

		o.Status = target
		if err := m.store.Orders().Update(ctx, o); err != nil {
			return err
		}
		if err := m.store.Orders().AppendStatusLog(ctx, o.ID, target, actor.ID, reason); err != nil {
			return err
		}
		updated = o
		ev = &domain.StatusChange{
			OrderID: o.ID, OrderNumber: o.Number,
			OldStatus: from, NewStatus: target,
			ChangedBy: actor.ID, Reason: reason, Timestamp: time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if ev != nil {
		if pubErr := m.events.OrderStatusChanged(ctx, *ev); pubErr != nil {
			m.log.Error("event_publish_failed", pubErr, map[string]any{"order_id": orderID})
		}
		m.log.Info("order_transition", map[string]any{
			"order_id": orderID, "from": ev.OldStatus, "to": ev.NewStatus, "by": actor.ID,
		})
	}
	return updated, nil
}

// allowedTransition is the status graph plus the one kind-dependent edge:
// a pickup order has no delivery leg, so the counter hand-off completes it
// straight from PRONTO. Delivery orders must pass through EM_ENTREGA.
func allowedTransition(o *domain.Order, target domain.OrderStatus) bool {
	if o.Status.CanTransitionTo(target) {
		return true
	}
	return o.DeliveryKind == domain.KindPickup &&
		o.Status == domain.StatusPronto && target == domain.StatusEntregue
}

func (m *StateMachine) cancelDelivery(ctx context.Context, orderID int64) error {
	d, err := m.store.Deliveries().GetByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if d.Status.Terminal() {
		return nil
	}
	now := time.Now().UTC()
	d.Status = domain.DeliveryCancelada
	d.FinishedAt = &now
	return m.store.Deliveries().Update(ctx, d)
}

// SetPaymentStatus applies a payment gateway webhook decision. "paid" only
// stamps paymentStatus; "failed" goes through the regular cancellation
// contract like any other caller.
func (m *StateMachine) SetPaymentStatus(ctx context.Context, orderID int64, paid bool, actor domain.Actor) (*domain.Order, error) {
	if !paid {
		return m.Transition(ctx, orderID, domain.StatusCancelado, actor, "pagamento recusado")
	}
	var updated *domain.Order
	err := m.store.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := m.store.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status.Terminal() && o.Status != domain.StatusEntregue {
			return &domain.IllegalTransitionError{From: string(o.Status), To: "PAGO"}
		}
		o.PaymentStatus = domain.PaymentPago
		if err := m.store.Orders().Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("payment_confirmed", map[string]any{"order_id": orderID})
	return updated, nil
}
