package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"burger-house/internal/domain"
	"burger-house/internal/logging"
	"burger-house/internal/storage"
)

type Dispatcher struct {
	subs      storage.SubscriptionRepo
	transport Transport
	log       *logging.Logger
}

func NewDispatcher(subs storage.SubscriptionRepo, transport Transport) *Dispatcher {
	return &Dispatcher{subs: subs, transport: transport, log: logging.New("push-dispatcher")}
}

// Dispatch renders the change and sends it to every subscription of the
// order, falling back to the broadcast subscriptions when the order has none
// of its own. Sends run concurrently; one failed endpoint never blocks the
// others, and endpoints reported gone are dropped from the store.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.StatusChange) error {
	subs, err := d.subs.ListByOrder(ctx, ev.OrderID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		subs, err = d.subs.ListAll(ctx)
		if err != nil {
			return err
		}
		if len(subs) > 0 {
			d.log.Debug("broadcast_fallback", map[string]any{"order_id": ev.OrderID, "subs": len(subs)})
		}
	}
	if len(subs) == 0 {
		return nil
	}

	msg := Render(ev)

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub domain.PushSubscription) {
			defer wg.Done()
			err := d.transport.Send(ctx, sub.Endpoint, msg)
			switch {
			case errors.Is(err, ErrSubscriptionGone):
				if delErr := d.subs.Delete(ctx, sub.ID); delErr != nil {
					d.log.Error("subscription_delete_failed", delErr, map[string]any{"subscription_id": sub.ID})
				} else {
					d.log.Info("subscription_pruned", map[string]any{"subscription_id": sub.ID})
				}
			case err != nil:
				d.log.Error("push_send_failed", err, map[string]any{
					"subscription_id": sub.ID, "order_id": ev.OrderID,
				})
			}
		}(sub)
	}
	wg.Wait()
	return nil
}

// Render produces the customer-facing message for a status change.
func Render(ev domain.StatusChange) domain.PushMessage {
	kind := domain.EventForStatus(ev.NewStatus)
	msg := domain.PushMessage{
		Title: "Burger House",
		Tag:   ev.OrderNumber,
		URL:   fmt.Sprintf("/pedidos/%d", ev.OrderID),
		Data: map[string]any{
			"order_id": ev.OrderID,
			"event":    string(kind),
		},
	}
	switch kind {
	case domain.EventOrderConfirmed:
		msg.Body = fmt.Sprintf("Pedido %s confirmado! Já estamos cuidando dele.", ev.OrderNumber)
	case domain.EventOrderPreparing:
		msg.Body = fmt.Sprintf("Seu pedido %s está sendo preparado.", ev.OrderNumber)
	case domain.EventOrderReady:
		msg.Body = fmt.Sprintf("Pedido %s pronto!", ev.OrderNumber)
	case domain.EventOrderDispatched:
		msg.Body = fmt.Sprintf("Pedido %s saiu para entrega.", ev.OrderNumber)
	case domain.EventOrderDelivered:
		msg.Body = fmt.Sprintf("Pedido %s entregue. Bom apetite!", ev.OrderNumber)
	case domain.EventOrderCancelled:
		msg.Body = fmt.Sprintf("Pedido %s foi cancelado.", ev.OrderNumber)
		if ev.Reason != "" {
			msg.Body = fmt.Sprintf("Pedido %s foi cancelado: %s.", ev.OrderNumber, ev.Reason)
		}
	default:
		msg.Body = fmt.Sprintf("Pedido %s atualizado para %s.", ev.OrderNumber, ev.NewStatus)
	}
	return msg
}
