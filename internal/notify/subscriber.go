package notify

import (
	"context"
	"encoding/json"

	"burger-house/internal/domain"
	"burger-house/internal/logging"
	"burger-house/internal/mq"
)

// Subscriber drains the notifications queue and hands each status change to
// the dispatcher. Malformed messages are rejected without requeue so they
// land in the dead letter queue; dispatch errors requeue the delivery once.
type Subscriber struct {
	client     *mq.Client
	dispatcher *Dispatcher
	log        *logging.Logger
}

func NewSubscriber(client *mq.Client, dispatcher *Dispatcher) *Subscriber {
	return &Subscriber{client: client, dispatcher: dispatcher, log: logging.New("push-subscriber")}
}

func (s *Subscriber) Run(ctx context.Context) error {
	deliveries, err := s.client.Consume(mq.NotificationsQueue, "push-dispatcher", 10)
	if err != nil {
		return err
	}
	s.log.Info("consuming", map[string]any{"queue": mq.NotificationsQueue})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			var ev domain.StatusChange
			if err := json.Unmarshal(msg.Body, &ev); err != nil {
				s.log.Error("malformed_message", err, map[string]any{"message_id": msg.MessageId})
				_ = msg.Nack(false, false)
				continue
			}
			if err := s.dispatcher.Dispatch(ctx, ev); err != nil {
				s.log.Error("dispatch_failed", err, map[string]any{"order_id": ev.OrderID})
				_ = msg.Nack(false, !msg.Redelivered)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}
