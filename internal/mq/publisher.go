package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"burger-house/internal/domain"
)

// Publisher pushes order status changes onto the fanout exchange. It is
// called after the producing transaction committed, so a broker failure is
// logged by the caller and never rolls anything back.
type Publisher struct {
	client *Client
}

func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) OrderStatusChanged(ctx context.Context, ev domain.StatusChange) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal status change: %w", err)
	}
	return p.client.Publish(ctx, StatusExchange, "", body, uuid.NewString(), ev.OrderNumber)
}
