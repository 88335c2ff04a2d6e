package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventOrderConfirmed  EventKind = "order_confirmed"
	EventOrderPreparing  EventKind = "order_preparing"
	EventOrderReady      EventKind = "order_ready"
	EventOrderDispatched EventKind = "order_dispatched"
	EventOrderDelivered  EventKind = "order_delivered"
	EventOrderCancelled  EventKind = "order_cancelled"
)

// EventForStatus maps an accepted order transition to its notification kind.
func EventForStatus(s OrderStatus) EventKind {
	switch s {
	case StatusConfirmado:
		return EventOrderConfirmed
	case StatusPreparando:
		return EventOrderPreparing
	case StatusPronto:
		return EventOrderReady
	case StatusEmEntrega:
		return EventOrderDispatched
	case StatusEntregue:
		return EventOrderDelivered
	case StatusCancelado:
		return EventOrderCancelled
	}
	return ""
}

// StatusChange is the wire payload published once per accepted transition,
// after the transaction commits.
type StatusChange struct {
	OrderID     int64       `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	OldStatus   OrderStatus `json:"old_status"`
	NewStatus   OrderStatus `json:"new_status"`
	ChangedBy   string      `json:"changed_by"`
	Reason      string      `json:"reason,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// PushSubscription maps an opaque push endpoint to an optional order.
type PushSubscription struct {
	ID        uuid.UUID `json:"id"`
	Endpoint  string    `json:"endpoint"`
	OrderID   *int64    `json:"order_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PushMessage is the payload handed to the external push transport.
type PushMessage struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon,omitempty"`
	Tag   string         `json:"tag,omitempty"`
	URL   string         `json:"url,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}
