package domain

import "time"

type DeliveryStatus string

const (
	DeliveryAguardando DeliveryStatus = "AGUARDANDO"
	DeliveryACaminho   DeliveryStatus = "A_CAMINHO"
	DeliveryChegando   DeliveryStatus = "CHEGANDO"
	DeliveryEntregue   DeliveryStatus = "ENTREGUE"
	DeliveryCancelada  DeliveryStatus = "CANCELADA"
)

var deliveryGraph = map[DeliveryStatus][]DeliveryStatus{
	DeliveryAguardando: {DeliveryACaminho},
	DeliveryACaminho:   {DeliveryChegando, DeliveryEntregue},
	DeliveryChegando:   {DeliveryEntregue},
	DeliveryEntregue:   nil,
	DeliveryCancelada:  nil,
}

func (s DeliveryStatus) Valid() bool {
	_, ok := deliveryGraph[s]
	return ok
}

func (s DeliveryStatus) CanTransitionTo(target DeliveryStatus) bool {
	for _, t := range deliveryGraph[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryEntregue || s == DeliveryCancelada
}

// Delivery is the 1:1 companion of a deliverable order. Access goes through
// the opaque Token; once the status is terminal the record is immutable.
type Delivery struct {
	ID           int64          `json:"id"`
	OrderID      int64          `json:"order_id"`
	Token        string         `json:"token"`
	Status       DeliveryStatus `json:"status"`
	Courier      string         `json:"courier,omitempty"`
	Latitude     *float64       `json:"latitude,omitempty"`
	Longitude    *float64       `json:"longitude,omitempty"`
	LastUpdateAt *time.Time     `json:"last_update_at,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// LocationSample is an append-only position report under a delivery.
type LocationSample struct {
	ID         int64     `json:"id"`
	DeliveryID int64     `json:"delivery_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
