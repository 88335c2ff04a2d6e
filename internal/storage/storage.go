// Package storage defines the persistence boundary of the engine. Two
// implementations exist: a durable transactional Postgres store and a
// volatile in-process store selected once at start. Repositories must be
// used inside TxManager.WithTransaction whenever a mutation spans more than
// one row; the *ForUpdate variants take a row lock for the transaction.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"burger-house/internal/domain"
)

type SKURepo interface {
	Create(ctx context.Context, s *domain.SKU) error
	Get(ctx context.Context, id int64) (*domain.SKU, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.SKU, error)
	UpdateBalance(ctx context.Context, id int64, balance int64) error
	List(ctx context.Context, onlyActive bool) ([]domain.SKU, error)
	Deactivate(ctx context.Context, id int64) error
}

type MovementRepo interface {
	Append(ctx context.Context, m *domain.Movement) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Movement, error)
	// ListBySKU returns movements in creation order.
	ListBySKU(ctx context.Context, skuID int64) ([]domain.Movement, error)
	ListByOrder(ctx context.Context, orderID int64) ([]domain.Movement, error)
}

type OrderRepo interface {
	// Create persists the order together with its lines and items.
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id int64) (*domain.Order, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
	// ListActive returns non-terminal orders, oldest first, capped at limit.
	ListActive(ctx context.Context, limit int) ([]domain.Order, error)
	AppendStatusLog(ctx context.Context, orderID int64, status domain.OrderStatus, changedBy, notes string) error
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
}

type DeliveryRepo interface {
	Create(ctx context.Context, d *domain.Delivery) error
	GetByOrder(ctx context.Context, orderID int64) (*domain.Delivery, error)
	GetByToken(ctx context.Context, token string) (*domain.Delivery, error)
	GetByTokenForUpdate(ctx context.Context, token string) (*domain.Delivery, error)
	Update(ctx context.Context, d *domain.Delivery) error
	AppendSample(ctx context.Context, s *domain.LocationSample) error
	ListSamples(ctx context.Context, deliveryID int64, limit int) ([]domain.LocationSample, error)
	ListActive(ctx context.Context, limit int) ([]domain.Delivery, error)
}

type SubscriptionRepo interface {
	Save(ctx context.Context, s *domain.PushSubscription) error
	ListByOrder(ctx context.Context, orderID int64) ([]domain.PushSubscription, error)
	ListAll(ctx context.Context) ([]domain.PushSubscription, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TxManager runs fn atomically: either every write inside fn commits or none
// does. Nested use is not supported.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Store interface {
	TxManager
	SKUs() SKURepo
	Movements() MovementRepo
	Orders() OrderRepo
	Deliveries() DeliveryRepo
	Subscriptions() SubscriptionRepo
}
