package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusConfirmado OrderStatus = "CONFIRMADO"
	StatusPreparando OrderStatus = "PREPARANDO"
	StatusPronto     OrderStatus = "PRONTO"
	StatusEmEntrega  OrderStatus = "EM_ENTREGA"
	StatusEntregue   OrderStatus = "ENTREGUE"
	StatusCancelado  OrderStatus = "CANCELADO"
)

// orderGraph lists the legal targets out of each status. ENTREGUE and
// CANCELADO have no outgoing edges.
var orderGraph = map[OrderStatus][]OrderStatus{
	StatusConfirmado: {StatusPreparando, StatusCancelado},
	StatusPreparando: {StatusPronto, StatusCancelado},
	StatusPronto:     {StatusEmEntrega, StatusCancelado},
	StatusEmEntrega:  {StatusEntregue, StatusCancelado},
	StatusEntregue:   nil,
	StatusCancelado:  nil,
}

func (s OrderStatus) Valid() bool {
	_, ok := orderGraph[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, t := range orderGraph[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == StatusEntregue || s == StatusCancelado
}

type PaymentStatus string

const (
	PaymentPendente PaymentStatus = "PENDENTE"
	PaymentPago     PaymentStatus = "PAGO"
	PaymentFalhou   PaymentStatus = "FALHOU"
)

type DeliveryKind string

const (
	KindDelivery DeliveryKind = "delivery"
	KindPickup   DeliveryKind = "pickup"
)

type Role string

const (
	RoleCliente Role = "cliente"
	RoleCozinha Role = "cozinha"
	RoleEntrega Role = "entrega"
	RoleGerente Role = "gerente"
	RoleAdmin   Role = "admin"
	RoleGateway Role = "gateway"
	RoleSistema Role = "sistema"
)

// Actor is the already-validated caller identity. The engine performs no
// credential checking, only role-appropriateness assertions.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) Privileged() bool {
	return a.Role == RoleGerente || a.Role == RoleAdmin
}

// Order is the aggregate root. Monetary fields are fixed at creation:
// Total = Subtotal + DeliveryFee - Discount and Profit = Total - CostTotal,
// never recomputed afterwards. Orders are never deleted; cancellation is a
// terminal status.
type Order struct {
	ID                 int64           `json:"id"`
	Number             string          `json:"number"`
	Status             OrderStatus     `json:"status"`
	CustomerName       string          `json:"customer_name"`
	CustomerPhone      string          `json:"customer_phone"`
	Address            string          `json:"address,omitempty"`
	DeliveryKind       DeliveryKind    `json:"delivery_kind"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DeliveryFee        decimal.Decimal `json:"delivery_fee"`
	Discount           decimal.Decimal `json:"discount"`
	Total              decimal.Decimal `json:"total"`
	CostTotal          decimal.Decimal `json:"cost_total"`
	Profit             decimal.Decimal `json:"profit"`
	PaymentStatus      PaymentStatus   `json:"payment_status"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	Lines              []OrderLine     `json:"lines"`
	Items              []OrderLineItem `json:"items"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
}

// OrderLine is a burger line. Ingredient prices and costs are snapshotted at
// order time; UnitPrice/UnitCost are the per-burger sums over Ingredients.
type OrderLine struct {
	ID          int64            `json:"id"`
	OrderID     int64            `json:"order_id"`
	Name        string           `json:"name"`
	Quantity    int64            `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	UnitCost    decimal.Decimal  `json:"unit_cost"`
	Ingredients []LineIngredient `json:"ingredients"`
}

// LineIngredient records one ingredient SKU of a burger line with the price
// and cost captured at order time.
type LineIngredient struct {
	SKUID     int64           `json:"sku_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// OrderLineItem is an accompaniment line referencing a single SKU.
type OrderLineItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	SKUID     int64           `json:"sku_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// Cart is the raw selection arriving from the storefront. Prices are never
// taken from the client; they are resolved from the catalog at creation.
type Cart struct {
	Burgers      []CartBurger
	Items        []CartItem
	DeliveryKind DeliveryKind
	Discount     decimal.Decimal
}

type CartBurger struct {
	Name          string
	Quantity      int64
	IngredientIDs []int64
}

type CartItem struct {
	SKUID    int64
	Quantity int64
}

type Customer struct {
	Name    string
	Phone   string
	Address string
}
