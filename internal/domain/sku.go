package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SKUKind string

const (
	SKUIngredient    SKUKind = "ingredient"
	SKUAccompaniment SKUKind = "accompaniment"
)

// SKU is a stock-keeping unit: an ingredient or accompaniment with a tracked
// balance. Balances are mutated only through ledger operations, never by a
// direct write, so currentBalance >= 0 holds at every committed state.
type SKU struct {
	ID         int64           `json:"id"`
	Kind       SKUKind         `json:"kind"`
	Name       string          `json:"name"`
	Unit       string          `json:"unit"`
	Balance    int64           `json:"balance"`
	MinBalance int64           `json:"min_balance"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type MovementKind string

const (
	MovementEntrada MovementKind = "entrada"
	MovementSaida   MovementKind = "saida"
	MovementAjuste  MovementKind = "ajuste"
	MovementPerda   MovementKind = "perda"
)

// Movement is an immutable ledger entry. Quantity is signed: positive for
// entrada and upward ajuste, negative for saida, perda and downward ajuste.
// Replaying all movements of a SKU in creation order reproduces its balance.
type Movement struct {
	ID            uuid.UUID    `json:"id"`
	SKUID         int64        `json:"sku_id"`
	Kind          MovementKind `json:"kind"`
	Quantity      int64        `json:"quantity"`
	BalanceBefore int64        `json:"balance_before"`
	BalanceAfter  int64        `json:"balance_after"`
	OrderID       *int64       `json:"order_id,omitempty"`
	Reason        string       `json:"reason"`
	Actor         string       `json:"actor"`
	CreatedAt     time.Time    `json:"created_at"`
}
