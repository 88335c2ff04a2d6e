// Package ledger owns SKU balances and the append-only movement log. All
// balance changes go through Deduct, Reverse, Receive, Adjust or RecordLoss
// so every committed state satisfies balance >= 0 and every change has a
// movement recording balance before and after.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"burger-house/internal/domain"
	"burger-house/internal/logging"
	"burger-house/internal/storage"
)

type Ledger struct {
	skus      storage.SKURepo
	movements storage.MovementRepo
	tx        storage.TxManager
	log       *logging.Logger
}

func New(store storage.Store) *Ledger {
	return &Ledger{
		skus:      store.SKUs(),
		movements: store.Movements(),
		tx:        store,
		log:       logging.New("stock-ledger"),
	}
}

// Deduct removes quantity units of a SKU on behalf of an order and records a
// saida movement. The caller is expected to run it inside a transaction when
// the deduction is part of a larger write (order creation does).
func (l *Ledger) Deduct(ctx context.Context, skuID, quantity, orderID int64, actor string) (*domain.Movement, error) {
	if quantity <= 0 {
		return nil, domain.Validationf("quantidade deve ser positiva, recebido %d", quantity)
	}
	sku, err := l.skus.GetForUpdate(ctx, skuID)
	if err != nil {
		return nil, fmt.Errorf("sku %d: %w", skuID, err)
	}
	if sku.Balance-quantity < 0 {
		return nil, &domain.InsufficientStockError{
			SKUID: sku.ID, Name: sku.Name, Available: sku.Balance, Requested: quantity,
		}
	}
	after := sku.Balance - quantity
	if err := l.skus.UpdateBalance(ctx, sku.ID, after); err != nil {
		return nil, err
	}
	m := &domain.Movement{
		SKUID:         sku.ID,
		Kind:          domain.MovementSaida,
		Quantity:      -quantity,
		BalanceBefore: sku.Balance,
		BalanceAfter:  after,
		OrderID:       &orderID,
		Reason:        "saida por pedido",
		Actor:         actor,
	}
	if err := l.movements.Append(ctx, m); err != nil {
		return nil, err
	}
	if after < sku.MinBalance {
		l.log.Warn("stock_below_minimum", map[string]any{
			"sku_id": sku.ID, "sku": sku.Name, "balance": after, "minimum": sku.MinBalance,
		})
	}
	return m, nil
}

// Reverse credits back the quantity of a saida movement and records an
// entrada tagged with the originating order. Reversal is idempotent per
// order and SKU: a second call finds the existing entrada and fails with
// ErrAlreadyReversed instead of double-crediting.
func (l *Ledger) Reverse(ctx context.Context, movementID uuid.UUID, actor string) (*domain.Movement, error) {
	orig, err := l.movements.Get(ctx, movementID)
	if err != nil {
		return nil, fmt.Errorf("movement %s: %w", movementID, err)
	}
	if orig.Kind != domain.MovementSaida {
		return nil, domain.Validationf("somente movimentos de saida podem ser estornados, movimento é %s", orig.Kind)
	}
	if orig.OrderID == nil {
		return nil, domain.Validationf("movimento %s não pertence a um pedido", movementID)
	}
	reversed, err := l.orderReversed(ctx, *orig.OrderID, orig.SKUID)
	if err != nil {
		return nil, err
	}
	if reversed {
		return nil, domain.ErrAlreadyReversed
	}
	return l.credit(ctx, orig, actor)
}

// ReverseOrder reverses every unreversed saida movement of an order.
// Calling it again for the same order is a no-op returning no movements.
// Movements of kind ajuste or perda recorded against the order id are left
// alone: they are manual corrections with their own audit trail and
// replaying them would double-correct the balance.
func (l *Ledger) ReverseOrder(ctx context.Context, orderID int64, actor string) ([]domain.Movement, error) {
	all, err := l.movements.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var created []domain.Movement
	for i := range all {
		m := all[i]
		if m.Kind != domain.MovementSaida {
			continue
		}
		reversed, err := l.orderReversed(ctx, orderID, m.SKUID)
		if err != nil {
			return nil, err
		}
		if reversed {
			continue
		}
		rev, err := l.credit(ctx, &m, actor)
		if err != nil {
			return nil, err
		}
		created = append(created, *rev)
	}
	return created, nil
}

func (l *Ledger) orderReversed(ctx context.Context, orderID, skuID int64) (bool, error) {
	all, err := l.movements.ListByOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, m := range all {
		if m.Kind == domain.MovementEntrada && m.SKUID == skuID {
			return true, nil
		}
	}
	return false, nil
}

func (l *Ledger) credit(ctx context.Context, orig *domain.Movement, actor string) (*domain.Movement, error) {
	qty := orig.Quantity
	if qty < 0 {
		qty = -qty
	}
	sku, err := l.skus.GetForUpdate(ctx, orig.SKUID)
	if err != nil {
		return nil, err
	}
	after := sku.Balance + qty
	if err := l.skus.UpdateBalance(ctx, sku.ID, after); err != nil {
		return nil, err
	}
	m := &domain.Movement{
		SKUID:         sku.ID,
		Kind:          domain.MovementEntrada,
		Quantity:      qty,
		BalanceBefore: sku.Balance,
		BalanceAfter:  after,
		OrderID:       orig.OrderID,
		Reason:        "estorno por cancelamento",
		Actor:         actor,
	}
	if err := l.movements.Append(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Receive registers incoming stock (restock) as an entrada movement.
func (l *Ledger) Receive(ctx context.Context, skuID, quantity int64, reason, actor string) (*domain.Movement, error) {
	if quantity <= 0 {
		return nil, domain.Validationf("quantidade deve ser positiva, recebido %d", quantity)
	}
	var out *domain.Movement
	err := l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		sku, err := l.skus.GetForUpdate(ctx, skuID)
		if err != nil {
			return err
		}
		after := sku.Balance + quantity
		if err := l.skus.UpdateBalance(ctx, sku.ID, after); err != nil {
			return err
		}
		out = &domain.Movement{
			SKUID: sku.ID, Kind: domain.MovementEntrada, Quantity: quantity,
			BalanceBefore: sku.Balance, BalanceAfter: after,
			Reason: reason, Actor: actor,
		}
		return l.movements.Append(ctx, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Adjust sets the balance to an absolute non-negative value and records an
// ajuste movement with the signed difference.
func (l *Ledger) Adjust(ctx context.Context, skuID, newBalance int64, reason, actor string) (*domain.Movement, error) {
	if newBalance < 0 {
		return nil, domain.Validationf("saldo não pode ser negativo, recebido %d", newBalance)
	}
	var out *domain.Movement
	err := l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		sku, err := l.skus.GetForUpdate(ctx, skuID)
		if err != nil {
			return err
		}
		if err := l.skus.UpdateBalance(ctx, sku.ID, newBalance); err != nil {
			return err
		}
		out = &domain.Movement{
			SKUID: sku.ID, Kind: domain.MovementAjuste, Quantity: newBalance - sku.Balance,
			BalanceBefore: sku.Balance, BalanceAfter: newBalance,
			Reason: reason, Actor: actor,
		}
		return l.movements.Append(ctx, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordLoss writes off spoiled or wasted stock as a perda movement.
func (l *Ledger) RecordLoss(ctx context.Context, skuID, quantity int64, reason, actor string) (*domain.Movement, error) {
	if quantity <= 0 {
		return nil, domain.Validationf("quantidade deve ser positiva, recebido %d", quantity)
	}
	var out *domain.Movement
	err := l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		sku, err := l.skus.GetForUpdate(ctx, skuID)
		if err != nil {
			return err
		}
		if sku.Balance-quantity < 0 {
			return &domain.InsufficientStockError{
				SKUID: sku.ID, Name: sku.Name, Available: sku.Balance, Requested: quantity,
			}
		}
		after := sku.Balance - quantity
		if err := l.skus.UpdateBalance(ctx, sku.ID, after); err != nil {
			return err
		}
		out = &domain.Movement{
			SKUID: sku.ID, Kind: domain.MovementPerda, Quantity: -quantity,
			BalanceBefore: sku.Balance, BalanceAfter: after,
			Reason: reason, Actor: actor,
		}
		return l.movements.Append(ctx, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type BatchItem struct {
	SKUID    int64
	Quantity int64
}

type BatchFailure struct {
	SKUID int64
	Err   error
}

type BatchResult struct {
	Applied []domain.Movement
	Failed  []BatchFailure
}

// DeductBatch applies each item in its own transaction: one bad line does
// not abort unrelated lines. Order creation does NOT use this — an order's
// own deductions are all-or-nothing inside the order transaction.
func (l *Ledger) DeductBatch(ctx context.Context, items []BatchItem, orderID int64, actor string) BatchResult {
	var res BatchResult
	for _, it := range items {
		var m *domain.Movement
		err := l.tx.WithTransaction(ctx, func(ctx context.Context) error {
			var err error
			m, err = l.Deduct(ctx, it.SKUID, it.Quantity, orderID, actor)
			return err
		})
		if err != nil {
			res.Failed = append(res.Failed, BatchFailure{SKUID: it.SKUID, Err: err})
			continue
		}
		res.Applied = append(res.Applied, *m)
	}
	return res
}

// Replay folds all movements of a SKU in creation order starting from zero.
// For a SKU whose stock only ever moved through the ledger the result equals
// the current balance exactly.
func (l *Ledger) Replay(ctx context.Context, skuID int64) (int64, error) {
	all, err := l.movements.ListBySKU(ctx, skuID)
	if err != nil {
		return 0, err
	}
	var balance int64
	for _, m := range all {
		balance += m.Quantity
	}
	return balance, nil
}

// Movements exposes the raw log of a SKU for audit screens.
func (l *Ledger) Movements(ctx context.Context, skuID int64) ([]domain.Movement, error) {
	return l.movements.ListBySKU(ctx, skuID)
}
