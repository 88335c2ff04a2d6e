// Package orders builds order aggregates and drives their status lifecycle.
package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"burger-house/internal/domain"
	"burger-house/internal/ledger"
	"burger-house/internal/logging"
	"burger-house/internal/storage"
)

// FeeResolver is the zone/configuration collaborator that prices delivery
// for an address. Pickup orders never consult it.
type FeeResolver interface {
	Fee(ctx context.Context, address string) (decimal.Decimal, error)
}

// FixedFee charges the same delivery fee for every address.
type FixedFee struct {
	Amount decimal.Decimal
}

func (f FixedFee) Fee(ctx context.Context, address string) (decimal.Decimal, error) {
	return f.Amount, nil
}

// Events receives a status change after its transaction committed. A
// publisher error never fails the operation that produced the event.
type Events interface {
	OrderStatusChanged(ctx context.Context, ev domain.StatusChange) error
}

// NopEvents drops events; used when no broker is configured.
type NopEvents struct{}

func (NopEvents) OrderStatusChanged(context.Context, domain.StatusChange) error { return nil }

type BuilderConfig struct {
	// StrictItems fails order creation when the cart references an unknown
	// SKU. The default (false) reproduces the storefront's historical
	// behavior: unresolvable lines are dropped from pricing and logged.
	StrictItems bool
}

type Builder struct {
	store  storage.Store
	ledger *ledger.Ledger
	fees   FeeResolver
	events Events
	cfg    BuilderConfig
	log    *logging.Logger
}

func NewBuilder(store storage.Store, lg *ledger.Ledger, fees FeeResolver, events Events, cfg BuilderConfig) *Builder {
	if events == nil {
		events = NopEvents{}
	}
	return &Builder{
		store: store, ledger: lg, fees: fees, events: events, cfg: cfg,
		log: logging.New("order-builder"),
	}
}

// CreateOrder converts a cart into a priced, persisted order, deducting
// stock for every referenced SKU inside one transaction. Prices and costs
// come from the live catalog at this moment and are snapshotted into the
// lines; they never change afterwards. If any deduction fails the whole
// transaction rolls back and the error aggregates every failing SKU.
func (b *Builder) CreateOrder(ctx context.Context, cart domain.Cart, cust domain.Customer, actor domain.Actor) (*domain.Order, error) {
	if err := validateCart(cart, cust); err != nil {
		return nil, err
	}

	created, err := b.createOnce(ctx, cart, cust, actor, 0)
	for attempt := 1; attempt < numberAttempts && errors.Is(err, domain.ErrDuplicateNumber); attempt++ {
		b.log.Warn("order_number_conflict", map[string]any{"attempt": attempt})
		created, err = b.createOnce(ctx, cart, cust, actor, attempt)
	}
	if err != nil {
		return nil, err
	}

	// notify only after the order is durably committed
	b.publish(ctx, domain.StatusChange{
		OrderID: created.ID, OrderNumber: created.Number,
		OldStatus: "", NewStatus: domain.StatusConfirmado,
		ChangedBy: actor.ID, Timestamp: time.Now().UTC(),
	})
	b.log.Info("order_created", map[string]any{
		"order_id": created.ID, "number": created.Number, "total": created.Total.String(),
	})
	return created, nil
}

// numberAttempts bounds the retries when two concurrent creations computed
// the same daily order number.
const numberAttempts = 3

func (b *Builder) createOnce(ctx context.Context, cart domain.Cart, cust domain.Customer, actor domain.Actor, attempt int) (*domain.Order, error) {
	var created *domain.Order
	err := b.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := b.lockSKUs(ctx, cart); err != nil {
			return err
		}
		lines, items, missing, err := b.resolveCart(ctx, cart)
		if err != nil {
			return err
		}
		if b.cfg.StrictItems && len(missing) > 0 {
			return domain.Validationf("SKUs inexistentes no carrinho: %v", missing)
		}
		if len(missing) > 0 {
			b.log.Warn("cart_lines_dropped", map[string]any{"sku_ids": missing})
		}
		if len(lines) == 0 && len(items) == 0 {
			return domain.Validationf("nenhum item válido no carrinho")
		}

		subtotal, costTotal := decimal.Zero, decimal.Zero
		for _, ln := range lines {
			qty := decimal.NewFromInt(ln.Quantity)
			subtotal = subtotal.Add(ln.UnitPrice.Mul(qty))
			costTotal = costTotal.Add(ln.UnitCost.Mul(qty))
		}
		for _, it := range items {
			qty := decimal.NewFromInt(it.Quantity)
			subtotal = subtotal.Add(it.UnitPrice.Mul(qty))
			costTotal = costTotal.Add(it.UnitCost.Mul(qty))
		}

		fee := decimal.Zero
		if cart.DeliveryKind == domain.KindDelivery {
			fee, err = b.fees.Fee(ctx, cust.Address)
			if err != nil {
				return fmt.Errorf("resolve delivery fee: %w", err)
			}
		}
		total := subtotal.Add(fee).Sub(cart.Discount)

		number, err := b.nextNumber(ctx, attempt)
		if err != nil {
			return err
		}
		o := &domain.Order{
			Number:        number,
			Status:        domain.StatusConfirmado,
			CustomerName:  cust.Name,
			CustomerPhone: cust.Phone,
			Address:       cust.Address,
			DeliveryKind:  cart.DeliveryKind,
			Subtotal:      subtotal,
			DeliveryFee:   fee,
			Discount:      cart.Discount,
			Total:         total,
			CostTotal:     costTotal,
			Profit:        total.Sub(costTotal),
			PaymentStatus: domain.PaymentPendente,
			Lines:         lines,
			Items:         items,
		}
		if err := b.store.Orders().Create(ctx, o); err != nil {
			return fmt.Errorf("persist order: %w", err)
		}
		if err := b.store.Orders().AppendStatusLog(ctx, o.ID, o.Status, actor.ID, ""); err != nil {
			return err
		}

		// every (SKU, quantity) pair of the order, aggregated so one saida
		// movement covers each SKU
		var failures []error
		for _, d := range deductions(o) {
			if _, err := b.ledger.Deduct(ctx, d.skuID, d.quantity, o.ID, actor.ID); err != nil {
				var ise *domain.InsufficientStockError
				if errors.As(err, &ise) {
					failures = append(failures, err)
					continue
				}
				return err
			}
		}
		if len(failures) > 0 {
			return errors.Join(failures...)
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// lockSKUs takes the row lock of every SKU the cart references in ascending
// id order. Concurrent orders over overlapping SKUs then always lock in the
// same sequence and cannot deadlock, whatever their cart order.
func (b *Builder) lockSKUs(ctx context.Context, cart domain.Cart) error {
	for _, id := range cartSKUIDs(cart) {
		if _, err := b.store.SKUs().GetForUpdate(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}

// cartSKUIDs returns the distinct SKU ids a cart references, ascending.
func cartSKUIDs(cart domain.Cart) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	add := func(id int64) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, cb := range cart.Burgers {
		for _, id := range cb.IngredientIDs {
			add(id)
		}
	}
	for _, it := range cart.Items {
		add(it.SKUID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func validateCart(cart domain.Cart, cust domain.Customer) error {
	if cust.Name == "" {
		return domain.Validationf("nome do cliente é obrigatório")
	}
	if cust.Phone == "" {
		return domain.Validationf("telefone do cliente é obrigatório")
	}
	if cart.DeliveryKind != domain.KindDelivery && cart.DeliveryKind != domain.KindPickup {
		return domain.Validationf("tipo de entrega inválido: %q", cart.DeliveryKind)
	}
	if cart.DeliveryKind == domain.KindDelivery && cust.Address == "" {
		return domain.Validationf("endereço é obrigatório para entrega")
	}
	if len(cart.Burgers) == 0 && len(cart.Items) == 0 {
		return domain.Validationf("o pedido precisa de pelo menos um item")
	}
	if cart.Discount.IsNegative() {
		return domain.Validationf("desconto não pode ser negativo")
	}
	for _, b := range cart.Burgers {
		if b.Quantity <= 0 {
			return domain.Validationf("quantidade inválida para %q", b.Name)
		}
		if len(b.IngredientIDs) == 0 {
			return domain.Validationf("hambúrguer %q sem ingredientes", b.Name)
		}
	}
	for _, it := range cart.Items {
		if it.Quantity <= 0 {
			return domain.Validationf("quantidade inválida para item %d", it.SKUID)
		}
	}
	return nil
}

// resolveCart prices the cart against the current catalog. Unknown SKU ids
// are collected in missing; the caller decides whether that fails the order.
func (b *Builder) resolveCart(ctx context.Context, cart domain.Cart) (lines []domain.OrderLine, items []domain.OrderLineItem, missing []int64, err error) {
	skus := b.store.SKUs()
	for _, cb := range cart.Burgers {
		line := domain.OrderLine{Name: cb.Name, Quantity: cb.Quantity}
		price, cost := decimal.Zero, decimal.Zero
		for _, id := range cb.IngredientIDs {
			sku, err := skus.GetForUpdate(ctx, id)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					missing = append(missing, id)
					continue
				}
				return nil, nil, nil, err
			}
			line.Ingredients = append(line.Ingredients, domain.LineIngredient{
				SKUID: sku.ID, Name: sku.Name, UnitPrice: sku.UnitPrice, UnitCost: sku.UnitCost,
			})
			price = price.Add(sku.UnitPrice)
			cost = cost.Add(sku.UnitCost)
		}
		if len(line.Ingredients) == 0 {
			// every ingredient unknown: nothing to price, line is dropped
			continue
		}
		line.UnitPrice, line.UnitCost = price, cost
		lines = append(lines, line)
	}
	for _, ci := range cart.Items {
		sku, err := skus.GetForUpdate(ctx, ci.SKUID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				missing = append(missing, ci.SKUID)
				continue
			}
			return nil, nil, nil, err
		}
		items = append(items, domain.OrderLineItem{
			SKUID: sku.ID, Name: sku.Name, Quantity: ci.Quantity,
			UnitPrice: sku.UnitPrice, UnitCost: sku.UnitCost,
		})
	}
	return lines, items, missing, nil
}

type deduction struct {
	skuID    int64
	quantity int64
}

// deductions aggregates the order's SKU usage: burger ingredients consume
// line quantity units each, accompaniments their own quantity.
func deductions(o *domain.Order) []deduction {
	totals := make(map[int64]int64)
	var order []int64
	add := func(skuID, qty int64) {
		if _, seen := totals[skuID]; !seen {
			order = append(order, skuID)
		}
		totals[skuID] += qty
	}
	for _, ln := range o.Lines {
		for _, ing := range ln.Ingredients {
			add(ing.SKUID, ln.Quantity)
		}
	}
	for _, it := range o.Items {
		add(it.SKUID, it.Quantity)
	}
	out := make([]deduction, 0, len(order))
	for _, id := range order {
		out = append(out, deduction{skuID: id, quantity: totals[id]})
	}
	return out
}

// nextNumber issues the human order number PED_YYYYMMDD_NNN. A retry after a
// duplicate bumps the sequence past the collision; numbers then may have
// gaps within a day, which only unique identification cares about.
func (b *Builder) nextNumber(ctx context.Context, bump int) (string, error) {
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	seq, err := b.store.Orders().CountCreatedSince(ctx, midnight)
	if err != nil {
		return "", fmt.Errorf("order sequence: %w", err)
	}
	return fmt.Sprintf("PED_%s_%03d", now.Format("20060102"), seq+1+bump), nil
}

func (b *Builder) publish(ctx context.Context, ev domain.StatusChange) {
	if err := b.events.OrderStatusChanged(ctx, ev); err != nil {
		b.log.Error("event_publish_failed", err, map[string]any{"order_id": ev.OrderID})
	}
}

// GetOrder is a snapshot read for the API and dashboards.
func (b *Builder) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return b.store.Orders().Get(ctx, id)
}

// ListActive returns the bounded working set of non-terminal orders.
func (b *Builder) ListActive(ctx context.Context, limit int) ([]domain.Order, error) {
	return b.store.Orders().ListActive(ctx, limit)
}
