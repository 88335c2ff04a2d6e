// Package memory is the volatile in-process store. It exists for tests and
// demos: transactions are emulated with a global write lock plus a state
// snapshot that is restored when the transaction function fails, so callers
// keep the commit-or-nothing contract but none of the durability.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"burger-house/internal/domain"
	"burger-house/internal/storage"
)

type Store struct {
	mu sync.RWMutex

	nextSKUID      int64
	nextOrderID    int64
	nextLineID     int64
	nextDeliveryID int64
	nextSampleID   int64

	skus       map[int64]domain.SKU
	movements  []domain.Movement
	orders     map[int64]domain.Order
	statusLog  []statusLogRow
	deliveries map[int64]domain.Delivery
	byToken    map[string]int64
	samples    []domain.LocationSample
	subs       map[uuid.UUID]domain.PushSubscription
}

type statusLogRow struct {
	OrderID   int64
	Status    domain.OrderStatus
	ChangedBy string
	Notes     string
	ChangedAt time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		nextSKUID:      1,
		nextOrderID:    1,
		nextLineID:     1,
		nextDeliveryID: 1,
		nextSampleID:   1,
		skus:           make(map[int64]domain.SKU),
		orders:         make(map[int64]domain.Order),
		deliveries:     make(map[int64]domain.Delivery),
		byToken:        make(map[string]int64),
		subs:           make(map[uuid.UUID]domain.PushSubscription),
	}
}

func (s *Store) SKUs() storage.SKURepo                   { return (*skuRepo)(s) }
func (s *Store) Movements() storage.MovementRepo         { return (*movementRepo)(s) }
func (s *Store) Orders() storage.OrderRepo               { return (*orderRepo)(s) }
func (s *Store) Deliveries() storage.DeliveryRepo        { return (*deliveryRepo)(s) }
func (s *Store) Subscriptions() storage.SubscriptionRepo { return (*subscriptionRepo)(s) }

// transaction marking: repos skip their own locks inside a transaction,
// which already holds the write lock.
type txKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

func (s *Store) rlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.RLock()
	}
}
func (s *Store) runlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.RUnlock()
	}
}
func (s *Store) wlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.Lock()
	}
}
func (s *Store) wunlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.Unlock()
	}
}

// WithTransaction serializes the whole transaction under the write lock and
// restores the pre-transaction state when fn fails, so a failed multi-row
// mutation never leaves partial writes behind.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshotState struct {
	nextSKUID, nextOrderID, nextLineID, nextDeliveryID, nextSampleID int64

	skus       map[int64]domain.SKU
	movements  []domain.Movement
	orders     map[int64]domain.Order
	statusLog  []statusLogRow
	deliveries map[int64]domain.Delivery
	byToken    map[string]int64
	samples    []domain.LocationSample
	subs       map[uuid.UUID]domain.PushSubscription
}

// snapshot copies maps and slice headers. Repositories always store and
// return value copies, so a shallow copy is enough to roll back.
func (s *Store) snapshot() snapshotState {
	return snapshotState{
		nextSKUID: s.nextSKUID, nextOrderID: s.nextOrderID, nextLineID: s.nextLineID,
		nextDeliveryID: s.nextDeliveryID, nextSampleID: s.nextSampleID,
		skus:       copyMap(s.skus),
		movements:  append([]domain.Movement(nil), s.movements...),
		orders:     copyMap(s.orders),
		statusLog:  append([]statusLogRow(nil), s.statusLog...),
		deliveries: copyMap(s.deliveries),
		byToken:    copyMap(s.byToken),
		samples:    append([]domain.LocationSample(nil), s.samples...),
		subs:       copyMap(s.subs),
	}
}

func (s *Store) restore(snap snapshotState) {
	s.nextSKUID, s.nextOrderID, s.nextLineID = snap.nextSKUID, snap.nextOrderID, snap.nextLineID
	s.nextDeliveryID, s.nextSampleID = snap.nextDeliveryID, snap.nextSampleID
	s.skus, s.movements, s.orders, s.statusLog = snap.skus, snap.movements, snap.orders, snap.statusLog
	s.deliveries, s.byToken, s.samples, s.subs = snap.deliveries, snap.byToken, snap.samples, snap.subs
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// cloneOrder detaches the line slices so callers cannot mutate stored state.
func cloneOrder(o domain.Order) domain.Order {
	o.Lines = append([]domain.OrderLine(nil), o.Lines...)
	for i := range o.Lines {
		o.Lines[i].Ingredients = append([]domain.LineIngredient(nil), o.Lines[i].Ingredients...)
	}
	o.Items = append([]domain.OrderLineItem(nil), o.Items...)
	return o
}

// ---- SKUs ----

type skuRepo Store

func (r *skuRepo) Create(ctx context.Context, sku *domain.SKU) error {
	s := (*Store)(r)
	s.wlock(ctx)
	defer s.wunlock(ctx)
	sku.ID = s.nextSKUID
	s.nextSKUID++
	now := time.Now().UTC()
	sku.CreatedAt, sku.UpdatedAt = now, now
	s.skus[sku.ID] = *sku
	return nil
}

func (r *skuRepo) Get(ctx context.Context, id int64) (*domain.SKU, error) {
	s := (*Store)(r)
	s.rlock(ctx)
	defer s.runlock(ctx)
	sku, ok := s.skus[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := sku
	return &cp, nil
}

// GetForUpdate is plain Get here: the transaction already holds the global
// write lock.
func (r *skuRepo) GetForUpdate(ctx context.Context, id int64) (*domain.SKU, error) {
	return r.Get(ctx, id)
}

func (r *skuRepo) UpdateBalance(ctx context.Context, id int64, balance int64) error {
	s := (*Store)(r)
	s.wlock(ctx)
	defer s.wunlock(ctx)
	sku, ok := s.skus[id]
	if !ok {
		return domain.ErrNotFound
	}
	sku.Balance = balance
	sku.UpdatedAt = time.Now().UTC()
	s.skus[id] = sku
	return nil
}

func (r *skuRepo) List(ctx context.Context, onlyActive bool) ([]domain.SKU, error) {
	s := (*Store)(r)
	s.rlock(ctx)
	defer s.runlock(ctx)
	out := make([]domain.SKU, 0, len(s.skus))
	for _, sku := range s.skus {
		if onlyActive && !sku.Active {
			continue
		}
		out = append(out, sku)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *skuRepo) Deactivate(ctx context.Context, id int64) error {
	s := (*Store)(r)
	s.wlock(ctx)
	defer s.wunlock(ctx)
	sku, ok := s.skus[id]
	if !ok {
		return domain.ErrNotFound
	}
	sku.Active = false
	sku.UpdatedAt = time.Now().UTC()
	s.skus[id] = sku
	return nil
}

// ---- Movements ----

type movementRepo Store

func (r *movementRepo) Append(ctx context.Context, m *domain.Movement) error {
	s := (*Store)(r)
	s.wlock(ctx)
	defer s.wunlock(ctx)
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.movements = append(s.movements, *m)
	return nil
}

func (r *movementRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Movement, error) {
	s := (*Store)(r)
	s.rlock(ctx)
	defer s.runlock(ctx)
	for _, m := range s.movements {
		if m.ID == id {
			cp := m
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *movementRepo) ListBySKU(ctx context.Context, skuID int64) ([]domain.Movement, error) {
	s := (*Store)(r)
	s.rlock(ctx)
	defer s.runlock(ctx)
	var out []domain.Movement
	for _, m := range s.movements {
		if m.SKUID == skuID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *movementRepo) ListByOrder(ctx context.Context, orderID int64) ([]domain.Movement, error) {
	s := (*Store)(r)
	s.rlock(ctx)
	defer s.runlock(ctx)
	var out []domain.Movement
	for _, m := range s.movements {
		if m.OrderID != nil && *m.OrderID == orderID {
			out = append(out, m)
		}
	}
	return out, nil
}

// ---- Orders ----

type orderRepo Store

func (r *orderRepo) Create(ctx context.Context, o *domain.Order) error {
	s := (*Store)(r)
	s.wlock(ctx)
	defer s.wunlock(ctx)
	for _, existing := range s.orders {
		if existing.Number == o.Number {
			return domain.ErrDuplicateNumber
		}
	}
	o.ID = s.nextOrderID
	s.nextOrderID++
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	for i := range o.Lines {
		o.Lines[i].ID = s.nextLineID
		s.nextLineID++
		o.Lines[i].OrderID = o.ID
	}
	for i := range o.Items {
		o.Items[i].ID = s.nextLineID
		s.nextLineID++
		o.Items[i].OrderID = o.ID
	}
	s.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *orderRepo) Get(ctx context.Context, id int64) (*domain.Order, error) {
	s := (*Store)(r)
	s.rlock(ctx)
	defer s.runlock(ctx)
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := cloneOrder(o)
	return &cp, nil
}

func (r *orderRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.Get(ctx, id)
}

func (r *orderRepo) Update(ctx context.Context, o *domain.Order) error {
	s := (*Store)(r)
	s.wlock(ctx)
	defer s.wunlock(ctx)
	if _, ok := s.orders[o.ID]; !ok {
		return domain.ErrNotFound
	}
	o.UpdatedAt = time.Now().UTC()
	s.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *orderRepo) ListActive(ctx context.Context, limit int) ([]domain.Order, error) {
	s := (*Store)(r)
	s.rlock(ctx)
	defer s.runlock(ctx)
	out := make([]domain.Order, 0)
	for _, o := range s.orders {
		if o.Status.Terminal() {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *orderRepo) AppendStatusLog(ctx context.Context, orderID int64, status domain.OrderStatus, changedBy, notes string) error {
	s := (*Store)(r)
	s.wlock(ctx)
	defer s.wunlock(ctx)
	s.statusLog = append(s.statusLog, statusLogRow{
		OrderID: orderID, Status: status, ChangedBy: changedBy, Notes: notes,
		ChangedAt: time.Now().UTC(),
	})
	return nil
}

func (r *orderRepo) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	s := (*Store)(r)
	s.rlock(ctx)
	defer s.runlock(ctx)
	n := 0
	for _, o := range s.orders {
		if !o.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// ---- Deliveries ----

type deliveryRepo Store

func (r *deliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	s := (*Store)(r)
	s.wlock(ctx)
	defer s.wunlock(ctx)
	d.ID = s.nextDeliveryID
	s.nextDeliveryID++
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	s.deliveries[d.ID] = *d
	s.byToken[d.Token] = d.ID
	return nil
}

func (r *deliveryRepo) GetByOrder(ctx context.Context, orderID int64) (*domain.Delivery, error) {
	s := (*Store)(r)
	s.rlock(ctx)
	defer s.runlock(ctx)
	for _, d := range s.deliveries {
		if d.OrderID == orderID {
			cp := d
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *deliveryRepo) GetByToken(ctx context.Context, token string) (*domain.Delivery, error) {
	s := (*Store)(r)
	s.rlock(ctx)
	defer s.runlock(ctx)
	id, ok := s.byToken[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	d := s.deliveries[id]
	cp := d
	return &cp, nil
}

func (r *deliveryRepo) GetByTokenForUpdate(ctx context.Context, token string) (*domain.Delivery, error) {
	return r.GetByToken(ctx, token)
}

func (r *deliveryRepo) Update(ctx context.Context, d *domain.Delivery) error {
	s := (*Store)(r)
	s.wlock(ctx)
	defer s.wunlock(ctx)
	if _, ok := s.deliveries[d.ID]; !ok {
		return domain.ErrNotFound
	}
	s.deliveries[d.ID] = *d
	return nil
}

func (r *deliveryRepo) AppendSample(ctx context.Context, sample *domain.LocationSample) error {
	s := (*Store)(r)
	s.wlock(ctx)
	defer s.wunlock(ctx)
	sample.ID = s.nextSampleID
	s.nextSampleID++
	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = time.Now().UTC()
	}
	s.samples = append(s.samples, *sample)
	return nil
}

func (r *deliveryRepo) ListSamples(ctx context.Context, deliveryID int64, limit int) ([]domain.LocationSample, error) {
	s := (*Store)(r)
	s.rlock(ctx)
	defer s.runlock(ctx)
	var out []domain.LocationSample
	for _, sm := range s.samples {
		if sm.DeliveryID == deliveryID {
			out = append(out, sm)
		}
	}
	// newest first, capped
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *deliveryRepo) ListActive(ctx context.Context, limit int) ([]domain.Delivery, error) {
	s := (*Store)(r)
	s.rlock(ctx)
	defer s.runlock(ctx)
	out := make([]domain.Delivery, 0)
	for _, d := range s.deliveries {
		if d.Status.Terminal() {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Subscriptions ----

type subscriptionRepo Store

func (r *subscriptionRepo) Save(ctx context.Context, sub *domain.PushSubscription) error {
	s := (*Store)(r)
	s.wlock(ctx)
	defer s.wunlock(ctx)
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	// same endpoint re-registered replaces the previous subscription
	for id, existing := range s.subs {
		if strings.EqualFold(existing.Endpoint, sub.Endpoint) {
			delete(s.subs, id)
		}
	}
	s.subs[sub.ID] = *sub
	return nil
}

func (r *subscriptionRepo) ListByOrder(ctx context.Context, orderID int64) ([]domain.PushSubscription, error) {
	s := (*Store)(r)
	s.rlock(ctx)
	defer s.runlock(ctx)
	var out []domain.PushSubscription
	for _, sub := range s.subs {
		if sub.OrderID != nil && *sub.OrderID == orderID {
			out = append(out, sub)
		}
	}
	sortSubs(out)
	return out, nil
}

func (r *subscriptionRepo) ListAll(ctx context.Context) ([]domain.PushSubscription, error) {
	s := (*Store)(r)
	s.rlock(ctx)
	defer s.runlock(ctx)
	out := make([]domain.PushSubscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	sortSubs(out)
	return out, nil
}

func (r *subscriptionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	s := (*Store)(r)
	s.wlock(ctx)
	defer s.wunlock(ctx)
	if _, ok := s.subs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.subs, id)
	return nil
}

func sortSubs(subs []domain.PushSubscription) {
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.Before(subs[j].CreatedAt) })
}
