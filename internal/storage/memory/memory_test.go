package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burger-house/internal/domain"
)

func TestWithTransactionRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()

	sku := &domain.SKU{Kind: domain.SKUIngredient, Name: "cheddar", Balance: 10, Active: true}
	require.NoError(t, s.SKUs().Create(ctx, sku))

	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.SKUs().UpdateBalance(ctx, sku.ID, 3); err != nil {
			return err
		}
		o := &domain.Order{Number: "PED_X", Status: domain.StatusConfirmado, CustomerName: "a", CustomerPhone: "1", DeliveryKind: domain.KindPickup}
		if err := s.Orders().Create(ctx, o); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	got, err := s.SKUs().Get(ctx, sku.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Balance, "balance write rolled back")

	active, err := s.Orders().ListActive(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, active, "order insert rolled back")
}

func TestWithTransactionCommits(t *testing.T) {
	s := New()
	ctx := context.Background()

	sku := &domain.SKU{Kind: domain.SKUIngredient, Name: "bacon", Balance: 5, Active: true}
	require.NoError(t, s.SKUs().Create(ctx, sku))

	require.NoError(t, s.WithTransaction(ctx, func(ctx context.Context) error {
		return s.SKUs().UpdateBalance(ctx, sku.ID, 2)
	}))

	got, err := s.SKUs().Get(ctx, sku.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Balance)
}

func TestNestedTransactionJoins(t *testing.T) {
	s := New()
	ctx := context.Background()

	sku := &domain.SKU{Kind: domain.SKUIngredient, Name: "pao", Balance: 8, Active: true}
	require.NoError(t, s.SKUs().Create(ctx, sku))

	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		return s.WithTransaction(ctx, func(ctx context.Context) error {
			return s.SKUs().UpdateBalance(ctx, sku.ID, 1)
		})
	})
	require.NoError(t, err)

	got, err := s.SKUs().Get(ctx, sku.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Balance)
}

func TestOrderIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()

	o := &domain.Order{
		Number: "PED_1", Status: domain.StatusConfirmado,
		CustomerName: "a", CustomerPhone: "1", DeliveryKind: domain.KindPickup,
		Lines: []domain.OrderLine{{
			Name: "X", Quantity: 1,
			Ingredients: []domain.LineIngredient{{SKUID: 1, Name: "cheddar"}},
		}},
	}
	require.NoError(t, s.Orders().Create(ctx, o))

	got, err := s.Orders().Get(ctx, o.ID)
	require.NoError(t, err)
	got.Lines[0].Ingredients[0].Name = "mutated"
	got.Status = domain.StatusCancelado

	fresh, err := s.Orders().Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "cheddar", fresh.Lines[0].Ingredients[0].Name, "returned orders are detached copies")
	assert.Equal(t, domain.StatusConfirmado, fresh.Status)
}

func TestSubscriptionSaveReplacesSameEndpoint(t *testing.T) {
	s := New()
	ctx := context.Background()
	orderA, orderB := int64(1), int64(2)

	first := &domain.PushSubscription{Endpoint: "https://push/x", OrderID: &orderA}
	require.NoError(t, s.Subscriptions().Save(ctx, first))
	second := &domain.PushSubscription{Endpoint: "https://push/x", OrderID: &orderB}
	require.NoError(t, s.Subscriptions().Save(ctx, second))

	all, err := s.Subscriptions().ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, orderB, *all[0].OrderID)
}

func TestMovementOrderingAndSampleCap(t *testing.T) {
	s := New()
	ctx := context.Background()

	d := &domain.Delivery{OrderID: 1, Token: "tok", Status: domain.DeliveryACaminho}
	require.NoError(t, s.Deliveries().Create(ctx, d))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Deliveries().AppendSample(ctx, &domain.LocationSample{
			DeliveryID: d.ID, Latitude: float64(i), Longitude: 0,
		}))
	}
	samples, err := s.Deliveries().ListSamples(ctx, d.ID, 3)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, float64(4), samples[0].Latitude, "newest first")
}

func TestOrderCreateRejectsDuplicateNumber(t *testing.T) {
	s := New()
	ctx := context.Background()

	mk := func() *domain.Order {
		return &domain.Order{
			Number: "PED_20260830_001", Status: domain.StatusConfirmado,
			CustomerName: "a", CustomerPhone: "1", DeliveryKind: domain.KindPickup,
		}
	}
	require.NoError(t, s.Orders().Create(ctx, mk()))
	assert.ErrorIs(t, s.Orders().Create(ctx, mk()), domain.ErrDuplicateNumber)
}

func TestCountCreatedSince(t *testing.T) {
	s := New()
	ctx := context.Background()

	mk := func(n string) {
		o := &domain.Order{
			Number: n, Status: domain.StatusConfirmado,
			CustomerName: "a", CustomerPhone: "1", DeliveryKind: domain.KindPickup,
			Subtotal: decimal.Zero, Total: decimal.Zero,
		}
		require.NoError(t, s.Orders().Create(ctx, o))
	}
	mk("PED_A")
	mk("PED_B")

	count, err := s.Orders().CountCreatedSince(ctx, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = s.Orders().CountCreatedSince(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, count)
}
