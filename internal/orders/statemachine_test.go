package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burger-house/internal/domain"
)

func createOrder(t *testing.T, f *fixture, kind domain.DeliveryKind) *domain.Order {
	t.Helper()
	cart := domain.Cart{
		DeliveryKind: kind,
		Burgers: []domain.CartBurger{
			{Name: "X-Bacon", Quantity: 1, IngredientIDs: []int64{f.cheddar, f.bacon}},
		},
	}
	cust := domain.Customer{Name: "Ana", Phone: "11999990000", Address: "Rua das Flores, 10"}
	o, err := f.builder.CreateOrder(context.Background(), cart, cust, domain.Actor{ID: "ana", Role: domain.RoleCliente})
	require.NoError(t, err)
	return o
}

func TestTransitionHappyPath(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	o := createOrder(t, f, domain.KindDelivery)
	kitchen := domain.Actor{ID: "cozinha-1", Role: domain.RoleCozinha}

	for _, target := range []domain.OrderStatus{
		domain.StatusPreparando, domain.StatusPronto, domain.StatusEmEntrega, domain.StatusEntregue,
	} {
		got, err := f.fsm.Transition(ctx, o.ID, target, kitchen, "")
		require.NoError(t, err)
		assert.Equal(t, target, got.Status)
	}

	// creation + four transitions, one event each
	assert.Len(t, f.events.events, 5)
}

func TestTransitionRejectsSkippingStates(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	o := createOrder(t, f, domain.KindPickup)

	_, err := f.fsm.Transition(ctx, o.ID, domain.StatusEntregue, domain.Actor{ID: "x", Role: domain.RoleCozinha}, "")
	var ite *domain.IllegalTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, string(domain.StatusConfirmado), ite.From)

	got, err := f.store.Orders().Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmado, got.Status)
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, false)
	o := createOrder(t, f, domain.KindPickup)

	_, err := f.fsm.Transition(context.Background(), o.ID, "EXTRAVIADO", domain.Actor{ID: "x"}, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTransitionUnknownOrder(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.fsm.Transition(context.Background(), 404, domain.StatusPreparando, domain.Actor{ID: "x"}, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeliveryOrderCannotSkipEmEntrega(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	o := createOrder(t, f, domain.KindDelivery)
	kitchen := domain.Actor{ID: "cozinha-1", Role: domain.RoleCozinha}

	for _, target := range []domain.OrderStatus{domain.StatusPreparando, domain.StatusPronto} {
		_, err := f.fsm.Transition(ctx, o.ID, target, kitchen, "")
		require.NoError(t, err)
	}

	_, err := f.fsm.Transition(ctx, o.ID, domain.StatusEntregue, kitchen, "")
	var ite *domain.IllegalTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, string(domain.StatusPronto), ite.From)
	assert.Equal(t, string(domain.StatusEntregue), ite.To)

	got, err := f.store.Orders().Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPronto, got.Status)
}

func TestPickupOrderCompletesFromPronto(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	o := createOrder(t, f, domain.KindPickup)
	kitchen := domain.Actor{ID: "cozinha-1", Role: domain.RoleCozinha}

	for _, target := range []domain.OrderStatus{domain.StatusPreparando, domain.StatusPronto} {
		_, err := f.fsm.Transition(ctx, o.ID, target, kitchen, "")
		require.NoError(t, err)
	}

	got, err := f.fsm.Transition(ctx, o.ID, domain.StatusEntregue, kitchen, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEntregue, got.Status)
}

func TestCancelRestoresStockExactlyOnce(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	o := createOrder(t, f, domain.KindPickup)
	gerente := domain.Actor{ID: "gerente-1", Role: domain.RoleGerente}

	// creation consumed one cheddar and one bacon
	cheddar, err := f.store.SKUs().Get(ctx, f.cheddar)
	require.NoError(t, err)
	require.Equal(t, int64(9), cheddar.Balance)

	got, err := f.fsm.Transition(ctx, o.ID, domain.StatusCancelado, gerente, "cliente desistiu")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelado, got.Status)
	assert.Equal(t, "cliente desistiu", got.CancellationReason)
	assert.NotNil(t, got.CancelledAt)

	cheddar, err = f.store.SKUs().Get(ctx, f.cheddar)
	require.NoError(t, err)
	assert.Equal(t, int64(10), cheddar.Balance)

	eventsBefore := len(f.events.events)

	// repeating the cancellation is a no-op: no double credit, no new event
	again, err := f.fsm.Transition(ctx, o.ID, domain.StatusCancelado, gerente, "de novo")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelado, again.Status)
	assert.Equal(t, "cliente desistiu", again.CancellationReason)

	cheddar, err = f.store.SKUs().Get(ctx, f.cheddar)
	require.NoError(t, err)
	assert.Equal(t, int64(10), cheddar.Balance)
	assert.Len(t, f.events.events, eventsBefore)
}

func TestCancelFromTerminalDeliveredRejected(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	o := createOrder(t, f, domain.KindPickup)
	kitchen := domain.Actor{ID: "cozinha-1", Role: domain.RoleCozinha}

	for _, target := range []domain.OrderStatus{domain.StatusPreparando, domain.StatusPronto, domain.StatusEntregue} {
		_, err := f.fsm.Transition(ctx, o.ID, target, kitchen, "")
		require.NoError(t, err)
	}

	_, err := f.fsm.Transition(ctx, o.ID, domain.StatusCancelado, domain.Actor{ID: "g", Role: domain.RoleGerente}, "tarde demais")
	var ite *domain.IllegalTransitionError
	assert.ErrorAs(t, err, &ite)
}

func TestCancelInTransitRequiresPrivilege(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	o := createOrder(t, f, domain.KindDelivery)
	kitchen := domain.Actor{ID: "cozinha-1", Role: domain.RoleCozinha}

	for _, target := range []domain.OrderStatus{domain.StatusPreparando, domain.StatusPronto, domain.StatusEmEntrega} {
		_, err := f.fsm.Transition(ctx, o.ID, target, kitchen, "")
		require.NoError(t, err)
	}

	_, err := f.fsm.Transition(ctx, o.ID, domain.StatusCancelado, domain.Actor{ID: "ana", Role: domain.RoleCliente}, "mudei de ideia")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.fsm.Transition(ctx, o.ID, domain.StatusCancelado, domain.Actor{ID: "g", Role: domain.RoleAdmin}, "endereço errado")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelado, got.Status)
}

func TestPaymentWebhook(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	gateway := domain.Actor{ID: "gateway", Role: domain.RoleGateway}

	paid := createOrder(t, f, domain.KindPickup)
	got, err := f.fsm.SetPaymentStatus(ctx, paid.ID, true, gateway)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPago, got.PaymentStatus)
	assert.Equal(t, domain.StatusConfirmado, got.Status)

	refused := createOrder(t, f, domain.KindPickup)
	got, err = f.fsm.SetPaymentStatus(ctx, refused.ID, false, gateway)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelado, got.Status)
	assert.Equal(t, "pagamento recusado", got.CancellationReason)

	// the refused order's stock came back
	cheddar, err := f.store.SKUs().Get(ctx, f.cheddar)
	require.NoError(t, err)
	assert.Equal(t, int64(9), cheddar.Balance, "only the paid order still holds stock")
}
