package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burger-house/internal/domain"
	"burger-house/internal/storage/memory"
)

// fakeTransport records sends and fails configured endpoints.
type fakeTransport struct {
	mu    sync.Mutex
	sent  map[string][]domain.PushMessage
	fails map[string]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(map[string][]domain.PushMessage), fails: make(map[string]error)}
}

func (f *fakeTransport) Send(_ context.Context, endpoint string, msg domain.PushMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fails[endpoint]; ok {
		return err
	}
	f.sent[endpoint] = append(f.sent[endpoint], msg)
	return nil
}

func (f *fakeTransport) sentTo(endpoint string) []domain.PushMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[endpoint]
}

func subscribe(t *testing.T, store *memory.Store, endpoint string, orderID *int64) *domain.PushSubscription {
	t.Helper()
	sub := &domain.PushSubscription{Endpoint: endpoint, OrderID: orderID}
	require.NoError(t, store.Subscriptions().Save(context.Background(), sub))
	return sub
}

func ptr(v int64) *int64 { return &v }

func change(orderID int64, status domain.OrderStatus) domain.StatusChange {
	return domain.StatusChange{
		OrderID: orderID, OrderNumber: "PED_20260830_007",
		OldStatus: domain.StatusConfirmado, NewStatus: status,
		ChangedBy: "cozinha-1", Timestamp: time.Now().UTC(),
	}
}

func TestDispatchTargetsOrderSubscriptions(t *testing.T) {
	store := memory.New()
	tr := newFakeTransport()
	d := NewDispatcher(store.Subscriptions(), tr)

	subscribe(t, store, "https://push/ana", ptr(7))
	subscribe(t, store, "https://push/outro", ptr(8))

	require.NoError(t, d.Dispatch(context.Background(), change(7, domain.StatusPronto)))

	require.Len(t, tr.sentTo("https://push/ana"), 1)
	assert.Empty(t, tr.sentTo("https://push/outro"))
	msg := tr.sentTo("https://push/ana")[0]
	assert.Contains(t, msg.Body, "pronto")
	assert.Equal(t, "PED_20260830_007", msg.Tag)
}

func TestDispatchBroadcastFallback(t *testing.T) {
	store := memory.New()
	tr := newFakeTransport()
	d := NewDispatcher(store.Subscriptions(), tr)

	// no subscription bound to order 7, so everyone gets it
	subscribe(t, store, "https://push/painel", nil)
	subscribe(t, store, "https://push/gerente", nil)

	require.NoError(t, d.Dispatch(context.Background(), change(7, domain.StatusEntregue)))

	assert.Len(t, tr.sentTo("https://push/painel"), 1)
	assert.Len(t, tr.sentTo("https://push/gerente"), 1)
}

func TestDispatchNoSubscribersIsNoop(t *testing.T) {
	store := memory.New()
	tr := newFakeTransport()
	d := NewDispatcher(store.Subscriptions(), tr)

	assert.NoError(t, d.Dispatch(context.Background(), change(7, domain.StatusPronto)))
	assert.Empty(t, tr.sent)
}

func TestDispatchPrunesGoneSubscriptions(t *testing.T) {
	store := memory.New()
	tr := newFakeTransport()
	d := NewDispatcher(store.Subscriptions(), tr)

	gone := subscribe(t, store, "https://push/morto", ptr(7))
	alive := subscribe(t, store, "https://push/vivo", ptr(7))
	tr.fails["https://push/morto"] = ErrSubscriptionGone

	require.NoError(t, d.Dispatch(context.Background(), change(7, domain.StatusPronto)))

	assert.Len(t, tr.sentTo("https://push/vivo"), 1)
	left, err := store.Subscriptions().ListByOrder(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, alive.ID, left[0].ID)
	assert.NotEqual(t, gone.ID, left[0].ID)
}

func TestDispatchFailedSendDoesNotBlockOthers(t *testing.T) {
	store := memory.New()
	tr := newFakeTransport()
	d := NewDispatcher(store.Subscriptions(), tr)

	subscribe(t, store, "https://push/quebrado", ptr(7))
	subscribe(t, store, "https://push/ok", ptr(7))
	tr.fails["https://push/quebrado"] = assert.AnError

	require.NoError(t, d.Dispatch(context.Background(), change(7, domain.StatusCancelado)))

	assert.Len(t, tr.sentTo("https://push/ok"), 1)
	// transient failures keep the subscription
	left, err := store.Subscriptions().ListByOrder(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestRenderMessages(t *testing.T) {
	cases := []struct {
		status domain.OrderStatus
		want   string
	}{
		{domain.StatusConfirmado, "confirmado"},
		{domain.StatusPreparando, "preparado"},
		{domain.StatusPronto, "pronto"},
		{domain.StatusEmEntrega, "saiu para entrega"},
		{domain.StatusEntregue, "Bom apetite"},
		{domain.StatusCancelado, "cancelado"},
	}
	for _, tc := range cases {
		msg := Render(change(7, tc.status))
		assert.Contains(t, msg.Body, tc.want, "status %s", tc.status)
		assert.Equal(t, "Burger House", msg.Title)
		assert.Equal(t, "/pedidos/7", msg.URL)
	}
}

func TestRenderCancelledWithReason(t *testing.T) {
	ev := change(7, domain.StatusCancelado)
	ev.Reason = "pagamento recusado"
	msg := Render(ev)
	assert.Contains(t, msg.Body, "pagamento recusado")
}
