package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusGraph(t *testing.T) {
	allowed := map[[2]OrderStatus]bool{
		{StatusConfirmado, StatusPreparando}: true,
		{StatusConfirmado, StatusCancelado}:  true,
		{StatusPreparando, StatusPronto}:     true,
		{StatusPreparando, StatusCancelado}:  true,
		{StatusPronto, StatusEmEntrega}:      true,
		{StatusPronto, StatusCancelado}:      true,
		{StatusEmEntrega, StatusEntregue}:    true,
		{StatusEmEntrega, StatusCancelado}:   true,
	}
	all := []OrderStatus{StatusConfirmado, StatusPreparando, StatusPronto, StatusEmEntrega, StatusEntregue, StatusCancelado}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]OrderStatus{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, StatusEntregue.Terminal())
	assert.True(t, StatusCancelado.Terminal())
	assert.False(t, StatusPronto.Terminal())
	assert.False(t, OrderStatus("EXTRAVIADO").Valid())
}

func TestDeliveryStatusGraph(t *testing.T) {
	assert.True(t, DeliveryAguardando.CanTransitionTo(DeliveryACaminho))
	assert.False(t, DeliveryAguardando.CanTransitionTo(DeliveryChegando))
	assert.True(t, DeliveryACaminho.CanTransitionTo(DeliveryChegando))
	assert.True(t, DeliveryACaminho.CanTransitionTo(DeliveryEntregue))
	assert.True(t, DeliveryChegando.CanTransitionTo(DeliveryEntregue))
	assert.False(t, DeliveryEntregue.CanTransitionTo(DeliveryACaminho))
	assert.True(t, DeliveryCancelada.Terminal())
}

func TestEventForStatus(t *testing.T) {
	assert.Equal(t, EventOrderReady, EventForStatus(StatusPronto))
	assert.Equal(t, EventOrderCancelled, EventForStatus(StatusCancelado))
	assert.Empty(t, EventForStatus("EXTRAVIADO"))
}

func TestActorPrivileged(t *testing.T) {
	assert.True(t, Actor{Role: RoleGerente}.Privileged())
	assert.True(t, Actor{Role: RoleAdmin}.Privileged())
	assert.False(t, Actor{Role: RoleCliente}.Privileged())
	assert.False(t, Actor{Role: RoleEntrega}.Privileged())
}
