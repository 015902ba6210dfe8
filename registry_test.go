package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewRegistry[*OrderSagaData]()

	order := newOrderOrchestrator(t, nil)
	require.NoError(t, registry.Register(order))

	refund := NewOrchestrator[*OrderSagaData]("RefundSaga")
	refund.AddStep(NewStepWithNoOpCompensate("IssueRefund",
		func(ctx context.Context, d *OrderSagaData) error { return nil }))
	require.NoError(t, registry.Register(refund))

	got, err := registry.Get("OrderSaga")
	require.NoError(t, err)
	assert.Same(t, order, got)

	assert.Equal(t, []string{"OrderSaga", "RefundSaga"}, registry.Names())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry[*OrderSagaData]()
	require.NoError(t, registry.Register(newOrderOrchestrator(t, nil)))

	err := registry.Register(newOrderOrchestrator(t, nil))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryGetUnknown(t *testing.T) {
	registry := NewRegistry[*OrderSagaData]()
	_, err := registry.Get("Missing")
	assert.ErrorIs(t, err, ErrOrchestratorNotFound)
}
