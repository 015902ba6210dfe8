package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSagaStateJSON(t *testing.T) {
	states := map[SagaState]string{
		StateRunning:      `"Running"`,
		StateCompensating: `"Compensating"`,
		StateCompleted:    `"Completed"`,
		StateFailed:       `"Failed"`,
		StateCompensated:  `"Compensated"`,
		StateTimedOut:     `"TimedOut"`,
	}

	for state, encoded := range states {
		marshaled, err := json.Marshal(state)
		require.NoError(t, err)
		assert.Equal(t, encoded, string(marshaled))

		var decoded SagaState
		require.NoError(t, json.Unmarshal(marshaled, &decoded))
		assert.Equal(t, state, decoded)
	}
}

func TestSagaStateJSONRejectsUnknown(t *testing.T) {
	var state SagaState
	err := json.Unmarshal([]byte(`"Paused"`), &state)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`3`), &state)
	assert.Error(t, err, "states serialize as strings, not ints")
}

func TestParseSagaStateRoundTrip(t *testing.T) {
	for _, state := range []SagaState{
		StateRunning, StateCompensating, StateCompleted,
		StateFailed, StateCompensated, StateTimedOut,
	} {
		parsed, err := ParseSagaState(state.String())
		require.NoError(t, err)
		assert.Equal(t, state, parsed)
	}

	_, err := ParseSagaState("bogus")
	assert.Error(t, err)
}

func TestSagaStatePredicates(t *testing.T) {
	assert.True(t, StateRunning.Active())
	assert.True(t, StateCompensating.Active())
	assert.False(t, StateCompleted.Active())
	assert.False(t, StateFailed.Active())

	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateCompensated.Terminal())
	assert.True(t, StateTimedOut.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.False(t, StateCompensating.Terminal())
}

func TestOrderSagaDataJSONRoundTrip(t *testing.T) {
	data := newOrderData("corr-json")
	data.Amount = 12.34
	data.SetState(StateCompensating)
	data.SetCurrentStep(2)
	data.SetVersion(7)
	data.GetMetadata()["region"] = "eu-west-1"
	data.ProcessPaymentExecuted = true

	encoded, err := json.Marshal(data)
	require.NoError(t, err)

	var decoded OrderSagaData
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	assert.Equal(t, data.GetSagaID(), decoded.GetSagaID())
	assert.Equal(t, "corr-json", decoded.GetCorrelationID())
	assert.Equal(t, StateCompensating, decoded.GetState())
	assert.Equal(t, 2, decoded.GetCurrentStep())
	assert.Equal(t, 7, decoded.GetVersion())
	assert.Equal(t, map[string]string{"region": "eu-west-1"}, decoded.GetMetadata())
	assert.Equal(t, 12.34, decoded.Amount)
	assert.True(t, decoded.ProcessPaymentExecuted)
}

func TestBaseSagaDataFresh(t *testing.T) {
	a := NewBaseSagaData("corr")
	b := NewBaseSagaData("corr")

	assert.NotEmpty(t, a.GetSagaID())
	assert.NotEqual(t, a.GetSagaID(), b.GetSagaID(), "each saga gets its own ID")
	assert.Equal(t, StateRunning, a.GetState())
	assert.Zero(t, a.GetCurrentStep())
	assert.Zero(t, a.GetVersion())
	assert.NotNil(t, a.GetMetadata())
}

func TestZeroValueContainerMetadata(t *testing.T) {
	var data OrderSagaData
	data.GetMetadata()["k"] = "v"
	assert.Equal(t, "v", data.GetMetadata()["k"])
}

func TestCompensationErrorFormatting(t *testing.T) {
	cause := errors.New("refund rejected")
	single := &CompensationError{Failures: []*CompensationFailure{
		{Step: "ProcessPayment", Err: cause},
	}}
	assert.Equal(t, `compensation of step "ProcessPayment" failed: refund rejected`, single.Error())
	assert.ErrorIs(t, single, cause)

	multi := &CompensationError{Failures: []*CompensationFailure{
		{Step: "ProcessPayment", Err: cause},
		{Step: "ReserveInventory", Err: errors.New("restock failed")},
	}}
	assert.Contains(t, multi.Error(), "2 compensation failures:")
	assert.Contains(t, multi.Error(), "ProcessPayment")
	assert.Contains(t, multi.Error(), "ReserveInventory")
	assert.Equal(t, []string{"ProcessPayment", "ReserveInventory"}, multi.Steps())
}

func TestStepFuncStringer(t *testing.T) {
	step := NewStepWithNoOpCompensate("ShipOrder",
		func(ctx context.Context, d *OrderSagaData) error { return nil })
	assert.Equal(t, "StepFunc(ShipOrder)", step.String())
	assert.Equal(t, "ShipOrder", step.Name())
}
