package relay

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder, err := NewPrometheusRecorder("relay", registry)
	require.NoError(t, err)

	recorder.RecordSagaStarted("OrderSaga")
	recorder.RecordSagaStarted("OrderSaga")
	recorder.RecordSagaCompleted("OrderSaga", 50*time.Millisecond)
	recorder.RecordSagaFailed("OrderSaga", "ProcessPayment", 20*time.Millisecond)
	recorder.RecordSagaCompensated("OrderSaga", 1, 20*time.Millisecond)
	recorder.RecordSagaTimedOut("OrderSaga", StateRunning)
	recorder.RecordStepExecuted("OrderSaga", "ReserveInventory", 10*time.Millisecond, true)
	recorder.RecordStepExecuted("OrderSaga", "ProcessPayment", 5*time.Millisecond, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(recorder.started.WithLabelValues("OrderSaga")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.completed.WithLabelValues("OrderSaga")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.failed.WithLabelValues("OrderSaga", "ProcessPayment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.compensated.WithLabelValues("OrderSaga")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.timedOut.WithLabelValues("OrderSaga", "Running")))
}

func TestPrometheusRecorderRejectsDoubleRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewPrometheusRecorder("relay", registry)
	require.NoError(t, err)

	_, err = NewPrometheusRecorder("relay", registry)
	assert.Error(t, err, "the same namespace cannot be registered twice")
}

func TestMultiRecorderFansOut(t *testing.T) {
	first := NewMetricsCollector()
	second := NewMetricsCollector()
	multi := NewMultiRecorder(first, second)

	multi.RecordSagaStarted("OrderSaga")
	multi.RecordSagaCompleted("OrderSaga", 30*time.Millisecond)
	multi.RecordSagaFailed("OrderSaga", "ShipOrder", 10*time.Millisecond)
	multi.RecordSagaCompensated("OrderSaga", 2, 10*time.Millisecond)
	multi.RecordSagaTimedOut("OrderSaga", StateCompensating)
	multi.RecordStepExecuted("OrderSaga", "ShipOrder", 5*time.Millisecond, false)

	for _, collector := range []*MetricsCollector{first, second} {
		snapshot := collector.GetMetrics("OrderSaga")
		assert.Equal(t, int64(1), snapshot.Started)
		assert.Equal(t, int64(1), snapshot.Completed)
		assert.Equal(t, int64(1), snapshot.Failed)
		assert.Equal(t, int64(1), snapshot.Compensated)
		assert.Equal(t, int64(1), snapshot.TimedOut)
		require.Len(t, snapshot.Steps, 1)
		assert.Equal(t, int64(1), snapshot.Steps[0].Failures)
	}
}
