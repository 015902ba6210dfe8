package relay

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder is a SagaRecorder that exports the saga outcome stream
// as labeled Prometheus counters and histograms. It complements the
// in-process MetricsCollector (combine both with NewMultiRecorder) for
// deployments scraped by Prometheus.
type PrometheusRecorder struct {
	started      *prometheus.CounterVec
	completed    *prometheus.CounterVec
	failed       *prometheus.CounterVec
	compensated  *prometheus.CounterVec
	timedOut     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	stepDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder with all metrics registered
// under the given namespace. If registry is nil, the default registerer is
// used.
func NewPrometheusRecorder(namespace string, registry prometheus.Registerer) (*PrometheusRecorder, error) {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	r := &PrometheusRecorder{
		started: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "saga_started_total",
				Help:      "Total number of saga executions started",
			},
			[]string{"saga_type"},
		),
		completed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "saga_completed_total",
				Help:      "Total number of sagas completed successfully",
			},
			[]string{"saga_type"},
		),
		failed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "saga_failed_total",
				Help:      "Total number of sagas that failed, by failing step",
			},
			[]string{"saga_type", "step"},
		),
		compensated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "saga_compensated_total",
				Help:      "Total number of sagas rolled back by compensation",
			},
			[]string{"saga_type"},
		),
		timedOut: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "saga_timed_out_total",
				Help:      "Total number of sagas declared timed out, by last state",
			},
			[]string{"saga_type", "last_state"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "saga_duration_seconds",
				Help:      "Duration of saga executions in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"saga_type", "outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "saga_step_duration_seconds",
				Help:      "Duration of saga step executions in seconds",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"saga_type", "step", "outcome"},
		),
	}

	collectors := []prometheus.Collector{
		r.started, r.completed, r.failed, r.compensated, r.timedOut,
		r.duration, r.stepDuration,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RecordSagaStarted implements SagaRecorder.
func (r *PrometheusRecorder) RecordSagaStarted(sagaType string) {
	r.started.WithLabelValues(sagaType).Inc()
}

// RecordSagaCompleted implements SagaRecorder.
func (r *PrometheusRecorder) RecordSagaCompleted(sagaType string, duration time.Duration) {
	r.completed.WithLabelValues(sagaType).Inc()
	r.duration.WithLabelValues(sagaType, "completed").Observe(duration.Seconds())
}

// RecordSagaFailed implements SagaRecorder.
func (r *PrometheusRecorder) RecordSagaFailed(sagaType string, step string, duration time.Duration) {
	r.failed.WithLabelValues(sagaType, step).Inc()
	r.duration.WithLabelValues(sagaType, "failed").Observe(duration.Seconds())
}

// RecordSagaCompensated implements SagaRecorder.
func (r *PrometheusRecorder) RecordSagaCompensated(sagaType string, compensatedSteps int, duration time.Duration) {
	r.compensated.WithLabelValues(sagaType).Inc()
}

// RecordSagaTimedOut implements SagaRecorder.
func (r *PrometheusRecorder) RecordSagaTimedOut(sagaType string, lastState SagaState) {
	r.timedOut.WithLabelValues(sagaType, lastState.String()).Inc()
}

// RecordStepExecuted implements SagaRecorder.
func (r *PrometheusRecorder) RecordStepExecuted(sagaType string, step string, duration time.Duration, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.stepDuration.WithLabelValues(sagaType, step, outcome).Observe(duration.Seconds())
}

// MultiRecorder fans every recording out to each wrapped recorder.
type MultiRecorder []SagaRecorder

// NewMultiRecorder combines several recorders into one.
func NewMultiRecorder(recorders ...SagaRecorder) MultiRecorder {
	return MultiRecorder(recorders)
}

// RecordSagaStarted implements SagaRecorder.
func (m MultiRecorder) RecordSagaStarted(sagaType string) {
	for _, r := range m {
		r.RecordSagaStarted(sagaType)
	}
}

// RecordSagaCompleted implements SagaRecorder.
func (m MultiRecorder) RecordSagaCompleted(sagaType string, duration time.Duration) {
	for _, r := range m {
		r.RecordSagaCompleted(sagaType, duration)
	}
}

// RecordSagaFailed implements SagaRecorder.
func (m MultiRecorder) RecordSagaFailed(sagaType string, step string, duration time.Duration) {
	for _, r := range m {
		r.RecordSagaFailed(sagaType, step, duration)
	}
}

// RecordSagaCompensated implements SagaRecorder.
func (m MultiRecorder) RecordSagaCompensated(sagaType string, compensatedSteps int, duration time.Duration) {
	for _, r := range m {
		r.RecordSagaCompensated(sagaType, compensatedSteps, duration)
	}
}

// RecordSagaTimedOut implements SagaRecorder.
func (m MultiRecorder) RecordSagaTimedOut(sagaType string, lastState SagaState) {
	for _, r := range m {
		r.RecordSagaTimedOut(sagaType, lastState)
	}
}

// RecordStepExecuted implements SagaRecorder.
func (m MultiRecorder) RecordStepExecuted(sagaType string, step string, duration time.Duration, success bool) {
	for _, r := range m {
		r.RecordStepExecuted(sagaType, step, duration, success)
	}
}
