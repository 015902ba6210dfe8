package relay

import (
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tidwall/btree"
	"gonum.org/v1/gonum/stat"
)

// SagaRecorder receives saga and step outcomes. The engine never reports
// outcomes itself; the surrounding application (or a SagaRunner) feeds a
// recorder from SagaResults.
type SagaRecorder interface {
	// RecordSagaStarted counts a new saga execution of the given type.
	RecordSagaStarted(sagaType string)

	// RecordSagaCompleted counts a successful saga with its duration.
	RecordSagaCompleted(sagaType string, duration time.Duration)

	// RecordSagaFailed counts a failed saga with the failing step name and
	// duration.
	RecordSagaFailed(sagaType string, step string, duration time.Duration)

	// RecordSagaCompensated counts a compensated saga with the number of
	// steps compensated and the duration.
	RecordSagaCompensated(sagaType string, compensatedSteps int, duration time.Duration)

	// RecordSagaTimedOut counts a saga the caller declared timed out,
	// with the state it was in at that moment.
	RecordSagaTimedOut(sagaType string, lastState SagaState)

	// RecordStepExecuted counts one step execution with its duration and
	// success flag.
	RecordStepExecuted(sagaType string, step string, duration time.Duration, success bool)
}

// SagaMetricsSnapshot is a point-in-time aggregate for one saga type.
type SagaMetricsSnapshot struct {
	SagaType    string
	Started     int64
	Completed   int64
	Failed      int64
	Compensated int64
	TimedOut    int64

	// SuccessRate is completed / (completed + failed) * 100, or 0 when no
	// terminal outcomes have been recorded.
	SuccessRate float64

	// FailuresByStep is a histogram of failed-saga counts keyed by the
	// failing step name.
	FailuresByStep map[string]int64

	// Duration statistics over completed sagas, in milliseconds.
	// Percentiles are nearest-rank.
	AverageDurationMs float64
	P50Ms             float64
	P95Ms             float64
	P99Ms             float64

	// Steps holds per-step aggregates, ordered by step name.
	Steps []StepMetricsSnapshot
}

// StepMetricsSnapshot is a point-in-time aggregate for one step of a saga
// type.
type StepMetricsSnapshot struct {
	Step              string
	TotalExecutions   int64
	Successes         int64
	Failures          int64
	SuccessRate       float64
	AverageDurationMs float64
}

type stepAggregate struct {
	executions int64
	successes  int64
	failures   int64
	totalMs    float64
}

type sagaTypeMetrics struct {
	mu sync.Mutex

	started     int64
	completed   int64
	failed      int64
	compensated int64
	timedOut    int64

	failuresByStep     map[string]int64
	completedDurations []float64 // milliseconds
	steps              *btree.Map[string, *stepAggregate]
}

func newSagaTypeMetrics() *sagaTypeMetrics {
	return &sagaTypeMetrics{
		failuresByStep: make(map[string]int64),
		steps:          btree.NewMap[string, *stepAggregate](8),
	}
}

// MetricsCollector is a thread-safe, in-process SagaRecorder that
// aggregates counters, success rates, and duration percentiles per saga
// type. It is an explicitly constructed collaborator: create one per
// application (or per test) and Reset it for isolation.
type MetricsCollector struct {
	types *xsync.MapOf[string, *sagaTypeMetrics]
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		types: xsync.NewMapOf[string, *sagaTypeMetrics](),
	}
}

func (c *MetricsCollector) metricsFor(sagaType string) *sagaTypeMetrics {
	m, _ := c.types.LoadOrCompute(sagaType, newSagaTypeMetrics)
	return m
}

// RecordSagaStarted implements SagaRecorder.
func (c *MetricsCollector) RecordSagaStarted(sagaType string) {
	m := c.metricsFor(sagaType)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

// RecordSagaCompleted implements SagaRecorder.
func (c *MetricsCollector) RecordSagaCompleted(sagaType string, duration time.Duration) {
	m := c.metricsFor(sagaType)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed++
	m.completedDurations = append(m.completedDurations, durationMs(duration))
}

// RecordSagaFailed implements SagaRecorder.
func (c *MetricsCollector) RecordSagaFailed(sagaType string, step string, duration time.Duration) {
	m := c.metricsFor(sagaType)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
	m.failuresByStep[step]++
}

// RecordSagaCompensated implements SagaRecorder.
func (c *MetricsCollector) RecordSagaCompensated(sagaType string, compensatedSteps int, duration time.Duration) {
	m := c.metricsFor(sagaType)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compensated++
}

// RecordSagaTimedOut implements SagaRecorder.
func (c *MetricsCollector) RecordSagaTimedOut(sagaType string, lastState SagaState) {
	m := c.metricsFor(sagaType)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timedOut++
}

// RecordStepExecuted implements SagaRecorder.
func (c *MetricsCollector) RecordStepExecuted(sagaType string, step string, duration time.Duration, success bool) {
	m := c.metricsFor(sagaType)
	m.mu.Lock()
	defer m.mu.Unlock()

	agg, ok := m.steps.Get(step)
	if !ok {
		agg = &stepAggregate{}
		m.steps.Set(step, agg)
	}
	agg.executions++
	if success {
		agg.successes++
	} else {
		agg.failures++
	}
	agg.totalMs += durationMs(duration)
}

// GetMetrics returns a snapshot for the given saga type. Unknown saga types
// return a zeroed snapshot.
func (c *MetricsCollector) GetMetrics(sagaType string) *SagaMetricsSnapshot {
	m, ok := c.types.Load(sagaType)
	if !ok {
		return &SagaMetricsSnapshot{
			SagaType:       sagaType,
			FailuresByStep: make(map[string]int64),
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := &SagaMetricsSnapshot{
		SagaType:       sagaType,
		Started:        m.started,
		Completed:      m.completed,
		Failed:         m.failed,
		Compensated:    m.compensated,
		TimedOut:       m.timedOut,
		SuccessRate:    successRate(m.completed, m.failed),
		FailuresByStep: make(map[string]int64, len(m.failuresByStep)),
	}
	for step, count := range m.failuresByStep {
		snapshot.FailuresByStep[step] = count
	}

	if len(m.completedDurations) > 0 {
		sorted := make([]float64, len(m.completedDurations))
		copy(sorted, m.completedDurations)
		sort.Float64s(sorted)

		snapshot.AverageDurationMs = stat.Mean(sorted, nil)
		snapshot.P50Ms = stat.Quantile(0.50, stat.Empirical, sorted, nil)
		snapshot.P95Ms = stat.Quantile(0.95, stat.Empirical, sorted, nil)
		snapshot.P99Ms = stat.Quantile(0.99, stat.Empirical, sorted, nil)
	}

	snapshot.Steps = make([]StepMetricsSnapshot, 0, m.steps.Len())
	m.steps.Scan(func(step string, agg *stepAggregate) bool {
		stepSnapshot := StepMetricsSnapshot{
			Step:            step,
			TotalExecutions: agg.executions,
			Successes:       agg.successes,
			Failures:        agg.failures,
			SuccessRate:     successRate(agg.successes, agg.failures),
		}
		if agg.executions > 0 {
			stepSnapshot.AverageDurationMs = agg.totalMs / float64(agg.executions)
		}
		snapshot.Steps = append(snapshot.Steps, stepSnapshot)
		return true
	})

	return snapshot
}

// GetAllMetrics returns a snapshot for every tracked saga type, keyed by
// type name.
func (c *MetricsCollector) GetAllMetrics() map[string]*SagaMetricsSnapshot {
	snapshots := make(map[string]*SagaMetricsSnapshot)
	c.types.Range(func(sagaType string, _ *sagaTypeMetrics) bool {
		snapshots[sagaType] = c.GetMetrics(sagaType)
		return true
	})
	return snapshots
}

// Reset clears all recorded state. Intended for test isolation.
func (c *MetricsCollector) Reset() {
	c.types.Clear()
}

func successRate(successes, failures int64) float64 {
	total := successes + failures
	if total == 0 {
		return 0
	}
	return float64(successes) / float64(total) * 100
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
