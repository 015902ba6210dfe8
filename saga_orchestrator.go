package relay

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Option configures an Orchestrator or a SagaRunner.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	recorder SagaRecorder
}

func newOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger attaches a structured logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder attaches a SagaRecorder that a SagaRunner feeds with saga
// outcomes. Orchestrators ignore this option: the engine itself never
// reports metrics.
func WithRecorder(recorder SagaRecorder) Option {
	return func(o *options) {
		o.recorder = recorder
	}
}

// Orchestrator drives an ordered list of steps over a saga data container.
//
// The step list is appended via AddStep and becomes immutable once Execute
// has run. The orchestrator holds no per-execution mutable state, so a
// single instance may be reused concurrently across independent SagaData
// instances; within one execution, steps run strictly sequentially.
type Orchestrator[T SagaData] struct {
	name      string
	steps     []SagaStep[T]
	stepNames map[string]struct{}
	logger    *zap.Logger
	sealed    atomic.Bool
}

// NewOrchestrator creates an orchestrator for the named saga type with an
// empty step list.
func NewOrchestrator[T SagaData](name string, opts ...Option) *Orchestrator[T] {
	o := newOptions(opts)
	return &Orchestrator[T]{
		name:      name,
		stepNames: make(map[string]struct{}),
		logger:    o.logger,
	}
}

// AddStep appends a step to the execution order and returns the
// orchestrator for chaining. It panics if called after the first execution
// or if the step's name duplicates one already registered: both are
// construction-time programming errors.
func (o *Orchestrator[T]) AddStep(step SagaStep[T]) *Orchestrator[T] {
	if o.sealed.Load() {
		panic(fmt.Sprintf("saga %q: %v", o.name, ErrOrchestratorSealed))
	}
	if _, exists := o.stepNames[step.Name()]; exists {
		panic(fmt.Sprintf("saga %q: step %q: %v", o.name, step.Name(), ErrDuplicateStep))
	}
	o.stepNames[step.Name()] = struct{}{}
	o.steps = append(o.steps, step)
	return o
}

// Name returns the saga type name.
func (o *Orchestrator[T]) Name() string {
	return o.name
}

// StepNames returns the step names in execution order.
func (o *Orchestrator[T]) StepNames() []string {
	names := make([]string, len(o.steps))
	for i, step := range o.steps {
		names[i] = step.Name()
	}
	return names
}

// Execute runs the saga from the container's cursor.
//
// Steps at or after data.GetCurrentStep() run in order; on each success the
// cursor advances past the step. On a step failure, forward execution stops
// and every previously executed step is compensated in reverse order
// (best-effort: the walk continues past compensation failures, which are
// aggregated on the result). The container ends in StateCompleted or
// StateCompensated; Failed and TimedOut are caller-declared states the
// engine never sets.
//
// The caller's context is threaded into every Execute and Compensate call.
// The engine starts no timers and does not classify cancellation: a step
// failing with ctx.Err() triggers compensation like any other failure, with
// the cancellation error surfaced on the result.
func (o *Orchestrator[T]) Execute(ctx context.Context, data T) *SagaResult[T] {
	o.sealed.Store(true)

	start := time.Now()

	if len(o.steps) == 0 {
		return &SagaResult[T]{
			Data: data,
			Err:  fmt.Errorf("saga %q: %w", o.name, ErrNoSteps),
		}
	}

	trace := make(Trace, 0, 2*len(o.steps))

	if data.GetState() != StateRunning {
		data.SetState(StateRunning)
	}

	for i := data.GetCurrentStep(); i < len(o.steps); i++ {
		step := o.steps[i]
		trace = append(trace, StepEvent{Step: step.Name(), Type: StepStarted, At: time.Now()})

		if err := step.Execute(ctx, data); err != nil {
			trace = append(trace, StepEvent{Step: step.Name(), Type: StepFailed, At: time.Now()})
			o.logger.Warn("saga step failed",
				zap.String("saga", o.name),
				zap.String("saga_id", data.GetSagaID()),
				zap.String("step", step.Name()),
				zap.Error(err),
			)
			return o.compensate(ctx, data, i, err, trace, start)
		}

		data.SetCurrentStep(i + 1)
		trace = append(trace, StepEvent{Step: step.Name(), Type: StepSucceeded, At: time.Now()})
	}

	data.SetState(StateCompleted)
	return &SagaResult[T]{
		Success:  true,
		Data:     data,
		Duration: time.Since(start),
		Trace:    trace,
	}
}

// compensate unwinds steps failedIndex-1 down to 0 and produces the failure
// result. Compensation of a step runs even if a later (higher-index) step's
// compensation already failed.
func (o *Orchestrator[T]) compensate(ctx context.Context, data T, failedIndex int, cause error, trace Trace, start time.Time) *SagaResult[T] {
	data.SetState(StateCompensating)

	var failures []*CompensationFailure
	compensated := 0

	for i := failedIndex - 1; i >= 0; i-- {
		step := o.steps[i]
		trace = append(trace, StepEvent{Step: step.Name(), Type: CompensateStarted, At: time.Now()})

		if err := step.Compensate(ctx, data); err != nil {
			trace = append(trace, StepEvent{Step: step.Name(), Type: CompensateFailed, At: time.Now()})
			failures = append(failures, &CompensationFailure{Step: step.Name(), Err: err})
			o.logger.Error("saga compensation failed",
				zap.String("saga", o.name),
				zap.String("saga_id", data.GetSagaID()),
				zap.String("step", step.Name()),
				zap.Error(err),
			)
			continue
		}

		compensated++
		trace = append(trace, StepEvent{Step: step.Name(), Type: CompensateSucceeded, At: time.Now()})
	}

	data.SetState(StateCompensated)

	result := &SagaResult[T]{
		Success:          false,
		Data:             data,
		Err:              cause,
		FailedStep:       o.steps[failedIndex].Name(),
		CompensatedSteps: compensated,
		Duration:         time.Since(start),
		Trace:            trace,
	}
	if len(failures) > 0 {
		result.CompensationErr = &CompensationError{Failures: failures}
	}
	return result
}
