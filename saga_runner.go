package relay

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// nopRecorder is the default recorder when none is configured.
type nopRecorder struct{}

func (nopRecorder) RecordSagaStarted(string)                               {}
func (nopRecorder) RecordSagaCompleted(string, time.Duration)              {}
func (nopRecorder) RecordSagaFailed(string, string, time.Duration)         {}
func (nopRecorder) RecordSagaCompensated(string, int, time.Duration)       {}
func (nopRecorder) RecordSagaTimedOut(string, SagaState)                   {}
func (nopRecorder) RecordStepExecuted(string, string, time.Duration, bool) {}

// SagaRunner ties an orchestrator to a persistence backend and a recorder.
// It performs the caller-side duties the engine deliberately leaves out:
// after each execution it saves the returned container and forwards the
// outcome and per-step timings to the recorder.
//
// The orchestrator itself holds no reference to either collaborator; the
// runner is plain wiring and can be bypassed entirely by callers that want
// to persist and record on their own.
type SagaRunner[T SagaData] struct {
	orchestrator *Orchestrator[T]
	store        SagaPersistence[T]
	recorder     SagaRecorder
	logger       *zap.Logger
}

// NewSagaRunner wires an orchestrator to a store. Use WithRecorder to feed
// a metrics collector and WithLogger for structured logs.
func NewSagaRunner[T SagaData](orchestrator *Orchestrator[T], store SagaPersistence[T], opts ...Option) *SagaRunner[T] {
	o := newOptions(opts)
	recorder := o.recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &SagaRunner[T]{
		orchestrator: orchestrator,
		store:        store,
		recorder:     recorder,
		logger:       o.logger,
	}
}

// Run executes a fresh saga, persists the resulting container, and records
// the outcome. A persistence failure is surfaced alongside the result; the
// container's in-memory state is not rolled back on that account.
func (r *SagaRunner[T]) Run(ctx context.Context, data T) (*SagaResult[T], error) {
	r.recorder.RecordSagaStarted(r.orchestrator.Name())
	return r.execute(ctx, data)
}

// Resume loads a persisted saga by ID and continues it from its cursor.
// The resumed execution is not counted as a new start.
func (r *SagaRunner[T]) Resume(ctx context.Context, sagaID string) (*SagaResult[T], error) {
	data, err := r.store.GetByID(ctx, sagaID)
	if err != nil {
		return nil, err
	}
	return r.execute(ctx, data)
}

// ResumeByCorrelation loads a persisted saga by correlation key and
// continues it from its cursor.
func (r *SagaRunner[T]) ResumeByCorrelation(ctx context.Context, correlationID string) (*SagaResult[T], error) {
	data, err := r.store.GetByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	return r.execute(ctx, data)
}

// RecoverActive scans the store for Running or Compensating sagas and
// resumes each from its persisted cursor. Intended for crash recovery at
// process start. Individual saga failures do not abort the scan; every
// result is returned.
func (r *SagaRunner[T]) RecoverActive(ctx context.Context) ([]*SagaResult[T], error) {
	active, err := r.store.GetActiveSagas(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*SagaResult[T], 0, len(active))
	for _, data := range active {
		r.logger.Info("recovering saga",
			zap.String("saga", r.orchestrator.Name()),
			zap.String("saga_id", data.GetSagaID()),
			zap.Int("current_step", data.GetCurrentStep()),
			zap.Stringer("state", data.GetState()),
		)

		result, err := r.execute(ctx, data)
		if err != nil {
			r.logger.Error("failed to persist recovered saga",
				zap.String("saga", r.orchestrator.Name()),
				zap.String("saga_id", data.GetSagaID()),
				zap.Error(err),
			)
		}
		results = append(results, result)
	}
	return results, nil
}

func (r *SagaRunner[T]) execute(ctx context.Context, data T) (*SagaResult[T], error) {
	result := r.orchestrator.Execute(ctx, data)
	r.record(result)

	if err := r.store.Save(ctx, result.Data); err != nil {
		return result, err
	}
	return result, nil
}

func (r *SagaRunner[T]) record(result *SagaResult[T]) {
	name := r.orchestrator.Name()

	if result.Success {
		r.recorder.RecordSagaCompleted(name, result.Duration)
	} else {
		r.recorder.RecordSagaFailed(name, result.FailedStep, result.Duration)
		r.recorder.RecordSagaCompensated(name, result.CompensatedSteps, result.Duration)
	}

	// Pair started/finished trace events into per-step executions.
	started := make(map[string]time.Time, len(result.Trace))
	for _, event := range result.Trace {
		switch event.Type {
		case StepStarted:
			started[event.Step] = event.At
		case StepSucceeded, StepFailed:
			if at, ok := started[event.Step]; ok {
				r.recorder.RecordStepExecuted(name, event.Step, event.At.Sub(at), event.Type == StepSucceeded)
			}
		}
	}
}
