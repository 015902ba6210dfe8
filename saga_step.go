package relay

import (
	"context"
	"fmt"
)

// SagaStep is the unit-of-work contract that business logic implements.
//
// A step's name is a stable identifier: it is both the failure-attribution
// key on a SagaResult and a metrics dimension, so it must not change across
// versions of the same logical step. Errors returned by Execute are opaque
// to the engine and surface unmodified on the result.
type SagaStep[T SagaData] interface {
	// Name returns the stable identifier of the step.
	Name() string

	// Execute performs one unit of business work against the data container.
	Execute(ctx context.Context, data T) error

	// Compensate performs a best-effort undo of the effects of a previously
	// successful Execute. It is only invoked for steps the orchestrator has
	// already executed, never for steps skipped or not yet reached. Steps
	// are responsible for their own idempotence.
	Compensate(ctx context.Context, data T) error
}

// ExecuteFunc is the function form of a step's forward operation.
type ExecuteFunc[T SagaData] func(ctx context.Context, data T) error

// CompensateFunc is the function form of a step's compensating operation.
type CompensateFunc[T SagaData] func(ctx context.Context, data T) error

// StepFunc is an implementation of SagaStep that uses ordinary functions.
type StepFunc[T SagaData] struct {
	name       string
	execute    ExecuteFunc[T]
	compensate CompensateFunc[T]
}

// NewStep constructs a StepFunc from a pair of functions.
func NewStep[T SagaData](name string, execute ExecuteFunc[T], compensate CompensateFunc[T]) *StepFunc[T] {
	return &StepFunc[T]{
		name:       name,
		execute:    execute,
		compensate: compensate,
	}
}

// NoOpCompensate is a CompensateFunc for steps that have nothing to undo.
func NoOpCompensate[T SagaData](_ context.Context, _ T) error {
	return nil
}

// NewStepWithNoOpCompensate constructs a StepFunc whose compensation is a no-op.
func NewStepWithNoOpCompensate[T SagaData](name string, execute ExecuteFunc[T]) *StepFunc[T] {
	return NewStep(name, execute, NoOpCompensate[T])
}

// Name implements the SagaStep interface for StepFunc.
func (s *StepFunc[T]) Name() string {
	return s.name
}

// Execute implements the SagaStep interface for StepFunc.
func (s *StepFunc[T]) Execute(ctx context.Context, data T) error {
	return s.execute(ctx, data)
}

// Compensate implements the SagaStep interface for StepFunc.
func (s *StepFunc[T]) Compensate(ctx context.Context, data T) error {
	if s.compensate == nil {
		return nil
	}
	return s.compensate(ctx, data)
}

// String implements the fmt.Stringer interface for StepFunc.
func (s *StepFunc[T]) String() string {
	return fmt.Sprintf("StepFunc(%s)", s.name)
}
