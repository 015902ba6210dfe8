package relay

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSagaNotFound indicates that no saga exists for the requested key.
	ErrSagaNotFound = errors.New("saga not found")

	// ErrStoreClosed indicates an operation on a closed persistence backend.
	ErrStoreClosed = errors.New("saga store is closed")

	// ErrOrchestratorSealed indicates an attempt to mutate the step list
	// after the first execution.
	ErrOrchestratorSealed = errors.New("step list is immutable after first execution")

	// ErrDuplicateStep indicates an attempt to register two steps under the
	// same name.
	ErrDuplicateStep = errors.New("duplicate step name")

	// ErrNoSteps indicates an execution attempt on an orchestrator with an
	// empty step list.
	ErrNoSteps = errors.New("orchestrator has no steps")

	// ErrOrchestratorNotFound indicates a registry lookup for an unknown
	// orchestrator name.
	ErrOrchestratorNotFound = errors.New("orchestrator not registered")
)

// CompensationFailure records a single failed compensation during the
// reverse walk.
type CompensationFailure struct {
	Step string
	Err  error
}

// Error implements the error interface for CompensationFailure.
func (f *CompensationFailure) Error() string {
	return fmt.Sprintf("compensation of step %q failed: %v", f.Step, f.Err)
}

// Unwrap returns the underlying compensation error.
func (f *CompensationFailure) Unwrap() error {
	return f.Err
}

// CompensationError aggregates the compensation failures of a single
// execution. Compensation is best-effort: the reverse walk continues past
// individual failures, so more than one step may fail to compensate. The
// aggregate is surfaced on the SagaResult separately from the original
// triggering error.
type CompensationError struct {
	Failures []*CompensationFailure
}

// Error implements the error interface for CompensationError.
func (e *CompensationError) Error() string {
	if len(e.Failures) == 1 {
		return e.Failures[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d compensation failures:", len(e.Failures))
	for _, f := range e.Failures {
		sb.WriteString("\n\t")
		sb.WriteString(f.Error())
	}
	return sb.String()
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *CompensationError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Steps returns the names of the steps whose compensation failed, in
// compensation (reverse) order.
func (e *CompensationError) Steps() []string {
	steps := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		steps[i] = f.Step
	}
	return steps
}
