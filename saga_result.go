package relay

import (
	"time"
)

// SagaResult is the outcome of one orchestrator execution.
//
// Err carries only the original triggering step failure, unmodified;
// failures raised while compensating are aggregated in CompensationErr and
// never folded into Err.
type SagaResult[T SagaData] struct {
	// Success is true when every step executed without error.
	Success bool

	// Data is the final state of the data container.
	Data T

	// Err is the error returned by the failing step, exactly as the step
	// returned it. Nil on success.
	Err error

	// FailedStep is the name of the step whose Execute failed. Empty on
	// success.
	FailedStep string

	// CompensationErr aggregates compensation failures from the reverse
	// walk, if any. Nil when compensation was not entered or fully
	// succeeded.
	CompensationErr *CompensationError

	// CompensatedSteps is the number of steps whose compensation succeeded.
	CompensatedSteps int

	// Duration is the wall-clock time of the execution, including any
	// compensation.
	Duration time.Duration

	// Trace is the ordered step event record for this execution.
	Trace Trace
}
