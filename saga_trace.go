package relay

import (
	"fmt"
	"strings"
	"time"
)

// StepEventType defines the kinds of events recorded in an execution trace.
type StepEventType int

const (
	StepStarted StepEventType = iota
	StepSucceeded
	StepFailed
	CompensateStarted
	CompensateSucceeded
	CompensateFailed
)

// String returns the string representation of the StepEventType.
func (t StepEventType) String() string {
	switch t {
	case StepStarted:
		return "started"
	case StepSucceeded:
		return "succeeded"
	case StepFailed:
		return "failed"
	case CompensateStarted:
		return "compensate_started"
	case CompensateSucceeded:
		return "compensate_succeeded"
	case CompensateFailed:
		return "compensate_failed"
	default:
		return fmt.Sprintf("Unknown StepEventType: %d", t)
	}
}

// StepEvent is a single entry in an execution trace.
type StepEvent struct {
	Step string
	Type StepEventType
	At   time.Time
}

// String implements the fmt.Stringer interface for StepEvent.
func (e StepEvent) String() string {
	return fmt.Sprintf("%s %s", e.Step, e.Type)
}

// Trace is the ordered record of step events for one orchestrator
// execution. The orchestrator runs steps strictly sequentially, so a trace
// is built by a single goroutine and needs no locking; it is returned on
// the SagaResult for inspection.
type Trace []StepEvent

// Compensating reports whether the trace entered the compensation path.
func (t Trace) Compensating() bool {
	for _, e := range t {
		if e.Type == CompensateStarted {
			return true
		}
	}
	return false
}

// Executed returns the step names that started forward execution, in order.
func (t Trace) Executed() []string {
	var steps []string
	for _, e := range t {
		if e.Type == StepStarted {
			steps = append(steps, e.Step)
		}
	}
	return steps
}

// Compensated returns the step names whose compensation succeeded, in
// compensation (reverse) order.
func (t Trace) Compensated() []string {
	var steps []string
	for _, e := range t {
		if e.Type == CompensateSucceeded {
			steps = append(steps, e.Step)
		}
	}
	return steps
}

// String implements the fmt.Stringer interface for Trace.
func (t Trace) String() string {
	var sb strings.Builder
	sb.WriteString("EXECUTION TRACE:\n")
	direction := "forward"
	if t.Compensating() {
		direction = "unwinding"
	}
	sb.WriteString(fmt.Sprintf("direction: %s\n", direction))
	sb.WriteString(fmt.Sprintf("events (%d total):\n", len(t)))
	for i, event := range t {
		sb.WriteString(fmt.Sprintf("%03d %s\n", i+1, event.String()))
	}
	return sb.String()
}
