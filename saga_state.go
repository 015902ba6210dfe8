package relay

import (
	"encoding/json"
	"fmt"
)

// SagaState represents the lifecycle state of a saga instance.
type SagaState int

const (
	StateRunning SagaState = iota
	StateCompensating
	StateCompleted
	StateFailed
	StateCompensated
	StateTimedOut
)

// String returns the string representation of the SagaState.
func (s SagaState) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateCompensating:
		return "Compensating"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	case StateCompensated:
		return "Compensated"
	case StateTimedOut:
		return "TimedOut"
	default:
		return fmt.Sprintf("Unknown SagaState: %d", s)
	}
}

// Active reports whether the state is a non-terminal, in-flight state.
// Crash-recovery scans only consider active sagas.
func (s SagaState) Active() bool {
	return s == StateRunning || s == StateCompensating
}

// Terminal reports whether the state is one of the four terminal states.
func (s SagaState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCompensated, StateTimedOut:
		return true
	}
	return false
}

// ParseSagaState converts a string produced by String back into a SagaState.
func ParseSagaState(str string) (SagaState, error) {
	switch str {
	case "Running":
		return StateRunning, nil
	case "Compensating":
		return StateCompensating, nil
	case "Completed":
		return StateCompleted, nil
	case "Failed":
		return StateFailed, nil
	case "Compensated":
		return StateCompensated, nil
	case "TimedOut":
		return StateTimedOut, nil
	default:
		return StateRunning, fmt.Errorf("invalid SagaState: %s", str)
	}
}

// MarshalJSON implements the json.Marshaler interface for SagaState.
func (s SagaState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for SagaState.
func (s *SagaState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	state, err := ParseSagaState(str)
	if err != nil {
		return err
	}

	*s = state
	return nil
}
