package relay

import (
	"github.com/google/uuid"
)

// SagaData is the mutable record that a saga execution operates on. It
// carries orchestration bookkeeping alongside whatever business fields the
// concrete type declares. Implementations embed BaseSagaData and extend it
// with their own serializable fields; individual steps are expected to
// persist business-specific "done" flags on the container so that a resumed
// execution can bypass redundant side effects.
type SagaData interface {
	// GetSagaID returns the globally unique identifier of the saga.
	// Assigned once at creation, immutable thereafter.
	GetSagaID() string

	// GetCorrelationID returns the business-chosen key used to locate the
	// saga without knowing its SagaID. Uniqueness is not enforced.
	GetCorrelationID() string

	// GetState returns the current lifecycle state.
	GetState() SagaState

	// SetState transitions the saga to the given lifecycle state.
	SetState(state SagaState)

	// GetCurrentStep returns the cursor into the step list: the index of
	// the next step to execute.
	GetCurrentStep() int

	// SetCurrentStep moves the cursor.
	SetCurrentStep(step int)

	// GetVersion returns the persistence version counter. It is incremented
	// by the persistence layer on every successful save.
	GetVersion() int

	// SetVersion sets the persistence version counter.
	SetVersion(version int)

	// GetMetadata returns the open string-keyed map for contextual data.
	GetMetadata() map[string]string
}

// BaseSagaData is the embeddable implementation of the orchestration
// bookkeeping half of SagaData. All fields round-trip verbatim through JSON.
type BaseSagaData struct {
	ID            string            `json:"saga_id"`
	Correlation   string            `json:"correlation_id,omitempty"`
	State         SagaState         `json:"state"`
	CurrentStep   int               `json:"current_step"`
	Version       int               `json:"version"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewBaseSagaData creates bookkeeping data for a fresh saga with a generated
// SagaID and the given correlation key.
func NewBaseSagaData(correlationID string) BaseSagaData {
	return BaseSagaData{
		ID:          uuid.NewString(),
		Correlation: correlationID,
		State:       StateRunning,
		Metadata:    make(map[string]string),
	}
}

// GetSagaID implements SagaData.
func (d *BaseSagaData) GetSagaID() string {
	return d.ID
}

// GetCorrelationID implements SagaData.
func (d *BaseSagaData) GetCorrelationID() string {
	return d.Correlation
}

// GetState implements SagaData.
func (d *BaseSagaData) GetState() SagaState {
	return d.State
}

// SetState implements SagaData.
func (d *BaseSagaData) SetState(state SagaState) {
	d.State = state
}

// GetCurrentStep implements SagaData.
func (d *BaseSagaData) GetCurrentStep() int {
	return d.CurrentStep
}

// SetCurrentStep implements SagaData.
func (d *BaseSagaData) SetCurrentStep(step int) {
	d.CurrentStep = step
}

// GetVersion implements SagaData.
func (d *BaseSagaData) GetVersion() int {
	return d.Version
}

// SetVersion implements SagaData.
func (d *BaseSagaData) SetVersion(version int) {
	d.Version = version
}

// GetMetadata implements SagaData. The map is lazily initialized so that
// zero-value containers remain usable.
func (d *BaseSagaData) GetMetadata() map[string]string {
	if d.Metadata == nil {
		d.Metadata = make(map[string]string)
	}
	return d.Metadata
}
