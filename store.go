package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// SagaPersistence defines the interface for saving, loading, and querying
// saga data containers. The orchestrator never touches storage; callers
// persist the container a SagaResult hands back.
//
// Implementations increment the container's version on every successful
// save. Writes are last-write-wins: the version is a change-detection
// counter, not an optimistic lock.
type SagaPersistence[T SagaData] interface {
	// Save upserts the container, fully overwriting any existing record.
	Save(ctx context.Context, data T) error

	// GetByID retrieves a container by SagaID.
	// Returns ErrSagaNotFound if no record exists.
	GetByID(ctx context.Context, sagaID string) (T, error)

	// GetByCorrelationID retrieves a container by correlation key. If
	// several sagas share the key, an arbitrary match is returned.
	// Returns ErrSagaNotFound if no record exists.
	GetByCorrelationID(ctx context.Context, correlationID string) (T, error)

	// Delete removes the record for the given SagaID. Deleting a missing
	// record is not an error.
	Delete(ctx context.Context, sagaID string) error

	// GetActiveSagas returns every container whose state is Running or
	// Compensating, for crash-recovery scans.
	GetActiveSagas(ctx context.Context) ([]T, error)

	// GetByState returns every container with exactly the given state.
	GetByState(ctx context.Context, state SagaState) ([]T, error)
}

// sagaRecord is the store-agnostic persisted shape of a saga: bookkeeping
// columns for keyed lookups plus the full serialized container as payload.
type sagaRecord struct {
	SagaID        string            `json:"saga_id"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	State         SagaState         `json:"state"`
	CurrentStep   int               `json:"current_step"`
	Version       int               `json:"version"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// encodeRecord serializes the container into its persisted shape. The
// container's version must already reflect the save being encoded.
func encodeRecord[T SagaData](data T) (*sagaRecord, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize saga %s: %w", data.GetSagaID(), err)
	}

	return &sagaRecord{
		SagaID:        data.GetSagaID(),
		CorrelationID: data.GetCorrelationID(),
		State:         data.GetState(),
		CurrentStep:   data.GetCurrentStep(),
		Version:       data.GetVersion(),
		Payload:       payload,
		Metadata:      data.GetMetadata(),
		UpdatedAt:     time.Now(),
	}, nil
}

// decodeRecord reconstructs a container from its persisted shape. newData
// supplies a fresh zero container to unmarshal into; concrete types are
// erased at rest, so the store cannot allocate one itself.
func decodeRecord[T SagaData](record *sagaRecord, newData func() T) (T, error) {
	data := newData()
	if err := json.Unmarshal(record.Payload, data); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to deserialize saga %s: %w", record.SagaID, err)
	}
	return data, nil
}

// InMemoryStore is a volatile, thread-safe SagaPersistence backed by a
// concurrent map. Intended for development and testing; records are held in
// their serialized form so loads never alias saved containers.
type InMemoryStore[T SagaData] struct {
	records *xsync.MapOf[string, *sagaRecord]
	newData func() T
}

// NewInMemoryStore creates an empty in-memory store. newData must return a
// fresh zero container for deserialization.
func NewInMemoryStore[T SagaData](newData func() T) *InMemoryStore[T] {
	return &InMemoryStore[T]{
		records: xsync.NewMapOf[string, *sagaRecord](),
		newData: newData,
	}
}

// Save stores the container, incrementing its version.
func (s *InMemoryStore[T]) Save(ctx context.Context, data T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data.SetVersion(data.GetVersion() + 1)
	record, err := encodeRecord(data)
	if err != nil {
		data.SetVersion(data.GetVersion() - 1)
		return err
	}

	s.records.Store(record.SagaID, record)
	return nil
}

// GetByID retrieves a container by SagaID.
func (s *InMemoryStore[T]) GetByID(ctx context.Context, sagaID string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	record, ok := s.records.Load(sagaID)
	if !ok {
		return zero, fmt.Errorf("saga %s: %w", sagaID, ErrSagaNotFound)
	}
	return decodeRecord(record, s.newData)
}

// GetByCorrelationID retrieves an arbitrary container matching the
// correlation key.
func (s *InMemoryStore[T]) GetByCorrelationID(ctx context.Context, correlationID string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	var match *sagaRecord
	s.records.Range(func(_ string, record *sagaRecord) bool {
		if record.CorrelationID == correlationID {
			match = record
			return false
		}
		return true
	})
	if match == nil {
		return zero, fmt.Errorf("correlation %s: %w", correlationID, ErrSagaNotFound)
	}
	return decodeRecord(match, s.newData)
}

// Delete removes the record for the given SagaID, if present.
func (s *InMemoryStore[T]) Delete(ctx context.Context, sagaID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.records.Delete(sagaID)
	return nil
}

// GetActiveSagas returns every container in a Running or Compensating state.
func (s *InMemoryStore[T]) GetActiveSagas(ctx context.Context) ([]T, error) {
	return s.collect(ctx, func(record *sagaRecord) bool {
		return record.State.Active()
	})
}

// GetByState returns every container with exactly the given state.
func (s *InMemoryStore[T]) GetByState(ctx context.Context, state SagaState) ([]T, error) {
	return s.collect(ctx, func(record *sagaRecord) bool {
		return record.State == state
	})
}

// Reset discards all records. Intended for test isolation.
func (s *InMemoryStore[T]) Reset() {
	s.records.Clear()
}

// Len returns the number of stored records.
func (s *InMemoryStore[T]) Len() int {
	return s.records.Size()
}

func (s *InMemoryStore[T]) collect(ctx context.Context, match func(*sagaRecord) bool) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []T
	var decodeErr error
	s.records.Range(func(_ string, record *sagaRecord) bool {
		if !match(record) {
			return true
		}
		data, err := decodeRecord(record, s.newData)
		if err != nil {
			decodeErr = err
			return false
		}
		result = append(result, data)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return result, nil
}
