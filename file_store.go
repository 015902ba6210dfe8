package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore is a SagaPersistence that keeps each saga as a JSON file on
// disk. Useful for CLI tools and local development where sagas must survive
// process restarts without a database.
//
// Correlation and state queries scan the directory; this store is not meant
// for large fleets of sagas.
type FileStore[T SagaData] struct {
	basePath string
	newData  func() T
	mu       sync.Mutex // Protects file operations
}

// NewFileStore creates a file-backed store rooted at basePath, creating the
// directory if needed. newData must return a fresh zero container for
// deserialization.
func NewFileStore[T SagaData](basePath string, newData func() T) (*FileStore[T], error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileStore[T]{
		basePath: basePath,
		newData:  newData,
	}, nil
}

// Save persists the container to its JSON file, incrementing its version.
func (f *FileStore[T]) Save(ctx context.Context, data T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data.SetVersion(data.GetVersion() + 1)
	record, err := encodeRecord(data)
	if err != nil {
		data.SetVersion(data.GetVersion() - 1)
		return err
	}

	encoded, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		data.SetVersion(data.GetVersion() - 1)
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := os.WriteFile(f.filename(record.SagaID), encoded, 0644); err != nil {
		data.SetVersion(data.GetVersion() - 1)
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return nil
}

// GetByID retrieves a container from its JSON file.
func (f *FileStore[T]) GetByID(ctx context.Context, sagaID string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	record, err := f.readRecord(f.filename(sagaID))
	if err != nil {
		if os.IsNotExist(err) {
			return zero, fmt.Errorf("saga %s: %w", sagaID, ErrSagaNotFound)
		}
		return zero, err
	}
	return decodeRecord(record, f.newData)
}

// GetByCorrelationID scans the store directory for an arbitrary container
// matching the correlation key.
func (f *FileStore[T]) GetByCorrelationID(ctx context.Context, correlationID string) (T, error) {
	var zero T

	matches, err := f.scan(ctx, func(record *sagaRecord) bool {
		return record.CorrelationID == correlationID
	})
	if err != nil {
		return zero, err
	}
	if len(matches) == 0 {
		return zero, fmt.Errorf("correlation %s: %w", correlationID, ErrSagaNotFound)
	}
	return matches[0], nil
}

// Delete removes the saga's state file. Deleting a missing saga is not an
// error.
func (f *FileStore[T]) Delete(ctx context.Context, sagaID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.filename(sagaID)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete state file: %w", err)
	}

	return nil
}

// GetActiveSagas scans the store directory for Running or Compensating
// sagas.
func (f *FileStore[T]) GetActiveSagas(ctx context.Context) ([]T, error) {
	return f.scan(ctx, func(record *sagaRecord) bool {
		return record.State.Active()
	})
}

// GetByState scans the store directory for sagas with exactly the given
// state.
func (f *FileStore[T]) GetByState(ctx context.Context, state SagaState) ([]T, error) {
	return f.scan(ctx, func(record *sagaRecord) bool {
		return record.State == state
	})
}

// filename returns the full path for a saga's state file.
func (f *FileStore[T]) filename(sagaID string) string {
	return filepath.Join(f.basePath, sagaID+".json")
}

func (f *FileStore[T]) readRecord(filename string) (*sagaRecord, error) {
	encoded, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var record sagaRecord
	if err := json.Unmarshal(encoded, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s: %w", filename, err)
	}
	return &record, nil
}

func (f *FileStore[T]) scan(ctx context.Context, match func(*sagaRecord) bool) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	var result []T
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		record, err := f.readRecord(filepath.Join(f.basePath, entry.Name()))
		if err != nil {
			if os.IsNotExist(err) {
				// Deleted while scanning.
				continue
			}
			return nil, err
		}
		if !match(record) {
			continue
		}

		data, err := decodeRecord(record, f.newData)
		if err != nil {
			return nil, err
		}
		result = append(result, data)
	}
	return result, nil
}
