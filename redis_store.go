package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key naming conventions
const (
	// redisSagaKeyPattern is the pattern for saga record keys: {prefix}saga:{sagaID}
	redisSagaKeyPattern = "%ssaga:%s"

	// redisCorrelationKeyPattern is the pattern for the correlation lookup: {prefix}correlation:{correlationID}
	redisCorrelationKeyPattern = "%scorrelation:%s"

	// redisStateIndexKeyPattern is the pattern for indexing sagas by state: {prefix}index:state:{state}
	redisStateIndexKeyPattern = "%sindex:state:%s"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Password is the optional server password.
	Password string

	// DB is the logical database to select.
	DB int

	// KeyPrefix is prepended to every key the store writes. Defaults to
	// "relay:".
	KeyPrefix string

	// TTL is the expiration applied to saga records. Zero means records
	// never expire.
	TTL time.Duration

	// DialTimeout bounds connection establishment. Defaults to 5s.
	DialTimeout time.Duration
}

func (c *RedisConfig) withDefaults() *RedisConfig {
	cfg := *c
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "relay:"
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &cfg
}

// RedisStore is a durable SagaPersistence backed by Redis.
//
// Key design:
//   - Saga records:      {prefix}saga:{sagaID} (record JSON)
//   - Correlation index: {prefix}correlation:{correlationID} -> sagaID
//   - State index:       {prefix}index:state:{state} (set of saga IDs)
//
// Writes go through a pipeline that keeps the record and its indexes in
// step. Concurrent upserts to the same key are last-write-wins; the version
// counter is incremented on every save and carries no conflict detection.
type RedisStore[T SagaData] struct {
	client  *redis.Client
	config  *RedisConfig
	newData func() T
	closed  atomic.Bool
}

// NewRedisStore connects to Redis and verifies connectivity with a ping.
// newData must return a fresh zero container for deserialization.
func NewRedisStore[T SagaData](config *RedisConfig, newData func() T) (*RedisStore[T], error) {
	if config == nil || config.Addr == "" {
		return nil, errors.New("redis store requires an address")
	}
	cfg := config.withDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore[T]{
		client:  client,
		config:  cfg,
		newData: newData,
	}, nil
}

// Save upserts the container's record, incrementing its version and keeping
// the correlation and state indexes consistent.
func (r *RedisStore[T]) Save(ctx context.Context, data T) error {
	if err := r.guard(ctx); err != nil {
		return err
	}

	// The previous record, if any, tells us which state index to leave.
	previous, err := r.getRecord(ctx, data.GetSagaID())
	if err != nil && !errors.Is(err, ErrSagaNotFound) {
		return err
	}

	data.SetVersion(data.GetVersion() + 1)
	record, err := encodeRecord(data)
	if err != nil {
		data.SetVersion(data.GetVersion() - 1)
		return err
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		data.SetVersion(data.GetVersion() - 1)
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.sagaKey(record.SagaID), encoded, r.config.TTL)
	if previous != nil && previous.State != record.State {
		pipe.SRem(ctx, r.stateIndexKey(previous.State), record.SagaID)
	}
	pipe.SAdd(ctx, r.stateIndexKey(record.State), record.SagaID)
	if record.CorrelationID != "" {
		pipe.Set(ctx, r.correlationKey(record.CorrelationID), record.SagaID, r.config.TTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		data.SetVersion(data.GetVersion() - 1)
		return fmt.Errorf("failed to save saga to redis: %w", err)
	}
	return nil
}

// GetByID retrieves a container by SagaID.
func (r *RedisStore[T]) GetByID(ctx context.Context, sagaID string) (T, error) {
	var zero T
	if err := r.guard(ctx); err != nil {
		return zero, err
	}

	record, err := r.getRecord(ctx, sagaID)
	if err != nil {
		return zero, err
	}
	return decodeRecord(record, r.newData)
}

// GetByCorrelationID resolves the correlation index and retrieves the
// container it points at. Correlation keys are last-writer-wins, so with
// duplicate correlation IDs this is an arbitrary match.
func (r *RedisStore[T]) GetByCorrelationID(ctx context.Context, correlationID string) (T, error) {
	var zero T
	if err := r.guard(ctx); err != nil {
		return zero, err
	}

	sagaID, err := r.client.Get(ctx, r.correlationKey(correlationID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, fmt.Errorf("correlation %s: %w", correlationID, ErrSagaNotFound)
		}
		return zero, fmt.Errorf("failed to resolve correlation from redis: %w", err)
	}
	return r.GetByID(ctx, sagaID)
}

// Delete removes the saga's record and its index entries. Deleting a
// missing saga is not an error.
func (r *RedisStore[T]) Delete(ctx context.Context, sagaID string) error {
	if err := r.guard(ctx); err != nil {
		return err
	}

	record, err := r.getRecord(ctx, sagaID)
	if err != nil {
		if errors.Is(err, ErrSagaNotFound) {
			return nil
		}
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.sagaKey(sagaID))
	pipe.SRem(ctx, r.stateIndexKey(record.State), sagaID)
	if record.CorrelationID != "" {
		pipe.Del(ctx, r.correlationKey(record.CorrelationID))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete saga from redis: %w", err)
	}
	return nil
}

// GetActiveSagas returns every container indexed under Running or
// Compensating.
func (r *RedisStore[T]) GetActiveSagas(ctx context.Context) ([]T, error) {
	if err := r.guard(ctx); err != nil {
		return nil, err
	}

	var result []T
	for _, state := range []SagaState{StateRunning, StateCompensating} {
		batch, err := r.getByState(ctx, state)
		if err != nil {
			return nil, err
		}
		result = append(result, batch...)
	}
	return result, nil
}

// GetByState returns every container indexed under exactly the given state.
func (r *RedisStore[T]) GetByState(ctx context.Context, state SagaState) ([]T, error) {
	if err := r.guard(ctx); err != nil {
		return nil, err
	}
	return r.getByState(ctx, state)
}

// Close releases the underlying Redis connection. Subsequent calls on the
// store return ErrStoreClosed.
func (r *RedisStore[T]) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.client.Close()
}

func (r *RedisStore[T]) guard(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.closed.Load() {
		return ErrStoreClosed
	}
	return nil
}

func (r *RedisStore[T]) getRecord(ctx context.Context, sagaID string) (*sagaRecord, error) {
	encoded, err := r.client.Get(ctx, r.sagaKey(sagaID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("saga %s: %w", sagaID, ErrSagaNotFound)
		}
		return nil, fmt.Errorf("failed to get saga from redis: %w", err)
	}

	var record sagaRecord
	if err := json.Unmarshal([]byte(encoded), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s: %w", sagaID, err)
	}
	return &record, nil
}

func (r *RedisStore[T]) getByState(ctx context.Context, state SagaState) ([]T, error) {
	sagaIDs, err := r.client.SMembers(ctx, r.stateIndexKey(state)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read state index from redis: %w", err)
	}

	var result []T
	for _, sagaID := range sagaIDs {
		record, err := r.getRecord(ctx, sagaID)
		if err != nil {
			if errors.Is(err, ErrSagaNotFound) {
				// Record expired; the index entry is stale.
				continue
			}
			return nil, err
		}
		if record.State != state {
			// Stale index membership from a concurrent transition.
			continue
		}

		data, err := decodeRecord(record, r.newData)
		if err != nil {
			return nil, err
		}
		result = append(result, data)
	}
	return result, nil
}

func (r *RedisStore[T]) sagaKey(sagaID string) string {
	return fmt.Sprintf(redisSagaKeyPattern, r.config.KeyPrefix, sagaID)
}

func (r *RedisStore[T]) correlationKey(correlationID string) string {
	return fmt.Sprintf(redisCorrelationKeyPattern, r.config.KeyPrefix, correlationID)
}

func (r *RedisStore[T]) stateIndexKey(state SagaState) string {
	return fmt.Sprintf(redisStateIndexKeyPattern, r.config.KeyPrefix, state)
}
