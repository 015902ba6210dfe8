package relay

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRedisTestStore connects to the Redis instance named by RELAY_REDIS_ADDR,
// or skips the test when none is configured. Each store gets a unique key
// prefix so parallel test runs cannot see each other's records.
func newRedisTestStore(t *testing.T) *RedisStore[*OrderSagaData] {
	t.Helper()

	addr := os.Getenv("RELAY_REDIS_ADDR")
	if addr == "" {
		t.Skip("RELAY_REDIS_ADDR not set; skipping redis integration test")
	}

	store, err := NewRedisStore(&RedisConfig{
		Addr:      addr,
		KeyPrefix: fmt.Sprintf("relay-test:%s:", uuid.NewString()),
		TTL:       time.Minute,
	}, newOrderDataFactory)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisStore(t *testing.T) {
	runPersistenceSuite(t, func(t *testing.T) SagaPersistence[*OrderSagaData] {
		return newRedisTestStore(t)
	})
}

func TestRedisStoreClose(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()

	data := newOrderData("corr-close")
	require.NoError(t, store.Save(ctx, data))

	require.NoError(t, store.Close())
	assert.NoError(t, store.Close(), "closing twice is not an error")

	assert.ErrorIs(t, store.Save(ctx, data), ErrStoreClosed)
	_, err := store.GetByID(ctx, data.GetSagaID())
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.GetActiveSagas(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestRedisStoreRequiresAddress(t *testing.T) {
	_, err := NewRedisStore[*OrderSagaData](nil, newOrderDataFactory)
	assert.Error(t, err)

	_, err = NewRedisStore(&RedisConfig{}, newOrderDataFactory)
	assert.Error(t, err)
}

func TestRedisConfigDefaults(t *testing.T) {
	cfg := (&RedisConfig{Addr: "localhost:6379"}).withDefaults()
	assert.Equal(t, "relay:", cfg.KeyPrefix)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Zero(t, cfg.TTL)

	custom := (&RedisConfig{Addr: "localhost:6379", KeyPrefix: "x:", DialTimeout: time.Second}).withDefaults()
	assert.Equal(t, "x:", custom.KeyPrefix)
	assert.Equal(t, time.Second, custom.DialTimeout)
}
