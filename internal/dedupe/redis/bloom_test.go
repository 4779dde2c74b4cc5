package redis

import (
	"context"
	"testing"

	"dexanalytics/internal/config"
	rdb "dexanalytics/internal/stores/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// miniredis has no RedisBloom module: BF.* commands fail, which is exactly the
// path the deduper must survive.

// ========== Test Helpers ==========

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *rdb.Client) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := &rdb.Client{
		Client: goredis.NewClient(&goredis.Options{
			Addr: mr.Addr(),
		}),
	}
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func createTestBloomConfig(key string, capacity int64, errRate float64) *config.BloomConfig {
	return &config.BloomConfig{
		Enabled:  true,
		Key:      key,
		Capacity: capacity,
		ErrRate:  errRate,
	}
}

// ========== Constructor Tests ==========

func TestNewBloom_Success(t *testing.T) {
	_, client := setupTestRedis(t)

	bloom, err := NewBloom(createTestBloomConfig("test:bloom:key", 100000, 0.01), client)

	require.NoError(t, err)
	assert.Equal(t, "test:bloom:key", bloom.Key)
	assert.Equal(t, int64(100000), bloom.Capacity)
	assert.Equal(t, 0.01, bloom.ErrRate)
}

func TestNewBloom_RequiredArgs(t *testing.T) {
	_, client := setupTestRedis(t)

	bloom, err := NewBloom(nil, client)
	assert.Nil(t, bloom)
	assert.ErrorContains(t, err, "bloom config is required")

	bloom, err = NewBloom(createTestBloomConfig("k", 1, 0.1), nil)
	assert.Nil(t, bloom)
	assert.ErrorContains(t, err, "redis client is required")
}

func TestNewBloom_DefaultValues(t *testing.T) {
	_, client := setupTestRedis(t)

	testCases := []struct {
		name             string
		inputKey         string
		inputCapacity    int64
		inputErrRate     float64
		expectedKey      string
		expectedCapacity int64
		expectedErrRate  float64
	}{
		{"empty_key_uses_default", "", 100000, 0.01, "clmm:dedupe:bf", 100000, 0.01},
		{"zero_capacity_uses_default", "custom:key", 0, 0.01, "custom:key", 1_000_000, 0.01},
		{"negative_capacity_uses_default", "custom:key", -100, 0.01, "custom:key", 1_000_000, 0.01},
		{"zero_errrate_uses_default", "custom:key", 500, 0, "custom:key", 500, 0.001},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bloom, err := NewBloom(createTestBloomConfig(tc.inputKey, tc.inputCapacity, tc.inputErrRate), client)
			require.NoError(t, err)

			assert.Equal(t, tc.expectedKey, bloom.Key)
			assert.Equal(t, tc.expectedCapacity, bloom.Capacity)
			assert.Equal(t, tc.expectedErrRate, bloom.ErrRate)
		})
	}
}

// ========== Command Tests ==========

func TestBloom_Ensure_WithoutModule(t *testing.T) {
	_, client := setupTestRedis(t)

	bloom, err := NewBloom(createTestBloomConfig("test:bloom:ensure", 10000, 0.01), client)
	require.NoError(t, err)

	err = bloom.Ensure(context.Background())
	assert.ErrorContains(t, err, "BF.RESERVE failed")
}

func TestBloom_Ensure_IdempotentWhenFilterExists(t *testing.T) {
	_, client := setupTestRedis(t)

	bloom, err := NewBloom(createTestBloomConfig("test:bloom:exists", 10000, 0.01), client)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Set(ctx, bloom.Key, "exists", 0).Err())

	assert.NoError(t, bloom.Ensure(ctx))
}

func TestBloom_AddAndExists_WithoutModule(t *testing.T) {
	_, client := setupTestRedis(t)

	bloom, err := NewBloom(createTestBloomConfig("test:bloom:add", 10000, 0.01), client)
	require.NoError(t, err)

	ctx := context.Background()

	added, err := bloom.Add(ctx, "item")
	assert.False(t, added)
	assert.ErrorContains(t, err, "failed to add item to bloom")

	exists, err := bloom.Exists(ctx, "item")
	assert.False(t, exists)
	assert.ErrorContains(t, err, "failed to check if item exists to bloom")
}
