package redis

import (
	"context"
	"errors"
	"fmt"

	"dexanalytics/internal/config"
	rdb "dexanalytics/internal/stores/redis"
)

/*
Bloom is a RedisBloom prefilter in front of the dedupe keys.
Events are almost always new, so the useful answer is the negative one:
	- "definitely not seen" -> the event is fresh, no key lookup;
	- "probably seen" -> confirm with the dedupe key (false positive rate = err_rate).
Items are added only after the event was applied (MarkSeen).
*/

type Bloom struct {
	rdb      *rdb.Client
	Key      string
	Capacity int64
	ErrRate  float64
}

func NewBloom(cfg *config.BloomConfig, rdb *rdb.Client) (*Bloom, error) {
	if cfg == nil {
		return nil, errors.New("bloom config is required to the bloom")
	}
	if rdb == nil {
		return nil, errors.New("redis client is required to the bloom")
	}

	key := cfg.Key
	if key == "" {
		key = "clmm:dedupe:bf"
	}

	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 1_000_000
	}

	errRate := cfg.ErrRate
	if errRate <= 0 {
		errRate = 0.001
	}

	return &Bloom{
		rdb:      rdb,
		Key:      key,
		Capacity: capacity,
		ErrRate:  errRate,
	}, nil
}

// Ensure reserves the filter once; repeated calls are safe
func (b *Bloom) Ensure(ctx context.Context) error {
	exists, err := b.rdb.Exists(ctx, b.Key).Result()
	if err != nil {
		return fmt.Errorf("check bloom key %s: %w", b.Key, err)
	}
	if exists > 0 {
		return nil
	}

	// fails with unknown command when the RedisBloom module is not loaded
	if err = b.rdb.Do(ctx, "BF.RESERVE", b.Key, b.ErrRate, b.Capacity).Err(); err != nil {
		return fmt.Errorf("BF.RESERVE failed: %w", err)
	}

	return nil
}

// Add returns true when the item was definitely new
func (b *Bloom) Add(ctx context.Context, item string) (bool, error) {
	res := b.rdb.Do(ctx, "BF.ADD", b.Key, item)
	if err := res.Err(); err != nil {
		return false, fmt.Errorf("failed to add item to bloom: %w", err)
	}

	v, err := res.Int()
	return v == 1, err
}

// Exists false -> item was never added
func (b *Bloom) Exists(ctx context.Context, item string) (bool, error) {
	res := b.rdb.Do(ctx, "BF.EXISTS", b.Key, item)
	if err := res.Err(); err != nil {
		return false, fmt.Errorf("failed to check if item exists to bloom: %w", err)
	}

	v, err := res.Int()
	return v == 1, err
}
