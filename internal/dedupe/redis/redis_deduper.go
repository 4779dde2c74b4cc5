package redis

import (
	"context"
	"fmt"
	"time"

	"dexanalytics/internal/config"
	"dexanalytics/internal/dedupe"
	rdb "dexanalytics/internal/stores/redis"

	"gitlab.com/nevasik7/alerting/logger"
)

var _ dedupe.Deduper = (*RedisDedupe)(nil)

type RedisDedupe struct {
	log    logger.Logger
	rdb    *rdb.Client
	ttl    time.Duration
	prefix string
	bloom  *Bloom // optional
}

// Cluster dedupe on Redis keys with TTL, 0 -> no expiry
// prefix example "clmm:dedupe:"
func NewRedisDeduper(log logger.Logger, cfg *config.DedupeConfig, rdb *rdb.Client, bloom *Bloom) (*RedisDedupe, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required to the redis deduper")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required to the redis deduper")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "dedupe:"
	}

	return &RedisDedupe{
		log:    log,
		rdb:    rdb,
		ttl:    cfg.TTL,
		prefix: prefix,
		bloom:  bloom,
	}, nil
}

func (d *RedisDedupe) IsDuplicate(ctx context.Context, id string) (bool, error) {
	// bloom "not seen" is definite -> skip the key lookup
	if d.bloom != nil {
		exists, err := d.bloom.Exists(ctx, id)
		if err == nil && !exists {
			return false, nil
		}
		if err != nil {
			d.log.Debugf("Bloom check for %s failed, fallback to key, err=%v", id, err)
		}
	}

	n, err := d.rdb.Exists(ctx, d.prefix+id).Result()
	if err != nil {
		d.log.Errorf("Redis EXISTS error=%v", err)
		return false, fmt.Errorf("redis EXISTS error=%w", err)
	}

	return n > 0, nil
}

func (d *RedisDedupe) MarkSeen(ctx context.Context, id string) error {
	if err := d.rdb.Set(ctx, d.prefix+id, 1, d.ttl).Err(); err != nil {
		d.log.Errorf("Redis SET error=%v", err)
		return fmt.Errorf("redis SET error=%w", err)
	}

	if d.bloom != nil {
		if _, err := d.bloom.Add(ctx, id); err != nil {
			d.log.Errorf("Failed to add bloom id %s, err=%v", id, err)
		}
	}

	return nil
}

func (d *RedisDedupe) Health(ctx context.Context) error {
	return d.rdb.Ping(ctx).Err()
}
