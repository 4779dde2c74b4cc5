package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dexanalytics/internal/config"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

// Conn wraps the native client; Native is what the Writer batches on
type Conn struct {
	Native ch.Conn
}

func New(ctx context.Context, cfg *config.ClickHouseConfig) (*Conn, error) {
	if cfg == nil {
		return nil, errors.New("clickhouse config is required")
	}
	if cfg.DSN == "" {
		return nil, errors.New("clickhouse dsn is required")
	}

	opts, err := ch.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.Compression == nil {
		opts.Compression = &ch.Compression{Method: ch.CompressionLZ4}
	}
	opts.ClientInfo = ch.ClientInfo{
		Products: []struct{ Name, Version string }{{Name: "clmm-indexer", Version: "0.1.0"}},
	}

	native, err := ch.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = native.Ping(pingCtx); err != nil {
		_ = native.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	c := &Conn{Native: native}
	if cfg.MigrateOnStart {
		if err = c.EnsureSchema(ctx); err != nil {
			_ = native.Close()
			return nil, err
		}
	}

	return c, nil
}

// rows are append-only; ReplacingMergeTree collapses redelivered ids on merge
var schemaDDL = map[string]string{
	TableSwaps: `CREATE TABLE IF NOT EXISTS clmm_swaps (
	id String,
	event_time DateTime,
	tx_hash String,
	log_index UInt32,
	block_number UInt64,
	pool String,
	token0 String,
	token1 String,
	sender String,
	recipient String,
	amount0 String,
	amount1 String,
	amount_usd String,
	sqrt_price_x96 String,
	tick Int64
) ENGINE = ReplacingMergeTree
PARTITION BY toYYYYMM(event_time)
ORDER BY (pool, event_time, id)`,

	TableLiquidityEvents: `CREATE TABLE IF NOT EXISTS clmm_liquidity_events (
	id String,
	kind LowCardinality(String),
	event_time DateTime,
	tx_hash String,
	log_index UInt32,
	block_number UInt64,
	pool String,
	token0 String,
	token1 String,
	owner String,
	sender String,
	amount String,
	amount0 String,
	amount1 String,
	amount_usd String,
	tick_lower Int64,
	tick_upper Int64
) ENGINE = ReplacingMergeTree
PARTITION BY toYYYYMM(event_time)
ORDER BY (pool, event_time, kind, id)`,

	TablePoolBuckets: `CREATE TABLE IF NOT EXISTS clmm_pool_buckets (
	id String,
	pool String,
	interval_seconds Int64,
	period_start DateTime,
	open String,
	high String,
	low String,
	close String,
	volume_token0 String,
	volume_token1 String,
	volume_usd String,
	fees_usd String,
	tx_count Int64,
	liquidity String,
	token0_price String,
	token1_price String,
	tvl_usd String,
	updated_at DateTime
) ENGINE = ReplacingMergeTree(updated_at)
ORDER BY (pool, interval_seconds, period_start)`,
}

// EnsureSchema creates the analytics tables when missing
func (c *Conn) EnsureSchema(ctx context.Context) error {
	for _, table := range []string{TableSwaps, TableLiquidityEvents, TablePoolBuckets} {
		if err := c.Native.Exec(ctx, schemaDDL[table]); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}
	return nil
}

func (c *Conn) Health(ctx context.Context) error {
	return c.Native.Ping(ctx)
}

func (c *Conn) Close() error {
	return c.Native.Close()
}
