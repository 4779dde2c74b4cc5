package clickhouse

import (
	"math/big"
	"strings"
	"time"

	"dexanalytics/internal/domain"
)

const (
	TableSwaps           = "clmm_swaps"
	TableLiquidityEvents = "clmm_liquidity_events"
	TablePoolBuckets     = "clmm_pool_buckets"
)

// column order of every table, Row.Values follow it; tables are ReplacingMergeTree on id
var tableColumns = map[string][]string{
	TableSwaps: {
		"id", "event_time", "tx_hash", "log_index", "block_number",
		"pool", "token0", "token1", "sender", "recipient",
		"amount0", "amount1", "amount_usd", "sqrt_price_x96", "tick",
	},
	TableLiquidityEvents: {
		"id", "kind", "event_time", "tx_hash", "log_index", "block_number",
		"pool", "token0", "token1", "owner", "sender",
		"amount", "amount0", "amount1", "amount_usd", "tick_lower", "tick_upper",
	},
	TablePoolBuckets: {
		"id", "pool", "interval_seconds", "period_start",
		"open", "high", "low", "close",
		"volume_token0", "volume_token1", "volume_usd", "fees_usd", "tx_count",
		"liquidity", "token0_price", "token1_price", "tvl_usd", "updated_at",
	},
}

// Row is one insert into Table; decimals and big integers are sent as strings
type Row struct {
	Table  string
	Values []any
}

func insertQuery(table string) string {
	return "INSERT INTO " + table + " (" + strings.Join(tableColumns[table], ", ") + ")"
}

func SwapRow(s *domain.Swap) Row {
	return Row{
		Table: TableSwaps,
		Values: []any{
			s.ID,
			time.Unix(s.Timestamp, 0).UTC(),
			s.TxHash,
			s.LogIndex,
			s.BlockNumber,
			s.Pool,
			s.Token0,
			s.Token1,
			s.Sender,
			s.Recipient,
			s.Amount0.String(),
			s.Amount1.String(),
			s.AmountUSD.String(),
			bigString(s.SqrtPriceX96),
			s.Tick,
		},
	}
}

// kind is domain.KindMint or domain.KindBurn
func LiquidityRow(kind domain.Kind, c *domain.LiquidityChange) Row {
	return Row{
		Table: TableLiquidityEvents,
		Values: []any{
			c.ID,
			string(kind),
			time.Unix(c.Timestamp, 0).UTC(),
			c.TxHash,
			c.LogIndex,
			c.BlockNumber,
			c.Pool,
			c.Token0,
			c.Token1,
			c.Owner,
			c.Sender,
			bigString(c.Amount),
			c.Amount0.String(),
			c.Amount1.String(),
			c.AmountUSD.String(),
			c.TickLower,
			c.TickUpper,
		},
	}
}

func PoolBucketRow(b *domain.PoolBucket, updatedAt time.Time) Row {
	return Row{
		Table: TablePoolBuckets,
		Values: []any{
			b.ID,
			b.Pool,
			b.Interval,
			time.Unix(b.PeriodStart, 0).UTC(),
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			b.Close.String(),
			b.VolumeToken0.String(),
			b.VolumeToken1.String(),
			b.VolumeUSD.String(),
			b.FeesUSD.String(),
			b.TxCount,
			bigString(b.Liquidity),
			b.Token0Price.String(),
			b.Token1Price.String(),
			b.TVLUSD.String(),
			updatedAt.UTC(),
		},
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
