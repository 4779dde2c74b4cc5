package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"dexanalytics/internal/config"
	"dexanalytics/internal/domain"
	"dexanalytics/internal/testutil"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn fails every PrepareBatch and records the queries it was asked for
type fakeConn struct {
	mu      sync.Mutex
	queries []string
	pingErr error
}

func (f *fakeConn) PrepareBatch(_ context.Context, query string, _ ...driver.PrepareBatchOption) (driver.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return nil, errors.New("clickhouse unavailable")
}

func (f *fakeConn) Ping(context.Context) error { return f.pingErr }

func (f *fakeConn) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// fakeAlerter records every alert raised by the writer
type fakeAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (f *fakeAlerter) ErrorfLogAndAlert(message string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, fmt.Sprintf(message, args...))
}

func (f *fakeAlerter) Alerts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.alerts...)
}

func newTestWriter(t *testing.T, conn *fakeConn, cfg config.ClickHouseWriterConfig) (*Writer, *[]time.Duration) {
	return newAlertingTestWriter(t, conn, nil, cfg)
}

func newAlertingTestWriter(t *testing.T, conn *fakeConn, alert Alerter, cfg config.ClickHouseWriterConfig) (*Writer, *[]time.Duration) {
	t.Helper()

	w, err := NewWriter(testutil.Logger(), alert, nil, conn, cfg)
	require.NoError(t, err)

	var sleeps []time.Duration
	w.sleepFn = func(d time.Duration) { sleeps = append(sleeps, d) }
	return w, &sleeps
}

// ========== Row Mapping Tests ==========

func TestSwapRow_ColumnOrder(t *testing.T) {
	s := &domain.Swap{
		ID:           "0xabc-7",
		TxHash:       "0xabc",
		LogIndex:     7,
		BlockNumber:  100,
		Timestamp:    1710073800,
		Pool:         "0xpool",
		Token0:       "0xt0",
		Token1:       "0xt1",
		Sender:       "0xs",
		Recipient:    "0xr",
		Amount0:      decimal.RequireFromString("-1.5"),
		Amount1:      decimal.RequireFromString("3000"),
		AmountUSD:    decimal.RequireFromString("3000"),
		SqrtPriceX96: big.NewInt(12345),
		Tick:         -200,
	}

	row := SwapRow(s)

	require.Equal(t, TableSwaps, row.Table)
	require.Len(t, row.Values, len(tableColumns[TableSwaps]))
	assert.Equal(t, "0xabc-7", row.Values[0])
	assert.Equal(t, time.Unix(1710073800, 0).UTC(), row.Values[1])
	assert.Equal(t, "-1.5", row.Values[10])
	assert.Equal(t, "12345", row.Values[13])
	assert.Equal(t, int64(-200), row.Values[14])
}

func TestLiquidityRow_NilAmount(t *testing.T) {
	c := &domain.LiquidityChange{ID: "0xdef-1", Timestamp: 10, TickLower: -60, TickUpper: 60}

	row := LiquidityRow(domain.KindBurn, c)

	require.Len(t, row.Values, len(tableColumns[TableLiquidityEvents]))
	assert.Equal(t, "burn", row.Values[1])
	assert.Equal(t, "0", row.Values[11])
	assert.Equal(t, int64(-60), row.Values[15])
}

func TestPoolBucketRow(t *testing.T) {
	b := &domain.PoolBucket{
		ID:          "0xpool-19792",
		Pool:        "0xpool",
		Interval:    86400,
		PeriodStart: 19792 * 86400,
		Open:        decimal.NewFromInt(2000),
		Close:       decimal.NewFromInt(2100),
		TxCount:     3,
		Liquidity:   big.NewInt(5),
	}
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	row := PoolBucketRow(b, now)

	require.Len(t, row.Values, len(tableColumns[TablePoolBuckets]))
	assert.Equal(t, time.Unix(19792*86400, 0).UTC(), row.Values[3])
	assert.Equal(t, "2000", row.Values[4])
	assert.Equal(t, "2100", row.Values[7])
	assert.Equal(t, int64(3), row.Values[12])
	assert.Equal(t, "5", row.Values[13])
	assert.Equal(t, now, row.Values[17])
}

func TestInsertQuery(t *testing.T) {
	q := insertQuery(TableSwaps)

	assert.True(t, strings.HasPrefix(q, "INSERT INTO clmm_swaps (id, event_time,"))
	assert.True(t, strings.HasSuffix(q, "sqrt_price_x96, tick)"))
}

// ========== Writer Tests ==========

func TestNewWriter_NilConn(t *testing.T) {
	w, err := NewWriter(testutil.Logger(), nil, nil, nil, config.ClickHouseWriterConfig{})

	assert.Error(t, err)
	assert.Nil(t, w)
}

func TestWriter_DefaultsApplied(t *testing.T) {
	w, _ := newTestWriter(t, &fakeConn{}, config.ClickHouseWriterConfig{MaxRetries: -1})
	defer w.Close(context.Background())

	assert.Equal(t, 1000, w.cfg.BatchMaxRows)
	assert.Equal(t, 200*time.Millisecond, w.cfg.BatchMaxInterval)
	assert.Equal(t, 0, w.cfg.MaxRetries)
	assert.Equal(t, 8192, w.cfg.QueueSize)
}

func TestWriter_RetriesWithBackoffThenDrops(t *testing.T) {
	conn := &fakeConn{}
	w, sleeps := newTestWriter(t, conn, config.ClickHouseWriterConfig{
		BatchMaxRows:     100,
		BatchMaxInterval: time.Hour,
		MaxRetries:       2,
		RetryBackoff:     10 * time.Millisecond,
	})

	require.NoError(t, w.WriteSwap(context.Background(), &domain.Swap{ID: "a"}))
	require.NoError(t, w.Close(context.Background()))

	queries := conn.Queries()
	assert.Len(t, queries, 3)
	for _, q := range queries {
		assert.Contains(t, q, "INSERT INTO clmm_swaps")
	}
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *sleeps)
}

func TestWriter_AlertsWhenBatchDropped(t *testing.T) {
	alert := &fakeAlerter{}
	w, _ := newAlertingTestWriter(t, &fakeConn{}, alert, config.ClickHouseWriterConfig{
		BatchMaxRows:     100,
		BatchMaxInterval: time.Hour,
		MaxRetries:       1,
	})

	ctx := context.Background()
	require.NoError(t, w.WriteSwap(ctx, &domain.Swap{ID: "a"}))
	require.NoError(t, w.WriteSwap(ctx, &domain.Swap{ID: "b"}))
	require.NoError(t, w.Close(ctx))

	alerts := alert.Alerts()
	require.Len(t, alerts, 1, "one alert per dropped batch, not per attempt")
	assert.Contains(t, alerts[0], "[2] rows")
	assert.Contains(t, alerts[0], "clmm_swaps")
	assert.Contains(t, alerts[0], "clickhouse unavailable")
}

func TestWriter_FlushesWhenBatchFull(t *testing.T) {
	conn := &fakeConn{}
	w, _ := newTestWriter(t, conn, config.ClickHouseWriterConfig{
		BatchMaxRows:     2,
		BatchMaxInterval: time.Hour,
	})
	defer w.Close(context.Background())

	buckets := []*domain.PoolBucket{{ID: "p-1"}, {ID: "p-2"}}
	require.NoError(t, w.WritePoolBuckets(context.Background(), buckets))

	require.Eventually(t, func() bool {
		return len(conn.Queries()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, conn.Queries()[0], "INSERT INTO clmm_pool_buckets")
}

func TestWriter_GroupsByTable(t *testing.T) {
	conn := &fakeConn{}
	w, _ := newTestWriter(t, conn, config.ClickHouseWriterConfig{
		BatchMaxRows:     100,
		BatchMaxInterval: time.Hour,
	})

	ctx := context.Background()
	require.NoError(t, w.WriteSwap(ctx, &domain.Swap{ID: "s1"}))
	require.NoError(t, w.WriteSwap(ctx, &domain.Swap{ID: "s2"}))
	require.NoError(t, w.WriteLiquidity(ctx, domain.KindMint, &domain.LiquidityChange{ID: "m1"}))
	require.NoError(t, w.Enqueue(ctx, Row{Table: "unknown"}))
	require.NoError(t, w.Close(ctx))

	queries := conn.Queries()
	require.Len(t, queries, 2)
	joined := strings.Join(queries, "\n")
	assert.Contains(t, joined, "clmm_swaps")
	assert.Contains(t, joined, "clmm_liquidity_events")
}

func TestWriter_EnqueueAfterClose(t *testing.T) {
	w, _ := newTestWriter(t, &fakeConn{}, config.ClickHouseWriterConfig{})

	require.NoError(t, w.Close(context.Background()))
	require.NoError(t, w.Close(context.Background()))

	err := w.WriteSwap(context.Background(), &domain.Swap{ID: "late"})
	assert.ErrorIs(t, err, ErrWriterClosed)
}

func TestWriter_Health(t *testing.T) {
	conn := &fakeConn{pingErr: errors.New("down")}
	w, _ := newTestWriter(t, conn, config.ClickHouseWriterConfig{})
	defer w.Close(context.Background())

	assert.EqualError(t, w.Health(context.Background()), "down")
}

// ========== Schema Tests ==========

func TestSchemaDDL_MatchesInsertColumns(t *testing.T) {
	for table, columns := range tableColumns {
		ddl, ok := schemaDDL[table]
		require.True(t, ok, "no DDL for %s", table)
		assert.True(t, strings.HasPrefix(ddl, "CREATE TABLE IF NOT EXISTS "+table+" ("), table)

		body := ddl[strings.Index(ddl, "(")+1 : strings.Index(ddl, ") ENGINE")]
		var declared []string
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			declared = append(declared, strings.Fields(line)[0])
		}
		assert.Equal(t, columns, declared, table)
	}
	assert.Len(t, schemaDDL, len(tableColumns))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)

	_, err = New(context.Background(), &config.ClickHouseConfig{Enabled: true})
	assert.EqualError(t, err, "clickhouse dsn is required")
}
