package window

import (
	"context"
	"math/big"
	"testing"

	"dexanalytics/internal/domain"
	"dexanalytics/internal/store"
	"dexanalytics/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPool  = "0x00000000000000000000000000000000000000p1"
	testToken = "0x00000000000000000000000000000000000000t1"
	// 2024-03-10 12:30:00 UTC
	baseTS int64 = 1710073800
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ========== Test Helpers ==========
func setupRollup(t *testing.T) (*Rollup, *store.Repository) {
	t.Helper()

	repo, err := store.NewRepository(store.NewMemoryStore(testutil.Logger()))
	require.NoError(t, err)

	r, err := NewRollup(testutil.Logger(), repo)
	require.NoError(t, err)

	return r, repo
}

func setPoolPrice(t *testing.T, repo *store.Repository, price string) {
	t.Helper()
	ctx := context.Background()

	pool, err := repo.Pool(ctx, testPool)
	require.NoError(t, err)
	if pool == nil {
		pool = domain.NewPool(testPool, "0xa", "0xb", 3000)
	}

	tick := int64(100)
	pool.Token1Price = d(price)
	pool.Token0Price = decimal.NewFromInt(1).DivRound(d(price), 30)
	pool.Liquidity = big.NewInt(5000)
	pool.SqrtPrice = big.NewInt(123456)
	pool.Tick = &tick
	pool.TotalValueLockedUSD = d("1000")
	require.NoError(t, repo.SavePool(ctx, pool))
}

// ========== Interval Tests ==========

func TestInterval_IndexAndStart(t *testing.T) {
	tests := []struct {
		name     string
		interval Interval
		ts       int64
		index    int64
		start    int64
	}{
		{"day", Day, baseTS, 19792, 19792 * 86400},
		{"hour", Hour, baseTS, 475020, 475020 * 3600},
		{"day boundary", Day, 86400, 1, 86400},
		{"last second of day", Day, 86399, 0, 0},
		{"before epoch", Hour, -1, -1, -3600},
		{"zero", Hour, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.index, tt.interval.Index(tt.ts))
			assert.Equal(t, tt.start, tt.interval.Start(tt.ts))
		})
	}
}

func TestParseInterval(t *testing.T) {
	i, err := ParseInterval("Day")
	require.NoError(t, err)
	assert.Equal(t, Day, i)

	i, err = ParseInterval("hour")
	require.NoError(t, err)
	assert.Equal(t, Hour, i)

	_, err = ParseInterval("week")
	assert.Error(t, err)
}

func TestBucketID(t *testing.T) {
	assert.Equal(t, "0xabc-19792", BucketID("0xabc", 19792))
}

// ========== Pool Rollup Tests ==========

func TestUpdatePool_OHLCInArrivalOrder(t *testing.T) {
	r, repo := setupRollup(t)
	ctx := context.Background()

	delta := PoolDelta{
		VolumeToken0: d("1"),
		VolumeToken1: d("2000"),
		VolumeUSD:    d("2000"),
		FeesUSD:      d("6"),
	}

	var buckets []*domain.PoolBucket
	for i, price := range []string{"2000", "2100", "1900"} {
		setPoolPrice(t, repo, price)

		var err error
		buckets, err = r.UpdatePool(ctx, testPool, baseTS+int64(i*60), delta)
		require.NoError(t, err)
	}

	require.Len(t, buckets, 2)
	for _, b := range buckets {
		assert.True(t, b.Open.Equal(d("2000")), "open %s", b.Open)
		assert.True(t, b.High.Equal(d("2100")), "high %s", b.High)
		assert.True(t, b.Low.Equal(d("1900")), "low %s", b.Low)
		assert.True(t, b.Close.Equal(d("1900")), "close %s", b.Close)
		assert.Equal(t, int64(3), b.TxCount)
		assert.True(t, b.VolumeUSD.Equal(d("6000")))
		assert.True(t, b.FeesUSD.Equal(d("18")))
		assert.True(t, b.VolumeToken0.Equal(d("3")))
		assert.Equal(t, 0, big.NewInt(5000).Cmp(b.Liquidity))
		require.NotNil(t, b.Tick)
		assert.Equal(t, int64(100), *b.Tick)
		assert.True(t, b.TVLUSD.Equal(d("1000")))
	}

	day, err := repo.PoolBucket(ctx, domain.KindPoolDay, BucketID(testPool, Day.Index(baseTS)))
	require.NoError(t, err)
	require.NotNil(t, day)
	assert.Equal(t, int64(3), day.TxCount)
	assert.Equal(t, Day.Start(baseTS), day.PeriodStart)
	assert.Equal(t, int64(86400), day.Interval)

	hour, err := repo.PoolBucket(ctx, domain.KindPoolHour, BucketID(testPool, Hour.Index(baseTS)))
	require.NoError(t, err)
	require.NotNil(t, hour)
	assert.Equal(t, Hour.Start(baseTS), hour.PeriodStart)
}

func TestUpdatePool_DayApartBucketsAreDistinct(t *testing.T) {
	r, repo := setupRollup(t)
	ctx := context.Background()

	setPoolPrice(t, repo, "10")
	first, err := r.UpdatePool(ctx, testPool, baseTS, PoolDelta{})
	require.NoError(t, err)

	setPoolPrice(t, repo, "12")
	second, err := r.UpdatePool(ctx, testPool, baseTS+Day.Length, PoolDelta{})
	require.NoError(t, err)

	for i := range Intervals {
		assert.NotEqual(t, first[i].ID, second[i].ID)
		assert.NotEqual(t, first[i].PeriodStart, second[i].PeriodStart)
		assert.Equal(t, int64(1), first[i].TxCount)
		assert.Equal(t, int64(1), second[i].TxCount)
		assert.True(t, second[i].Open.Equal(d("12")))
	}

	// the earlier bucket is untouched by the later event
	old, err := repo.PoolBucket(ctx, domain.KindPoolDay, first[0].ID)
	require.NoError(t, err)
	assert.True(t, old.Close.Equal(d("10")))
}

func TestUpdatePool_OpenIsNeverRevised(t *testing.T) {
	r, repo := setupRollup(t)
	ctx := context.Background()

	setPoolPrice(t, repo, "5")
	_, err := r.UpdatePool(ctx, testPool, baseTS+600, PoolDelta{})
	require.NoError(t, err)

	// earlier timestamp, later arrival
	setPoolPrice(t, repo, "4")
	buckets, err := r.UpdatePool(ctx, testPool, baseTS, PoolDelta{})
	require.NoError(t, err)

	assert.True(t, buckets[0].Open.Equal(d("5")))
	assert.True(t, buckets[0].Close.Equal(d("4")))
	assert.Equal(t, int64(2), buckets[0].TxCount)

	current, ok := r.watermark.Current()
	assert.True(t, ok)
	assert.Equal(t, baseTS+600, current)
}

func TestUpdatePool_MissingPool(t *testing.T) {
	r, repo := setupRollup(t)

	buckets, err := r.UpdatePool(context.Background(), "0xghost", baseTS, PoolDelta{})

	assert.ErrorIs(t, err, ErrPoolNotFound)
	assert.Nil(t, buckets)

	b, err := repo.PoolBucket(context.Background(), domain.KindPoolDay, BucketID("0xghost", Day.Index(baseTS)))
	require.NoError(t, err)
	assert.Nil(t, b)
}

// ========== Token Rollup Tests ==========

func TestUpdateToken_USDPrices(t *testing.T) {
	r, _ := setupRollup(t)
	ctx := context.Background()

	tok := domain.NewToken(testToken)
	tok.DerivedETH = d("0.5")
	tok.TotalValueLocked = d("10")
	tok.TotalValueLockedUSD = d("10000")

	delta := TokenDelta{Volume: d("1"), VolumeUSD: d("1000"), UntrackedVolumeUSD: d("1000"), FeesUSD: d("3")}

	_, err := r.UpdateToken(ctx, tok, d("2000"), baseTS, delta)
	require.NoError(t, err)

	tok.DerivedETH = d("0.6")
	buckets, err := r.UpdateToken(ctx, tok, d("2000"), baseTS+30, delta)
	require.NoError(t, err)

	require.Len(t, buckets, 2)
	for _, b := range buckets {
		assert.True(t, b.Open.Equal(d("1000")))
		assert.True(t, b.High.Equal(d("1200")))
		assert.True(t, b.Low.Equal(d("1000")))
		assert.True(t, b.Close.Equal(d("1200")))
		assert.True(t, b.PriceUSD.Equal(d("1200")))
		assert.True(t, b.Volume.Equal(d("2")))
		assert.True(t, b.FeesUSD.Equal(d("6")))
		assert.True(t, b.TotalValueLockedUSD.Equal(d("10000")))
		assert.Equal(t, int64(2), b.TxCount)
		assert.Equal(t, testToken, b.Token)
	}
}

// ========== Protocol Day Tests ==========

func TestUpdateProtocolDay_SnapshotsFactory(t *testing.T) {
	r, repo := setupRollup(t)
	ctx := context.Background()

	factory := &domain.Factory{ID: "0xfactory", TxCount: 41, TotalValueLockedUSD: d("500")}
	_, err := r.UpdateProtocolDay(ctx, factory, baseTS, ProtocolDelta{VolumeUSD: d("100"), VolumeETH: d("0.05"), FeesUSD: d("0.3")})
	require.NoError(t, err)

	factory.TxCount = 42
	factory.TotalValueLockedUSD = d("750")
	day, err := r.UpdateProtocolDay(ctx, factory, baseTS+10, ProtocolDelta{VolumeUSD: d("50"), VolumeETH: d("0.025"), FeesUSD: d("0.15")})
	require.NoError(t, err)

	assert.Equal(t, "19792", day.ID)
	assert.Equal(t, Day.Start(baseTS), day.Date)
	assert.Equal(t, int64(42), day.TxCount)
	assert.True(t, day.TVLUSD.Equal(d("750")))
	assert.True(t, day.VolumeUSD.Equal(d("150")))
	assert.True(t, day.VolumeETH.Equal(d("0.075")))
	assert.True(t, day.FeesUSD.Equal(d("0.45")))

	stored, err := repo.ProtocolDay(ctx, "19792")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.VolumeUSD.Equal(d("150")))
}

func TestNewRollup_RequiresRepository(t *testing.T) {
	r, err := NewRollup(testutil.Logger(), nil)
	assert.Error(t, err)
	assert.Nil(t, r)
}

// ========== Watermark Tests ==========

func TestWatermark_Advance(t *testing.T) {
	w := NewWatermark()

	_, ok := w.Current()
	assert.False(t, ok)

	assert.False(t, w.Advance(100))
	assert.False(t, w.Advance(100))
	assert.False(t, w.Advance(150))
	assert.True(t, w.Advance(120))

	current, ok := w.Current()
	assert.True(t, ok)
	assert.Equal(t, int64(150), current)
}
