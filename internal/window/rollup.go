package window

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"dexanalytics/internal/domain"
	"dexanalytics/internal/store"

	"github.com/shopspring/decimal"
	"gitlab.com/nevasik7/alerting/logger"
)

/*
	Rollups keyed by time bucket: pool day/hour, token day/hour and one protocol day.
	A bucket is created lazily by the first event that falls into it and accumulated
	by every later one; once its end time passes nothing addresses it again.
*/

type Aggregator interface {
	UpdatePool(ctx context.Context, poolID string, ts int64, delta PoolDelta) ([]*domain.PoolBucket, error)
	UpdateToken(ctx context.Context, token *domain.Token, ethPriceUSD decimal.Decimal, ts int64, delta TokenDelta) ([]*domain.TokenBucket, error)
	UpdateProtocolDay(ctx context.Context, factory *domain.Factory, ts int64, delta ProtocolDelta) (*domain.ProtocolDayData, error)
}

// A pool event for a pool that was never created is an integrity violation
var ErrPoolNotFound = errors.New("pool not found for rollup")

type PoolDelta struct {
	VolumeToken0 decimal.Decimal
	VolumeToken1 decimal.Decimal
	VolumeUSD    decimal.Decimal
	FeesUSD      decimal.Decimal
}

type TokenDelta struct {
	Volume             decimal.Decimal
	VolumeUSD          decimal.Decimal
	UntrackedVolumeUSD decimal.Decimal
	FeesUSD            decimal.Decimal
}

type ProtocolDelta struct {
	VolumeETH          decimal.Decimal
	VolumeUSD          decimal.Decimal
	VolumeUSDUntracked decimal.Decimal
	FeesUSD            decimal.Decimal
}

type Rollup struct {
	log       logger.Logger
	repo      *store.Repository
	watermark *Watermark
}

func NewRollup(log logger.Logger, repo *store.Repository) (*Rollup, error) {
	if repo == nil {
		return nil, errors.New("repository is required to the rollup")
	}

	return &Rollup{
		log:       log,
		repo:      repo,
		watermark: NewWatermark(),
	}, nil
}

// upsert is the single load-or-init-then-accumulate step shared by every bucket kind
func upsert[B any](
	ctx context.Context,
	kind domain.Kind,
	id string,
	load func(context.Context, domain.Kind, string) (*B, error),
	save func(context.Context, domain.Kind, *B) error,
	create func() *B,
	accumulate func(*B),
) (*B, error) {
	b, err := load(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", kind, id, err)
	}
	if b == nil {
		b = create()
	}

	accumulate(b)

	if err = save(ctx, kind, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Rollup) observeTime(subject string, ts int64) {
	if r.watermark.Advance(ts) {
		current, _ := r.watermark.Current()
		r.log.Warnf("Event for %s at ts=%d is older than watermark=%d, applied in arrival order", subject, ts, current)
	}
}

// UpdatePool rolls the pool's current state into its day and hour buckets.
// The bucket price series is Token1Price (token1 per token0).
func (r *Rollup) UpdatePool(ctx context.Context, poolID string, ts int64, delta PoolDelta) ([]*domain.PoolBucket, error) {
	pool, err := r.repo.Pool(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("load pool %s: %w", poolID, err)
	}
	if pool == nil {
		r.log.Errorf("Rollup for unknown pool %s at ts=%d", poolID, ts)
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, poolID)
	}

	r.observeTime(poolID, ts)

	price := pool.Token1Price
	out := make([]*domain.PoolBucket, 0, len(Intervals))

	for _, interval := range Intervals {
		index := interval.Index(ts)

		bucket, err := upsert(ctx, interval.PoolKind, BucketID(pool.ID, index),
			r.repo.PoolBucket,
			r.repo.SavePoolBucket,
			func() *domain.PoolBucket {
				b := &domain.PoolBucket{
					ID:          BucketID(pool.ID, index),
					Pool:        pool.ID,
					Interval:    interval.Length,
					PeriodStart: index * interval.Length,
				}
				seed(poolOHLC(b), price)
				return b
			},
			func(b *domain.PoolBucket) {
				observe(poolOHLC(b), price)

				b.VolumeToken0 = b.VolumeToken0.Add(delta.VolumeToken0)
				b.VolumeToken1 = b.VolumeToken1.Add(delta.VolumeToken1)
				b.VolumeUSD = b.VolumeUSD.Add(delta.VolumeUSD)
				b.FeesUSD = b.FeesUSD.Add(delta.FeesUSD)

				b.Liquidity = cloneInt(pool.Liquidity)
				b.SqrtPrice = cloneInt(pool.SqrtPrice)
				b.Token0Price = pool.Token0Price
				b.Token1Price = pool.Token1Price
				b.Tick = cloneTick(pool.Tick)
				b.TVLUSD = pool.TotalValueLockedUSD

				b.TxCount++
			},
		)
		if err != nil {
			return nil, err
		}
		out = append(out, bucket)
	}

	return out, nil
}

// UpdateToken rolls the token into its day and hour buckets; prices are in USD
func (r *Rollup) UpdateToken(ctx context.Context, token *domain.Token, ethPriceUSD decimal.Decimal, ts int64, delta TokenDelta) ([]*domain.TokenBucket, error) {
	if token == nil {
		return nil, errors.New("token is required to the rollup")
	}

	price := token.USDPrice(ethPriceUSD)
	out := make([]*domain.TokenBucket, 0, len(Intervals))

	for _, interval := range Intervals {
		index := interval.Index(ts)

		bucket, err := upsert(ctx, interval.TokenKind, BucketID(token.ID, index),
			r.repo.TokenBucket,
			r.repo.SaveTokenBucket,
			func() *domain.TokenBucket {
				b := &domain.TokenBucket{
					ID:          BucketID(token.ID, index),
					Token:       token.ID,
					Interval:    interval.Length,
					PeriodStart: index * interval.Length,
				}
				seed(tokenOHLC(b), price)
				return b
			},
			func(b *domain.TokenBucket) {
				observe(tokenOHLC(b), price)

				b.Volume = b.Volume.Add(delta.Volume)
				b.VolumeUSD = b.VolumeUSD.Add(delta.VolumeUSD)
				b.UntrackedVolumeUSD = b.UntrackedVolumeUSD.Add(delta.UntrackedVolumeUSD)
				b.FeesUSD = b.FeesUSD.Add(delta.FeesUSD)

				b.PriceUSD = price
				b.TotalValueLocked = token.TotalValueLocked
				b.TotalValueLockedUSD = token.TotalValueLockedUSD

				b.TxCount++
			},
		)
		if err != nil {
			return nil, err
		}
		out = append(out, bucket)
	}

	return out, nil
}

// UpdateProtocolDay snapshots the factory counters into the global day bucket
func (r *Rollup) UpdateProtocolDay(ctx context.Context, factory *domain.Factory, ts int64, delta ProtocolDelta) (*domain.ProtocolDayData, error) {
	if factory == nil {
		return nil, errors.New("factory is required to the rollup")
	}

	index := Day.Index(ts)
	id := strconv.FormatInt(index, 10)

	return upsert(ctx, domain.KindProtocolDay, id,
		func(ctx context.Context, _ domain.Kind, id string) (*domain.ProtocolDayData, error) {
			return r.repo.ProtocolDay(ctx, id)
		},
		func(ctx context.Context, _ domain.Kind, d *domain.ProtocolDayData) error {
			return r.repo.SaveProtocolDay(ctx, d)
		},
		func() *domain.ProtocolDayData {
			return &domain.ProtocolDayData{ID: id, Date: index * Day.Length}
		},
		func(d *domain.ProtocolDayData) {
			d.VolumeETH = d.VolumeETH.Add(delta.VolumeETH)
			d.VolumeUSD = d.VolumeUSD.Add(delta.VolumeUSD)
			d.VolumeUSDUntracked = d.VolumeUSDUntracked.Add(delta.VolumeUSDUntracked)
			d.FeesUSD = d.FeesUSD.Add(delta.FeesUSD)

			d.TVLUSD = factory.TotalValueLockedUSD
			d.TxCount = factory.TxCount
		},
	)
}

func poolOHLC(b *domain.PoolBucket) ohlc {
	return ohlc{open: &b.Open, high: &b.High, low: &b.Low, close: &b.Close}
}

func tokenOHLC(b *domain.TokenBucket) ohlc {
	return ohlc{open: &b.Open, high: &b.High, low: &b.Low, close: &b.Close}
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func cloneTick(t *int64) *int64 {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
