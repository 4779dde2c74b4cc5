package service

import (
	"context"
	"fmt"
	"math/big"

	"dexanalytics/internal/domain"
	"dexanalytics/internal/pricing"
	"dexanalytics/internal/window"

	"github.com/shopspring/decimal"
)

var feeTierDenominator = decimal.NewFromInt(1_000_000)

// HandlePoolCreated registers the pool and, on first sight, its tokens
func (s *IndexerService) HandlePoolCreated(ctx context.Context, ev *domain.PoolCreatedEvent) error {
	if _, err := s.pricer.EnsureBundle(ctx); err != nil {
		return err
	}

	poolID := domain.NormalizeAddress(ev.Pool)
	if _, skip := s.skipPools[poolID]; skip {
		s.log.Warnf("Skipping problematic pool: %s", poolID)
		return nil
	}

	existing, err := s.repo.Pool(ctx, poolID)
	if err != nil {
		return fmt.Errorf("load pool %s: %w", poolID, err)
	}
	if existing != nil {
		s.log.Warnf("Pool %s already created at block %d, event ignored", poolID, existing.CreatedAtBlockNumber)
		return nil
	}

	s.log.Infof("Processing PoolCreated at block %d for pool %s", ev.BlockNumber, poolID)

	factory, err := s.loadFactory(ctx)
	if err != nil {
		return err
	}
	factory.PoolCount++

	token0, err := s.loadOrCreateToken(ctx, ev.Token0)
	if err != nil {
		return err
	}
	token1, err := s.loadOrCreateToken(ctx, ev.Token1)
	if err != nil {
		return err
	}

	pool := domain.NewPool(poolID, token0.ID, token1.ID, ev.Fee)
	pool.CreatedAtTimestamp = ev.Timestamp
	pool.CreatedAtBlockNumber = ev.BlockNumber

	// a token is priced through pools paired with a whitelisted counterpart
	if s.pricer.IsWhitelisted(token0.ID) {
		token1.WhitelistPools = append(token1.WhitelistPools, poolID)
	}
	if s.pricer.IsWhitelisted(token1.ID) {
		token0.WhitelistPools = append(token0.WhitelistPools, poolID)
	}
	token0.PoolCount++
	token1.PoolCount++

	if err = s.repo.SavePool(ctx, pool); err != nil {
		return err
	}
	if err = s.repo.SaveToken(ctx, token0); err != nil {
		return err
	}
	if err = s.repo.SaveToken(ctx, token1); err != nil {
		return err
	}
	return s.repo.SaveFactory(ctx, factory)
}

// HandleInitialize sets the first price of a pool; it is not a bucket transaction
func (s *IndexerService) HandleInitialize(ctx context.Context, ev *domain.InitializeEvent) error {
	pool, token0, token1, err := s.loadPoolWithTokens(ctx, ev.Address)
	if err != nil || pool == nil {
		return err
	}

	tick := ev.Tick
	pool.SqrtPrice = new(big.Int).Set(ev.SqrtPriceX96.Value())
	pool.Tick = &tick
	pool.Token0Price, pool.Token1Price = pricing.SqrtPriceX96ToTokenPrices(pool.SqrtPrice, token0.Decimals, token1.Decimals)

	if err = s.repo.SavePool(ctx, pool); err != nil {
		return err
	}

	bundle, err := s.pricer.RefreshBundle(ctx)
	if err != nil {
		return err
	}
	s.metrics.SetEthPriceUSD(bundle.EthPriceUSD.InexactFloat64())

	token0.DerivedETH = s.pricer.FindEthPerToken(ctx, token0)
	token1.DerivedETH = s.pricer.FindEthPerToken(ctx, token1)

	if err = s.repo.SaveToken(ctx, token0); err != nil {
		return err
	}
	return s.repo.SaveToken(ctx, token1)
}

// HandleSwap values the swap with the prices in effect before it, moves the
// pool to its new price and reprices both tokens afterwards.
func (s *IndexerService) HandleSwap(ctx context.Context, ev *domain.SwapEvent) error {
	pool, token0, token1, err := s.loadPoolWithTokens(ctx, ev.Address)
	if err != nil || pool == nil {
		return err
	}

	bundle, err := s.pricer.EnsureBundle(ctx)
	if err != nil {
		return err
	}
	factory, err := s.loadFactory(ctx)
	if err != nil {
		return err
	}

	amount0 := pricing.ConvertTokenToDecimal(ev.Amount0.Value(), token0.Decimals)
	amount1 := pricing.ConvertTokenToDecimal(ev.Amount1.Value(), token1.Decimals)
	amount0Abs, amount1Abs := amount0.Abs(), amount1.Abs()

	ethPrice := bundle.EthPriceUSD
	amount0USD := amount0Abs.Mul(token0.USDPrice(ethPrice))
	amount1USD := amount1Abs.Mul(token1.USDPrice(ethPrice))

	// both legs count the same notional, hence the halving
	trackedUSD := s.pricer.TrackedAmountUSD(amount0Abs, token0, amount1Abs, token1, ethPrice).Div(decimal.NewFromInt(2))
	trackedETH := pricing.SafeDiv(trackedUSD, ethPrice)
	untrackedUSD := amount0USD.Add(amount1USD).Div(decimal.NewFromInt(2))

	feeTier := decimal.NewFromInt(pool.FeeTier)
	feesETH := trackedETH.Mul(feeTier).Div(feeTierDenominator)
	feesUSD := trackedUSD.Mul(feeTier).Div(feeTierDenominator)

	// the pool's old TVL leaves the factory total and comes back repriced below
	factory.TotalValueLockedETH = factory.TotalValueLockedETH.Sub(pool.TotalValueLockedETH)

	factory.TxCount++
	factory.TotalVolumeETH = factory.TotalVolumeETH.Add(trackedETH)
	factory.TotalVolumeUSD = factory.TotalVolumeUSD.Add(trackedUSD)
	factory.UntrackedVolumeUSD = factory.UntrackedVolumeUSD.Add(untrackedUSD)
	factory.TotalFeesETH = factory.TotalFeesETH.Add(feesETH)
	factory.TotalFeesUSD = factory.TotalFeesUSD.Add(feesUSD)

	pool.VolumeToken0 = pool.VolumeToken0.Add(amount0Abs)
	pool.VolumeToken1 = pool.VolumeToken1.Add(amount1Abs)
	pool.VolumeUSD = pool.VolumeUSD.Add(trackedUSD)
	pool.UntrackedVolumeUSD = pool.UntrackedVolumeUSD.Add(untrackedUSD)
	pool.FeesUSD = pool.FeesUSD.Add(feesUSD)
	pool.TxCount++

	tick := ev.Tick
	pool.Liquidity = new(big.Int).Set(ev.Liquidity.Value())
	pool.SqrtPrice = new(big.Int).Set(ev.SqrtPriceX96.Value())
	pool.Tick = &tick
	pool.TotalValueLockedToken0 = pool.TotalValueLockedToken0.Add(amount0)
	pool.TotalValueLockedToken1 = pool.TotalValueLockedToken1.Add(amount1)

	token0.Volume = token0.Volume.Add(amount0Abs)
	token0.TotalValueLocked = token0.TotalValueLocked.Add(amount0)
	token0.VolumeUSD = token0.VolumeUSD.Add(trackedUSD)
	token0.UntrackedVolumeUSD = token0.UntrackedVolumeUSD.Add(untrackedUSD)
	token0.FeesUSD = token0.FeesUSD.Add(feesUSD)
	token0.TxCount++

	token1.Volume = token1.Volume.Add(amount1Abs)
	token1.TotalValueLocked = token1.TotalValueLocked.Add(amount1)
	token1.VolumeUSD = token1.VolumeUSD.Add(trackedUSD)
	token1.UntrackedVolumeUSD = token1.UntrackedVolumeUSD.Add(untrackedUSD)
	token1.FeesUSD = token1.FeesUSD.Add(feesUSD)
	token1.TxCount++

	pool.Token0Price, pool.Token1Price = pricing.SqrtPriceX96ToTokenPrices(pool.SqrtPrice, token0.Decimals, token1.Decimals)

	// pricing reads the pool back from the store
	if err = s.repo.SavePool(ctx, pool); err != nil {
		return err
	}

	if bundle, err = s.pricer.RefreshBundle(ctx); err != nil {
		return err
	}
	ethPrice = bundle.EthPriceUSD
	s.metrics.SetEthPriceUSD(ethPrice.InexactFloat64())

	token0.DerivedETH = s.pricer.FindEthPerToken(ctx, token0)
	token1.DerivedETH = s.pricer.FindEthPerToken(ctx, token1)

	s.revalue(factory, pool, token0, token1, ethPrice)

	swap := &domain.Swap{
		ID:           domain.RecordID(ev.TxHash, ev.LogIndex),
		TxHash:       ev.TxHash,
		LogIndex:     ev.LogIndex,
		BlockNumber:  ev.BlockNumber,
		Timestamp:    ev.Timestamp,
		Pool:         pool.ID,
		Token0:       token0.ID,
		Token1:       token1.ID,
		Sender:       domain.NormalizeAddress(ev.Sender),
		Recipient:    domain.NormalizeAddress(ev.Recipient),
		Amount0:      amount0,
		Amount1:      amount1,
		AmountUSD:    trackedUSD,
		SqrtPriceX96: new(big.Int).Set(pool.SqrtPrice),
		Tick:         tick,
	}

	if err = s.saveAll(ctx, factory, pool, token0, token1); err != nil {
		return err
	}
	if err = s.repo.SaveSwap(ctx, swap); err != nil {
		return err
	}

	buckets, err := s.rollupAll(ctx, ev.Timestamp, factory, pool, token0, token1, ethPrice, rollupDeltas{
		protocol: window.ProtocolDelta{
			VolumeETH:          trackedETH,
			VolumeUSD:          trackedUSD,
			VolumeUSDUntracked: untrackedUSD,
			FeesUSD:            feesUSD,
		},
		pool: window.PoolDelta{
			VolumeToken0: amount0Abs,
			VolumeToken1: amount1Abs,
			VolumeUSD:    trackedUSD,
			FeesUSD:      feesUSD,
		},
		token0: window.TokenDelta{
			Volume:             amount0Abs,
			VolumeUSD:          trackedUSD,
			UntrackedVolumeUSD: untrackedUSD,
			FeesUSD:            feesUSD,
		},
		token1: window.TokenDelta{
			Volume:             amount1Abs,
			VolumeUSD:          trackedUSD,
			UntrackedVolumeUSD: untrackedUSD,
			FeesUSD:            feesUSD,
		},
	})
	if err != nil {
		return err
	}

	s.publishBuckets(ctx, pool.ID, buckets)
	if s.sink != nil {
		if err = s.sink.WriteSwap(ctx, swap); err != nil {
			s.log.Errorf("Analytics sink write failed for swap %s: %v", swap.ID, err)
		}
		s.writeBuckets(ctx, buckets)
	}

	return nil
}

func (s *IndexerService) HandleMint(ctx context.Context, ev *domain.LiquidityEvent) error {
	return s.applyLiquidity(ctx, domain.KindMint, ev, 1)
}

func (s *IndexerService) HandleBurn(ctx context.Context, ev *domain.LiquidityEvent) error {
	return s.applyLiquidity(ctx, domain.KindBurn, ev, -1)
}

// applyLiquidity adds (sign 1) or removes (sign -1) a position's amounts.
// In-range liquidity only moves when the current tick is inside [lower, upper).
func (s *IndexerService) applyLiquidity(ctx context.Context, kind domain.Kind, ev *domain.LiquidityEvent, sign int64) error {
	pool, token0, token1, err := s.loadPoolWithTokens(ctx, ev.Address)
	if err != nil || pool == nil {
		return err
	}

	bundle, err := s.pricer.EnsureBundle(ctx)
	if err != nil {
		return err
	}
	factory, err := s.loadFactory(ctx)
	if err != nil {
		return err
	}

	ethPrice := bundle.EthPriceUSD
	signed := decimal.NewFromInt(sign)

	amount0 := pricing.ConvertTokenToDecimal(ev.Amount0.Value(), token0.Decimals)
	amount1 := pricing.ConvertTokenToDecimal(ev.Amount1.Value(), token1.Decimals)
	amountUSD := amount0.Mul(token0.USDPrice(ethPrice)).Add(amount1.Mul(token1.USDPrice(ethPrice)))

	factory.TotalValueLockedETH = factory.TotalValueLockedETH.Sub(pool.TotalValueLockedETH)
	factory.TxCount++
	token0.TxCount++
	token1.TxCount++
	pool.TxCount++

	if pool.Tick != nil && ev.TickLower <= *pool.Tick && *pool.Tick < ev.TickUpper {
		delta := new(big.Int).Mul(ev.Amount.Value(), big.NewInt(sign))
		if pool.Liquidity == nil {
			pool.Liquidity = new(big.Int)
		}
		pool.Liquidity = new(big.Int).Add(pool.Liquidity, delta)
	}

	token0.TotalValueLocked = token0.TotalValueLocked.Add(amount0.Mul(signed))
	token1.TotalValueLocked = token1.TotalValueLocked.Add(amount1.Mul(signed))
	pool.TotalValueLockedToken0 = pool.TotalValueLockedToken0.Add(amount0.Mul(signed))
	pool.TotalValueLockedToken1 = pool.TotalValueLockedToken1.Add(amount1.Mul(signed))

	s.revalue(factory, pool, token0, token1, ethPrice)

	change := &domain.LiquidityChange{
		ID:          domain.RecordID(ev.TxHash, ev.LogIndex),
		TxHash:      ev.TxHash,
		LogIndex:    ev.LogIndex,
		BlockNumber: ev.BlockNumber,
		Timestamp:   ev.Timestamp,
		Pool:        pool.ID,
		Token0:      token0.ID,
		Token1:      token1.ID,
		Owner:       domain.NormalizeAddress(ev.Owner),
		Sender:      domain.NormalizeAddress(ev.Sender),
		Amount:      new(big.Int).Set(ev.Amount.Value()),
		Amount0:     amount0,
		Amount1:     amount1,
		AmountUSD:   amountUSD,
		TickLower:   ev.TickLower,
		TickUpper:   ev.TickUpper,
	}

	if err = s.saveAll(ctx, factory, pool, token0, token1); err != nil {
		return err
	}
	if err = s.repo.SaveLiquidityChange(ctx, kind, change); err != nil {
		return err
	}

	buckets, err := s.rollupAll(ctx, ev.Timestamp, factory, pool, token0, token1, ethPrice, rollupDeltas{})
	if err != nil {
		return err
	}

	s.publishBuckets(ctx, pool.ID, buckets)
	if s.sink != nil {
		if err = s.sink.WriteLiquidity(ctx, kind, change); err != nil {
			s.log.Errorf("Analytics sink write failed for %s %s: %v", kind, change.ID, err)
		}
		s.writeBuckets(ctx, buckets)
	}

	return nil
}

// revalue recomputes pool and token TVL at current prices and puts the pool's
// TVL back into the factory total
func (s *IndexerService) revalue(factory *domain.Factory, pool *domain.Pool, token0, token1 *domain.Token, ethPrice decimal.Decimal) {
	pool.TotalValueLockedETH = pool.TotalValueLockedToken0.Mul(token0.DerivedETH).
		Add(pool.TotalValueLockedToken1.Mul(token1.DerivedETH))
	pool.TotalValueLockedUSD = pool.TotalValueLockedETH.Mul(ethPrice)

	factory.TotalValueLockedETH = factory.TotalValueLockedETH.Add(pool.TotalValueLockedETH)
	factory.TotalValueLockedUSD = factory.TotalValueLockedETH.Mul(ethPrice)

	token0.TotalValueLockedUSD = token0.TotalValueLocked.Mul(token0.USDPrice(ethPrice))
	token1.TotalValueLockedUSD = token1.TotalValueLocked.Mul(token1.USDPrice(ethPrice))
}

type rollupDeltas struct {
	protocol window.ProtocolDelta
	pool     window.PoolDelta
	token0   window.TokenDelta
	token1   window.TokenDelta
}

func (s *IndexerService) rollupAll(
	ctx context.Context,
	ts int64,
	factory *domain.Factory,
	pool *domain.Pool,
	token0, token1 *domain.Token,
	ethPrice decimal.Decimal,
	d rollupDeltas,
) ([]*domain.PoolBucket, error) {
	if _, err := s.rollup.UpdateProtocolDay(ctx, factory, ts, d.protocol); err != nil {
		return nil, err
	}

	buckets, err := s.rollup.UpdatePool(ctx, pool.ID, ts, d.pool)
	if err != nil {
		return nil, err
	}

	if _, err = s.rollup.UpdateToken(ctx, token0, ethPrice, ts, d.token0); err != nil {
		return nil, err
	}
	if _, err = s.rollup.UpdateToken(ctx, token1, ethPrice, ts, d.token1); err != nil {
		return nil, err
	}

	return buckets, nil
}

func (s *IndexerService) saveAll(ctx context.Context, factory *domain.Factory, pool *domain.Pool, token0, token1 *domain.Token) error {
	if err := s.repo.SaveFactory(ctx, factory); err != nil {
		return err
	}
	if err := s.repo.SavePool(ctx, pool); err != nil {
		return err
	}
	if err := s.repo.SaveToken(ctx, token0); err != nil {
		return err
	}
	return s.repo.SaveToken(ctx, token1)
}

// loadPoolWithTokens returns a nil pool without error when the pool is unknown
func (s *IndexerService) loadPoolWithTokens(ctx context.Context, address string) (*domain.Pool, *domain.Token, *domain.Token, error) {
	poolID := domain.NormalizeAddress(address)

	pool, err := s.repo.Pool(ctx, poolID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load pool %s: %w", poolID, err)
	}
	if pool == nil {
		s.log.Warnf("Event for unknown pool %s skipped", poolID)
		return nil, nil, nil, nil
	}

	token0, err := s.repo.Token(ctx, pool.Token0)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load token0 %s: %w", pool.Token0, err)
	}
	token1, err := s.repo.Token(ctx, pool.Token1)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load token1 %s: %w", pool.Token1, err)
	}
	if token0 == nil || token1 == nil {
		return nil, nil, nil, fmt.Errorf("%w: tokens of pool %s", ErrTokenNotFound, poolID)
	}

	return pool, token0, token1, nil
}

func (s *IndexerService) loadFactory(ctx context.Context) (*domain.Factory, error) {
	factory, err := s.repo.Factory(ctx, s.factoryAddress)
	if err != nil {
		return nil, fmt.Errorf("load factory %s: %w", s.factoryAddress, err)
	}
	if factory == nil {
		factory = &domain.Factory{
			ID:    s.factoryAddress,
			Owner: "0x0000000000000000000000000000000000000000",
		}
	}
	return factory, nil
}

func (s *IndexerService) loadOrCreateToken(ctx context.Context, address string) (*domain.Token, error) {
	id := domain.NormalizeAddress(address)

	token, err := s.repo.Token(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load token %s: %w", id, err)
	}
	if token != nil {
		return token, nil
	}

	meta := s.resolver.Resolve(ctx, id)

	token = domain.NewToken(id)
	token.Symbol = meta.Symbol
	token.Name = meta.Name
	token.Decimals = meta.Decimals
	if meta.TotalSupply != nil {
		token.TotalSupply = new(big.Int).Set(meta.TotalSupply)
	}
	return token, nil
}
