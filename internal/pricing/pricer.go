package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dexanalytics/internal/config"
	"dexanalytics/internal/domain"
	"dexanalytics/internal/store"

	"github.com/shopspring/decimal"
	"gitlab.com/nevasik7/alerting/logger"
)

// Arbitrum One anchors
const (
	DefaultReferenceToken = "0x82af49447d8a07e3bd95bd0d56f35241523fbab1" // WETH
	DefaultReferencePool  = "0x17c14d2c404d167802b16c450d3c99f88f2c4f4d" // USDC/WETH 0.3%
)

var DefaultWhitelist = []string{
	DefaultReferenceToken,
	"0xff970a61a04b1ca14834a43f5de4533ebddb5cc8", // USDC
	"0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9", // USDT
	"0x2f2a2543b76a4166549f7aab2e75bef0aefc5b0f", // WBTC
	"0xda10009cbd5d07dd0cecc66161fc93d7c9000da1", // DAI
	"0xf97f4df75117a78c1a5a0dbb814af92458539fb4", // LINK
}

var (
	DefaultMinimumEthLocked = decimal.RequireFromString("0.01")
	DefaultMaxEthPriceUSD   = decimal.NewFromInt(100_000)
	DefaultMaxDerivedETH    = decimal.NewFromInt(1_000_000)
	DefaultEthPriceUSD      = decimal.NewFromInt(2000)
)

// Settings are the parsed pricing anchors and sanity bounds
type Settings struct {
	ReferenceToken     string
	ReferencePool      string
	Whitelist          []string
	MinimumEthLocked   decimal.Decimal
	MaxEthPriceUSD     decimal.Decimal
	MaxDerivedETH      decimal.Decimal
	DefaultEthPriceUSD decimal.Decimal
}

// ParseSettings applies defaults to every empty field of cfg
func ParseSettings(cfg *config.PricingConfig) (Settings, error) {
	s := Settings{
		ReferenceToken:     DefaultReferenceToken,
		ReferencePool:      DefaultReferencePool,
		Whitelist:          DefaultWhitelist,
		MinimumEthLocked:   DefaultMinimumEthLocked,
		MaxEthPriceUSD:     DefaultMaxEthPriceUSD,
		MaxDerivedETH:      DefaultMaxDerivedETH,
		DefaultEthPriceUSD: DefaultEthPriceUSD,
	}
	if cfg == nil {
		return s, nil
	}

	if cfg.ReferenceToken != "" {
		s.ReferenceToken = domain.NormalizeAddress(cfg.ReferenceToken)
	}
	if cfg.ReferencePool != "" {
		s.ReferencePool = domain.NormalizeAddress(cfg.ReferencePool)
	}
	if len(cfg.Whitelist) > 0 {
		s.Whitelist = make([]string, 0, len(cfg.Whitelist))
		for _, addr := range cfg.Whitelist {
			s.Whitelist = append(s.Whitelist, domain.NormalizeAddress(addr))
		}
	}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"minimum_eth_locked", cfg.MinimumEthLocked, &s.MinimumEthLocked},
		{"max_eth_price_usd", cfg.MaxEthPriceUSD, &s.MaxEthPriceUSD},
		{"max_derived_eth", cfg.MaxDerivedETH, &s.MaxDerivedETH},
		{"default_eth_price_usd", cfg.DefaultEthPriceUSD, &s.DefaultEthPriceUSD},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.raw) == "" {
			continue
		}
		v, err := decimal.NewFromString(strings.TrimSpace(f.raw))
		if err != nil {
			return Settings{}, fmt.Errorf("pricing.%s: %w", f.name, err)
		}
		*f.dst = v
	}

	if !s.DefaultEthPriceUSD.IsPositive() {
		return Settings{}, errors.New("pricing.default_eth_price_usd must be positive")
	}

	return s, nil
}

// Pricer derives the reference asset USD price and per-token prices in the
// reference asset from persisted pool and token state. It never fails: store
// errors are logged and treated as misses.
type Pricer struct {
	log       logger.Logger
	repo      *store.Repository
	settings  Settings
	whitelist map[string]struct{}
}

func NewPricer(log logger.Logger, cfg *config.PricingConfig, repo *store.Repository) (*Pricer, error) {
	if repo == nil {
		return nil, errors.New("repository is required to the pricer")
	}

	settings, err := ParseSettings(cfg)
	if err != nil {
		return nil, err
	}

	wl := make(map[string]struct{}, len(settings.Whitelist))
	for _, addr := range settings.Whitelist {
		wl[addr] = struct{}{}
	}

	return &Pricer{
		log:       log,
		repo:      repo,
		settings:  settings,
		whitelist: wl,
	}, nil
}

func (p *Pricer) Settings() Settings { return p.settings }

func (p *Pricer) IsWhitelisted(tokenID string) bool {
	_, ok := p.whitelist[tokenID]
	return ok
}

func (p *Pricer) IsReferenceToken(tokenID string) bool {
	return tokenID == p.settings.ReferenceToken
}

// EthPriceUSD returns USD per reference asset read from the reference pool,
// then the persisted bundle price, then the configured default. Always positive.
func (p *Pricer) EthPriceUSD(ctx context.Context) decimal.Decimal {
	if price, ok := p.referencePoolPrice(ctx); ok {
		return price
	}

	bundle, err := p.repo.Bundle(ctx)
	if err != nil {
		p.log.Warnf("Load bundle for eth price fallback, error=%v", err)
	}
	if bundle != nil && bundle.EthPriceUSD.IsPositive() {
		return bundle.EthPriceUSD
	}

	return p.settings.DefaultEthPriceUSD
}

func (p *Pricer) referencePoolPrice(ctx context.Context) (decimal.Decimal, bool) {
	pool, err := p.repo.Pool(ctx, p.settings.ReferencePool)
	if err != nil {
		p.log.Warnf("Load reference pool %s, error=%v", p.settings.ReferencePool, err)
		return decimal.Zero, false
	}
	if pool == nil || !pool.Priced() {
		return decimal.Zero, false
	}

	token0, err0 := p.repo.Token(ctx, pool.Token0)
	token1, err1 := p.repo.Token(ctx, pool.Token1)
	if err0 != nil || err1 != nil {
		p.log.Warnf("Load reference pool tokens %s, error=%v", pool.ID, errors.Join(err0, err1))
		return decimal.Zero, false
	}
	if token0 == nil || token1 == nil {
		return decimal.Zero, false
	}

	price0, price1 := SqrtPriceX96ToTokenPrices(pool.SqrtPrice, token0.Decimals, token1.Decimals)

	price := price0
	if pool.Token0 == p.settings.ReferenceToken {
		price = price1
	}

	if !price.IsPositive() || price.GreaterThanOrEqual(p.settings.MaxEthPriceUSD) {
		p.log.Warnf("Reference pool %s price %s out of bounds", pool.ID, price.String())
		return decimal.Zero, false
	}

	return price, true
}

// FindEthPerToken is a one-hop heuristic over the current snapshot: it trusts
// the derived prices of whitelisted counterparts and picks the pool where the
// counterpart locks the most reference value. It is not a fixed-point solve and
// converges only because whitelist tokens are priced from directly observable
// pools.
func (p *Pricer) FindEthPerToken(ctx context.Context, token *domain.Token) decimal.Decimal {
	if token == nil {
		return decimal.Zero
	}
	if p.IsReferenceToken(token.ID) {
		return one
	}

	largestLiquidityETH := decimal.Zero
	priceSoFar := decimal.Zero

	for _, poolID := range token.WhitelistPools {
		pool, err := p.repo.Pool(ctx, poolID)
		if err != nil {
			p.log.Warnf("Load whitelist pool %s for token %s, error=%v", poolID, token.ID, err)
			continue
		}
		if pool == nil {
			p.log.Warnf("Whitelist pool %s of token %s not found", poolID, token.ID)
			continue
		}
		if !pool.Priced() {
			continue
		}

		var (
			counterpartID string
			locked        decimal.Decimal
			price         decimal.Decimal
		)
		switch token.ID {
		case pool.Token0:
			counterpartID, locked, price = pool.Token1, pool.TotalValueLockedToken1, pool.Token1Price
		case pool.Token1:
			counterpartID, locked, price = pool.Token0, pool.TotalValueLockedToken0, pool.Token0Price
		default:
			continue
		}

		counterpart, err := p.repo.Token(ctx, counterpartID)
		if err != nil {
			p.log.Warnf("Load counterpart token %s, error=%v", counterpartID, err)
			continue
		}
		if counterpart == nil {
			continue
		}

		ethLocked := locked.Mul(counterpart.DerivedETH)
		if ethLocked.GreaterThan(largestLiquidityETH) && ethLocked.GreaterThan(p.settings.MinimumEthLocked) {
			largestLiquidityETH = ethLocked
			priceSoFar = price.Mul(counterpart.DerivedETH)
		}
	}

	if priceSoFar.GreaterThanOrEqual(p.settings.MaxDerivedETH) {
		p.log.Warnf("Derived eth price for token %s too high: %s, using 0", token.ID, priceSoFar.String())
		return decimal.Zero
	}

	return priceSoFar
}
