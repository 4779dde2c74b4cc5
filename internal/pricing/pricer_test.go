package pricing

import (
	"context"
	"math/big"
	"testing"

	"dexanalytics/internal/config"
	"dexanalytics/internal/domain"
	"dexanalytics/internal/store"
	"dexanalytics/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	weth    = DefaultReferenceToken
	usdc    = "0xff970a61a04b1ca14834a43f5de4533ebddb5cc8"
	tokenX  = "0x00000000000000000000000000000000000000aa"
	tokenY  = "0x00000000000000000000000000000000000000bb"
	refPool = DefaultReferencePool
)

// ========== Test Helpers ==========
func setupPricer(t *testing.T) (*Pricer, *store.Repository) {
	t.Helper()

	repo, err := store.NewRepository(store.NewMemoryStore(testutil.Logger()))
	require.NoError(t, err)

	p, err := NewPricer(testutil.Logger(), nil, repo)
	require.NoError(t, err)

	return p, repo
}

func saveToken(t *testing.T, repo *store.Repository, id string, decimals int64, derivedETH string) *domain.Token {
	t.Helper()

	tok := domain.NewToken(id)
	tok.Decimals = decimals
	tok.DerivedETH = d(derivedETH)
	require.NoError(t, repo.SaveToken(context.Background(), tok))
	return tok
}

func savePricedPool(t *testing.T, repo *store.Repository, id, token0, token1 string, price1 decimal.Decimal, d0, d1 int64) *domain.Pool {
	t.Helper()

	pool := domain.NewPool(id, token0, token1, 3000)
	pool.Liquidity = big.NewInt(1_000_000_000)
	pool.SqrtPrice = EncodeSqrtPriceX96(price1, d0, d1)
	pool.Token0Price, pool.Token1Price = SqrtPriceX96ToTokenPrices(pool.SqrtPrice, d0, d1)
	require.NoError(t, repo.SavePool(context.Background(), pool))
	return pool
}

// ========== Settings Tests ==========

func TestParseSettings_Defaults(t *testing.T) {
	s, err := ParseSettings(&config.PricingConfig{})
	require.NoError(t, err)

	assert.Equal(t, DefaultReferenceToken, s.ReferenceToken)
	assert.Equal(t, DefaultReferencePool, s.ReferencePool)
	assert.Len(t, s.Whitelist, 6)
	assert.True(t, s.MinimumEthLocked.Equal(d("0.01")))
	assert.True(t, s.MaxEthPriceUSD.Equal(d("100000")))
	assert.True(t, s.MaxDerivedETH.Equal(d("1000000")))
	assert.True(t, s.DefaultEthPriceUSD.Equal(d("2000")))
}

func TestParseSettings_Overrides(t *testing.T) {
	s, err := ParseSettings(&config.PricingConfig{
		ReferenceToken:     "0xC02AAA39B223FE8D0A0E5C4F27EAD9083C756CC2",
		Whitelist:          []string{" 0xAbC "},
		MinimumEthLocked:   "1.5",
		DefaultEthPriceUSD: "3100.25",
	})
	require.NoError(t, err)

	assert.Equal(t, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", s.ReferenceToken)
	assert.Equal(t, []string{"0xabc"}, s.Whitelist)
	assert.True(t, s.MinimumEthLocked.Equal(d("1.5")))
	assert.True(t, s.DefaultEthPriceUSD.Equal(d("3100.25")))
}

func TestParseSettings_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.PricingConfig
	}{
		{"not a number", config.PricingConfig{MaxDerivedETH: "lots"}},
		{"zero default", config.PricingConfig{DefaultEthPriceUSD: "0"}},
		{"negative default", config.PricingConfig{DefaultEthPriceUSD: "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSettings(&tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewPricer_RequiresRepository(t *testing.T) {
	p, err := NewPricer(testutil.Logger(), nil, nil)
	assert.Error(t, err)
	assert.Nil(t, p)
}

// ========== EthPriceUSD Tests ==========

func TestEthPriceUSD_DefaultWithoutState(t *testing.T) {
	p, _ := setupPricer(t)

	assert.True(t, p.EthPriceUSD(context.Background()).Equal(d("2000")))
}

func TestEthPriceUSD_FallsBackToBundle(t *testing.T) {
	p, repo := setupPricer(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveBundle(ctx, &domain.Bundle{ID: domain.BundleID, EthPriceUSD: d("1850.5")}))

	assert.True(t, p.EthPriceUSD(ctx).Equal(d("1850.5")))
}

func TestEthPriceUSD_ZeroBundleUsesDefault(t *testing.T) {
	p, repo := setupPricer(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveBundle(ctx, &domain.Bundle{ID: domain.BundleID, EthPriceUSD: decimal.Zero}))

	assert.True(t, p.EthPriceUSD(ctx).Equal(d("2000")))
}

func TestEthPriceUSD_FromReferencePool(t *testing.T) {
	p, repo := setupPricer(t)
	ctx := context.Background()

	saveToken(t, repo, weth, 18, "1")
	saveToken(t, repo, usdc, 6, "0")
	savePricedPool(t, repo, refPool, weth, usdc, d("3000"), 18, 6)

	approxEqual(t, d("3000"), p.EthPriceUSD(ctx), "0.000001")
}

func TestEthPriceUSD_ReferenceTokenAsToken1(t *testing.T) {
	repo, err := store.NewRepository(store.NewMemoryStore(testutil.Logger()))
	require.NoError(t, err)

	// stablecoin sorts first on this chain
	p, err := NewPricer(testutil.Logger(), &config.PricingConfig{ReferenceToken: tokenY, ReferencePool: "0xpool"}, repo)
	require.NoError(t, err)

	saveToken(t, repo, tokenX, 6, "0")
	saveToken(t, repo, tokenY, 18, "1")
	// 0.0005 reference tokens per stablecoin
	savePricedPool(t, repo, "0xpool", tokenX, tokenY, d("0.0005"), 6, 18)

	approxEqual(t, d("2000"), p.EthPriceUSD(context.Background()), "0.000001")
}

func TestEthPriceUSD_RejectsImplausiblePool(t *testing.T) {
	p, repo := setupPricer(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveBundle(ctx, &domain.Bundle{ID: domain.BundleID, EthPriceUSD: d("1900")}))
	saveToken(t, repo, weth, 18, "1")
	saveToken(t, repo, usdc, 6, "0")
	savePricedPool(t, repo, refPool, weth, usdc, d("150000"), 18, 6)

	assert.True(t, p.EthPriceUSD(ctx).Equal(d("1900")))
}

func TestEthPriceUSD_UnresolvedTokens(t *testing.T) {
	p, repo := setupPricer(t)

	savePricedPool(t, repo, refPool, weth, usdc, d("3000"), 18, 6)

	assert.True(t, p.EthPriceUSD(context.Background()).Equal(d("2000")))
}

func TestEthPriceUSD_EmptyPool(t *testing.T) {
	p, repo := setupPricer(t)
	ctx := context.Background()

	saveToken(t, repo, weth, 18, "1")
	saveToken(t, repo, usdc, 6, "0")
	pool := savePricedPool(t, repo, refPool, weth, usdc, d("3000"), 18, 6)
	pool.Liquidity = big.NewInt(0)
	require.NoError(t, repo.SavePool(ctx, pool))

	assert.True(t, p.EthPriceUSD(ctx).Equal(d("2000")))
}

// ========== FindEthPerToken Tests ==========

func TestFindEthPerToken_ReferenceIsOne(t *testing.T) {
	p, _ := setupPricer(t)

	tok := domain.NewToken(weth)
	tok.WhitelistPools = []string{"0xmissing"}

	assert.True(t, p.FindEthPerToken(context.Background(), tok).Equal(one))
}

func TestFindEthPerToken_PicksLargestLockedValue(t *testing.T) {
	p, repo := setupPricer(t)
	ctx := context.Background()

	saveToken(t, repo, weth, 18, "1")
	saveToken(t, repo, usdc, 6, "0.0005")

	// X/USDC: 2 USDC per X, 100k USDC locked = 50 ETH
	deep := savePricedPool(t, repo, "0xbig", tokenX, usdc, d("2"), 18, 6)
	deep.TotalValueLockedToken1 = d("100000")
	require.NoError(t, repo.SavePool(ctx, deep))

	// WETH/X: 10 ETH locked, different price
	small := savePricedPool(t, repo, "0xsmall", weth, tokenX, d("900"), 18, 18)
	small.TotalValueLockedToken0 = d("10")
	require.NoError(t, repo.SavePool(ctx, small))

	// unpriced pool with more locked value is ignored
	empty := domain.NewPool("0xempty", weth, tokenX, 500)
	empty.TotalValueLockedToken0 = d("1000000")
	empty.Token0Price = d("5")
	require.NoError(t, repo.SavePool(ctx, empty))

	for _, order := range [][]string{{"0xsmall", "0xbig", "0xempty"}, {"0xempty", "0xbig", "0xsmall"}} {
		tok := domain.NewToken(tokenX)
		tok.WhitelistPools = order

		got := p.FindEthPerToken(ctx, tok)
		approxEqual(t, d("0.001"), got, "0.0000000001")
	}
}

func TestFindEthPerToken_TokenAsToken1(t *testing.T) {
	p, repo := setupPricer(t)
	ctx := context.Background()

	saveToken(t, repo, weth, 18, "1")

	// 1000 X per WETH, so X is worth 0.001 WETH
	pool := savePricedPool(t, repo, "0xwx", weth, tokenX, d("1000"), 18, 18)
	pool.TotalValueLockedToken0 = d("5")
	require.NoError(t, repo.SavePool(ctx, pool))

	tok := domain.NewToken(tokenX)
	tok.WhitelistPools = []string{"0xwx"}

	approxEqual(t, d("0.001"), p.FindEthPerToken(ctx, tok), "1e-12")
}

func TestFindEthPerToken_BelowMinimumLocked(t *testing.T) {
	p, repo := setupPricer(t)
	ctx := context.Background()

	saveToken(t, repo, weth, 18, "1")
	pool := savePricedPool(t, repo, "0xwx", weth, tokenX, d("1000"), 18, 18)
	pool.TotalValueLockedToken0 = d("0.01")
	require.NoError(t, repo.SavePool(ctx, pool))

	tok := domain.NewToken(tokenX)
	tok.WhitelistPools = []string{"0xwx", "0xmissing"}

	assert.True(t, p.FindEthPerToken(ctx, tok).IsZero())
}

func TestFindEthPerToken_SanityBound(t *testing.T) {
	p, repo := setupPricer(t)
	ctx := context.Background()

	saveToken(t, repo, weth, 18, "1")
	// X is worth 2,000,000 WETH
	pool := savePricedPool(t, repo, "0xwx", weth, tokenX, d("0.0000005"), 18, 18)
	pool.TotalValueLockedToken0 = d("100")
	require.NoError(t, repo.SavePool(ctx, pool))

	tok := domain.NewToken(tokenX)
	tok.WhitelistPools = []string{"0xwx"}

	assert.True(t, p.FindEthPerToken(ctx, tok).IsZero())
}

// ========== Tracked Tests ==========

func TestTrackedAmountUSD(t *testing.T) {
	p, _ := setupPricer(t)
	ethUSD := d("2000")

	wlA := &domain.Token{ID: weth, DerivedETH: d("1")}
	wlB := &domain.Token{ID: usdc, DerivedETH: d("0.0005")}
	plainA := &domain.Token{ID: tokenX, DerivedETH: d("0.01")}
	plainB := &domain.Token{ID: tokenY, DerivedETH: d("0.02")}

	tests := []struct {
		name    string
		amount0 string
		token0  *domain.Token
		amount1 string
		token1  *domain.Token
		want    string
	}{
		{"both whitelisted", "1.5", wlA, "1000", wlB, "4000"},
		{"only token0", "2", wlA, "999", plainA, "8000"},
		{"only token1", "999", plainA, "300", wlB, "600"},
		{"neither", "100", plainA, "100", plainB, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.TrackedAmountUSD(d(tt.amount0), tt.token0, d(tt.amount1), tt.token1, ethUSD)
			assert.True(t, d(tt.want).Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestAmountETH(t *testing.T) {
	a := &domain.Token{DerivedETH: d("0.5")}
	b := &domain.Token{DerivedETH: d("0.001")}

	assert.True(t, AmountETH(d("4"), a, d("1000"), b).Equal(d("3")))
}

// ========== Bundle Tests ==========

func TestEnsureBundle(t *testing.T) {
	ctx := context.Background()

	t.Run("creates with default", func(t *testing.T) {
		p, repo := setupPricer(t)

		b, err := p.EnsureBundle(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.BundleID, b.ID)
		assert.True(t, b.EthPriceUSD.Equal(d("2000")))

		stored, err := repo.Bundle(ctx)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.True(t, stored.EthPriceUSD.Equal(d("2000")))
	})

	t.Run("repairs zero price", func(t *testing.T) {
		p, repo := setupPricer(t)
		require.NoError(t, repo.SaveBundle(ctx, &domain.Bundle{ID: domain.BundleID}))

		b, err := p.EnsureBundle(ctx)
		require.NoError(t, err)
		assert.True(t, b.EthPriceUSD.Equal(d("2000")))
	})

	t.Run("keeps valid price", func(t *testing.T) {
		p, repo := setupPricer(t)
		require.NoError(t, repo.SaveBundle(ctx, &domain.Bundle{ID: domain.BundleID, EthPriceUSD: d("2500")}))

		b, err := p.EnsureBundle(ctx)
		require.NoError(t, err)
		assert.True(t, b.EthPriceUSD.Equal(d("2500")))
	})
}

func TestRefreshBundle_FollowsReferencePool(t *testing.T) {
	p, repo := setupPricer(t)
	ctx := context.Background()

	saveToken(t, repo, weth, 18, "1")
	saveToken(t, repo, usdc, 6, "0")
	savePricedPool(t, repo, refPool, weth, usdc, d("2750"), 18, 6)

	b, err := p.RefreshBundle(ctx)
	require.NoError(t, err)
	approxEqual(t, d("2750"), b.EthPriceUSD, "0.000001")

	stored, err := repo.Bundle(ctx)
	require.NoError(t, err)
	assert.True(t, stored.EthPriceUSD.Equal(b.EthPriceUSD))
}
