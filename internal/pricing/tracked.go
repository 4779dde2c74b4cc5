package pricing

import (
	"dexanalytics/internal/domain"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// TrackedAmountUSD counts both legs when both tokens are whitelisted, twice the
// whitelisted leg when only one is, and nothing otherwise.
func (p *Pricer) TrackedAmountUSD(amount0 decimal.Decimal, token0 *domain.Token, amount1 decimal.Decimal, token1 *domain.Token, ethPriceUSD decimal.Decimal) decimal.Decimal {
	if token0 == nil || token1 == nil {
		return decimal.Zero
	}

	wl0 := p.IsWhitelisted(token0.ID)
	wl1 := p.IsWhitelisted(token1.ID)

	leg0 := amount0.Mul(token0.USDPrice(ethPriceUSD))
	leg1 := amount1.Mul(token1.USDPrice(ethPriceUSD))

	switch {
	case wl0 && wl1:
		return leg0.Add(leg1)
	case wl0:
		return leg0.Mul(two)
	case wl1:
		return leg1.Mul(two)
	default:
		return decimal.Zero
	}
}

// AmountETH values both legs in the reference asset regardless of whitelist
func AmountETH(amount0 decimal.Decimal, token0 *domain.Token, amount1 decimal.Decimal, token1 *domain.Token) decimal.Decimal {
	return amount0.Mul(token0.DerivedETH).Add(amount1.Mul(token1.DerivedETH))
}
