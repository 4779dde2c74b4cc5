package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// DefaultDecimals replaces unknown (zero) or out-of-range decimals
const DefaultDecimals int64 = 18

// q192 = 2^192, the square of the Q96 fixed-point unit
var q192 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 192), 0)

// SqrtPriceX96ToTokenPrices converts a pool's sqrt(price)*2^96 into directional prices.
// price1 is token1 per token0 and price0 its inverse. A non-positive sqrt price
// means the pool is not initialized yet and both prices are zero.
func SqrtPriceX96ToTokenPrices(sqrtPriceX96 *big.Int, decimals0, decimals1 int64) (price0, price1 decimal.Decimal) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero, decimal.Zero
	}

	decimals0, decimals1 = normalizeDecimals(decimals0, decimals1)

	raw := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	num := decimal.NewFromBigInt(raw, 0).Mul(Scale(decimals0))
	denom := q192.Mul(Scale(decimals1))

	price1 = SafeDiv(num, denom)
	if price1.IsZero() {
		return decimal.Zero, decimal.Zero
	}
	price0 = SafeDiv(one, price1)

	return price0, price1
}

// zero decimals means "unknown"; anything above MaxDecimals resets both sides
func normalizeDecimals(d0, d1 int64) (int64, int64) {
	if d0 == 0 {
		d0 = DefaultDecimals
	}
	if d1 == 0 {
		d1 = DefaultDecimals
	}
	if d0 > MaxDecimals || d1 > MaxDecimals || d0 < 0 || d1 < 0 {
		return DefaultDecimals, DefaultDecimals
	}
	return d0, d1
}

// EncodeSqrtPriceX96 is the inverse of SqrtPriceX96ToTokenPrices for a token1
// per token0 price, truncated to an integer. Used to synthesize pool states.
func EncodeSqrtPriceX96(price1 decimal.Decimal, decimals0, decimals1 int64) *big.Int {
	if !price1.IsPositive() {
		return new(big.Int)
	}

	decimals0, decimals1 = normalizeDecimals(decimals0, decimals1)

	squared := SafeDiv(price1.Mul(q192).Mul(Scale(decimals1)), Scale(decimals0))
	return new(big.Int).Sqrt(squared.BigInt())
}
