package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// DivisionPrecision is the minimum number of fractional digits kept by SafeDiv.
// SafeDiv widens it by the magnitude gap between dividend and divisor so small
// quotients keep their significant digits.
const DivisionPrecision int32 = 48

// MaxDecimals is the largest ERC-20 decimals value accepted anywhere
const MaxDecimals = 255

var (
	one = decimal.NewFromInt(1)
	ten = decimal.NewFromInt(10)

	// powers of ten 0..MaxDecimals, filled once by repeated multiplication
	scaleTable = buildScaleTable()
)

func buildScaleTable() []decimal.Decimal {
	t := make([]decimal.Decimal, MaxDecimals+1)
	t[0] = one
	for i := 1; i <= MaxDecimals; i++ {
		t[i] = t[i-1].Mul(ten)
	}
	return t
}

// Scale returns 10^n; negative n is treated as 0
func Scale(n int64) decimal.Decimal {
	if n <= 0 {
		return one
	}
	if n <= MaxDecimals {
		return scaleTable[n]
	}

	bd := scaleTable[MaxDecimals]
	for i := int64(MaxDecimals); i < n; i++ {
		bd = bd.Mul(ten)
	}
	return bd
}

// SafeDiv returns a/b, or zero when b is zero
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}

	places := DivisionPrecision
	if gap := magnitude(b) - magnitude(a); gap > 0 {
		places += gap
	}
	return a.DivRound(b, places)
}

// magnitude is the position of the most significant digit relative to the decimal point
func magnitude(d decimal.Decimal) int32 {
	if d.IsZero() {
		return 0
	}
	return int32(d.NumDigits()) + d.Exponent()
}

// Pow raises value to an integer exponent; Pow(v, 0) == 1 for every v, including 0
func Pow(value decimal.Decimal, exponent int64) decimal.Decimal {
	if exponent == 0 {
		return one
	}

	abs := exponent
	if abs < 0 {
		abs = -abs
	}

	result := value
	for i := int64(1); i < abs; i++ {
		result = result.Mul(value)
	}

	if exponent < 0 {
		return SafeDiv(one, result)
	}
	return result
}

// ConvertTokenToDecimal turns a raw on-chain amount into token units.
// Zero decimals means the raw amount is already in units.
func ConvertTokenToDecimal(amount *big.Int, decimals int64) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	if decimals <= 0 {
		return decimal.NewFromBigInt(amount, 0)
	}
	return SafeDiv(decimal.NewFromBigInt(amount, 0), Scale(decimals))
}
