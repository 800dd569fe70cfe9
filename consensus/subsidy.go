package consensus

import (
	"math"

	"github.com/shopspring/decimal"
)

// BlockReward is the base reward for the block at the given height, in
// whole coin units: floor(18 / log10(h + 1)). The curve is stepwise
// non-increasing and tends to zero. Genesis carries no reward.
//
// The logarithm is evaluated in floating point but the result is
// floored to an integer before it ever becomes money.
func BlockReward(height uint64) decimal.Decimal {
	if height == 0 {
		return decimal.Zero
	}
	r := math.Floor(18.0 / math.Log10(float64(height)+1.0))
	return decimal.NewFromInt(int64(r))
}

// InflatedFees applies the chain's 3% mark-up to an aggregated fee sum.
func InflatedFees(fees decimal.Decimal) decimal.Decimal {
	return fees.Mul(feeInflation)
}

// CoinbaseAllowance is the maximum total a coinbase at the given height
// may pay out: base reward plus inflated fees of the accompanying
// transactions.
func CoinbaseAllowance(height uint64, fees decimal.Decimal) decimal.Decimal {
	return BlockReward(height).Add(InflatedFees(fees))
}
