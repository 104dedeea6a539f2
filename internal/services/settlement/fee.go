package settlement

import (
	"github.com/shopspring/decimal"
)

// DefaultFeeRate is the canonical platform commission: 12% of the gross
// booking amount. It is defined exactly once; every fee in the system derives
// from this rate or its configured override.
var DefaultFeeRate = decimal.NewFromFloat(0.12)

// ComputeSplit splits a gross booking amount into the platform fee and the
// provider's share. The fee is rounded half-up to 2 decimal places and the
// provider amount is the exact remainder, so fee + providerAmount == gross
// always holds without rounding drift.
func ComputeSplit(gross, feeRate decimal.Decimal) (fee, providerAmount decimal.Decimal) {
	fee = gross.Mul(feeRate).Round(2)
	providerAmount = gross.Sub(fee)
	return fee, providerAmount
}
