package payout

import (
	"math"

	"github.com/shopspring/decimal"
)

// TokenBaseUnits converts a SOL amount into token base units at a fixed
// conversion rate: floor(solAmount x tokensPerSol x 10^decimals). Truncation
// rather than rounding is the defined policy so floating-point drift can
// never over-credit a recipient.
func TokenBaseUnits(solAmount float64, tokensPerSol uint64, decimals uint8) uint64 {
	units := decimal.NewFromFloat(solAmount).
		Mul(decimal.NewFromUint64(tokensPerSol)).
		Shift(int32(decimals)).
		Floor()
	if units.Sign() <= 0 {
		return 0
	}
	// Products beyond uint64 range would wrap on conversion; treat them as
	// unrepresentable rather than paying a wrapped amount.
	if units.Cmp(decimal.NewFromUint64(math.MaxUint64)) > 0 {
		return 0
	}
	return units.BigInt().Uint64()
}

// WholeTokens renders base units as a whole-token quantity for reporting.
func WholeTokens(baseUnits uint64, decimals uint8) float64 {
	f, _ := decimal.NewFromUint64(baseUnits).Shift(-int32(decimals)).Float64()
	return f
}
