package formulas

import "math"

// DefaultRiskFreeRatePct is the annual risk-free rate, in percent.
const DefaultRiskFreeRatePct = 2.0

// zeroVolatility absorbs rounding noise from the standard deviation of a
// constant series.
const zeroVolatility = 1e-9

// CalculateSharpeRatio computes (annualized return % - risk-free %) / volatility %.
//
// Volatility is the annualized figure from AnnualizedVolatilityPct. The result
// is nil when volatility is undefined or zero.
func CalculateSharpeRatio(annualizedReturnPct, riskFreeRatePct float64, volatilityPct *float64) *float64 {
	if volatilityPct == nil || math.Abs(*volatilityPct) < zeroVolatility {
		return nil
	}

	sharpe := (annualizedReturnPct - riskFreeRatePct) / *volatilityPct
	return &sharpe
}
