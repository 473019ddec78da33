// Package formulas holds the statistical helpers behind the risk metrics.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization factor for daily returns.
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Covariance calculates the sample covariance between two datasets
func Covariance(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// AnnualizedVolatilityPct returns stdev × √252 × 100, or nil with fewer than two points.
func AnnualizedVolatilityPct(returns []float64) *float64 {
	if len(returns) <= 1 {
		return nil
	}
	vol := StdDev(returns) * math.Sqrt(TradingDaysPerYear) * 100
	return &vol
}

// AnnualizedReturnPct returns mean(daily return) × 252 × 100.
func AnnualizedReturnPct(returns []float64) float64 {
	return Mean(returns) * TradingDaysPerYear * 100
}

// Beta calculates cov(portfolio, benchmark) / var(benchmark) over the aligned
// prefix of both series. Nil when fewer than two aligned points exist or the
// benchmark variance is effectively zero.
func Beta(portfolio, benchmark []float64) *float64 {
	n := len(portfolio)
	if len(benchmark) < n {
		n = len(benchmark)
	}
	if n < 2 {
		return nil
	}

	p := portfolio[:n]
	b := benchmark[:n]

	varB := Variance(b)
	if math.Abs(varB) < 1e-12 {
		return nil
	}

	beta := Covariance(p, b) / varB
	return &beta
}
