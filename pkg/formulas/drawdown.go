package formulas

// CumulativeReturns compounds a return series into a growth series starting
// from 1: out[t] = Π(1 + r[i]) for i <= t.
func CumulativeReturns(returns []float64) []float64 {
	out := make([]float64, len(returns))
	value := 1.0
	for i, r := range returns {
		value *= 1 + r
		out[i] = value
	}
	return out
}

// MaxDrawdownPct returns min over t of (value[t] - runningMax[t]) / runningMax[t] × 100.
//
// The result is zero or negative: 0 for a non-decreasing series and for any
// series of length <= 1.
func MaxDrawdownPct(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}

	maxDrawdown := 0.0
	peak := values[0]

	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		drawdown := (v - peak) / peak * 100
		if drawdown < maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	return maxDrawdown
}
