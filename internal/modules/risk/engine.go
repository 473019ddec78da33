// Package risk computes portfolio risk metrics and caches one snapshot per
// portfolio and day.
package risk

import (
	"fmt"
	"time"

	"github.com/aristath/pulse/internal/domain"
	"github.com/aristath/pulse/pkg/formulas"
)

// UnknownSignal buckets holdings without a signal in the distribution
const UnknownSignal = "UNKNOWN"

// Engine calculates risk metrics from a holdings snapshot
type Engine struct {
	riskFreeRatePct float64
	now             func() time.Time
}

// NewEngine creates a risk engine with the annual risk-free rate in percent
func NewEngine(riskFreeRatePct float64) *Engine {
	return &Engine{riskFreeRatePct: riskFreeRatePct, now: time.Now}
}

// Calculate derives concentration, distribution and return statistics.
//
// Each priced holding with a cost basis contributes its unrealized P/L
// fraction to the return series, in input order. benchmarkReturns may be nil,
// which leaves Beta undefined. Returns domain.ErrInsufficientData when no
// holding has a positive value or totalValue is not positive.
func (e *Engine) Calculate(holdings []domain.Holding, totalValue float64, benchmarkReturns []float64) (*domain.RiskMetrics, error) {
	if totalValue <= 0 {
		return nil, fmt.Errorf("%w: portfolio total value is %.2f", domain.ErrInsufficientData, totalValue)
	}

	var (
		weights      []float64
		returns      []float64
		distribution = make(map[string]int)
	)
	for _, h := range holdings {
		if !h.Priced() {
			continue
		}
		weights = append(weights, h.CurrentValue()/totalValue*100)

		signal := string(h.CurrentSignal)
		if signal == "" {
			signal = UnknownSignal
		}
		distribution[signal]++

		if pct, ok := h.UnrealizedPLPct(); ok {
			returns = append(returns, pct/100)
		}
	}

	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: no priced holdings", domain.ErrInsufficientData)
	}

	top, top5 := formulas.TopWeightsPct(weights, 5)
	now := e.now().UTC()

	m := &domain.RiskMetrics{
		AsOf:                domain.AsOfDate(now),
		TopHoldingWeightPct: top,
		Top5WeightPct:       top5,
		HerfindahlIndex:     formulas.HerfindahlIndex(weights),
		SignalDistribution:  distribution,
		HoldingsCount:       len(weights),
		TotalValue:          totalValue,
		CalculatedAt:        now,
	}

	m.Volatility = formulas.AnnualizedVolatilityPct(returns)
	if len(returns) > 0 {
		m.SharpeRatio = formulas.CalculateSharpeRatio(formulas.AnnualizedReturnPct(returns), e.riskFreeRatePct, m.Volatility)
	}
	m.Beta = formulas.Beta(returns, benchmarkReturns)
	m.MaxDrawdownPct = formulas.MaxDrawdownPct(formulas.CumulativeReturns(returns))

	return m, nil
}
