// Package rebalancing turns holdings and their signals into prioritized,
// explainable rebalancing suggestions.
package rebalancing

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/pulse/internal/domain"
)

// Position sizing rules, in percent of portfolio value.
const (
	MinPositionPct         = 2.0
	MaxPositionPct         = 10.0
	ActionThresholdPct     = 0.5
	ConcentrationLimitPct  = 15.0
	ConcentrationTargetPct = 12.0

	// StatusOK is the only status Generate reports.
	StatusOK = "ok"
)

// signalRule maps a signal with enough confidence to a target weight.
type signalRule struct {
	minConfidence float64
	target        func(currentPct float64) float64
}

var signalRules = map[domain.Signal]signalRule{
	domain.SignalStrongSell: {70, func(float64) float64 { return 0 }},
	domain.SignalSell:       {60, func(c float64) float64 { return c * 0.5 }},
	domain.SignalStrongBuy:  {80, func(c float64) float64 { return math.Min(c*1.2, MaxPositionPct) }},
	domain.SignalBuy:        {70, func(c float64) float64 { return math.Min(c*1.1, MaxPositionPct) }},
}

// Result is the outcome of one engine run
type Result struct {
	Status      string                       `json:"status"`
	Message     string                       `json:"message"`
	Suggestions []domain.RebalanceSuggestion `json:"suggestions"`
}

// Engine generates rebalancing suggestions. It holds no state and never
// mutates its input.
type Engine struct{}

// NewEngine creates a rebalancing engine
func NewEngine() *Engine {
	return &Engine{}
}

// TargetWeight returns the signal-driven target weight of a position.
// ok is false for HOLD, a missing signal or confidence below the rule's
// threshold, in which case the position keeps its current weight.
func TargetWeight(signal domain.Signal, confidence, currentPct float64) (target float64, ok bool) {
	rule, found := signalRules[signal]
	if !found || confidence < rule.minConfidence {
		return currentPct, false
	}

	target = rule.target(currentPct)
	if target > MaxPositionPct {
		target = MaxPositionPct
	}
	if target > 0 && target < MinPositionPct && signal.IsBuy() {
		target = MinPositionPct
	}
	return target, true
}

// Generate produces the suggestion set for holdings valued against totalValue.
// Suggestions carry no timestamps; callers stamp CreatedAt/ExpiresAt.
func (e *Engine) Generate(holdings []domain.Holding, totalValue float64) Result {
	if len(holdings) == 0 {
		return Result{Status: StatusOK, Message: "No holdings to rebalance", Suggestions: []domain.RebalanceSuggestion{}}
	}
	if totalValue <= 0 {
		return Result{Status: StatusOK, Message: "Portfolio total value is not positive; nothing to rebalance", Suggestions: []domain.RebalanceSuggestion{}}
	}

	suggestions := make([]domain.RebalanceSuggestion, 0, len(holdings))
	for _, h := range holdings {
		if s, ok := suggestFor(h, totalValue); ok {
			suggestions = append(suggestions, s)
		}
	}

	prioritize(suggestions)

	msg := fmt.Sprintf("Generated %d rebalancing suggestions", len(suggestions))
	if len(suggestions) == 0 {
		msg = "Portfolio is balanced; no actions needed"
	}
	return Result{Status: StatusOK, Message: msg, Suggestions: suggestions}
}

func suggestFor(h domain.Holding, totalValue float64) (domain.RebalanceSuggestion, bool) {
	value := h.CurrentValue()
	if value <= 0 || h.CurrentPrice <= 0 {
		return domain.RebalanceSuggestion{}, false
	}

	current := value / totalValue * 100
	s := domain.RebalanceSuggestion{
		Ticker:           h.Ticker,
		CurrentWeightPct: round(current, 2),
		ConfidenceScore:  h.SignalConfidence,
	}

	hasAction := false
	if target, ok := TargetWeight(h.CurrentSignal, h.SignalConfidence, current); ok {
		s.TargetWeightPct = round(target, 2)
		switch {
		case target == 0:
			s.Action = domain.ActionSell
			s.SuggestedQuantity = h.Shares
			s.SuggestedValue = round(value, 2)
			s.Reason = fmt.Sprintf("%s signal (%.0f%% confidence): exit position", h.CurrentSignal, h.SignalConfidence)
			hasAction = true
		case target < current-ActionThresholdPct:
			s.Action = domain.ActionTrim
			fillDelta(&s, current-target, totalValue, h.CurrentPrice)
			s.Reason = signalReason(h, "reduce", current, target)
			hasAction = true
		case target > current+ActionThresholdPct:
			s.Action = domain.ActionAdd
			fillDelta(&s, target-current, totalValue, h.CurrentPrice)
			s.Reason = signalReason(h, "increase", current, target)
			hasAction = true
		}
	}

	if current > ConcentrationLimitPct {
		note := fmt.Sprintf("%s is %.1f%% of the portfolio, above the %.0f%% concentration limit", h.Ticker, current, ConcentrationLimitPct)
		if hasAction {
			s.Reason += "; overweight: " + note
		} else {
			s.Action = domain.ActionTrim
			s.TargetWeightPct = ConcentrationTargetPct
			fillDelta(&s, current-ConcentrationTargetPct, totalValue, h.CurrentPrice)
			s.Reason = fmt.Sprintf("Overweight position: %s; trim toward %.0f%%", note, ConcentrationTargetPct)
			hasAction = true
		}
	}

	return s, hasAction
}

func fillDelta(s *domain.RebalanceSuggestion, deltaPct, totalValue, price float64) {
	valueDelta := deltaPct / 100 * totalValue
	s.SuggestedValue = round(valueDelta, 2)
	s.SuggestedQuantity = round(valueDelta/price, 4)
}

func signalReason(h domain.Holding, verb string, current, target float64) string {
	return fmt.Sprintf("%s signal (%.0f%% confidence): %s from %.1f%% to %.1f%%",
		h.CurrentSignal, h.SignalConfidence, verb, current, target)
}

// Score ranks a suggestion: action weight dominates, then confidence, then
// trade size capped at 50 points.
func Score(s domain.RebalanceSuggestion) float64 {
	return float64(s.Action.Weight())*100 + s.ConfidenceScore + math.Min(s.SuggestedValue/1000, 50)
}

// prioritize sorts by descending score and assigns dense priorities from 1.
// Ties go to the larger trade, then to the ticker.
func prioritize(suggestions []domain.RebalanceSuggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		si, sj := Score(suggestions[i]), Score(suggestions[j])
		if si != sj {
			return si > sj
		}
		if suggestions[i].SuggestedValue != suggestions[j].SuggestedValue {
			return suggestions[i].SuggestedValue > suggestions[j].SuggestedValue
		}
		return suggestions[i].Ticker < suggestions[j].Ticker
	})
	for i := range suggestions {
		suggestions[i].Priority = i + 1
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
