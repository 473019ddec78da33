// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"time"
)

// Signal is a categorical trading recommendation
type Signal string

const (
	SignalStrongSell Signal = "STRONG_SELL"
	SignalSell       Signal = "SELL"
	SignalHold       Signal = "HOLD"
	SignalBuy        Signal = "BUY"
	SignalStrongBuy  Signal = "STRONG_BUY"
)

// NeutralLevel is the hierarchy level of HOLD.
const NeutralLevel = 3

// Level returns the signal's position in the STRONG_SELL=1 .. STRONG_BUY=5
// hierarchy, or 0 for an empty or unknown signal.
func (s Signal) Level() int {
	switch s {
	case SignalStrongSell:
		return 1
	case SignalSell:
		return 2
	case SignalHold:
		return 3
	case SignalBuy:
		return 4
	case SignalStrongBuy:
		return 5
	default:
		return 0
	}
}

// Valid reports whether s is one of the five canonical labels.
func (s Signal) Valid() bool {
	return s.Level() != 0
}

// IsBuy reports whether s is BUY or STRONG_BUY.
func (s Signal) IsBuy() bool {
	return s == SignalBuy || s == SignalStrongBuy
}

// ParseSignal validates a raw signal label.
func ParseSignal(raw string) (Signal, error) {
	s := Signal(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown signal %q", ErrValidation, raw)
	}
	return s, nil
}

// Holding represents one position inside a portfolio
type Holding struct {
	ID               int64     `json:"id"`
	PortfolioID      int64     `json:"portfolio_id"`
	Ticker           string    `json:"ticker"`
	Shares           float64   `json:"shares"`
	AvgCost          float64   `json:"avg_cost"`
	CurrentPrice     float64   `json:"current_price"`
	CurrentSignal    Signal    `json:"current_signal,omitempty"`
	SignalConfidence float64   `json:"signal_confidence"`
	SignalModel      string    `json:"signal_model,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CurrentValue is shares × current price.
func (h Holding) CurrentValue() float64 {
	return h.Shares * h.CurrentPrice
}

// Priced reports whether the holding has a positive market value.
func (h Holding) Priced() bool {
	return h.Shares > 0 && h.CurrentPrice > 0
}

// UnrealizedPLPct returns the unrealized profit/loss against the average cost
// in percent. ok is false when there is no cost basis or no price.
func (h Holding) UnrealizedPLPct() (pct float64, ok bool) {
	if h.AvgCost <= 0 || h.CurrentPrice <= 0 {
		return 0, false
	}
	return (h.CurrentPrice - h.AvgCost) / h.AvgCost * 100, true
}

// PortfolioHolding is a holding joined with the owning portfolio's user.
type PortfolioHolding struct {
	Holding
	UserID string `json:"user_id"`
}

// Portfolio is a user's collection of holdings plus cash
type Portfolio struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Cash       float64   `json:"cash"`
	TotalValue float64   `json:"total_value"`
	Active     bool      `json:"active"`
	Holdings   []Holding `json:"holdings"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MarketValue returns cash plus the current value of every holding
func MarketValue(cash float64, holdings []Holding) float64 {
	total := cash
	for _, h := range holdings {
		total += h.CurrentValue()
	}
	return total
}

// Action is a rebalancing trade direction
type Action string

const (
	ActionSell Action = "SELL"
	ActionTrim Action = "TRIM"
	ActionAdd  Action = "ADD"
	ActionBuy  Action = "BUY"
	ActionHold Action = "HOLD"
)

// Weight is the action's contribution to the suggestion priority score.
func (a Action) Weight() int {
	switch a {
	case ActionSell:
		return 3
	case ActionTrim:
		return 2
	case ActionAdd, ActionBuy:
		return 1
	default:
		return 0
	}
}

// RebalanceSuggestion is a proposed trade moving a holding toward a target weight
type RebalanceSuggestion struct {
	Ticker            string    `json:"ticker"`
	Action            Action    `json:"action"`
	SuggestedQuantity float64   `json:"suggested_quantity"`
	SuggestedValue    float64   `json:"suggested_value"`
	Reason            string    `json:"reason"`
	CurrentWeightPct  float64   `json:"current_weight_pct"`
	TargetWeightPct   float64   `json:"target_weight_pct"`
	ConfidenceScore   float64   `json:"confidence_score"`
	Priority          int       `json:"priority"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// RiskMetrics is the daily risk snapshot of one portfolio.
// Nil pointer metrics are undefined for the underlying data.
type RiskMetrics struct {
	PortfolioID         int64          `json:"portfolio_id"`
	AsOf                time.Time      `json:"as_of"`
	Volatility          *float64       `json:"volatility"`
	SharpeRatio         *float64       `json:"sharpe_ratio"`
	Beta                *float64       `json:"beta"`
	MaxDrawdownPct      float64        `json:"max_drawdown_pct"`
	TopHoldingWeightPct float64        `json:"top_holding_weight_pct"`
	Top5WeightPct       float64        `json:"top5_weight_pct"`
	HerfindahlIndex     float64        `json:"herfindahl_index"`
	SignalDistribution  map[string]int `json:"signal_distribution"`
	HoldingsCount       int            `json:"holdings_count"`
	TotalValue          float64        `json:"total_value"`
	CalculatedAt        time.Time      `json:"calculated_at"`
}

// AsOfDate truncates t to its UTC calendar day.
func AsOfDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NotificationPriority ranks user notifications
type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "low"
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityHigh   NotificationPriority = "high"
)

// NotificationType categorizes user notifications
type NotificationType string

const (
	NotificationSignalChange         NotificationType = "signal_change"
	NotificationRebalancingSuggested NotificationType = "rebalancing_suggested"
	NotificationStopLoss             NotificationType = "stop_loss"
	NotificationTargetPrice          NotificationType = "target_price"
	NotificationUploadComplete       NotificationType = "upload_complete"
	NotificationAnalysisComplete     NotificationType = "analysis_complete"
	NotificationPortfolioUpdated     NotificationType = "portfolio_updated"
	NotificationModelDrift           NotificationType = "model_drift"
)

// Notification is a message addressed to one user
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Type      NotificationType       `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Priority  NotificationPriority   `json:"priority"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"created_at"`
}

// DriftReport describes a detected model input drift
type DriftReport struct {
	ModelID         string   `json:"model_id"`
	DriftScore      float64  `json:"drift_score"`
	Threshold       *float64 `json:"threshold,omitempty"`
	FeaturesDrifted []string `json:"features_drifted,omitempty"`
}
