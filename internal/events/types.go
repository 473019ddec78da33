// Package events provides the in-process event bus, the handler registry and
// the typed payloads of every pipeline event.
package events

import "slices"

// EventType identifies the kind of an event
type EventType string

const (
	// SignalGenerated is published when a model emits a new signal for a ticker
	SignalGenerated EventType = "SIGNAL_GENERATED"
	// PortfolioChanged is published after an upload, analysis or sync mutated a portfolio
	PortfolioChanged EventType = "PORTFOLIO_CHANGED"
	// ModelDriftDetected is published by the drift monitor
	ModelDriftDetected EventType = "MODEL_DRIFT_DETECTED"
	// AlertTriggered is published by handlers for user-facing alerts
	AlertTriggered EventType = "ALERT_TRIGGERED"
)

// KnownTypes lists every event type with a typed payload.
func KnownTypes() []EventType {
	return []EventType{SignalGenerated, PortfolioChanged, ModelDriftDetected, AlertTriggered}
}

// Known reports whether t is one of KnownTypes.
func (t EventType) Known() bool {
	return slices.Contains(KnownTypes(), t)
}

// AlertType categorizes ALERT_TRIGGERED events
type AlertType string

const (
	AlertSignalChange AlertType = "signal_change"
	AlertStopLoss     AlertType = "stop_loss"
	AlertTargetPrice  AlertType = "target_price"
)

// Portfolio change actions with dedicated completion templates.
const (
	ActionUpload  = "upload"
	ActionAnalyze = "analyze"
)
