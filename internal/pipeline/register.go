package pipeline

import (
	"github.com/aristath/pulse/internal/events"
)

// Handlers is the set of pipeline handlers registered on a bus
type Handlers struct {
	Signal    *SignalHandler
	Portfolio *PortfolioHandler
	Drift     *DriftHandler
	Alert     *AlertHandler
}

// Subscription names used in logs and bus statistics.
const (
	SignalHandlerName    = "signal_change"
	PortfolioHandlerName = "portfolio_change"
	DriftHandlerName     = "model_drift"
	AlertHandlerName     = "alert_notification"
)

// RegisterHandlers subscribes every non-nil handler to its event type. It is
// meant to be called once at startup; calling it again registers duplicates.
// The returned function unsubscribes them all.
func RegisterHandlers(bus *events.Bus, h Handlers) func() {
	var unsubs []func()
	if h.Signal != nil {
		unsubs = append(unsubs, bus.Subscribe(events.SignalGenerated, SignalHandlerName, h.Signal.Handle))
	}
	if h.Portfolio != nil {
		unsubs = append(unsubs, bus.Subscribe(events.PortfolioChanged, PortfolioHandlerName, h.Portfolio.Handle))
	}
	if h.Drift != nil {
		unsubs = append(unsubs, bus.Subscribe(events.ModelDriftDetected, DriftHandlerName, h.Drift.Handle))
	}
	if h.Alert != nil {
		unsubs = append(unsubs, bus.Subscribe(events.AlertTriggered, AlertHandlerName, h.Alert.Handle))
	}

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
