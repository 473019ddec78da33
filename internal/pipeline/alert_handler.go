package pipeline

import (
	"context"
	"fmt"

	"github.com/aristath/pulse/internal/domain"
	"github.com/aristath/pulse/internal/events"
	"github.com/rs/zerolog"
)

// AlertHandler turns ALERT_TRIGGERED events into user notifications
type AlertHandler struct {
	notifier domain.NotificationSink
	log      zerolog.Logger
}

// NewAlertHandler creates an alert notification handler
func NewAlertHandler(notifier domain.NotificationSink, log zerolog.Logger) *AlertHandler {
	return &AlertHandler{
		notifier: notifier,
		log:      log.With().Str("handler", "alert_notification").Logger(),
	}
}

// Handle creates the notification for the alert's user
func (h *AlertHandler) Handle(ctx context.Context, event *events.Event) error {
	log := h.log.With().Str("event_id", event.EventID).Logger()

	payload, err := event.Payload()
	if err != nil {
		log.Warn().Err(err).Msg("Invalid alert payload, ignoring event")
		return nil
	}
	data, ok := payload.(*events.AlertTriggeredData)
	if !ok {
		log.Warn().Str("payload", fmt.Sprintf("%T", payload)).Msg("Unexpected payload for alert event, ignoring")
		return nil
	}
	if err := data.Validate(); err != nil {
		log.Warn().Err(err).Msg("Invalid alert payload, ignoring event")
		return nil
	}

	userID := data.UserID
	if userID == "" {
		userID = event.UserID
	}
	if userID == "" {
		log.Debug().Str("alert_type", string(data.AlertType)).Msg("Alert has no user, skipping notification")
		return nil
	}

	n := alertNotification(data)
	n.UserID = userID
	n.Data = map[string]interface{}{
		"alert_type":   string(data.AlertType),
		"portfolio_id": data.PortfolioID,
		"ticker":       data.Ticker,
		"confidence":   data.Confidence,
	}
	if data.OldSignal != "" {
		n.Data["old_signal"] = data.OldSignal
	}
	if data.NewSignal != "" {
		n.Data["new_signal"] = data.NewSignal
	}
	if event.CorrelationID != "" {
		n.Data["correlation_id"] = event.CorrelationID
	}

	if h.notifier.Create(ctx, n) == "" {
		log.Warn().Str("alert_type", string(data.AlertType)).Msg("Alert notification not created")
	}
	return nil
}

func alertNotification(data *events.AlertTriggeredData) domain.Notification {
	switch data.AlertType {
	case events.AlertSignalChange:
		priority := domain.NotificationPriorityNormal
		if s := domain.Signal(data.NewSignal); s == domain.SignalStrongSell || s == domain.SignalStrongBuy {
			priority = domain.NotificationPriorityHigh
		}
		from := data.OldSignal
		if from == "" {
			from = "no signal"
		}
		return domain.Notification{
			Type:     domain.NotificationSignalChange,
			Title:    fmt.Sprintf("Signal change: %s", data.Ticker),
			Message:  fmt.Sprintf("%s moved from %s to %s (confidence %.0f%%).", data.Ticker, from, data.NewSignal, data.Confidence),
			Priority: priority,
		}
	case events.AlertStopLoss:
		return domain.Notification{
			Type:     domain.NotificationStopLoss,
			Title:    fmt.Sprintf("Stop-loss: %s", data.Ticker),
			Message:  fmt.Sprintf("%s crossed its stop-loss level.", data.Ticker),
			Priority: domain.NotificationPriorityHigh,
		}
	case events.AlertTargetPrice:
		return domain.Notification{
			Type:     domain.NotificationTargetPrice,
			Title:    fmt.Sprintf("Target reached: %s", data.Ticker),
			Message:  fmt.Sprintf("%s reached its target price.", data.Ticker),
			Priority: domain.NotificationPriorityNormal,
		}
	default:
		return domain.Notification{
			Type:     domain.NotificationType(data.AlertType),
			Title:    "Portfolio alert",
			Message:  fmt.Sprintf("Alert %s raised for %s.", data.AlertType, data.Ticker),
			Priority: domain.NotificationPriorityNormal,
		}
	}
}
