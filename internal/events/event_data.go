package events

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/aristath/pulse/internal/domain"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
	// Validate reports a missing or invalid required field as domain.ErrValidation
	Validate() error
}

// SignalGeneratedData contains data for SIGNAL_GENERATED events
type SignalGeneratedData struct {
	Ticker string `json:"ticker"`
	Signal string `json:"signal"`
	// Confidence is nil when the producer omitted it
	Confidence *float64 `json:"confidence,omitempty"`
	Model      string   `json:"model,omitempty"`
}

// EventType returns the event type for SignalGeneratedData
func (d *SignalGeneratedData) EventType() EventType {
	return SignalGenerated
}

// Validate checks ticker, signal label and confidence range
func (d *SignalGeneratedData) Validate() error {
	if d.Ticker == "" {
		return fmt.Errorf("%w: ticker is required", domain.ErrValidation)
	}
	if d.Signal == "" {
		return fmt.Errorf("%w: signal is required", domain.ErrValidation)
	}
	if _, err := domain.ParseSignal(d.Signal); err != nil {
		return err
	}
	if d.Confidence != nil {
		c := *d.Confidence
		if math.IsNaN(c) || c < 0 || c > 100 {
			return fmt.Errorf("%w: confidence %v outside 0-100", domain.ErrValidation, c)
		}
	}
	return nil
}

// ConfidenceOrZero returns the confidence, defaulting to 0 when absent.
func (d *SignalGeneratedData) ConfidenceOrZero() float64 {
	if d.Confidence == nil {
		return 0
	}
	return *d.Confidence
}

// ModelOrUnknown returns the model name, defaulting to "unknown".
func (d *SignalGeneratedData) ModelOrUnknown() string {
	if d.Model == "" {
		return "unknown"
	}
	return d.Model
}

// PortfolioChangedData contains data for PORTFOLIO_CHANGED events
type PortfolioChangedData struct {
	PortfolioID   int64  `json:"portfolioId"`
	UserID        string `json:"userId,omitempty"`
	Action        string `json:"action,omitempty"`
	HoldingsCount *int   `json:"holdingsCount,omitempty"`
}

// EventType returns the event type for PortfolioChangedData
func (d *PortfolioChangedData) EventType() EventType {
	return PortfolioChanged
}

// Validate requires a portfolio id
func (d *PortfolioChangedData) Validate() error {
	if d.PortfolioID <= 0 {
		return fmt.Errorf("%w: portfolioId is required", domain.ErrValidation)
	}
	return nil
}

// ModelDriftData contains data for MODEL_DRIFT_DETECTED events
type ModelDriftData struct {
	ModelID         string   `json:"modelId"`
	DriftScore      float64  `json:"driftScore"`
	Threshold       *float64 `json:"threshold,omitempty"`
	FeaturesDrifted []string `json:"featuresDrifted,omitempty"`
	AutoRetrain     bool     `json:"autoRetrain,omitempty"`
}

// EventType returns the event type for ModelDriftData
func (d *ModelDriftData) EventType() EventType {
	return ModelDriftDetected
}

// Validate requires a model id
func (d *ModelDriftData) Validate() error {
	if d.ModelID == "" {
		return fmt.Errorf("%w: modelId is required", domain.ErrValidation)
	}
	return nil
}

// Report converts the payload into the admin notifier's report.
func (d *ModelDriftData) Report() domain.DriftReport {
	return domain.DriftReport{
		ModelID:         d.ModelID,
		DriftScore:      d.DriftScore,
		Threshold:       d.Threshold,
		FeaturesDrifted: d.FeaturesDrifted,
	}
}

// AlertTriggeredData contains data for ALERT_TRIGGERED events
type AlertTriggeredData struct {
	AlertType   AlertType `json:"alertType"`
	UserID      string    `json:"userId,omitempty"`
	PortfolioID int64     `json:"portfolioId,omitempty"`
	Ticker      string    `json:"ticker,omitempty"`
	OldSignal   string    `json:"oldSignal,omitempty"`
	NewSignal   string    `json:"newSignal,omitempty"`
	Confidence  float64   `json:"confidence"`
}

// EventType returns the event type for AlertTriggeredData
func (d *AlertTriggeredData) EventType() EventType {
	return AlertTriggered
}

// Validate requires an alert type
func (d *AlertTriggeredData) Validate() error {
	if d.AlertType == "" {
		return fmt.Errorf("%w: alertType is required", domain.ErrValidation)
	}
	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// Validate accepts any generic payload
func (d *GenericEventData) Validate() error {
	return nil
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
