package events

import (
	"encoding/json"
	"fmt"

	"github.com/aristath/pulse/internal/domain"
)

// newPayload returns an empty typed payload for t, or nil for unknown types.
func newPayload(t EventType) EventData {
	switch t {
	case SignalGenerated:
		return &SignalGeneratedData{}
	case PortfolioChanged:
		return &PortfolioChangedData{}
	case ModelDriftDetected:
		return &ModelDriftData{}
	case AlertTriggered:
		return &AlertTriggeredData{}
	default:
		return nil
	}
}

// DecodeData converts a loosely typed payload into the typed payload of t.
// Unknown types yield a GenericEventData. Field type mismatches are
// reported as domain.ErrValidation.
func DecodeData(t EventType, raw map[string]interface{}) (EventData, error) {
	payload := newPayload(t)
	if payload == nil {
		return &GenericEventData{Type: t, Data: raw}, nil
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: payload for %s is not encodable: %v", domain.ErrValidation, t, err)
	}
	if err := json.Unmarshal(b, payload); err != nil {
		return nil, fmt.Errorf("%w: payload for %s: %v", domain.ErrValidation, t, err)
	}
	return payload, nil
}

// Payload returns the event's typed payload, decoding generic payloads of
// known types on the fly.
func (e *Event) Payload() (EventData, error) {
	if e.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no payload", domain.ErrValidation, e.EventID)
	}
	if g, ok := e.Data.(*GenericEventData); ok {
		return DecodeData(e.Type, g.Data)
	}
	return e.Data, nil
}

// UnmarshalJSON customizes JSON deserialization for Event
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		e.Data = nil
		return nil
	}

	payload := newPayload(e.Type)
	if payload == nil {
		payload = &GenericEventData{Type: e.Type}
	}
	if err := json.Unmarshal(aux.Data, payload); err != nil {
		return err
	}
	e.Data = payload
	return nil
}
