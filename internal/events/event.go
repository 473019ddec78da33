package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is an immutable envelope around a typed payload.
// Handlers receive it by pointer and must not mutate it.
type Event struct {
	EventID       string    `json:"eventId"`
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source"`
	CorrelationID string    `json:"correlationId,omitempty"`
	UserID        string    `json:"userId,omitempty"`
	Data          EventData `json:"data"`
}

// Option customizes an event at construction
type Option func(*Event)

// WithCorrelationID links the event to the event that caused it
func WithCorrelationID(id string) Option {
	return func(e *Event) { e.CorrelationID = id }
}

// WithUserID tags the event with the affected user
func WithUserID(userID string) Option {
	return func(e *Event) { e.UserID = userID }
}

// WithTimestamp overrides the creation time
func WithTimestamp(ts time.Time) Option {
	return func(e *Event) { e.Timestamp = ts }
}

// NewEvent builds an event for data with a fresh UUID and the current time.
func NewEvent(source string, data EventData, opts ...Option) *Event {
	e := &Event{
		EventID:   uuid.New().String(),
		Type:      data.EventType(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		Data:      data,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
