package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Defaults for NewBus
const (
	DefaultHistorySize    = 1000
	DefaultHandlerTimeout = 30 * time.Second
)

// BusConfig configures a Bus
type BusConfig struct {
	HistorySize    int
	HandlerTimeout time.Duration
}

// BusStats is a point-in-time view of bus counters
type BusStats struct {
	Published     uint64         `json:"published"`
	HandlerErrors uint64         `json:"handler_errors"`
	Timeouts      uint64         `json:"timeouts"`
	HistoryLen    int            `json:"history_len"`
	Subscribers   map[string]int `json:"subscribers"`
}

// Bus is an in-process publish/subscribe dispatcher.
//
// Publish records the event in a bounded history, then runs every handler
// subscribed to the event's type one after another, in subscription order.
// A handler error, panic or timeout is logged once and never reaches the
// publisher or the remaining handlers. Delivery is at-most-once: nothing is
// retried or persisted.
type Bus struct {
	registry *Registry
	timeout  time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	history []*Event
	head    int // index of the oldest entry once the ring is full
	full    bool

	published     atomic.Uint64
	handlerErrors atomic.Uint64
	timeouts      atomic.Uint64
}

// NewBus creates a new event bus
func NewBus(cfg BusConfig, log zerolog.Logger) *Bus {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = DefaultHandlerTimeout
	}
	return &Bus{
		registry: NewRegistry(),
		timeout:  cfg.HandlerTimeout,
		log:      log.With().Str("component", "event_bus").Logger(),
		history:  make([]*Event, 0, cfg.HistorySize),
	}
}

// Registry exposes the bus's handler registry
func (b *Bus) Registry() *Registry {
	return b.registry
}

// Subscribe registers a named handler for an event type and returns a
// function that removes it.
func (b *Bus) Subscribe(t EventType, name string, h Handler) func() {
	id := b.registry.Add(t, name, h)
	b.log.Debug().Str("event_type", string(t)).Str("handler", name).Msg("Handler subscribed")

	var once sync.Once
	return func() {
		once.Do(func() { b.registry.Remove(t, id) })
	}
}

// Publish records the event and dispatches it synchronously.
func (b *Bus) Publish(ctx context.Context, event *Event) {
	if event == nil {
		return
	}
	b.published.Add(1)
	b.record(event)

	for _, sub := range b.registry.Handlers(event.Type) {
		b.dispatch(ctx, event, sub)
	}
}

// Emit validates data, wraps it in a new event and publishes it.
func (b *Bus) Emit(ctx context.Context, source string, data EventData, opts ...Option) (*Event, error) {
	if data == nil {
		return nil, fmt.Errorf("emit from %s: nil payload", source)
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("emit %s from %s: %w", data.EventType(), source, err)
	}
	event := NewEvent(source, data, opts...)
	b.Publish(ctx, event)
	return event, nil
}

var errHandlerTimeout = errors.New("handler timed out")

func (b *Bus) dispatch(ctx context.Context, event *Event, sub Subscription) {
	hctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- sub.Handler(hctx, event)
	}()

	var err error
	select {
	case err = <-done:
	case <-hctx.Done():
		// The handler goroutine is left to observe cancellation on its own.
		err = errHandlerTimeout
		if ctx.Err() != nil {
			err = ctx.Err()
		}
	}

	if err == nil {
		return
	}

	logEvent := b.log.Error()
	if errors.Is(err, errHandlerTimeout) {
		b.timeouts.Add(1)
		logEvent = b.log.Error().Dur("timeout", b.timeout)
	}
	b.handlerErrors.Add(1)
	logEvent.
		Err(err).
		Str("event_id", event.EventID).
		Str("event_type", string(event.Type)).
		Str("handler", sub.Name).
		Msg("Event handler failed")
}

func (b *Bus) record(event *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		b.history = append(b.history, event)
		if len(b.history) == cap(b.history) {
			b.full = true
		}
		return
	}
	b.history[b.head] = event
	b.head = (b.head + 1) % len(b.history)
}

// History returns up to limit of the most recent events, oldest first.
// An empty type matches every event; limit <= 0 returns all retained events.
func (b *Bus) History(t EventType, limit int) []*Event {
	b.mu.Lock()
	ordered := make([]*Event, 0, len(b.history))
	ordered = append(ordered, b.history[b.head:]...)
	ordered = append(ordered, b.history[:b.head]...)
	b.mu.Unlock()

	result := ordered
	if t != "" {
		result = make([]*Event, 0, len(ordered))
		for _, e := range ordered {
			if e.Type == t {
				result = append(result, e)
			}
		}
	}

	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result
}

// Stats returns the bus counters
func (b *Bus) Stats() BusStats {
	b.mu.Lock()
	historyLen := len(b.history)
	b.mu.Unlock()

	subs := make(map[string]int)
	for t, n := range b.registry.Count() {
		subs[string(t)] = n
	}

	return BusStats{
		Published:     b.published.Load(),
		HandlerErrors: b.handlerErrors.Load(),
		Timeouts:      b.timeouts.Load(),
		HistoryLen:    historyLen,
		Subscribers:   subs,
	}
}
