package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/pulse/internal/domain"
	"github.com/aristath/pulse/internal/events"
	"github.com/aristath/pulse/internal/httputil"
	"github.com/aristath/pulse/internal/utils"
	"github.com/google/uuid"
)

const (
	streamBuffer    = 100
	streamHeartbeat = 30 * time.Second
	maxEventBody    = 1 << 20
)

// handleEventHistory handles GET /api/events/history?type=SIGNAL_GENERATED&limit=50
func (s *Server) handleEventHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.IntQuery(r, "limit", 100)
	if err != nil {
		httputil.WriteError(w, s.log, err)
		return
	}
	t := events.EventType(strings.ToUpper(r.URL.Query().Get("type")))

	history := s.bus.History(t, limit)
	httputil.WriteJSON(w, s.log, http.StatusOK, map[string]interface{}{
		"events": history,
		"count":  len(history),
	})
}

// handleEventStats handles GET /api/events/stats
func (s *Server) handleEventStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, s.log, http.StatusOK, s.bus.Stats())
}

// handlePublishEvent handles POST /api/events. Producers outside the
// process use it to inject signals, portfolio changes and drift reports.
func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	var event events.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody)).Decode(&event); err != nil {
		httputil.WriteError(w, s.log, fmt.Errorf("%w: invalid event body: %v", domain.ErrValidation, err))
		return
	}
	if event.Type == "" {
		httputil.WriteError(w, s.log, fmt.Errorf("%w: type is required", domain.ErrValidation))
		return
	}
	if !event.Type.Known() {
		httputil.WriteError(w, s.log, fmt.Errorf("%w: unknown event type %q", domain.ErrValidation, event.Type))
		return
	}

	payload, err := event.Payload()
	if err != nil {
		httputil.WriteError(w, s.log, err)
		return
	}
	if err := payload.Validate(); err != nil {
		httputil.WriteError(w, s.log, err)
		return
	}
	event.Data = payload

	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Source == "" {
		event.Source = "api"
	}

	// Handlers must finish even if the client hangs up.
	s.bus.Publish(context.WithoutCancel(r.Context()), &event)

	httputil.WriteJSON(w, s.log, http.StatusAccepted, map[string]interface{}{
		"event_id": event.EventID,
		"type":     event.Type,
	})
}

// handleEventStream handles GET /api/events/stream?types=SIGNAL_GENERATED,ALERT_TRIGGERED
// as a server-sent event stream.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	types := parseStreamTypes(r.URL.Query().Get("types"))

	// The server write timeout would otherwise close the stream.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := make(chan *events.Event, streamBuffer)
	name := "sse_stream_" + uuid.New().String()
	unsubscribe := make([]func(), 0, len(types))
	for _, t := range types {
		unsubscribe = append(unsubscribe, s.bus.Subscribe(t, name, func(_ context.Context, e *events.Event) error {
			select {
			case ch <- e:
			default:
				s.log.Warn().Str("event_id", e.EventID).Msg("Event stream client too slow, dropping event")
			}
			return nil
		}))
	}
	defer func() {
		for _, u := range unsubscribe {
			u()
		}
	}()

	s.log.Debug().Interface("types", types).Msg("Event stream client connected")

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.log.Debug().Msg("Event stream client disconnected")
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case e := <-ch:
			data, err := json.Marshal(e)
			if err != nil {
				s.log.Error().Err(err).Str("event_id", e.EventID).Msg("Failed to encode event")
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.EventID, e.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func parseStreamTypes(raw string) []events.EventType {
	var out []events.EventType
	seen := make(map[events.EventType]bool)
	for _, part := range utils.ParseCSV(raw) {
		t := events.EventType(strings.ToUpper(part))
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return events.KnownTypes()
	}
	return out
}
