// Package handlers provides HTTP handlers for user notifications.
package handlers

import (
	"net/http"

	"github.com/aristath/pulse/internal/httputil"
	"github.com/aristath/pulse/internal/modules/notifications"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles notification HTTP requests
type Handler struct {
	service *notifications.Service
	log     zerolog.Logger
}

// NewHandler creates a new notifications handler
func NewHandler(service *notifications.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "notifications").Logger(),
	}
}

// RegisterRoutes registers all notification routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users/{userID}/notifications", h.HandleList)
	r.Post("/notifications/{id}/read", h.HandleMarkRead)
}

// HandleList handles GET /api/users/{userID}/notifications?limit=50
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit, err := httputil.IntQuery(r, "limit", 50)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	list, err := h.service.List(r.Context(), userID, limit)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	unread, err := h.service.CountUnread(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	httputil.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"notifications": list,
		"unread":        unread,
	})
}

// HandleMarkRead handles POST /api/notifications/{id}/read
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.MarkRead(r.Context(), id); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{"id": id, "read": true})
}
