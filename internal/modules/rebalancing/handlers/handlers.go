// Package handlers provides HTTP handlers for rebalancing suggestions.
package handlers

import (
	"net/http"

	"github.com/aristath/pulse/internal/httputil"
	"github.com/aristath/pulse/internal/modules/rebalancing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles rebalancing HTTP requests
type Handler struct {
	service *rebalancing.Service
	log     zerolog.Logger
}

// NewHandler creates a new rebalancing handler
func NewHandler(service *rebalancing.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "rebalancing").Logger(),
	}
}

// RegisterRoutes registers all rebalancing routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios/{portfolioID}/suggestions", func(r chi.Router) {
		r.Get("/", h.HandleGetSuggestions)
		r.Post("/regenerate", h.HandleRegenerate)
	})
}

// HandleGetSuggestions handles GET /api/portfolios/{portfolioID}/suggestions
func (h *Handler) HandleGetSuggestions(w http.ResponseWriter, r *http.Request) {
	portfolioID, err := httputil.Int64Param(r, "portfolioID")
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	suggestions, err := h.service.Suggestions(r.Context(), portfolioID)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	httputil.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"portfolio_id": portfolioID,
		"suggestions":  suggestions,
		"count":        len(suggestions),
	})
}

// HandleRegenerate handles POST /api/portfolios/{portfolioID}/suggestions/regenerate
func (h *Handler) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	portfolioID, err := httputil.Int64Param(r, "portfolioID")
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	result, err := h.service.Regenerate(r.Context(), portfolioID)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	httputil.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"portfolio_id": portfolioID,
		"status":       result.Status,
		"message":      result.Message,
		"suggestions":  result.Suggestions,
		"count":        len(result.Suggestions),
	})
}
