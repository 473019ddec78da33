// Package handlers provides HTTP handlers for portfolio risk metrics.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/aristath/pulse/internal/httputil"
	"github.com/aristath/pulse/internal/modules/risk"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles risk HTTP requests
type Handler struct {
	service *risk.Service
	log     zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(service *risk.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "risk").Logger(),
	}
}

// RegisterRoutes registers all risk routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolios/{portfolioID}/risk", h.HandleGetRiskMetrics)
}

// HandleGetRiskMetrics handles GET /api/portfolios/{portfolioID}/risk?force=true
func (h *Handler) HandleGetRiskMetrics(w http.ResponseWriter, r *http.Request) {
	portfolioID, err := httputil.Int64Param(r, "portfolioID")
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	metrics, err := h.service.Calculate(r.Context(), portfolioID, force)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	httputil.WriteJSON(w, h.log, http.StatusOK, metrics)
}
