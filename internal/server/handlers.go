package server

import (
	"net/http"

	"github.com/aristath/pulse/internal/httputil"
)

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	dbs := make(map[string]string, len(s.databases))

	for _, db := range s.databases {
		if err := db.HealthCheck(r.Context()); err != nil {
			s.log.Error().Err(err).Str("database", db.Name()).Msg("Health check failed")
			dbs[db.Name()] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		dbs[db.Name()] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	httputil.WriteJSON(w, s.log, status, map[string]interface{}{
		"status":    state,
		"databases": dbs,
	})
}
