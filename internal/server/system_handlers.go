package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/pulse/internal/database"
	"github.com/aristath/pulse/internal/events"
	"github.com/aristath/pulse/internal/httputil"
	"github.com/aristath/pulse/internal/scheduler"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStatsResponse is the body of GET /api/system/stats
type SystemStatsResponse struct {
	CPUPercent    float64                    `json:"cpu_percent"`
	MemoryPercent float64                    `json:"memory_percent"`
	MemoryUsedMB  float64                    `json:"memory_used_mb"`
	Goroutines    int                        `json:"goroutines"`
	Databases     map[string]*database.Stats `json:"databases"`
	Events        events.BusStats            `json:"events"`
	Jobs          []scheduler.JobInfo        `json:"jobs"`
}

// handleSystemStats handles GET /api/system/stats
func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatsResponse{
		Goroutines: runtime.NumGoroutine(),
		Databases:  make(map[string]*database.Stats, len(s.databases)),
		Events:     s.bus.Stats(),
		Jobs:       []scheduler.JobInfo{},
	}

	if percents, err := cpu.Percent(100*time.Millisecond, false); err != nil {
		s.log.Warn().Err(err).Msg("Failed to read CPU usage")
	} else if len(percents) > 0 {
		resp.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to read memory usage")
	} else {
		resp.MemoryPercent = vm.UsedPercent
		resp.MemoryUsedMB = float64(vm.Used) / 1024 / 1024
	}

	for _, db := range s.databases {
		stats, err := db.GetStats()
		if err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to read database stats")
			continue
		}
		resp.Databases[db.Name()] = stats
	}

	if s.scheduler != nil {
		resp.Jobs = s.scheduler.Jobs()
	}

	httputil.WriteJSON(w, s.log, http.StatusOK, resp)
}
