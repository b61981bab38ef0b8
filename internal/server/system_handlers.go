package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/vnmarket/internal/batch"
	"github.com/aristath/vnmarket/internal/cache"
	"github.com/aristath/vnmarket/internal/scheduler"
)

// SystemStatusResponse is the body of GET /api/system/status.
type SystemStatusResponse struct {
	Status        string              `json:"status"`
	UptimeHours   float64             `json:"uptime_hours"`
	CPUPercent    float64             `json:"cpu_percent"`
	RAMPercent    float64             `json:"ram_percent"`
	Goroutines    int                 `json:"goroutines"`
	CacheBackend  string              `json:"cache_backend"`
	Cache         cache.Stats         `json:"cache"`
	Authenticated bool                `json:"authenticated"`
	Controllers   []batch.Status      `json:"controllers"`
	Scheduled     []scheduler.JobInfo `json:"scheduled"`
	Batches       int                 `json:"batches"`
	LastRanking   *time.Time          `json:"last_ranking,omitempty"`
}

// handleSystemStatus handles GET /api/system/status
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	c := s.container
	cpuPercent, ramPercent := s.getSystemStats()

	response := SystemStatusResponse{
		Status:        "ok",
		UptimeHours:   time.Since(c.StartedAt).Hours(),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		Goroutines:    runtime.NumGoroutine(),
		Cache:         c.Cache.Stats(),
		Authenticated: c.Session.Authenticated(),
		Controllers:   []batch.Status{},
		Scheduled:     []scheduler.JobInfo{},
		Batches:       len(c.Jobs.List()),
	}
	if c.Config != nil {
		response.CacheBackend = c.Config.Cache.Backend
	}
	for _, ctrl := range c.Controllers() {
		response.Controllers = append(response.Controllers, ctrl.Status())
	}
	if c.Scheduler != nil {
		response.Scheduled = c.Scheduler.Jobs()
	}
	if snapshot, ok := c.Ranker.Latest(); ok {
		at := snapshot.GeneratedAt
		response.LastRanking = &at
	}

	s.writeJSON(w, http.StatusOK, response)
}

// getSystemStats calculates CPU and RAM usage percentages
// Uses a short sampling interval so the endpoint stays responsive
func (s *Server) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStats, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory stats")
		return cpuPercent[0], 0
	}

	return cpuPercent[0], memStats.UsedPercent
}

// handleCacheStats handles GET /api/cache/stats
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.container.Cache.Stats())
}

// handleInvalidateCache handles DELETE /api/cache?pattern=
// With a pattern, entries whose key contains it are removed; without one the
// whole cache is cleared.
func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		s.container.Cache.Clear()
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": true})
		return
	}

	removed := s.container.Cache.Invalidate(pattern)
	s.log.Info().Str("pattern", pattern).Int("removed", removed).Msg("Cache invalidated via API")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"pattern": pattern,
		"removed": removed,
	})
}
