package api

import (
	"net/http"

	"github.com/seantiz/pdf2zh-engine/internal/jobs"
)

// statsResponse is the JSON response for GET /stats. History counts come
// from the store; Live counts the jobs currently held in memory.
type statsResponse struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	ByService     map[string]int `json:"by_service"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
	Live          jobs.Stats     `json:"live"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetJobStats(r.Context())
	if err != nil {
		s.logger.Error("get job stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:         stats.Total,
		ByStatus:      stats.CountByStatus,
		ByService:     stats.CountByService,
		AvgDurationMS: stats.AvgDurationMS,
		Live:          s.jobs.Stats(),
	})
}
