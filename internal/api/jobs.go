package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/pdf2zh-engine/internal/model"
	"github.com/seantiz/pdf2zh-engine/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// listJobsResponse is the JSON response for GET /jobs.
type listJobsResponse struct {
	Jobs   []*model.JobRecord `json:"jobs"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// jobEventsResponse is the JSON response for GET /jobs/{id}/events.
type jobEventsResponse struct {
	JobID  string              `json:"job_id"`
	Events []model.EventRecord `json:"events"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	records, total, err := s.store.ListJobs(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list jobs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	if records == nil {
		records = []*model.JobRecord{}
	}

	s.writeJSON(w, http.StatusOK, listJobsResponse{
		Jobs:   records,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("get job", "job_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetJobEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.store.GetJob(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("get job", "job_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	events, err := s.store.GetEvents(r.Context(), id)
	if err != nil {
		s.logger.Error("get job events", "job_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job events")
		return
	}
	if events == nil {
		events = []model.EventRecord{}
	}

	s.writeJSON(w, http.StatusOK, jobEventsResponse{JobID: id, Events: events})
}
