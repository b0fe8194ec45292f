package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/seantiz/pdf2zh-engine/internal/jobs"
	"github.com/seantiz/pdf2zh-engine/internal/model"
)

// lookupJob resolves the jobId query parameter, writing a 400 or 404 when it
// is missing or unknown.
func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (*jobs.Job, bool) {
	id := r.URL.Query().Get("jobId")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "jobId required")
		return nil, false
	}
	job, ok := s.jobs.Get(id)
	if !ok {
		s.writeFailure(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	return job, true
}

// handleEvents streams a job's events as server-sent events. Every stream
// starts from the first event, so late subscribers see the full history. The
// stream ends after the terminal event; a client disconnect only ends the
// stream, the job keeps running.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}

	// Streams outlive the server write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Warn("failed to clear write deadline for SSE", "error", err)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sseStreamsActive.Inc()
	defer sseStreamsActive.Dec()

	log := s.logger.With("job_id", job.ID())
	reader := job.Reader()
	for {
		ev, err := reader.Drain(r.Context(), s.keepalive)
		switch {
		case errors.Is(err, jobs.ErrNoEvent):
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				log.Debug("sse client gone", "error", err)
				return
			}
			flusher.Flush()
			continue
		case errors.Is(err, jobs.ErrEndOfStream):
			return
		case err != nil:
			log.Debug("sse stream closed", "error", err)
			return
		}

		if err := writeSSEData(w, ev); err != nil {
			log.Debug("sse client gone", "error", err)
			return
		}
		flusher.Flush()

		if ev.Terminal() {
			return
		}
	}
}

// writeSSEData writes one event as a single data line.
func writeSSEData(w http.ResponseWriter, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
