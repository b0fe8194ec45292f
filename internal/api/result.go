package api

import (
	"net/http"
)

// handleResult returns the job result once the job has finished. A job that
// is still running reports ok=false with an error message. Repeated calls
// return the same result until the janitor evicts the job (jobs.ttl after it
// finished); from then on the job is unknown and the answer is 404.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}

	res, done := job.Result()
	if !done {
		s.writeFailure(w, http.StatusOK, "job not finished")
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}
