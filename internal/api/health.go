package api

import (
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
	PID    int    `json:"pid"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", PID: s.pid})
}
