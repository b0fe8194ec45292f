package api

import (
	"net/http"

	"github.com/seantiz/pdf2zh-engine/internal/backend"
	"github.com/seantiz/pdf2zh-engine/internal/model"
)

// servicesResponse is the JSON response for GET /services.
type servicesResponse struct {
	Services []backend.ServiceInfo `json:"services"`
	Default  string                `json:"default"`
}

func (s *Server) handleListServices(w http.ResponseWriter, _ *http.Request) {
	services := s.translators.List()
	if services == nil {
		services = []backend.ServiceInfo{}
	}
	s.writeJSON(w, http.StatusOK, servicesResponse{
		Services: services,
		Default:  model.DefaultService,
	})
}
