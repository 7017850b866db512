package api

import (
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
}

// handleHealthz reports ok while the reader worker is running and 503 once it
// has exited.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if !s.source.Stats().Running {
		s.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "stopped"})
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
