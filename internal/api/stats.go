package api

import (
	"net/http"
)

func (s *Server) handleGetStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.source.Stats())
}
