package api

import (
	"net/http"

	"github.com/pageturnapp/pageturn-server/internal/http/response"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.statsService.GetProfile(r.Context(), getUserID(r.Context()))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, profile, s.logger)
}

func (s *Server) handleGetCurrentReading(w http.ResponseWriter, r *http.Request) {
	session, err := s.readingService.CurrentSession(r.Context(), getUserID(r.Context()))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if session == nil {
		response.Success(w, map[string]any{"reading": nil}, s.logger)
		return
	}
	response.Success(w, map[string]any{"reading": session}, s.logger)
}
