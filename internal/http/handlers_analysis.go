package http

import (
	"context"
	"net/http"
	"time"
)

const adviceTimeout = 60 * time.Second

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := s.analysis.Dashboard(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardResponse(sum))
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), adviceTimeout)
	defer cancel()

	res, err := s.analysis.Analyze(ctx, userIDFrom(ctx))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
