package web

import (
	"net/http"

	"github.com/JonMunkholm/sweeper/internal/logging"
	"github.com/JonMunkholm/sweeper/internal/web/templates"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	status := s.service.Status()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := templates.Dashboard(templates.DashboardData{
		Sessions:     status.Sessions,
		MaxSessions:  status.MaxSessions,
		ActiveJobs:   status.Limiter.Active,
		MaxJobs:      status.Limiter.MaxJobs,
		MaxFileSize:  s.cfg.Upload.MaxFileSize,
		HistoryStore: s.cfg.History.Store(),
	}).Render(r.Context(), w)
	if err != nil {
		logging.FromContext(r.Context()).Error("render dashboard", "error", err)
	}
}
