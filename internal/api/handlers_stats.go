package api

import (
	"net/http"

	"github.com/dgallion1/libraria/internal/summarize"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.summarizer == nil {
		jsonError(w, "summary service not configured", http.StatusServiceUnavailable)
		return
	}

	service := summarize.LocalName
	if svc := s.summarizer.Service(); svc != nil {
		service = svc.Name()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": service,
		"remote":  s.summarizer.Remote(),
		"stats":   s.summarizer.Stats().Snapshot(),
	})
}
