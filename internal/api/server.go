package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/libraria/internal/config"
	"github.com/dgallion1/libraria/internal/pipeline"
	"github.com/dgallion1/libraria/internal/store"
	"github.com/dgallion1/libraria/internal/summarize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for libraria.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	store        store.Store
	summarizer   *summarize.Summarizer
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. sum may be nil when
// only local summaries are used.
func NewServer(orch *pipeline.Orchestrator, sum *summarize.Summarizer, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		store:        orch.Processor().Store(),
		summarizer:   sum,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Put("/books/{bookID}/document", s.handleUploadDocument)
		r.Get("/jobs/{jobID}", s.handleJobStatus)

		r.Get("/books/{bookID}", s.handleGetBook)
		r.Get("/books/{bookID}/chapters", s.handleListChapters)
		r.Get("/books/{bookID}/summaries", s.handleListSummaries)

		r.Get("/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
