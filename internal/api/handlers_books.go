package api

import (
	"errors"
	"net/http"

	"github.com/dgallion1/libraria/internal/book"
	"github.com/dgallion1/libraria/internal/store"
	"github.com/go-chi/chi/v5"
)

// storeError maps a store failure to a response.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "book not found", http.StatusNotFound)
		return
	}
	s.log.Error("store read failed", "path", r.URL.Path, "error", err)
	jsonError(w, "failed to read book", http.StatusInternalServerError)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.Book(r.Context(), chi.URLParam(r, "bookID"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleListChapters lists chapters in order. Content is omitted unless
// ?content=true.
func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")
	chapters, err := s.store.Chapters(r.Context(), bookID)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	if r.URL.Query().Get("content") != "true" {
		for i := range chapters {
			chapters[i].Content = ""
		}
	}
	if chapters == nil {
		chapters = []book.Chapter{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"book_id":  bookID,
		"chapters": chapters,
	})
}

// handleListSummaries lists summaries, optionally filtered by ?scope=.
func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")
	summaries, err := s.store.Summaries(r.Context(), bookID)
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	scope := book.Scope(r.URL.Query().Get("scope"))
	out := make([]book.Summary, 0, len(summaries))
	for _, sm := range summaries {
		if scope == "" || sm.Scope == scope {
			out = append(out, sm)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"book_id":   bookID,
		"summaries": out,
	})
}
