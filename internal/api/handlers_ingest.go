package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/libraria/internal/book"
	"github.com/dgallion1/libraria/internal/parser"
	"github.com/dgallion1/libraria/internal/pipeline"
	"github.com/dgallion1/libraria/internal/summarize"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// handleUploadDocument takes the raw document as the request body and
// processes it for the book, synchronously with ?wait=true or as a job.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")
	q := r.URL.Query()

	filename := sanitizeFilename(q.Get("filename"))
	if filename == "" {
		jsonError(w, "filename query parameter is required", http.StatusBadRequest)
		return
	}
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}
	remote, err := boolParam(q.Get("remote_summary"))
	if err != nil {
		jsonError(w, "remote_summary must be a boolean", http.StatusBadRequest)
		return
	}
	wait, err := boolParam(q.Get("wait"))
	if err != nil {
		jsonError(w, "wait must be a boolean", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	doc := book.RawDocument{Filename: filename, Data: data}
	opts := pipeline.Options{
		UseRemoteSummary: remote,
		SummaryLength:    summarize.ParseLength(q.Get("length")),
	}

	if wait {
		res := s.orchestrator.Processor().ProcessBook(r.Context(), bookID, doc, opts)
		code := http.StatusOK
		if !res.Success {
			code = http.StatusUnprocessableEntity
		}
		writeJSON(w, code, res)
		return
	}

	job := pipeline.NewJob(uuid.NewString(), bookID, doc, opts)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"book_id":  bookID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func boolParam(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func sanitizeFilename(name string) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
