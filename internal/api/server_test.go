package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/libraria/internal/book"
	"github.com/dgallion1/libraria/internal/config"
	"github.com/dgallion1/libraria/internal/pipeline"
	"github.com/dgallion1/libraria/internal/store/memstore"
	"github.com/dgallion1/libraria/internal/summarize"
)

const scenario = "1. Giriş\nBu bir örnek.\n2. Sonuç\nBitti."

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sum := summarize.New(nil, cfg.SummarizerConfig(), log)
	proc := pipeline.NewProcessor(memstore.New(), sum, pipeline.ProcessorConfig{
		Segment:       cfg.ChunkerConfig(),
		MaxConcurrent: cfg.Summary.MaxConcurrent,
	}, log)
	orch := pipeline.NewOrchestrator(cfg, proc, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)
	return NewServer(orch, sum, log, cfg)
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec, body := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestUploadDocument_Wait(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := do(t, s, http.MethodPut, "/api/books/b1/document?filename=book.txt&wait=true", scenario)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 2, body["chapters_count"])
	assert.Equal(t, true, body["has_toc"])
	assert.Equal(t, "2 chapters processed.", body["message"])

	rec, body = do(t, s, http.MethodGet, "/api/books/b1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["is_processed"])
	assert.Equal(t, "txt", body["file_kind"])

	rec, body = do(t, s, http.MethodGet, "/api/books/b1/chapters", "")
	require.Equal(t, http.StatusOK, rec.Code)
	chapters := body["chapters"].([]any)
	require.Len(t, chapters, 2)
	first := chapters[0].(map[string]any)
	assert.Equal(t, "Giriş", first["title"])
	assert.NotContains(t, first, "content")

	_, body = do(t, s, http.MethodGet, "/api/books/b1/chapters?content=true", "")
	first = body["chapters"].([]any)[0].(map[string]any)
	assert.Equal(t, "1. Giriş\nBu bir örnek.", first["content"])

	_, body = do(t, s, http.MethodGet, "/api/books/b1/summaries", "")
	assert.Len(t, body["summaries"].([]any), 3)

	_, body = do(t, s, http.MethodGet, "/api/books/b1/summaries?scope=book", "")
	assert.Len(t, body["summaries"].([]any), 1)
}

func TestUploadDocument_Async(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := do(t, s, http.MethodPut, "/api/books/b1/document?filename=book.txt", scenario)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "/api/jobs/"+jobID, body["poll_url"])

	assert.Eventually(t, func() bool {
		_, status := do(t, s, http.MethodGet, "/api/jobs/"+jobID, "")
		return status["status"] == string(pipeline.StatusCompleted)
	}, 5*time.Second, 10*time.Millisecond)

	_, status := do(t, s, http.MethodGet, "/api/jobs/"+jobID, "")
	result := status["result"].(map[string]any)
	assert.EqualValues(t, 2, result["chapters_count"])
	assert.Equal(t, "b1", status["book_id"])
}

func TestUploadDocument_FailureRecorded(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := do(t, s, http.MethodPut, "/api/books/b1/document?filename=broken.pdf&wait=true", "not a pdf")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])

	_, b := do(t, s, http.MethodGet, "/api/books/b1", "")
	assert.Equal(t, body["error"], b["processing_error"])
}

func TestUploadDocument_BadRequests(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.MaxUploadBytes = 16 })

	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"missing filename", "/api/books/b1/document", "x", http.StatusBadRequest},
		{"unsupported type", "/api/books/b1/document?filename=sheet.xlsx", "x", http.StatusBadRequest},
		{"bad wait flag", "/api/books/b1/document?filename=a.txt&wait=maybe", "x", http.StatusBadRequest},
		{"too large", "/api/books/b1/document?filename=a.txt", strings.Repeat("x", 64), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, s, http.MethodPut, tt.target, tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	for _, target := range []string{"/api/jobs/nope", "/api/books/nope", "/api/books/nope/chapters", "/api/books/nope/summaries"} {
		rec, _ := do(t, s, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}

func TestLLMStats(t *testing.T) {
	s := newTestServer(t, nil)
	rec, body := do(t, s, http.MethodGet, "/api/stats/llm", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, summarize.LocalName, body["service"])
	assert.Equal(t, false, body["remote"])
	assert.Contains(t, body, "stats")
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"":                  "",
		"book.pdf":          "book.pdf",
		"../../etc/x.txt":   "x.txt",
		`C:\docs\novel.doc`: `C:_docs_novel.doc`,
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}

func TestChaptersResponseShape(t *testing.T) {
	s := newTestServer(t, nil)
	do(t, s, http.MethodPut, "/api/books/b1/document?filename=book.txt&wait=true", "")

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books/b1/chapters", nil))
	var out struct {
		BookID   string         `json:"book_id"`
		Chapters []book.Chapter `json:"chapters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "b1", out.BookID)
	assert.NotNil(t, out.Chapters)
	assert.Contains(t, rec.Body.String(), `"chapters":[]`)
}
