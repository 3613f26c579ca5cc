package pathstore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/dgallion1/libraria/internal/book"
	"github.com/dgallion1/libraria/internal/store"
	"github.com/dgallion1/libraria/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKV is a minimal in-memory pathstore.
type fakeKV struct {
	mu    sync.Mutex
	nodes map[string]json.RawMessage
	links []LinkRequest
	fail  func(r *http.Request) bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{nodes: make(map[string]json.RawMessage)}
}

func (f *fakeKV) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/kv/", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.EscapedPath(), "/kv/")
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.fail != nil && f.fail(r) {
			http.Error(w, "injected failure", http.StatusInternalServerError)
			return
		}

		switch r.Method {
		case http.MethodPut:
			var req struct {
				Value json.RawMessage `json:"value"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.nodes[key] = req.Value
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			if prefix, ok := strings.CutSuffix(key, "/*"); ok {
				var nodes []Node
				for k, v := range f.nodes {
					if strings.HasPrefix(k, prefix+"/") {
						nodes = append(nodes, Node{Key: k, Value: v})
					}
				}
				sort.Slice(nodes, func(i, j int) bool { return nodes[i].Key < nodes[j].Key })
				json.NewEncoder(w).Encode(map[string]any{"nodes": nodes})
				return
			}
			v, ok := f.nodes[key]
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(Node{Key: key, Value: v})
		case http.MethodDelete:
			delete(f.nodes, key)
			if r.URL.Query().Get("children") == "true" {
				for k := range f.nodes {
					if strings.HasPrefix(k, key+"/") {
						delete(f.nodes, k)
					}
				}
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/links", func(w http.ResponseWriter, r *http.Request) {
		var req LinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.links = append(f.links, req)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (f *fakeKV) setFail(fn func(r *http.Request) bool) {
	f.mu.Lock()
	f.fail = fn
	f.mu.Unlock()
}

func (f *fakeKV) get(key string) (json.RawMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.nodes[key]
	return v, ok
}

func (f *fakeKV) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.nodes {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

func newTestStore(t *testing.T) (*Store, *fakeKV) {
	t.Helper()
	kv := newFakeKV()
	srv := httptest.NewServer(kv.handler())
	t.Cleanup(srv.Close)
	s := New(NewClient(srv.URL, "test-key"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { s.Close() })
	return s, kv
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, _ := newTestStore(t)
		return s
	})
}

func TestReplaceChapters_RemovesOldGeneration(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore(t)

	c1, s1 := storetest.Chapters("old", 3)
	require.NoError(t, s.ReplaceChapters(ctx, "b1", c1, s1, storetest.Outcome()))
	c2, s2 := storetest.Chapters("new", 2)
	require.NoError(t, s.ReplaceChapters(ctx, "b1", c2, s2, storetest.Outcome()))

	// 2 chapters + 3 summaries in the live generation only.
	assert.Equal(t, 5, kv.count("books/b1/gen/"))
}

func TestReplaceChapters_LinksChapterSummaries(t *testing.T) {
	s, kv := newTestStore(t)
	c, sm := storetest.Chapters("x", 2)
	require.NoError(t, s.ReplaceChapters(context.Background(), "b1", c, sm, storetest.Outcome()))

	kv.mu.Lock()
	defer kv.mu.Unlock()
	require.Len(t, kv.links, 2)
	for _, l := range kv.links {
		assert.Contains(t, l.From, "/summaries/")
		assert.Contains(t, l.To, "/chapters/")
	}
}

func TestReplaceChapters_FailedWriteKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore(t)

	c1, s1 := storetest.Chapters("old", 2)
	require.NoError(t, s.ReplaceChapters(ctx, "b1", c1, s1, storetest.Outcome()))

	kv.setFail(func(r *http.Request) bool {
		return r.Method == http.MethodPut && strings.Contains(r.URL.Path, "/summaries/")
	})
	c2, s2 := storetest.Chapters("new", 4)
	assert.Error(t, s.ReplaceChapters(ctx, "b1", c2, s2, storetest.Outcome()))
	kv.setFail(nil)

	got, err := s.Chapters(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, c1[0].ID, got[0].ID)
	// The half-written generation was discarded.
	assert.Equal(t, 5, kv.count("books/b1/gen/"))
}

func TestBookIDIsEscaped(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore(t)
	c, sm := storetest.Chapters("x", 1)
	require.NoError(t, s.ReplaceChapters(ctx, "a/b", c, sm, storetest.Outcome()))

	raw, ok := kv.get("books/a%2Fb")
	require.True(t, ok)
	var rec record
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.True(t, strings.HasPrefix(rec.Generation, "books/a%2Fb/gen/"))
	assert.Equal(t, "a/b", rec.Book.ID)

	got, err := s.Chapters(ctx, "a/b")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReplaceChapters_FailedCommitKeepsBook(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore(t)

	c1, s1 := storetest.Chapters("old", 2)
	require.NoError(t, s.ReplaceChapters(ctx, "b1", c1, s1, storetest.Outcome()))

	// Every generation write succeeds; only the book record update fails.
	kv.setFail(func(r *http.Request) bool {
		return r.Method == http.MethodPut && r.URL.Path == "/kv/books/b1"
	})
	c2, s2 := storetest.Chapters("new", 4)
	assert.Error(t, s.ReplaceChapters(ctx, "b1", c2, s2, book.Outcome{Title: "Second", HasTOC: false}))
	kv.setFail(nil)

	got, err := s.Chapters(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	b, err := s.Book(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Novel", b.Title)
	assert.True(t, b.HasTOC)
	assert.Equal(t, 5, kv.count("books/b1/gen/"))
}

func TestSummaries_KeepChapterOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	c, sm := storetest.Chapters("x", 12)
	require.NoError(t, s.ReplaceChapters(ctx, "b1", c, sm, storetest.Outcome()))

	got, err := s.Summaries(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, got, 13)
	assert.Equal(t, book.ScopeBook, got[0].Scope)
	for i, g := range got[1:] {
		assert.Equal(t, c[i].ID, g.TargetID)
	}
}
