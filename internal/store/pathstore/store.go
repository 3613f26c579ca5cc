package pathstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/libraria/internal/book"
	"github.com/dgallion1/libraria/internal/store"
	"github.com/google/uuid"
)

const (
	source = "libraria"

	// Readers retry when the generation flips under them mid-scan.
	maxReadAttempts = 5
)

// Store keeps books as pathstore nodes:
//
//	books/{id}                                   book record and current generation
//	books/{id}/gen/{gen}/chapters/{order}        one chapter
//	books/{id}/gen/{gen}/summaries/{seq}         one summary
//
// A replacement writes a whole new generation and then rewrites the book
// record, which names the live generation and carries the run's outcome.
// That single write is the commit point, so readers only ever scan
// complete generations and the book flags always match them.
type Store struct {
	c   *Client
	log *slog.Logger
	now func() time.Time

	// Writers within this process are serialized so a commit never races
	// another replacement for the same book.
	mu sync.Mutex
}

func New(c *Client, log *slog.Logger) *Store {
	return &Store{c: c, log: log, now: time.Now}
}

// record is the value of the books/{id} node.
type record struct {
	Generation string    `json:"generation,omitempty"`
	Book       book.Book `json:"book"`
}

func bookKey(bookID string) string { return "books/" + url.PathEscape(bookID) }

func genKey(bookID, gen string) string { return bookKey(bookID) + "/gen/" + gen }

func chapterKey(gen string, order int) string { return gen + fmt.Sprintf("/chapters/%06d", order) }

func summaryKey(gen string, seq int) string { return gen + fmt.Sprintf("/summaries/%06d", seq) }

func (s *Store) ReplaceChapters(ctx context.Context, bookID string, chapters []book.Chapter, summaries []book.Summary, outcome book.Outcome) error {
	chapters = slices.Clone(chapters)
	summaries = slices.Clone(summaries)
	if err := store.Prepare(bookID, chapters, summaries); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.loadOrNew(ctx, bookID)
	if err != nil {
		return err
	}
	prev := rec.Generation

	gen := genKey(bookID, uuid.NewString())
	if err := s.writeGeneration(ctx, gen, chapters, summaries); err != nil {
		s.discard(gen)
		return err
	}
	rec.Generation = gen
	outcome.Apply(&rec.Book, s.now())
	if err := s.put(ctx, rec); err != nil {
		s.discard(gen)
		return err
	}

	if prev != "" {
		s.discard(prev)
	}
	return nil
}

func (s *Store) writeGeneration(ctx context.Context, gen string, chapters []book.Chapter, summaries []book.Summary) error {
	keys := make(map[string]string, len(chapters))
	for _, c := range chapters {
		key := chapterKey(gen, c.Order)
		if err := s.c.PutNode(ctx, key, NodeRequest{Value: c, Source: source}); err != nil {
			return err
		}
		keys[c.ID] = key
	}
	for i, sm := range summaries {
		key := summaryKey(gen, i)
		if err := s.c.PutNode(ctx, key, NodeRequest{Value: sm, Source: source}); err != nil {
			return err
		}
		if sm.Scope != book.ScopeChapter {
			continue
		}
		if err := s.c.PutLink(ctx, LinkRequest{
			From:    key,
			To:      keys[sm.TargetID],
			Weight:  1,
			Summary: "summarizes",
		}); err != nil {
			return err
		}
	}
	return nil
}

// discard removes a generation best-effort. It runs on its own context
// so a cancelled request still cleans up after itself.
func (s *Store) discard(gen string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.c.DeleteNode(ctx, gen, true); err != nil {
		s.log.Warn("discard generation", "key", gen, "error", err)
	}
}

func (s *Store) load(ctx context.Context, bookID string) (*record, error) {
	node, err := s.c.GetNode(ctx, bookKey(bookID))
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, store.ErrNotFound
	}
	var rec record
	if err := json.Unmarshal(node.Value, &rec); err != nil {
		return nil, fmt.Errorf("decode book %s: %w", bookID, err)
	}
	return &rec, nil
}

// loadOrNew returns the stored record, or an unsaved one for a new book.
func (s *Store) loadOrNew(ctx context.Context, bookID string) (*record, error) {
	rec, err := s.load(ctx, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return &record{Book: book.Book{ID: bookID, UpdatedAt: s.now()}}, nil
	}
	return rec, err
}

func (s *Store) put(ctx context.Context, rec *record) error {
	return s.c.PutNode(ctx, bookKey(rec.Book.ID), NodeRequest{Value: rec, Source: source})
}

func (s *Store) MarkProcessed(ctx context.Context, bookID string, outcome book.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.loadOrNew(ctx, bookID)
	if err != nil {
		return err
	}
	outcome.Apply(&rec.Book, s.now())
	return s.put(ctx, rec)
}

func (s *Store) Book(ctx context.Context, bookID string) (*book.Book, error) {
	rec, err := s.load(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return &rec.Book, nil
}

// scan lists one kind of record from the current generation. If the
// live generation changes during the scan the listing may be partial, so it is
// repeated against the new generation.
func (s *Store) scan(ctx context.Context, bookID, kind string) ([]Node, error) {
	rec, err := s.load(ctx, bookID)
	if err != nil {
		return nil, err
	}
	gen := rec.Generation
	for range maxReadAttempts {
		if gen == "" {
			return nil, nil
		}
		nodes, err := s.c.ListChildren(ctx, gen+"/"+kind, 0)
		if err != nil {
			return nil, err
		}
		after, err := s.load(ctx, bookID)
		if err != nil {
			return nil, err
		}
		if after.Generation == gen {
			// Keys are zero-padded sequence numbers.
			slices.SortFunc(nodes, func(a, b Node) int { return strings.Compare(a.Key, b.Key) })
			return nodes, nil
		}
		gen = after.Generation
	}
	return nil, fmt.Errorf("book %s: chapter set kept changing during read", bookID)
}

func (s *Store) Chapters(ctx context.Context, bookID string) ([]book.Chapter, error) {
	nodes, err := s.scan(ctx, bookID, "chapters")
	if err != nil {
		return nil, err
	}
	chapters := make([]book.Chapter, 0, len(nodes))
	for _, n := range nodes {
		var c book.Chapter
		if err := json.Unmarshal(n.Value, &c); err != nil {
			return nil, fmt.Errorf("decode chapter %s: %w", n.Key, err)
		}
		chapters = append(chapters, c)
	}
	slices.SortFunc(chapters, func(a, b book.Chapter) int { return a.Order - b.Order })
	return chapters, nil
}

func (s *Store) Summaries(ctx context.Context, bookID string) ([]book.Summary, error) {
	nodes, err := s.scan(ctx, bookID, "summaries")
	if err != nil {
		return nil, err
	}
	summaries := make([]book.Summary, 0, len(nodes))
	for _, n := range nodes {
		var sm book.Summary
		if err := json.Unmarshal(n.Value, &sm); err != nil {
			return nil, fmt.Errorf("decode summary %s: %w", n.Key, err)
		}
		summaries = append(summaries, sm)
	}
	return summaries, nil
}

func (s *Store) Close() error {
	s.c.Close()
	return nil
}

var _ store.Store = (*Store)(nil)
