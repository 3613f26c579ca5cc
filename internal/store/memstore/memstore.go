// Package memstore keeps books in process memory.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dgallion1/libraria/internal/book"
	"github.com/dgallion1/libraria/internal/store"
)

type entry struct {
	book      book.Book
	chapters  []book.Chapter
	summaries []book.Summary
}

// Store is an in-memory store.Store. Chapter sets are swapped whole under
// the lock, so readers never see a partial replacement.
type Store struct {
	mu    sync.RWMutex
	books map[string]*entry
	now   func() time.Time
}

func New() *Store {
	return &Store{
		books: make(map[string]*entry),
		now:   time.Now,
	}
}

func (s *Store) getOrCreateLocked(bookID string) *entry {
	e, ok := s.books[bookID]
	if !ok {
		e = &entry{book: book.Book{ID: bookID, UpdatedAt: s.now()}}
		s.books[bookID] = e
	}
	return e
}

func (s *Store) ReplaceChapters(_ context.Context, bookID string, chapters []book.Chapter, summaries []book.Summary, outcome book.Outcome) error {
	chapters = slices.Clone(chapters)
	summaries = slices.Clone(summaries)
	if err := store.Prepare(bookID, chapters, summaries); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.getOrCreateLocked(bookID)
	e.chapters = chapters
	e.summaries = summaries
	outcome.Apply(&e.book, s.now())
	return nil
}

func (s *Store) MarkProcessed(_ context.Context, bookID string, outcome book.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.getOrCreateLocked(bookID)
	outcome.Apply(&e.book, s.now())
	return nil
}

func (s *Store) Book(_ context.Context, bookID string) (*book.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.books[bookID]
	if !ok {
		return nil, store.ErrNotFound
	}
	b := e.book
	return &b, nil
}

func (s *Store) Chapters(_ context.Context, bookID string) ([]book.Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.books[bookID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(e.chapters), nil
}

func (s *Store) Summaries(_ context.Context, bookID string) ([]book.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.books[bookID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(e.summaries), nil
}

func (s *Store) Close() error { return nil }

var _ store.Store = (*Store)(nil)
