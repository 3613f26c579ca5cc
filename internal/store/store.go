// Package store defines where processed books are persisted.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/libraria/internal/book"
)

// ErrNotFound is returned for books the store has never seen.
var ErrNotFound = errors.New("book not found")

// Store persists the chapter set and processing state of books.
//
// ReplaceChapters is atomic: it swaps in the new chapter set and applies
// outcome to the book record in one step. Readers see either the previous
// set and book state or the new ones, and a failed call changes nothing.
// MarkProcessed records an outcome without touching the chapter set. Both
// write methods create the book record if it does not exist.
type Store interface {
	ReplaceChapters(ctx context.Context, bookID string, chapters []book.Chapter, summaries []book.Summary, outcome book.Outcome) error
	MarkProcessed(ctx context.Context, bookID string, outcome book.Outcome) error
	Book(ctx context.Context, bookID string) (*book.Book, error)
	Chapters(ctx context.Context, bookID string) ([]book.Chapter, error)
	Summaries(ctx context.Context, bookID string) ([]book.Summary, error)
	Close() error
}

// Prepare validates a chapter set before it is written and stamps the
// book ID on every record. Orders must run 1..n and summaries must target
// the book or one of its chapters.
func Prepare(bookID string, chapters []book.Chapter, summaries []book.Summary) error {
	if strings.TrimSpace(bookID) == "" {
		return errors.New("empty book id")
	}
	ids := make(map[string]bool, len(chapters))
	for i := range chapters {
		c := &chapters[i]
		if c.Order != i+1 {
			return fmt.Errorf("chapter %d has order %d", i+1, c.Order)
		}
		if c.ID == "" {
			return fmt.Errorf("chapter %d has no id", c.Order)
		}
		c.BookID = bookID
		ids[c.ID] = true
	}
	for i := range summaries {
		s := &summaries[i]
		switch s.Scope {
		case book.ScopeBook:
			s.TargetID = bookID
		case book.ScopeChapter:
			if !ids[s.TargetID] {
				return fmt.Errorf("summary %s targets unknown chapter %s", s.ID, s.TargetID)
			}
		default:
			return fmt.Errorf("summary %s has invalid scope %q", s.ID, s.Scope)
		}
		s.BookID = bookID
	}
	return nil
}
