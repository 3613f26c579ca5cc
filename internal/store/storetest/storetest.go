// Package storetest holds behavior tests every store.Store must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dgallion1/libraria/internal/book"
	"github.com/dgallion1/libraria/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Chapters builds n chapters with fresh IDs, plus one chapter summary per
// chapter and a book summary.
func Chapters(prefix string, n int) ([]book.Chapter, []book.Summary) {
	chapters := make([]book.Chapter, n)
	summaries := []book.Summary{{
		ID: uuid.NewString(), Scope: book.ScopeBook, Length: "medium",
		Text: prefix + " book summary", GeneratedBy: "local",
	}}
	for i := range chapters {
		chapters[i] = book.Chapter{
			ID:            uuid.NewString(),
			Order:         i + 1,
			Title:         fmt.Sprintf("%s %d", prefix, i+1),
			Level:         1,
			Content:       fmt.Sprintf("%s content %d", prefix, i+1),
			ContentLength: 20,
			WordCount:     3,
		}
		summaries = append(summaries, book.Summary{
			ID: uuid.NewString(), Scope: book.ScopeChapter, TargetID: chapters[i].ID,
			Length: "short", Text: fmt.Sprintf("%s summary %d", prefix, i+1), GeneratedBy: "local",
		})
	}
	return chapters, summaries
}

// Outcome is a successful run's outcome for a book with a TOC.
func Outcome() book.Outcome {
	return book.Outcome{Title: "Novel", FileKind: book.KindDOCX, PageCount: 3, HasTOC: true, Summary: "About things."}
}

// Run exercises s. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("UnknownBook", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Book(context.Background(), "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.Chapters(context.Background(), "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ReplaceThenRead", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		chapters, summaries := Chapters("first", 3)
		require.NoError(t, s.ReplaceChapters(ctx, "b1", chapters, summaries, Outcome()))

		got, err := s.Chapters(ctx, "b1")
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, c := range got {
			assert.Equal(t, i+1, c.Order)
			assert.Equal(t, chapters[i].ID, c.ID)
			assert.Equal(t, chapters[i].Title, c.Title)
			assert.Equal(t, chapters[i].Content, c.Content)
			assert.Equal(t, "b1", c.BookID)
		}

		sums, err := s.Summaries(ctx, "b1")
		require.NoError(t, err)
		require.Len(t, sums, 4)
		for i, sm := range sums {
			assert.Equal(t, summaries[i].ID, sm.ID, "summaries keep their written order")
		}

		b, err := s.Book(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "b1", b.ID)
		assert.True(t, b.IsProcessed)
		assert.True(t, b.HasTOC)
		assert.Equal(t, "Novel", b.Title)
		assert.Equal(t, "About things.", b.Summary)
	})

	t.Run("SecondReplaceWins", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c1, s1 := Chapters("old", 5)
		require.NoError(t, s.ReplaceChapters(ctx, "b1", c1, s1, Outcome()))
		c2, s2 := Chapters("new", 2)
		require.NoError(t, s.ReplaceChapters(ctx, "b1", c2, s2, Outcome()))

		got, err := s.Chapters(ctx, "b1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, c := range got {
			assert.Contains(t, c.Title, "new")
		}
		sums, err := s.Summaries(ctx, "b1")
		require.NoError(t, err)
		assert.Len(t, sums, 3)
		for _, sm := range sums {
			assert.Contains(t, sm.Text, "new")
		}
	})

	t.Run("InvalidSetKeepsPrevious", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c1, s1 := Chapters("old", 2)
		require.NoError(t, s.ReplaceChapters(ctx, "b1", c1, s1, Outcome()))

		bad, _ := Chapters("bad", 2)
		bad[1].Order = 7
		assert.Error(t, s.ReplaceChapters(ctx, "b1", bad, nil, book.Outcome{Title: "Other", HasTOC: false}))

		got, err := s.Chapters(ctx, "b1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, c1[0].ID, got[0].ID)

		b, err := s.Book(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "Novel", b.Title, "a rejected set leaves the book record alone")
		assert.True(t, b.HasTOC)
	})

	t.Run("EmptySet", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c1, s1 := Chapters("old", 2)
		require.NoError(t, s.ReplaceChapters(ctx, "b1", c1, s1, Outcome()))
		require.NoError(t, s.ReplaceChapters(ctx, "b1", nil, nil, Outcome()))

		got, err := s.Chapters(ctx, "b1")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("MarkProcessed", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.MarkProcessed(ctx, "b2", book.Outcome{
			Title: "Novel", FileKind: book.KindPDF, PageCount: 9, HasTOC: true, Summary: "About things.",
		}))
		b, err := s.Book(ctx, "b2")
		require.NoError(t, err)
		assert.True(t, b.IsProcessed)
		assert.True(t, b.HasTOC)
		assert.True(t, b.HasSummary)
		assert.Equal(t, "About things.", b.Summary)
		assert.Equal(t, 9, b.PageCount)
		assert.Equal(t, book.KindPDF, b.FileKind)
		assert.Empty(t, b.ProcessingError)

		require.NoError(t, s.MarkProcessed(ctx, "b2", book.Outcome{Error: "corrupt file"}))
		b, err = s.Book(ctx, "b2")
		require.NoError(t, err)
		assert.Equal(t, "corrupt file", b.ProcessingError)
		assert.True(t, b.IsProcessed, "a failed run keeps the previous processed state")
		assert.Equal(t, "About things.", b.Summary)
	})

	t.Run("ConcurrentReadersSeeWholeSets", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c1, s1 := Chapters("a", 4)
		require.NoError(t, s.ReplaceChapters(ctx, "b3", c1, s1, Outcome()))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				n := 4
				if i%2 == 0 {
					n = 6
				}
				c, sm := Chapters("x", n)
				assert.NoError(t, s.ReplaceChapters(ctx, "b3", c, sm, Outcome()))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				got, err := s.Chapters(ctx, "b3")
				if !assert.NoError(t, err) {
					return
				}
				assert.Contains(t, []int{4, 6}, len(got))
			}
		}()
		wg.Wait()
	})
}
