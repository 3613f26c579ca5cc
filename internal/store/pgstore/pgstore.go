// Package pgstore keeps books in PostgreSQL.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/libraria/internal/book"
	"github.com/dgallion1/libraria/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL DEFAULT '',
	file_kind        TEXT NOT NULL DEFAULT '',
	page_count       INTEGER NOT NULL DEFAULT 0,
	is_processed     BOOLEAN NOT NULL DEFAULT FALSE,
	has_toc          BOOLEAN NOT NULL DEFAULT FALSE,
	has_summary      BOOLEAN NOT NULL DEFAULT FALSE,
	summary          TEXT NOT NULL DEFAULT '',
	processing_error TEXT NOT NULL DEFAULT '',
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chapters (
	id             TEXT PRIMARY KEY,
	book_id        TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	ord            INTEGER NOT NULL,
	title          TEXT NOT NULL,
	level          INTEGER NOT NULL,
	content        TEXT NOT NULL,
	content_length INTEGER NOT NULL,
	word_count     INTEGER NOT NULL,
	UNIQUE (book_id, ord)
);

CREATE TABLE IF NOT EXISTS summaries (
	id           TEXT PRIMARY KEY,
	book_id      TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	seq          INTEGER NOT NULL,
	scope        TEXT NOT NULL,
	target_id    TEXT NOT NULL,
	length       TEXT NOT NULL,
	text         TEXT NOT NULL,
	generated_by TEXT NOT NULL,
	token_count  INTEGER NOT NULL,
	word_count   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS summaries_book_idx ON summaries (book_id, seq);
`

// Store is a store.Store backed by a pgx connection pool. Each
// replacement runs in one transaction.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn and creates the schema if needed.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func ensureBook(ctx context.Context, tx pgx.Tx, bookID string) error {
	_, err := tx.Exec(ctx, `INSERT INTO books (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, bookID)
	if err != nil {
		return fmt.Errorf("create book %s: %w", bookID, err)
	}
	return nil
}

func (s *Store) ReplaceChapters(ctx context.Context, bookID string, chapters []book.Chapter, summaries []book.Summary, outcome book.Outcome) error {
	chapters = append([]book.Chapter(nil), chapters...)
	summaries = append([]book.Summary(nil), summaries...)
	if err := store.Prepare(bookID, chapters, summaries); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Locking the book row makes concurrent replacements apply one after
	// the other.
	b, err := lockBook(ctx, tx, bookID)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM summaries WHERE book_id = $1`, bookID); err != nil {
		return fmt.Errorf("delete summaries: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chapters WHERE book_id = $1`, bookID); err != nil {
		return fmt.Errorf("delete chapters: %w", err)
	}

	chapterRows := make([][]any, len(chapters))
	for i, c := range chapters {
		chapterRows[i] = []any{c.ID, c.BookID, c.Order, c.Title, c.Level, c.Content, c.ContentLength, c.WordCount}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"chapters"},
		[]string{"id", "book_id", "ord", "title", "level", "content", "content_length", "word_count"},
		pgx.CopyFromRows(chapterRows)); err != nil {
		return fmt.Errorf("insert chapters: %w", err)
	}

	summaryRows := make([][]any, len(summaries))
	for i, sm := range summaries {
		summaryRows[i] = []any{sm.ID, sm.BookID, i, string(sm.Scope), sm.TargetID, sm.Length, sm.Text, sm.GeneratedBy, sm.TokenCount, sm.WordCount}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"summaries"},
		[]string{"id", "book_id", "seq", "scope", "target_id", "length", "text", "generated_by", "token_count", "word_count"},
		pgx.CopyFromRows(summaryRows)); err != nil {
		return fmt.Errorf("insert summaries: %w", err)
	}

	outcome.Apply(b, time.Now().UTC())
	if err := updateBook(ctx, tx, b); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const bookColumns = `id, title, file_kind, page_count, is_processed, has_toc, has_summary, summary, processing_error, updated_at`

func scanBook(row pgx.Row) (*book.Book, error) {
	var b book.Book
	var kind string
	err := row.Scan(&b.ID, &b.Title, &kind, &b.PageCount, &b.IsProcessed, &b.HasTOC,
		&b.HasSummary, &b.Summary, &b.ProcessingError, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.FileKind = book.FileKind(kind)
	return &b, nil
}

// lockBook creates the book row if needed and loads it FOR UPDATE.
func lockBook(ctx context.Context, tx pgx.Tx, bookID string) (*book.Book, error) {
	if err := ensureBook(ctx, tx, bookID); err != nil {
		return nil, err
	}
	b, err := scanBook(tx.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1 FOR UPDATE`, bookID))
	if err != nil {
		return nil, fmt.Errorf("lock book %s: %w", bookID, err)
	}
	return b, nil
}

func updateBook(ctx context.Context, tx pgx.Tx, b *book.Book) error {
	_, err := tx.Exec(ctx, `
		UPDATE books SET
			title = $2, file_kind = $3, page_count = $4, is_processed = $5, has_toc = $6,
			has_summary = $7, summary = $8, processing_error = $9, updated_at = $10
		WHERE id = $1`,
		b.ID, b.Title, string(b.FileKind), b.PageCount, b.IsProcessed, b.HasTOC,
		b.HasSummary, b.Summary, b.ProcessingError, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update book %s: %w", b.ID, err)
	}
	return nil
}

func (s *Store) MarkProcessed(ctx context.Context, bookID string, outcome book.Outcome) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	b, err := lockBook(ctx, tx, bookID)
	if err != nil {
		return err
	}
	outcome.Apply(b, time.Now().UTC())
	if err := updateBook(ctx, tx, b); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Book(ctx context.Context, bookID string) (*book.Book, error) {
	b, err := scanBook(s.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, bookID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load book %s: %w", bookID, err)
	}
	return b, nil
}

func (s *Store) exists(ctx context.Context, bookID string) error {
	var ok bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, bookID).Scan(&ok); err != nil {
		return fmt.Errorf("check book %s: %w", bookID, err)
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Chapters(ctx context.Context, bookID string) ([]book.Chapter, error) {
	if err := s.exists(ctx, bookID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, book_id, ord, title, level, content, content_length, word_count
		FROM chapters WHERE book_id = $1 ORDER BY ord`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query chapters: %w", err)
	}
	chapters, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (book.Chapter, error) {
		var c book.Chapter
		err := row.Scan(&c.ID, &c.BookID, &c.Order, &c.Title, &c.Level, &c.Content, &c.ContentLength, &c.WordCount)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan chapters: %w", err)
	}
	return chapters, nil
}

func (s *Store) Summaries(ctx context.Context, bookID string) ([]book.Summary, error) {
	if err := s.exists(ctx, bookID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, book_id, scope, target_id, length, text, generated_by, token_count, word_count
		FROM summaries WHERE book_id = $1 ORDER BY seq`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	summaries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (book.Summary, error) {
		var sm book.Summary
		var scope string
		err := row.Scan(&sm.ID, &sm.BookID, &scope, &sm.TargetID, &sm.Length, &sm.Text,
			&sm.GeneratedBy, &sm.TokenCount, &sm.WordCount)
		sm.Scope = book.Scope(scope)
		return sm, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan summaries: %w", err)
	}
	return summaries, nil
}

// Truncate removes every book. Tests use it to start from an empty store.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE books CASCADE`)
	return err
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var _ store.Store = (*Store)(nil)
