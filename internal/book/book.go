package book

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrUnsupportedFormat is returned when a document kind has no extractor.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrExtractionFailure is returned when a recognized document cannot be read.
	ErrExtractionFailure = errors.New("text extraction failed")
	// ErrEmptyDocument marks an extraction that produced no text.
	ErrEmptyDocument = errors.New("document contains no text")
)

// FileKind identifies the container format of an uploaded document.
type FileKind string

const (
	KindPDF      FileKind = "pdf"
	KindDOCX     FileKind = "docx"
	KindDOC      FileKind = "doc"
	KindMarkdown FileKind = "md"
	KindHTML     FileKind = "html"
	KindText     FileKind = "txt"
	KindEPUB     FileKind = "epub"
)

// KindFromFilename infers the document kind from its extension.
// Unknown extensions return the bare extension so callers can report it.
func KindFromFilename(filename string) FileKind {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch ext {
	case "markdown":
		return KindMarkdown
	case "htm", "xhtml":
		return KindHTML
	}
	return FileKind(ext)
}

// RawDocument is an uploaded file awaiting extraction.
type RawDocument struct {
	Filename string
	Kind     FileKind // Inferred from Filename when empty
	Data     []byte
}

// ResolvedKind returns Kind, falling back to the filename extension.
func (d RawDocument) ResolvedKind() FileKind {
	if d.Kind != "" {
		return d.Kind
	}
	return KindFromFilename(d.Filename)
}

// Extraction is the plain text of a document plus optional layout metadata.
type Extraction struct {
	Title     string   // Document title (from metadata or filename)
	Text      string   // Plain text, one paragraph per line
	Styles    []string // Per-line paragraph style; nil when the format has none
	PageCount int      // 0 if N/A
}

// Lines splits Text the same way Styles is indexed.
func (e *Extraction) Lines() []string {
	return strings.Split(e.Text, "\n")
}

// Heading is a detected chapter start.
type Heading struct {
	Title  string // Heading text without its numbering
	Number string // Numbering as written ("1.2", "IV"), empty if none
	Line   int    // Zero-based line index in the extracted text
	Level  int    // Nesting depth, 1 for top level
}

// Chapter is one segment of a book's body text.
type Chapter struct {
	ID            string `json:"id"`
	BookID        string `json:"book_id"`
	Order         int    `json:"order"`
	Title         string `json:"title"`
	Level         int    `json:"level"`
	Content       string `json:"content,omitempty"`
	ContentLength int    `json:"content_length"` // Rune length before truncation
	WordCount     int    `json:"word_count"`
}

// Scope says what a summary describes.
type Scope string

const (
	ScopeBook    Scope = "book"
	ScopeChapter Scope = "chapter"
)

// Summary is generated text describing a book or one of its chapters.
type Summary struct {
	ID          string `json:"id"`
	BookID      string `json:"book_id"`
	Scope       Scope  `json:"scope"`
	TargetID    string `json:"target_id"` // Chapter ID, or the book ID for book scope
	Length      string `json:"length"`
	Text        string `json:"text"`
	GeneratedBy string `json:"generated_by"`
	TokenCount  int    `json:"token_count"`
	WordCount   int    `json:"word_count"`
}

// Book is the persisted processing state of a book.
type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title,omitempty"`
	FileKind        FileKind  `json:"file_kind,omitempty"`
	PageCount       int       `json:"page_count"`
	IsProcessed     bool      `json:"is_processed"`
	HasTOC          bool      `json:"has_toc"`
	HasSummary      bool      `json:"has_summary"`
	Summary         string    `json:"summary,omitempty"`
	ProcessingError string    `json:"processing_error,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Outcome is what a processing run records on the book.
// A non-empty Error records a failed run and leaves the other fields alone.
type Outcome struct {
	Title     string
	FileKind  FileKind
	PageCount int
	HasTOC    bool
	Summary   string
	Error     string
}

// Apply folds an outcome into b.
func (o Outcome) Apply(b *Book, now time.Time) {
	b.UpdatedAt = now
	if o.Error != "" {
		b.ProcessingError = o.Error
		return
	}
	if o.Title != "" {
		b.Title = o.Title
	}
	if o.FileKind != "" {
		b.FileKind = o.FileKind
	}
	b.PageCount = o.PageCount
	b.IsProcessed = true
	b.HasTOC = o.HasTOC
	b.Summary = o.Summary
	b.HasSummary = o.Summary != ""
	b.ProcessingError = ""
}

// ProcessingResult is returned from a processing run.
type ProcessingResult struct {
	Success       bool   `json:"success"`
	ChaptersCount int    `json:"chapters_count"`
	HasTOC        bool   `json:"has_toc"`
	HasSummary    bool   `json:"has_summary"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
