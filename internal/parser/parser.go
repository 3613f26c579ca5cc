package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/libraria/internal/book"
)

// CellDelimiter joins the cells of a linearized table row.
const CellDelimiter = " | "

// Parser converts raw document bytes into plain text.
type Parser interface {
	Parse(r io.Reader, filename string) (*book.Extraction, error)
}

// Options controls the external helpers some formats fall back to.
type Options struct {
	FallbackPdftotext bool
	AntiwordPath      string
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
	".doc":      true,
	".epub":     true,
}

// ForKind returns the parser for a document kind.
func ForKind(kind book.FileKind, opts Options) (Parser, error) {
	switch kind {
	case book.KindText:
		return &TextParser{}, nil
	case book.KindMarkdown:
		return &MarkdownParser{}, nil
	case book.KindHTML:
		return &HTMLParser{}, nil
	case book.KindPDF:
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case book.KindDOCX:
		return &DOCXParser{}, nil
	case book.KindDOC:
		return &DOCParser{AntiwordPath: opts.AntiwordPath}, nil
	case book.KindEPUB:
		return &EPUBParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", book.ErrUnsupportedFormat, string(kind))
	}
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	return ForKind(book.KindFromFilename(filename), Options{FallbackPdftotext: true})
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Extract runs the parser for doc's kind. Every failure wraps either
// book.ErrUnsupportedFormat or book.ErrExtractionFailure, and no partial
// extraction is ever returned.
func Extract(doc book.RawDocument, opts Options) (ex *book.Extraction, err error) {
	p, err := ForKind(doc.ResolvedKind(), opts)
	if err != nil {
		return nil, err
	}

	// Third-party readers panic on some malformed input.
	defer func() {
		if r := recover(); r != nil {
			ex = nil
			err = fmt.Errorf("%w: %s: panic: %v", book.ErrExtractionFailure, doc.Filename, r)
		}
	}()

	ex, err = p.Parse(bytes.NewReader(doc.Data), doc.Filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", book.ErrExtractionFailure, doc.Filename, err)
	}
	if ex.Title == "" {
		ex.Title = trimExt(doc.Filename)
	}
	return ex, nil
}

func trimExt(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// spool copies r into a temp file for readers that need a path or a
// ReaderAt. The caller removes the file.
func spool(r io.Reader, pattern string) (string, int64, error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	size, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("write temp file: %w", err)
	}
	return tmp.Name(), size, nil
}

// lineBuilder accumulates extracted lines with their paragraph styles.
// Paragraphs are separated by a blank line so the text segments the same
// way whether or not headings are found.
type lineBuilder struct {
	lines   []string
	styles  []string
	inTable bool
}

// paragraph appends one paragraph. Embedded newlines become separate
// lines; only the first carries the style.
func (b *lineBuilder) paragraph(text, style string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.separate()
	b.inTable = false
	for i, line := range strings.Split(text, "\n") {
		b.lines = append(b.lines, strings.TrimRight(line, " \t\r"))
		if i == 0 {
			b.styles = append(b.styles, style)
		} else {
			b.styles = append(b.styles, "")
		}
	}
}

func (b *lineBuilder) separate() {
	if len(b.lines) > 0 {
		b.lines = append(b.lines, "")
		b.styles = append(b.styles, "")
	}
}

// heading appends a single-line paragraph styled as a heading of level.
func (b *lineBuilder) heading(text string, level int) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return
	}
	b.paragraph(text, fmt.Sprintf("Heading%d", level))
}

// row appends one linearized table row.
func (b *lineBuilder) row(cells []string) {
	var kept []string
	for _, c := range cells {
		c = strings.Join(strings.Fields(c), " ")
		if c != "" {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return
	}
	if !b.inTable {
		b.separate()
		b.inTable = true
	}
	b.lines = append(b.lines, strings.Join(kept, CellDelimiter))
	b.styles = append(b.styles, "")
}

// extraction builds the result. withStyles keeps per-line styles for
// formats that carry real paragraph style metadata.
func (b *lineBuilder) extraction(title string, withStyles bool) *book.Extraction {
	ex := &book.Extraction{
		Title: title,
		Text:  strings.Join(b.lines, "\n"),
	}
	if withStyles {
		ex.Styles = b.styles
		if ex.Styles == nil {
			ex.Styles = []string{}
		}
	}
	return ex
}
