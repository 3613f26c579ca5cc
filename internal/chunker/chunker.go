package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/libraria/internal/book"
)

// Config controls segmentation behavior.
type Config struct {
	MaxChapters     int    // Headings past this many are dropped.
	FallbackWords   int    // Word budget per chapter when no headings exist.
	MaxContentChars int    // Stored content is cut to this many characters.
	TitleFormat     string // Title for fallback chapters, takes the chapter number.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxChapters:     50,
		FallbackWords:   500,
		MaxContentChars: 5000,
		TitleFormat:     "Chapter %d",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxChapters <= 0 {
		c.MaxChapters = d.MaxChapters
	}
	if c.FallbackWords <= 0 {
		c.FallbackWords = d.FallbackWords
	}
	if c.MaxContentChars <= 0 {
		c.MaxContentChars = d.MaxContentChars
	}
	if c.TitleFormat == "" {
		c.TitleFormat = d.TitleFormat
	}
	return c
}

// Segment splits text into ordered chapters. With headings, each chapter
// runs from its heading line up to the next detected heading; without,
// paragraphs are grouped up to the fallback word budget.
func Segment(text string, headings []book.Heading, cfg Config) []book.Chapter {
	cfg = cfg.withDefaults()
	if len(headings) == 0 {
		return segmentParagraphs(text, cfg)
	}
	return segmentHeadings(text, headings, cfg)
}

func segmentHeadings(text string, headings []book.Heading, cfg Config) []book.Chapter {
	lines := strings.Split(text, "\n")
	n := min(len(headings), cfg.MaxChapters)

	chapters := make([]book.Chapter, 0, n)
	for i, h := range headings[:n] {
		// Spans end at the next heading even when that heading is past the cap.
		end := len(lines)
		if i+1 < len(headings) {
			end = headings[i+1].Line
		}
		start := clamp(h.Line, 0, len(lines))
		end = clamp(end, start, len(lines))

		chapters = append(chapters, newChapter(i+1, h.Title, h.Level,
			strings.TrimSpace(strings.Join(lines[start:end], "\n")), cfg))
	}
	return chapters
}

func segmentParagraphs(text string, cfg Config) []book.Chapter {
	var chapters []book.Chapter
	var current []string
	words := 0

	flush := func() {
		num := len(chapters) + 1
		chapters = append(chapters, newChapter(num, fmt.Sprintf(cfg.TitleFormat, num), 1,
			strings.Join(current, "\n\n"), cfg))
		current = nil
		words = 0
	}

	for _, para := range splitByParagraphs(text) {
		paraWords := book.WordCount(para)
		if words+paraWords > cfg.FallbackWords && len(current) > 0 {
			flush()
		}
		current = append(current, para)
		words += paraWords
	}
	if len(current) > 0 {
		flush()
	}
	return chapters
}

func newChapter(order int, title string, level int, content string, cfg Config) book.Chapter {
	if level < 1 {
		level = 1
	}
	return book.Chapter{
		Order:         order,
		Title:         title,
		Level:         level,
		Content:       Truncate(content, cfg.MaxContentChars),
		ContentLength: utf8.RuneCountInString(content),
		WordCount:     book.WordCount(content),
	}
}

var blankLineRe = regexp.MustCompile(`\n[ \t\r]*\n`)

// splitByParagraphs splits on blank lines.
func splitByParagraphs(text string) []string {
	parts := blankLineRe.Split(text, -1)
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
