// Package toc finds chapter headings in extracted book text.
//
// Two sources are supported and never mixed for one document: paragraph
// style names ("Heading 1", "Heading2", ...) when the format provides
// them, and line patterns for plain text.
package toc

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/libraria/internal/book"
)

// MinLineLength is the shortest trimmed line considered for a heading.
const MinLineLength = 3

// MinCapsLength is the shortest all-caps line treated as a heading.
const MinCapsLength = 10

// DefaultChapterWords are the words that introduce a numbered chapter.
var DefaultChapterWords = []string{"Bölüm", "BÖLÜM", "Bolum", "BOLUM", "Chapter", "CHAPTER"}

var (
	numericRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+(.+)$`)
	romanRe   = regexp.MustCompile(`^([IVXLCDM]+)\.\s+(.+)$`)
	capsRe    = regexp.MustCompile(`^[\p{Lu}\s]+$`)
)

// Options configures a Detector.
type Options struct {
	ChapterWords []string // Defaults to DefaultChapterWords
}

// Detector recognizes headings. It is safe for concurrent use.
type Detector struct {
	chapterRe *regexp.Regexp
	matchers  []matcher
}

// matcher returns a heading for a trimmed line, or false.
type matcher func(line string) (book.Heading, bool)

// New builds a Detector.
func New(opts Options) *Detector {
	words := opts.ChapterWords
	if len(words) == 0 {
		words = DefaultChapterWords
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	d := &Detector{
		chapterRe: regexp.MustCompile(`^(?:` + strings.Join(quoted, "|") +
			`)\s+(\d+(?:\.\d+)*|[IVXLCDM]+)(?:[\s:.\-]+(.*))?$`),
	}
	// Order matters: the first recognizer that matches wins.
	d.matchers = []matcher{matchNumeric, d.matchChapter, matchRoman, matchCaps}
	return d
}

var defaultDetector = New(Options{})

// Detect runs the line-pattern recognizers with default options.
func Detect(text string) []book.Heading {
	return defaultDetector.Detect(text)
}

// FromStyles reads headings from per-line paragraph styles.
func FromStyles(text string, styles []string) []book.Heading {
	return defaultDetector.FromStyles(text, styles)
}

// DetectExtraction picks the heading source for ex and runs it.
func (d *Detector) DetectExtraction(ex *book.Extraction) []book.Heading {
	if ex.Styles != nil {
		return d.FromStyles(ex.Text, ex.Styles)
	}
	return d.Detect(ex.Text)
}

// Detect scans text line by line. Each line yields at most one heading and
// line indices in the result are strictly increasing.
func (d *Detector) Detect(text string) []book.Heading {
	var out []book.Heading
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if utf8.RuneCountInString(line) < MinLineLength {
			continue
		}
		for _, m := range d.matchers {
			if h, ok := m(line); ok {
				h.Line = i
				out = append(out, h)
				break
			}
		}
	}
	return out
}

// FromStyles returns one heading per non-empty line whose style name starts
// with "heading". The level is the style's numeric suffix, 1 if absent.
func (d *Detector) FromStyles(text string, styles []string) []book.Heading {
	var out []book.Heading
	for i, raw := range strings.Split(text, "\n") {
		if i >= len(styles) {
			break
		}
		level, ok := styleLevel(styles[i])
		if !ok {
			continue
		}
		title := strings.TrimSpace(raw)
		if title == "" {
			continue
		}
		out = append(out, book.Heading{Title: title, Line: i, Level: level})
	}
	return out
}

func styleLevel(style string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(style))
	if !strings.HasPrefix(s, "heading") {
		return 0, false
	}
	suffix := strings.TrimSpace(strings.TrimPrefix(s, "heading"))
	if n, err := strconv.Atoi(suffix); err == nil && n > 0 {
		return n, true
	}
	return 1, true
}

func matchNumeric(line string) (book.Heading, bool) {
	m := numericRe.FindStringSubmatch(line)
	if m == nil {
		return book.Heading{}, false
	}
	return book.Heading{
		Title:  strings.TrimSpace(m[2]),
		Number: m[1],
		Level:  strings.Count(m[1], ".") + 1,
	}, true
}

func (d *Detector) matchChapter(line string) (book.Heading, bool) {
	m := d.chapterRe.FindStringSubmatch(line)
	if m == nil {
		return book.Heading{}, false
	}
	title := strings.TrimSpace(m[2])
	if title == "" {
		title = line
	}
	return book.Heading{
		Title:  title,
		Number: m[1],
		Level:  strings.Count(m[1], ".") + 1,
	}, true
}

func matchRoman(line string) (book.Heading, bool) {
	m := romanRe.FindStringSubmatch(line)
	if m == nil {
		return book.Heading{}, false
	}
	return book.Heading{Title: strings.TrimSpace(m[2]), Number: m[1], Level: 1}, true
}

func matchCaps(line string) (book.Heading, bool) {
	if utf8.RuneCountInString(line) < MinCapsLength || !capsRe.MatchString(line) {
		return book.Heading{}, false
	}
	return book.Heading{Title: line, Level: 1}, true
}
