package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dgallion1/libraria/internal/book"
)

func paragraph(word string, n int) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

func TestSegment_HeadingSpans(t *testing.T) {
	text := "1. Giriş\nBu bir örnek.\n2. Sonuç\nBitti."
	headings := []book.Heading{
		{Title: "Giriş", Line: 0, Level: 1},
		{Title: "Sonuç", Line: 2, Level: 1},
	}

	chapters := Segment(text, headings, DefaultConfig())
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	if chapters[0].Content != "1. Giriş\nBu bir örnek." {
		t.Errorf("chapter 1 content: got %q", chapters[0].Content)
	}
	if chapters[1].Content != "2. Sonuç\nBitti." {
		t.Errorf("chapter 2 content: got %q", chapters[1].Content)
	}
	for i, c := range chapters {
		if c.Order != i+1 {
			t.Errorf("chapter %d: expected order %d, got %d", i, i+1, c.Order)
		}
		if c.Title != headings[i].Title || c.Level != headings[i].Level {
			t.Errorf("chapter %d: title/level not taken from heading: %+v", i, c)
		}
	}
	if chapters[0].ContentLength != utf8.RuneCountInString("1. Giriş\nBu bir örnek.") {
		t.Errorf("unexpected content length %d", chapters[0].ContentLength)
	}
}

func TestSegment_CapsHeadings(t *testing.T) {
	var lines []string
	var headings []book.Heading
	for i := 0; i < 60; i++ {
		headings = append(headings, book.Heading{Title: fmt.Sprintf("H%d", i), Line: len(lines), Level: 1})
		lines = append(lines, fmt.Sprintf("Chapter %d", i+1), "text")
	}

	chapters := Segment(strings.Join(lines, "\n"), headings, DefaultConfig())
	if len(chapters) != 50 {
		t.Fatalf("expected 50 chapters, got %d", len(chapters))
	}
	last := chapters[49]
	if last.Order != 50 || last.Title != "H49" {
		t.Errorf("unexpected last chapter: %+v", last)
	}
	// The 50th chapter stops at the 51st heading instead of absorbing the rest.
	if last.Content != "Chapter 50\ntext" {
		t.Errorf("capped chapter absorbed dropped headings: %q", last.Content)
	}
}

func TestSegment_Truncation(t *testing.T) {
	body := strings.Repeat("ç", 6000)
	text := "Chapter 1\n" + body
	headings := []book.Heading{{Title: "Chapter 1", Line: 0, Level: 1}}

	chapters := Segment(text, headings, DefaultConfig())
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(chapters))
	}
	c := chapters[0]
	if n := utf8.RuneCountInString(c.Content); n != 5000 {
		t.Errorf("expected 5000 characters, got %d", n)
	}
	if !utf8.ValidString(c.Content) {
		t.Error("truncation split a rune")
	}
	if c.ContentLength != utf8.RuneCountInString(text) {
		t.Errorf("expected untruncated length %d, got %d", utf8.RuneCountInString(text), c.ContentLength)
	}
}

func TestSegment_FallbackGrouping(t *testing.T) {
	// 1200 words in 100-word paragraphs: 500 + 500 + 200.
	var paras []string
	for i := 0; i < 12; i++ {
		paras = append(paras, paragraph(fmt.Sprintf("w%d", i), 100))
	}
	text := strings.Join(paras, "\n\n")

	chapters := Segment(text, nil, DefaultConfig())
	if len(chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(chapters))
	}
	wantWords := []int{500, 500, 200}
	for i, c := range chapters {
		if c.WordCount != wantWords[i] {
			t.Errorf("chapter %d: expected %d words, got %d", i, wantWords[i], c.WordCount)
		}
		if c.Title != fmt.Sprintf("Chapter %d", i+1) || c.Level != 1 || c.Order != i+1 {
			t.Errorf("chapter %d: unexpected metadata %+v", i, c)
		}
	}
}

func TestSegment_FallbackKeepsEveryParagraph(t *testing.T) {
	var paras []string
	for i := 0; i < 9; i++ {
		paras = append(paras, paragraph(fmt.Sprintf("p%d", i), 70+i*13))
	}
	text := strings.Join(paras, "\n\n")

	chapters := Segment(text, nil, Config{MaxContentChars: 1 << 20})
	var rebuilt []string
	for _, c := range chapters {
		rebuilt = append(rebuilt, strings.Split(c.Content, "\n\n")...)
	}
	if strings.Join(rebuilt, "|") != strings.Join(paras, "|") {
		t.Error("paragraphs lost, duplicated or reordered")
	}
}

func TestSegment_FallbackOversizedParagraph(t *testing.T) {
	text := paragraph("small", 10) + "\n\n" + paragraph("huge", 900) + "\n\n" + paragraph("tail", 10)
	chapters := Segment(text, nil, DefaultConfig())
	if len(chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(chapters))
	}
	if chapters[1].WordCount != 900 {
		t.Errorf("oversized paragraph should stand alone, got %d words", chapters[1].WordCount)
	}
}

func TestSegment_FallbackSingleChapter(t *testing.T) {
	chapters := Segment("Only a little text.", nil, DefaultConfig())
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(chapters))
	}
	if chapters[0].Content != "Only a little text." {
		t.Errorf("unexpected content %q", chapters[0].Content)
	}
}

func TestSegment_EmptyText(t *testing.T) {
	for _, text := range []string{"", "   \n\n \n"} {
		if chapters := Segment(text, nil, DefaultConfig()); len(chapters) != 0 {
			t.Errorf("%q: expected 0 chapters, got %d", text, len(chapters))
		}
	}
}

func TestSegment_CustomConfig(t *testing.T) {
	text := strings.Join([]string{paragraph("a", 30), paragraph("b", 30), paragraph("c", 30)}, "\n\n")
	chapters := Segment(text, nil, Config{FallbackWords: 40, TitleFormat: "Bölüm %d"})
	if len(chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(chapters))
	}
	if chapters[2].Title != "Bölüm 3" {
		t.Errorf("unexpected title %q", chapters[2].Title)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel"},
		{"örnek", 2, "ör"},
		{"x", 0, "x"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Error("empty text should be 0 tokens")
	}
	if EstimateTokens("a") != 1 {
		t.Error("single word should be at least 1 token")
	}
	if got := EstimateTokens(paragraph("word", 300)); got != 399 {
		t.Errorf("expected 399 tokens, got %d", got)
	}
}
