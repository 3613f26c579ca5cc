package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/libraria/internal/book"
)

// TextParser handles plain text files. Lines are kept as written so the
// line-pattern heading detector sees the original layout; runs of blank
// lines collapse to one.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*book.Extraction, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	blank := true // Suppresses leading blank lines.
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			if !blank {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		lines = append(lines, line)
		blank = false
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	return &book.Extraction{
		Title: trimExt(filename),
		Text:  strings.Join(lines, "\n"),
	}, nil
}
