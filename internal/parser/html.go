package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/libraria/internal/book"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. h1-h6 become "HeadingN" styles and table
// rows are linearized.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*book.Extraction, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var b lineBuilder
	walkHTML(&b, contentRoot(doc))

	title := trimExt(filename)
	if t := findTitle(doc); t != "" {
		title = t
	}
	return b.extraction(title, true), nil
}

// walkHTML appends the block content under n to b in document order.
func walkHTML(b *lineBuilder, n *html.Node) {
	if n.Type == html.ElementNode {
		if level := headingLevel(n.Data); level > 0 {
			b.heading(textContent(n), level)
			return
		}

		switch n.Data {
		case "script", "style", "nav", "footer", "header", "head":
			return
		case "table":
			for _, tr := range findAll(n, "tr") {
				var cells []string
				for c := tr.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
						cells = append(cells, textContent(c))
					}
				}
				b.row(cells)
			}
			return
		case "p", "li", "blockquote", "pre", "dt", "dd", "figcaption":
			b.paragraph(textContent(n), "")
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(b, c)
	}
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			buf.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			buf.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if t := findFirst(n, "title"); t != nil {
		return textContent(t)
	}
	return ""
}

// contentRoot returns <body>, or the whole document when there is none.
func contentRoot(doc *html.Node) *html.Node {
	if body := findFirst(doc, "body"); body != nil {
		return body
	}
	return doc
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findFirst(c, tag); f != nil {
			return f
		}
	}
	return nil
}

// findAll returns tag elements under n, not descending into matches.
func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
			continue
		}
		out = append(out, findAll(c, tag)...)
	}
	return out
}
