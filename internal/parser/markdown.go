package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/libraria/internal/book"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. ATX and setext
// headings are reported as "HeadingN" paragraph styles.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*book.Extraction, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var b lineBuilder
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			b.heading(string(node.Text(src)), node.Level)
		case *ast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				b.paragraph(extractText(item, src), "")
			}
		case *ast.ThematicBreak:
			// Horizontal rules carry no text.
		default:
			b.paragraph(extractText(n, src), "")
		}
	}

	return b.extraction(trimExt(filename), true), nil
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	// Leaf blocks (code, raw HTML) keep their text in line segments.
	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
			continue
		}
		if c.Type() == ast.TypeBlock && buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(extractText(c, src))
	}
	return strings.TrimSpace(buf.String())
}
