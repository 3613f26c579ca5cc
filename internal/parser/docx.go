package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/libraria/internal/book"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Each paragraph keeps its style name so
// heading detection can use the document's own outline.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*book.Extraction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}

	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var b lineBuilder
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			b.paragraph(docxParagraphText(it), docxStyle(it))
		case *docx.Table:
			docxTableRows(&b, it)
		}
	}

	return b.extraction(trimExt(filename), true), nil
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

// docxTableRows linearizes a table one row per line. Nested tables are
// flattened after the row that contains them.
func docxTableRows(b *lineBuilder, tbl *docx.Table) {
	for _, row := range tbl.TableRows {
		var cells []string
		var nested []*docx.Table
		for _, cell := range row.TableCells {
			var parts []string
			for _, para := range cell.Paragraphs {
				if t := docxParagraphText(para); t != "" {
					parts = append(parts, t)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
			nested = append(nested, cell.Tables...)
		}
		b.row(cells)
		for _, n := range nested {
			docxTableRows(b, n)
		}
	}
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
