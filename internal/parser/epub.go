package parser

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dgallion1/libraria/internal/book"
	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"
)

// EPUBParser walks the spine of an EPUB and extracts each XHTML item the
// way HTMLParser does.
type EPUBParser struct{}

func (p *EPUBParser) Parse(r io.Reader, filename string) (*book.Extraction, error) {
	// goreader opens archives by path.
	tmpPath, _, err := spool(r, "libraria-epub-*.epub")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpPath)

	rc, err := epub.OpenReader(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return nil, errors.New("no rootfiles found in epub")
	}

	var b lineBuilder
	for _, ref := range rc.Rootfiles[0].Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		item, err := ref.Item.Open()
		if err != nil {
			return nil, fmt.Errorf("open spine item %s: %w", ref.Item.HREF, err)
		}
		doc, err := html.Parse(item)
		item.Close()
		if err != nil {
			return nil, fmt.Errorf("parse spine item %s: %w", ref.Item.HREF, err)
		}
		walkHTML(&b, contentRoot(doc))
	}

	return b.extraction(trimExt(filename), true), nil
}
