package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/libraria/internal/book"
)

// DOCParser handles legacy Word binary files through antiword.
type DOCParser struct {
	AntiwordPath string
}

func (p *DOCParser) Parse(r io.Reader, filename string) (*book.Extraction, error) {
	bin := p.AntiwordPath
	if bin == "" {
		bin = "antiword"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("doc support requires %s: %w", bin, err)
	}

	tmpPath, _, err := spool(r, "libraria-doc-*.doc")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpPath)

	var stderr bytes.Buffer
	// -w 0 keeps each paragraph on one line.
	cmd := exec.Command(bin, "-w", "0", tmpPath)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("antiword: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	ex, err := (&TextParser{}).Parse(bytes.NewReader(out), filename)
	if err != nil {
		return nil, err
	}
	return ex, nil
}
