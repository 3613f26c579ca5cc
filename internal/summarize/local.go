package summarize

import (
	"regexp"
	"strings"

	"github.com/dgallion1/libraria/internal/chunker"
)

// LocalName is the GeneratedBy value of fallback summaries.
const LocalName = "local"

// Placeholder is returned when there is no text to summarize.
const Placeholder = "No summary could be generated for this content."

// localMaxParagraphs bounds how far into the text the fallback looks.
const localMaxParagraphs = 5

var paragraphBreakRe = regexp.MustCompile(`\n[ \t\r]*\n`)

// Local builds a summary from the leading paragraphs of text. Paragraphs
// are taken whole while they fit the word budget for length; the first one
// that does not fit is cut at the budget and marked with "...".
func Local(text string, length Length) Result {
	s := LocalText(text, length)
	return Result{
		Text:        s,
		TokenCount:  chunker.EstimateTokens(s),
		GeneratedBy: LocalName,
	}
}

// LocalText is Local without the token accounting.
func LocalText(text string, length Length) string {
	budget := length.WordBudget()

	var parts []string
	words := 0
	count := 0
	for _, para := range paragraphBreakRe.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if count == localMaxParagraphs {
			break
		}
		count++

		fields := strings.Fields(para)
		if words+len(fields) <= budget {
			parts = append(parts, para)
			words += len(fields)
			continue
		}
		cut := strings.Join(fields[:budget-words], " ")
		parts = append(parts, cut+"...")
		break
	}

	out := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if out == "" || out == "..." {
		return Placeholder
	}
	return out
}
