package summarize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/libraria/internal/chunker"
)

const systemPrompt = "You are a professional writer of book summaries."

var lengthInstructions = map[Length]string{
	Short:    "Write a very short summary (2-3 sentences).",
	Medium:   "Write a medium-length summary (one paragraph).",
	Detailed: "Write a detailed summary (2-3 paragraphs).",
}

// BuildPrompt embeds the length instruction and the first budget
// characters of text.
func BuildPrompt(text string, length Length, budget int, language string) string {
	var sb strings.Builder
	sb.WriteString("Summarize the following text")
	if language != "" {
		sb.WriteString(fmt.Sprintf(" in %s", language))
	}
	sb.WriteString(".\n")
	sb.WriteString(lengthInstructions[length])
	sb.WriteString(" Cover the main ideas and do not invent details.\n\nText:\n")
	if budget > 0 {
		text = chunker.Truncate(text, budget)
	}
	sb.WriteString(text)
	return sb.String()
}

// Book text can carry instructions aimed at the model. With
// RejectSuspicious set, a completion that talks about them is discarded.
var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(all\s+)?(previous|above)\s+instructions|system\s+prompt|` +
		`you\s+are\s+now\s+|new\s+instructions\s*:)`,
)

// cleanCompletion returns the completion trimmed of surrounding space.
// Empty output is rejected, and so is output matching injectionPattern
// when rejectSuspicious is set.
func cleanCompletion(s string, rejectSuspicious bool) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if rejectSuspicious && injectionPattern.MatchString(s) {
		return "", false
	}
	return s, true
}

func truncate(s string, n int) string {
	if t := chunker.Truncate(s, n); t != s {
		return t + "..."
	}
	return s
}
