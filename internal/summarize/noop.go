package summarize

import "context"

// NoopName is the provider name that disables remote summaries.
const NoopName = "none"

// Noop is the Service used when no provider is configured. Summarizer
// never calls it; every summary is generated locally.
type Noop struct{}

func (Noop) Name() string      { return NoopName }
func (Noop) PromptBudget() int { return 0 }

func (Noop) Complete(context.Context, Request) (Completion, error) {
	return Completion{}, ErrServiceUnavailable
}
