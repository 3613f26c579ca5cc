// Package summarize produces book and chapter summaries, either through a
// remote text-generation service or with a deterministic local fallback.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"
)

// ErrServiceUnavailable wraps every remote failure. Callers never see it
// abort a run; it only explains why a local summary was produced.
var ErrServiceUnavailable = errors.New("summary service unavailable")

// Length is the requested summary size.
type Length string

const (
	Short    Length = "short"
	Medium   Length = "medium"
	Detailed Length = "detailed"
)

// ParseLength maps a user-supplied name to a Length, defaulting to Medium.
func ParseLength(s string) Length {
	switch Length(strings.ToLower(strings.TrimSpace(s))) {
	case Short:
		return Short
	case Detailed:
		return Detailed
	}
	return Medium
}

// WordBudget is the local fallback's word limit for l.
func (l Length) WordBudget() int {
	switch l {
	case Short:
		return 60
	case Detailed:
		return 1000
	}
	return 500
}

// MaxTokens is the completion limit requested from remote services.
func (l Length) MaxTokens() int {
	if l == Detailed {
		return 1000
	}
	return 500
}

// Request is one completion call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completion is the text a service returned.
type Completion struct {
	Text       string
	TokenCount int
}

// Service is a remote text-generation backend.
type Service interface {
	Name() string
	// PromptBudget is how many characters of source text fit in a prompt.
	PromptBudget() int
	Complete(ctx context.Context, req Request) (Completion, error)
}

// Result is a generated summary. Text is always usable; Err records the
// remote failure that forced a local summary, if any.
type Result struct {
	Text        string
	TokenCount  int
	GeneratedBy string
	Err         error
}

// Config controls remote calls.
type Config struct {
	Timeout    time.Duration // Per summary, including retries.
	RateLimit  float64       // Requests per second, 0 for unlimited.
	MaxRetries int
	RetryDelay time.Duration // Base delay for exponential backoff.
	Language   string        // Output language instruction, empty for the source language.

	// RejectSuspicious discards completions that look like they followed
	// instructions embedded in the book text.
	RejectSuspicious bool
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	return c
}

// Summarizer runs summaries against the currently configured Service.
// The service can be swapped while summaries are in flight.
type Summarizer struct {
	svc     atomic.Pointer[serviceBox]
	cfg     Config
	limiter *rate.Limiter
	stats   *LLMStats
	log     *slog.Logger
}

type serviceBox struct{ Service }

// New creates a Summarizer. A nil svc means local summaries only.
func New(svc Service, cfg Config, log *slog.Logger) *Summarizer {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	s := &Summarizer{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		stats:   NewLLMStats(time.Hour),
		log:     log,
	}
	s.SetService(svc)
	return s
}

// SetService replaces the remote backend.
func (s *Summarizer) SetService(svc Service) {
	s.svc.Store(&serviceBox{svc})
}

// Service returns the current backend, nil when none is configured.
func (s *Summarizer) Service() Service {
	if b := s.svc.Load(); b != nil {
		return b.Service
	}
	return nil
}

// Stats exposes remote call latency and outcome counters.
func (s *Summarizer) Stats() *LLMStats {
	return s.stats
}

// Remote reports whether a network-backed service is configured.
func (s *Summarizer) Remote() bool {
	svc := s.Service()
	if svc == nil {
		return false
	}
	_, noop := svc.(Noop)
	return !noop
}

// Summarize never fails. Without a remote service, or when the service
// errors or times out, it returns the local summary.
func (s *Summarizer) Summarize(ctx context.Context, text string, length Length) Result {
	return s.summarize(ctx, text, length, func(budget int) string {
		return BuildPrompt(text, length, budget, s.cfg.Language)
	})
}

// ChapterSummary summarizes one chapter, giving the model its title. The
// local fallback sees only the content.
func (s *Summarizer) ChapterSummary(ctx context.Context, title, content string) Result {
	return s.summarize(ctx, content, Short, func(budget int) string {
		return BuildPrompt(fmt.Sprintf("Chapter title: %s\n\nContent:\n%s", title, content), Short, budget, s.cfg.Language)
	})
}

// summarize asks the remote service with the prompt from buildPrompt and
// falls back to the local summary of text.
func (s *Summarizer) summarize(ctx context.Context, text string, length Length, buildPrompt func(budget int) string) Result {
	if !s.Remote() || strings.TrimSpace(text) == "" {
		return Local(text, length)
	}
	svc := s.Service()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	c, err := s.complete(ctx, svc, Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(svc.PromptBudget()),
		MaxTokens:   length.MaxTokens(),
		Temperature: 0.7,
	})
	if err != nil {
		s.stats.RecordFallback(svc.Name())
		s.log.Warn("summary service failed, using local summary",
			"service", svc.Name(), "length", string(length), "error", err)
		r := Local(text, length)
		r.Err = fmt.Errorf("%w: %s: %w", ErrServiceUnavailable, svc.Name(), err)
		return r
	}
	return Result{Text: c.Text, TokenCount: c.TokenCount, GeneratedBy: svc.Name()}
}

func (s *Summarizer) complete(ctx context.Context, svc Service, req Request) (Completion, error) {
	return retry.DoWithData(
		func() (Completion, error) {
			if err := s.limiter.Wait(ctx); err != nil {
				return Completion{}, retry.Unrecoverable(err)
			}
			start := time.Now()
			c, err := svc.Complete(ctx, req)
			s.stats.Record(svc.Name(), time.Since(start).Milliseconds(), err)
			if err != nil {
				return Completion{}, err
			}
			text, ok := cleanCompletion(c.Text, s.cfg.RejectSuspicious)
			if !ok {
				return Completion{}, retry.Unrecoverable(errors.New("service returned no usable text"))
			}
			c.Text = text
			return c, nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.cfg.MaxRetries+1)),
		retry.RetryIf(IsRetryable),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return Backoff(int(n), s.cfg.RetryDelay)
		}),
		retry.LastErrorOnly(true),
	)
}
