package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dgallion1/libraria/internal/book"
	"github.com/dgallion1/libraria/internal/chunker"
	"github.com/dgallion1/libraria/internal/parser"
	"github.com/dgallion1/libraria/internal/store"
	"github.com/dgallion1/libraria/internal/summarize"
	"github.com/dgallion1/libraria/internal/toc"
)

// bookSummaryChars is how much leading text the book summary sees.
const bookSummaryChars = 5000

// Stage is a step of a processing run.
type Stage string

const (
	StageExtracting  Stage = "extracting"
	StageDetecting   Stage = "detecting"
	StageSegmenting  Stage = "segmenting"
	StageSummarizing Stage = "summarizing"
	StageStoring     Stage = "storing"
)

// Options controls one processing run.
type Options struct {
	UseRemoteSummary bool
	SummaryLength    summarize.Length // Book summary length, Medium when empty.

	// OnProgress is called from the goroutine running ProcessBook.
	OnProgress func(stage Stage, done, total int)
}

// ProcessorConfig holds the per-stage settings.
type ProcessorConfig struct {
	Parser        parser.Options
	TOC           toc.Options
	Segment       chunker.Config
	MaxConcurrent int // Parallel chapter summaries.
}

// Processor turns an uploaded document into a stored chapter set.
type Processor struct {
	store      store.Store
	summarizer *summarize.Summarizer
	detector   *toc.Detector
	cfg        ProcessorConfig
	log        *slog.Logger
}

// NewProcessor creates a Processor. A nil summarizer means local
// summaries only.
func NewProcessor(st store.Store, sum *summarize.Summarizer, cfg ProcessorConfig, log *slog.Logger) *Processor {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Processor{
		store:      st,
		summarizer: sum,
		detector:   toc.New(cfg.TOC),
		cfg:        cfg,
		log:        log,
	}
}

// Store returns the store runs are written to.
func (p *Processor) Store() store.Store {
	return p.store
}

// ProcessBook runs extraction, heading detection, segmentation and
// summarization, then replaces the book's chapter set. It never panics
// and never returns a partial chapter set: on failure the previous set is
// kept and the error is recorded on the book.
func (p *Processor) ProcessBook(ctx context.Context, bookID string, doc book.RawDocument, opts Options) (res book.ProcessingResult) {
	log := p.log.With("book_id", bookID, "filename", doc.Filename)
	progress := func(stage Stage, done, total int) {
		if opts.OnProgress != nil {
			opts.OnProgress(stage, done, total)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			res = p.fail(ctx, log, bookID, fmt.Errorf("internal error: %v", r))
		}
	}()

	progress(StageExtracting, 0, 1)
	ex, err := parser.Extract(doc, p.cfg.Parser)
	if err != nil {
		return p.fail(ctx, log, bookID, err)
	}
	if strings.TrimSpace(ex.Text) == "" {
		log.Warn("extraction produced no text", "error", book.ErrEmptyDocument)
	}
	log.Info("extracted text", "kind", string(doc.ResolvedKind()), "chars", len(ex.Text), "pages", ex.PageCount)

	progress(StageDetecting, 0, 1)
	headings := p.detector.DetectExtraction(ex)
	hasTOC := len(headings) > 0

	progress(StageSegmenting, 0, 1)
	chapters := chunker.Segment(ex.Text, headings, p.cfg.Segment)
	for i := range chapters {
		chapters[i].ID = uuid.NewString()
		chapters[i].BookID = bookID
	}
	log.Info("segmented", "headings", len(headings), "chapters", len(chapters))

	bookSummary, summaries := p.summarize(ctx, log, ex.Text, chapters, opts, progress)

	progress(StageStoring, 0, 1)
	outcome := book.Outcome{
		Title:     ex.Title,
		FileKind:  doc.ResolvedKind(),
		PageCount: ex.PageCount,
		HasTOC:    hasTOC,
		Summary:   bookSummary,
	}
	if err := p.store.ReplaceChapters(ctx, bookID, chapters, summaries, outcome); err != nil {
		return p.fail(ctx, log, bookID, fmt.Errorf("store chapters: %w", err))
	}

	msg := fmt.Sprintf("%d chapters processed.", len(chapters))
	if !hasTOC {
		msg += " No table of contents detected; used fixed-size segmentation."
	}
	log.Info("book processed", "chapters", len(chapters), "has_toc", hasTOC, "has_summary", bookSummary != "")
	return book.ProcessingResult{
		Success:       true,
		ChaptersCount: len(chapters),
		HasTOC:        hasTOC,
		HasSummary:    bookSummary != "",
		Message:       msg,
	}
}

// fail builds the failure result. The chapter set and processed flags are
// left as they were, but err is written to the book's processing_error so
// readers can see why the last run failed. That write happens even if ctx
// was cancelled, and its own failure is only logged.
func (p *Processor) fail(ctx context.Context, log *slog.Logger, bookID string, err error) book.ProcessingResult {
	log.Error("processing failed", "error", err)
	if merr := p.store.MarkProcessed(context.WithoutCancel(ctx), bookID, book.Outcome{Error: err.Error()}); merr != nil {
		log.Error("record failure", "error", merr)
	}
	return book.ProcessingResult{Error: err.Error()}
}

type summaryTask struct {
	idx     int
	scope   book.Scope
	target  string
	title   string
	text    string
	length  summarize.Length
	summary book.Summary
}

// summarize produces the book summary and one summary per chapter with
// bounded concurrency. Summaries never fail the run.
func (p *Processor) summarize(ctx context.Context, log *slog.Logger, text string, chapters []book.Chapter, opts Options, progress func(Stage, int, int)) (string, []book.Summary) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	length := opts.SummaryLength
	if length == "" {
		length = summarize.Medium
	}

	tasks := make([]*summaryTask, 0, len(chapters)+1)
	tasks = append(tasks, &summaryTask{
		scope:  book.ScopeBook,
		text:   chunker.Truncate(text, bookSummaryChars),
		length: length,
	})
	for _, c := range chapters {
		tasks = append(tasks, &summaryTask{
			scope:  book.ScopeChapter,
			target: c.ID,
			title:  c.Title,
			text:   c.Content,
			length: summarize.Short,
		})
	}

	total := len(tasks)
	progress(StageSummarizing, 0, total)
	results := make(chan *summaryTask, total)
	sem := make(chan struct{}, p.cfg.MaxConcurrent)
	for i, t := range tasks {
		t.idx = i
		sem <- struct{}{}
		go func(t *summaryTask) {
			defer func() { <-sem }()
			r := p.summarizeOne(ctx, t, opts.UseRemoteSummary)
			if r.Err != nil {
				log.Warn("summary fell back to local", "scope", string(t.scope), "target", t.target, "error", r.Err)
			}
			t.summary = book.Summary{
				ID:          uuid.NewString(),
				Scope:       t.scope,
				TargetID:    t.target,
				Length:      string(t.length),
				Text:        r.Text,
				GeneratedBy: r.GeneratedBy,
				TokenCount:  r.TokenCount,
				WordCount:   book.WordCount(r.Text),
			}
			results <- t
		}(t)
	}

	summaries := make([]book.Summary, total)
	for done := 1; done <= total; done++ {
		t := <-results
		summaries[t.idx] = t.summary
		progress(StageSummarizing, done, total)
	}
	return summaries[0].Text, summaries
}

func (p *Processor) summarizeOne(ctx context.Context, t *summaryTask, remote bool) summarize.Result {
	if !remote || p.summarizer == nil {
		return summarize.Local(t.text, t.length)
	}
	if t.scope == book.ScopeChapter {
		return p.summarizer.ChapterSummary(ctx, t.title, t.text)
	}
	return p.summarizer.Summarize(ctx, t.text, t.length)
}
