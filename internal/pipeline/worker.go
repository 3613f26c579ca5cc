package pipeline

import (
	"context"
	"log/slog"
)

// Worker runs queued jobs through a Processor.
type Worker struct {
	proc *Processor
	log  *slog.Logger
}

func NewWorker(proc *Processor, log *slog.Logger) *Worker {
	return &Worker{proc: proc, log: log}
}

// Process runs one job to completion, mirroring run stages into the job
// status so pollers can follow along.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "book_id", job.BookID)

	job.mu.Lock()
	opts := job.opts
	job.mu.Unlock()

	next := opts.OnProgress
	opts.OnProgress = func(stage Stage, done, total int) {
		job.SetStatus(statusFor(stage))
		if stage == StageSummarizing {
			job.SetProgress(done, total)
		}
		if next != nil {
			next(stage, done, total)
		}
	}

	res := w.proc.ProcessBook(ctx, job.BookID, job.Document(), opts)
	job.Finish(res)
	if res.Success {
		log.Info("job completed", "chapters", res.ChaptersCount)
	} else {
		log.Error("job failed", "error", res.Error)
	}
}
