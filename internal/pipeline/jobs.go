package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/libraria/internal/book"
)

// JobStatus represents the state of a processing job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusExtracting  JobStatus = "extracting"
	StatusDetecting   JobStatus = "detecting"
	StatusSegmenting  JobStatus = "segmenting"
	StatusSummarizing JobStatus = "summarizing"
	StatusStoring     JobStatus = "storing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
)

// statusFor maps a run stage to the job status shown while it runs.
func statusFor(stage Stage) JobStatus {
	return JobStatus(stage)
}

// Job tracks the state of a single asynchronous processing run.
type Job struct {
	mu sync.Mutex

	ID     string `json:"job_id"`
	BookID string `json:"book_id"`

	Status   JobStatus `json:"status"`
	Filename string    `json:"filename"`

	Progress Progress               `json:"progress"`
	Result   *book.ProcessingResult `json:"result,omitempty"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	doc  book.RawDocument
	opts Options
}

// Progress tracks summary progress, the only long stage.
type Progress struct {
	SummariesTotal int `json:"summaries_total"`
	SummariesDone  int `json:"summaries_done"`
}

// NewJob creates a queued job for doc.
func NewJob(id, bookID string, doc book.RawDocument, opts Options) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		BookID:      bookID,
		Status:      StatusQueued,
		Filename:    doc.Filename,
		ContentHash: ContentHashHex(doc.Data),
		CreatedAt:   now,
		UpdatedAt:   now,
		doc:         doc,
		opts:        opts,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.UpdatedAt = time.Now()
}

// SetProgress records summary progress.
func (j *Job) SetProgress(done, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.SummariesDone = done
	j.Progress.SummariesTotal = total
	j.UpdatedAt = time.Now()
}

// Finish records the run result, releases the document bytes, and moves
// the job to its terminal status.
func (j *Job) Finish(res book.ProcessingResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Result = &res
	j.doc.Data = nil
	if res.Success {
		j.Status = StatusCompleted
	} else {
		j.Status = StatusFailed
	}
	j.UpdatedAt = time.Now()
}

// Document returns the document to process.
func (j *Job) Document() book.RawDocument {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.doc
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string                 `json:"job_id"`
	BookID      string                 `json:"book_id"`
	Status      JobStatus              `json:"status"`
	Filename    string                 `json:"filename"`
	Progress    Progress               `json:"progress"`
	Result      *book.ProcessingResult `json:"result,omitempty"`
	ContentHash string                 `json:"content_hash,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	var res *book.ProcessingResult
	if j.Result != nil {
		r := *j.Result
		res = &r
	}
	return JobSnapshot{
		ID:          j.ID,
		BookID:      j.BookID,
		Status:      j.Status,
		Filename:    j.Filename,
		Progress:    j.Progress,
		Result:      res,
		ContentHash: j.ContentHash,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
