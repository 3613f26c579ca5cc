package pipeline

import (
	"testing"
	"time"

	"github.com/dgallion1/libraria/internal/book"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestNewJob(t *testing.T) {
	doc := book.RawDocument{Filename: "novel.txt", Data: []byte("hello world")}
	job := NewJob("j1", "b1", doc, Options{})

	snap := job.Snapshot()
	if snap.Status != StatusQueued {
		t.Errorf("expected queued, got %q", snap.Status)
	}
	if snap.BookID != "b1" || snap.Filename != "novel.txt" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.ContentHash != ContentHashHex(doc.Data) {
		t.Errorf("expected content hash of document, got %q", snap.ContentHash)
	}
	if snap.Result != nil {
		t.Error("expected no result before the run")
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("j1", "b1", book.RawDocument{Filename: "a.txt"}, Options{})

	for _, stage := range []Stage{StageExtracting, StageDetecting, StageSegmenting, StageSummarizing, StageStoring} {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(statusFor(stage))

		if job.Status != JobStatus(stage) {
			t.Errorf("expected status %q, got %q", stage, job.Status)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after stage %q", stage)
		}
	}
}

func TestJob_SetProgress(t *testing.T) {
	job := NewJob("j1", "b1", book.RawDocument{}, Options{})
	job.SetProgress(3, 7)

	snap := job.Snapshot()
	if snap.Progress.SummariesDone != 3 || snap.Progress.SummariesTotal != 7 {
		t.Errorf("unexpected progress: %+v", snap.Progress)
	}
}

func TestJob_Finish(t *testing.T) {
	job := NewJob("j1", "b1", book.RawDocument{Filename: "a.txt", Data: []byte("x")}, Options{})
	job.Finish(book.ProcessingResult{Success: true, ChaptersCount: 2})

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Errorf("expected completed, got %q", snap.Status)
	}
	if snap.Result == nil || snap.Result.ChaptersCount != 2 {
		t.Errorf("expected result in snapshot, got %+v", snap.Result)
	}
	if job.Document().Data != nil {
		t.Error("expected document bytes released")
	}

	failed := NewJob("j2", "b1", book.RawDocument{}, Options{})
	failed.Finish(book.ProcessingResult{Error: "boom"})
	if failed.Snapshot().Status != StatusFailed {
		t.Errorf("expected failed, got %q", failed.Snapshot().Status)
	}
}

func TestJob_SnapshotIsCopy(t *testing.T) {
	job := NewJob("j1", "b1", book.RawDocument{}, Options{})
	job.Finish(book.ProcessingResult{Success: true, ChaptersCount: 1})

	snap := job.Snapshot()
	snap.Result.ChaptersCount = 99
	if job.Snapshot().Result.ChaptersCount != 1 {
		t.Error("snapshot result must not alias the job")
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
