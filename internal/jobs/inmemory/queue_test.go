package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/sheetledger/internal/audit"
	"github.com/dvloznov/sheetledger/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.AuditJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

func TestQueue_ProcessesJobs(t *testing.T) {
	store := NewStore()
	q := NewQueue(QueueOptions{BufferSize: 4, Workers: 2}, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled atomic.Int32
	if err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		if job.GetType() != jobs.JobTypeDeliverAudit {
			t.Errorf("unexpected job type %s", job.GetType())
		}
		handled.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.AuditJob{Owner: "user-1", Entries: []audit.Entry{{Field: "Category"}}}
	if err := q.PublishAudit(ctx, job); err != nil {
		t.Fatalf("PublishAudit failed: %v", err)
	}
	if job.JobID == "" || job.MaxRetries != jobs.DefaultMaxRetries {
		t.Errorf("expected defaults to be filled in, got %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Errorf("expected timestamps, got %+v", done)
	}
	if handled.Load() != 1 {
		t.Errorf("expected one handler call, got %d", handled.Load())
	}

	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := q.PublishAudit(ctx, &jobs.AuditJob{}); err == nil {
		t.Error("expected publishing to a stopped queue to fail")
	}
}

func TestQueue_RetriesThenFails(t *testing.T) {
	store := NewStore()
	q := NewQueue(QueueOptions{Workers: 1, RetryBackoff: time.Millisecond}, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer q.Close()

	var attempts atomic.Int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		attempts.Add(1)
		return errors.New("warehouse unavailable")
	})

	job := &jobs.AuditJob{MaxRetries: 2}
	if err := q.PublishAudit(ctx, job); err != nil {
		t.Fatalf("PublishAudit failed: %v", err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.RetryCount != 2 || failed.Error != "warehouse unavailable" {
		t.Errorf("unexpected failed job %+v", failed)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestQueue_RetrySucceeds(t *testing.T) {
	store := NewStore()
	q := NewQueue(QueueOptions{Workers: 1, RetryBackoff: time.Millisecond}, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer q.Close()

	var attempts atomic.Int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	job := &jobs.AuditJob{}
	_ = q.PublishAudit(ctx, job)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.RetryCount != 1 || done.Error != "" {
		t.Errorf("unexpected job after retry %+v", done)
	}
}

func TestQueue_PublishDropsWhenFull(t *testing.T) {
	store := NewStore()
	q := NewQueue(QueueOptions{BufferSize: 1, Workers: 1}, store)
	defer q.Close()

	// No workers are running, so the buffer never drains.
	if err := q.PublishAudit(context.Background(), &jobs.AuditJob{Owner: "user-1"}); err != nil {
		t.Fatalf("PublishAudit failed: %v", err)
	}

	dropped := &jobs.AuditJob{Owner: "user-1", SheetID: "sheet-1"}
	result := make(chan error, 1)
	go func() { result <- q.PublishAudit(context.Background(), dropped) }()

	select {
	case err := <-result:
		if !errors.Is(err, jobs.ErrQueueFull) {
			t.Fatalf("expected ErrQueueFull, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("PublishAudit blocked on a full queue")
	}

	stored, err := store.GetJob(context.Background(), dropped.JobID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if stored.Status != jobs.JobStatusFailed || stored.Error != jobs.ErrQueueFull.Error() {
		t.Errorf("expected the dropped job to be stored as failed, got %+v", stored)
	}
}
