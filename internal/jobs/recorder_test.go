package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/sheetledger/internal/audit"
)

type fakePublisher struct {
	published []*AuditJob
	err       error
}

func (f *fakePublisher) PublishAudit(ctx context.Context, job *AuditJob) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, job)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func TestAuditRecorder_Record(t *testing.T) {
	pub := &fakePublisher{}
	rec := NewAuditRecorder(pub)

	entries := []audit.Entry{
		{Owner: "user-1", SheetID: "s1", Field: "Category"},
		{Owner: "user-1", SheetID: "s1", Field: "Note"},
	}
	if err := rec.Record(context.Background(), entries); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected one job, got %d", len(pub.published))
	}
	job := pub.published[0]
	if job.Owner != "user-1" || job.SheetID != "s1" || len(job.Entries) != 2 {
		t.Errorf("unexpected job %+v", job)
	}

	entries[0].Field = "changed"
	if job.Entries[0].Field != "Category" {
		t.Error("expected the job to own a copy of the entries")
	}
}

func TestAuditRecorder_EmptyAndErrors(t *testing.T) {
	pub := &fakePublisher{}
	rec := NewAuditRecorder(pub)
	if err := rec.Record(context.Background(), nil); err != nil || len(pub.published) != 0 {
		t.Errorf("expected nothing published, got %v %d", err, len(pub.published))
	}

	pub.err = errors.New("queue is closed")
	if err := rec.Record(context.Background(), []audit.Entry{{}}); !errors.Is(err, pub.err) {
		t.Errorf("expected the publish error to be wrapped, got %v", err)
	}
}

type sinkFunc func(ctx context.Context, entries []audit.Entry) error

func (f sinkFunc) Record(ctx context.Context, entries []audit.Entry) error { return f(ctx, entries) }

func TestDeliverAudit(t *testing.T) {
	var got []audit.Entry
	handler := DeliverAudit(sinkFunc(func(ctx context.Context, entries []audit.Entry) error {
		got = entries
		return nil
	}))

	job := &AuditJob{JobID: "j1", Entries: []audit.Entry{{Field: "Category"}}}
	if err := handler(context.Background(), job); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if len(got) != 1 || got[0].Field != "Category" {
		t.Errorf("unexpected delivered entries %+v", got)
	}

	failing := DeliverAudit(sinkFunc(func(ctx context.Context, entries []audit.Entry) error {
		return errors.New("quota exceeded")
	}))
	if err := failing(context.Background(), job); err == nil {
		t.Error("expected the sink error to be returned")
	}
}
