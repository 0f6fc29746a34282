package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/sheetledger/internal/audit"
)

// AuditRecorder hands audit entries to a queue instead of writing them
// inline, so a slow warehouse never holds up a request.
type AuditRecorder struct {
	publisher Publisher
}

// NewAuditRecorder creates a recorder publishing through p.
func NewAuditRecorder(p Publisher) *AuditRecorder {
	return &AuditRecorder{publisher: p}
}

// Record implements audit.Recorder. The entries are copied into the job.
func (r *AuditRecorder) Record(ctx context.Context, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	job := &AuditJob{
		Owner:   entries[0].Owner,
		SheetID: entries[0].SheetID,
		Entries: append([]audit.Entry(nil), entries...),
	}
	if err := r.publisher.PublishAudit(ctx, job); err != nil {
		return fmt.Errorf("Record: publishing audit job: %w", err)
	}
	return nil
}

var _ audit.Recorder = (*AuditRecorder)(nil)

// DeliverAudit returns the handler that hands queued entries to sink.
func DeliverAudit(sink audit.Recorder) JobHandler {
	return func(ctx context.Context, job Job) error {
		auditJob, ok := job.(*AuditJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}
		if err := sink.Record(ctx, auditJob.Entries); err != nil {
			return fmt.Errorf("DeliverAudit: %w", err)
		}
		return nil
	}
}
