// Package bigquery stores the write audit trail in BigQuery.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sheetledger/internal/audit"
)

// AuditRepository writes and reads audit entries through a shared client.
type AuditRepository struct {
	client *bigquery.Client
	cfg    Config
}

// NewAuditRepository creates a repository with its own BigQuery client.
func NewAuditRepository(ctx context.Context, cfg Config) (*AuditRepository, error) {
	if cfg.ProjectID == "" || cfg.DatasetID == "" {
		return nil, fmt.Errorf("NewAuditRepository: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewAuditRepository: creating client: %w", err)
	}
	return &AuditRepository{client: client, cfg: cfg}, nil
}

// Close closes the BigQuery client connection.
func (r *AuditRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// EnsureTable creates the audit table if needed and reports whether it did.
func (r *AuditRepository) EnsureTable(ctx context.Context) (bool, error) {
	return EnsureAuditTableWithClient(ctx, r.client, r.cfg)
}

// InsertEntries stores a batch of audit entries.
func (r *AuditRepository) InsertEntries(ctx context.Context, entries []audit.Entry) error {
	rows := make([]*AuditEntryRow, len(entries))
	for i, e := range entries {
		rows[i] = RowFromEntry(e)
	}
	return InsertAuditEntriesWithClient(ctx, r.client, r.cfg, rows)
}

// ListEntries returns stored entries matching filter, newest first.
func (r *AuditRepository) ListEntries(ctx context.Context, filter AuditFilter) ([]audit.Entry, error) {
	rows, err := ListAuditEntriesWithClient(ctx, r.client, r.cfg, filter)
	if err != nil {
		return nil, err
	}
	out := make([]audit.Entry, len(rows))
	for i, row := range rows {
		out[i] = row.Entry()
	}
	return out, nil
}

// Record implements audit.Recorder by inserting synchronously.
func (r *AuditRepository) Record(ctx context.Context, entries []audit.Entry) error {
	return r.InsertEntries(ctx, entries)
}

var _ audit.Recorder = (*AuditRepository)(nil)
