package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// DefaultAuditTable is the table name used when Config leaves it empty.
const DefaultAuditTable = "sheet_write_audit"

// Config locates the audit table.
type Config struct {
	ProjectID string
	DatasetID string
	Table     string
}

func (c Config) table() string {
	if c.Table == "" {
		return DefaultAuditTable
	}
	return c.Table
}

// qualified returns the backquoted project.dataset.table name for SQL.
func (c Config) qualified() string {
	return "`" + c.ProjectID + "." + c.DatasetID + "." + c.table() + "`"
}

// AuditFilter narrows ListAuditEntries. Zero values disable a filter.
type AuditFilter struct {
	Owner   string
	SheetID string
	Since   time.Time
	Limit   int
}

// AuditTableSchema is the schema of the audit table, inferred from AuditEntryRow.
func AuditTableSchema() (bigquery.Schema, error) {
	schema, err := bigquery.InferSchema(AuditEntryRow{})
	if err != nil {
		return nil, fmt.Errorf("AuditTableSchema: %w", err)
	}
	return schema, nil
}

// EnsureAuditTableWithClient creates the audit table, day-partitioned on
// "at", unless it already exists.
func EnsureAuditTableWithClient(ctx context.Context, client *bigquery.Client, cfg Config) (bool, error) {
	schema, err := AuditTableSchema()
	if err != nil {
		return false, fmt.Errorf("EnsureAuditTable: %w", err)
	}

	table := client.DatasetInProject(cfg.ProjectID, cfg.DatasetID).Table(cfg.table())
	err = table.Create(ctx, &bigquery.TableMetadata{
		Name:        cfg.table(),
		Description: "Every spreadsheet cell written, or attempted, on a user's behalf",
		Schema:      schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "at",
		},
		Clustering: &bigquery.Clustering{Fields: []string{"owner", "sheet_id"}},
	})
	if err == nil {
		return true, nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return false, nil
	}
	return false, fmt.Errorf("EnsureAuditTable: creating table: %w", err)
}

// InsertAuditEntriesWithClient streams rows into the audit table. Each row
// is sent with its audit id as insert id so a retried batch is deduplicated.
func InsertAuditEntriesWithClient(ctx context.Context, client *bigquery.Client, cfg Config, rows []*AuditEntryRow) error {
	if len(rows) == 0 {
		return nil
	}
	schema, err := AuditTableSchema()
	if err != nil {
		return fmt.Errorf("InsertAuditEntries: %w", err)
	}

	savers := make([]*bigquery.StructSaver, len(rows))
	for i, r := range rows {
		savers[i] = &bigquery.StructSaver{Struct: r, InsertID: r.AuditID, Schema: schema}
	}

	inserter := client.DatasetInProject(cfg.ProjectID, cfg.DatasetID).Table(cfg.table()).Inserter()
	if err := inserter.Put(ctx, savers); err != nil {
		return fmt.Errorf("InsertAuditEntries: inserting rows: %w", err)
	}
	return nil
}

// ListAuditEntriesWithClient returns audit rows newest first.
func ListAuditEntriesWithClient(ctx context.Context, client *bigquery.Client, cfg Config, filter AuditFilter) ([]*AuditEntryRow, error) {
	sql, params := auditQuery(cfg, filter)
	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAuditEntries: query read: %w", err)
	}

	var rows []*AuditEntryRow
	for {
		var r AuditEntryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAuditEntries: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// auditQuery builds the SELECT for ListAuditEntriesWithClient.
func auditQuery(cfg Config, filter AuditFilter) (string, []bigquery.QueryParameter) {
	var (
		where  []string
		params []bigquery.QueryParameter
	)
	if filter.Owner != "" {
		where = append(where, "owner = @owner")
		params = append(params, bigquery.QueryParameter{Name: "owner", Value: filter.Owner})
	}
	if filter.SheetID != "" {
		where = append(where, "sheet_id = @sheet_id")
		params = append(params, bigquery.QueryParameter{Name: "sheet_id", Value: filter.SheetID})
	}
	if !filter.Since.IsZero() {
		where = append(where, "at >= @since")
		params = append(params, bigquery.QueryParameter{Name: "since", Value: filter.Since.UTC()})
	}

	var b strings.Builder
	b.WriteString(`
		SELECT
			audit_id, at, operation, owner, sheet_id, spreadsheet_id, sheet_name,
			transaction_id, row_number, field, value, outcome, error
		FROM ` + cfg.qualified())
	if len(where) > 0 {
		b.WriteString("\n\t\tWHERE " + strings.Join(where, " AND "))
	}
	b.WriteString("\n\t\tORDER BY at DESC, audit_id")
	if filter.Limit > 0 {
		b.WriteString("\n\t\tLIMIT @limit")
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: filter.Limit})
	}
	return b.String(), params
}
