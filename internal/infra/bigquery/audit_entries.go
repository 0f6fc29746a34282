package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sheetledger/internal/audit"
)

// AuditEntryRow is one row of the write audit table.
type AuditEntryRow struct {
	AuditID       string              `bigquery:"audit_id"`       // REQUIRED, also the insert id
	At            time.Time           `bigquery:"at"`             // REQUIRED, partition column
	Operation     string              `bigquery:"operation"`      // REQUIRED
	Owner         string              `bigquery:"owner"`          // REQUIRED
	SheetID       string              `bigquery:"sheet_id"`       // REQUIRED
	SpreadsheetID string              `bigquery:"spreadsheet_id"` // REQUIRED
	SheetName     string              `bigquery:"sheet_name"`     // REQUIRED
	TransactionID bigquery.NullString `bigquery:"transaction_id"` // NULLABLE
	RowNumber     bigquery.NullInt64  `bigquery:"row_number"`     // NULLABLE
	Field         string              `bigquery:"field"`          // REQUIRED
	Value         bigquery.NullString `bigquery:"value"`          // NULLABLE
	Outcome       string              `bigquery:"outcome"`        // REQUIRED
	Error         bigquery.NullString `bigquery:"error"`          // NULLABLE
}

// RowFromEntry converts an audit entry for insertion.
func RowFromEntry(e audit.Entry) *AuditEntryRow {
	return &AuditEntryRow{
		AuditID:       e.ID,
		At:            e.At.UTC(),
		Operation:     string(e.Operation),
		Owner:         e.Owner,
		SheetID:       e.SheetID,
		SpreadsheetID: e.SpreadsheetRef,
		SheetName:     e.SheetName,
		TransactionID: nullString(e.TransactionID),
		RowNumber:     bigquery.NullInt64{Int64: int64(e.Row), Valid: e.Row > 0},
		Field:         e.Field,
		Value:         nullString(e.Value),
		Outcome:       string(e.Outcome),
		Error:         nullString(e.Error),
	}
}

// Entry converts a stored row back into an audit entry.
func (r *AuditEntryRow) Entry() audit.Entry {
	return audit.Entry{
		ID:             r.AuditID,
		At:             r.At,
		Operation:      audit.Operation(r.Operation),
		Owner:          r.Owner,
		SheetID:        r.SheetID,
		SpreadsheetRef: r.SpreadsheetID,
		SheetName:      r.SheetName,
		TransactionID:  r.TransactionID.StringVal,
		Row:            int(r.RowNumber.Int64),
		Field:          r.Field,
		Value:          r.Value.StringVal,
		Outcome:        audit.Outcome(r.Outcome),
		Error:          r.Error.StringVal,
	}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
