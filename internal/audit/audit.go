// Package audit records every cell the app writes, or tried to write, on a
// user's behalf.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/sheetledger/internal/logger"
	"github.com/google/uuid"
)

// Operation names the API call that produced an entry.
type Operation string

const (
	OperationUpdate   Operation = "update_transaction"
	OperationCreate   Operation = "create_transaction"
	OperationBackfill Operation = "backfill_mobile_id"
)

// Outcome is what happened to one field.
type Outcome string

const (
	OutcomeWritten Outcome = "written"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Entry is one field of one write.
type Entry struct {
	ID             string    `json:"id"`
	At             time.Time `json:"at"`
	Operation      Operation `json:"operation"`
	Owner          string    `json:"owner"`
	SheetID        string    `json:"sheet_id"`
	SpreadsheetRef string    `json:"spreadsheet_id"`
	SheetName      string    `json:"sheet_name"`
	TransactionID  string    `json:"transaction_id,omitempty"`
	Row            int       `json:"row,omitempty"`
	Field          string    `json:"field"`
	Value          string    `json:"value,omitempty"`
	Outcome        Outcome   `json:"outcome"`
	Error          string    `json:"error,omitempty"`
}

// Recorder accepts audit entries. Implementations may deliver them
// asynchronously; a returned error only means the entries were not accepted.
type Recorder interface {
	Record(ctx context.Context, entries []Entry) error
}

// Stamp fills in missing ids and timestamps.
func Stamp(entries []Entry, now time.Time) {
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.New().String()
		}
		if entries[i].At.IsZero() {
			entries[i].At = now.UTC()
		}
	}
}

// LogRecorder writes entries to the request logger.
type LogRecorder struct{}

// Record implements Recorder.
func (LogRecorder) Record(ctx context.Context, entries []Entry) error {
	log := logger.FromContext(ctx)
	for _, e := range entries {
		ev := log.Info()
		if e.Outcome == OutcomeFailed {
			ev = log.Warn()
		}
		ev.Str("audit_id", e.ID).
			Str("operation", string(e.Operation)).
			Str("owner", e.Owner).
			Str("sheet_id", e.SheetID).
			Str("transaction_id", e.TransactionID).
			Int("row", e.Row).
			Str("field", e.Field).
			Str("outcome", string(e.Outcome)).
			Str("error", e.Error).
			Msg("Cell write audited")
	}
	return nil
}

// Multi fans entries out to several recorders and joins their errors.
type Multi []Recorder

// Record implements Recorder.
func (m Multi) Record(ctx context.Context, entries []Entry) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, entries); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
