// Package writer applies user edits to individual ledger cells. Only a
// fixed set of columns may be written, and never a cell that may hold a
// formula.
package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/dvloznov/sheetledger/internal/logger"
	"github.com/dvloznov/sheetledger/internal/rangestore"
)

// writableColumns are the only headers the app ever writes to.
var writableColumns = map[string]bool{
	"category":        true,
	"note":            true,
	"tags":            true,
	"__mobile_app_id": true,
}

// synonyms maps request field names to the header they usually target.
var synonyms = map[string]string{
	"category":   "Category",
	"categories": "Category",
	"note":       "Note",
	"notes":      "Note",
	"tag":        "Tags",
	"tags":       "Tags",
	"mobile_id":  domain.MobileIDHeader,
}

// RowResolver finds the current row of a transaction.
type RowResolver interface {
	Resolve(ctx context.Context, spreadsheetID, sheetName string, schema domain.SheetSchema, txID string) (int, error)
}

// Adapter writes field updates one cell at a time.
type Adapter struct {
	store    rangestore.Store
	resolver RowResolver
}

// NewAdapter creates an adapter.
func NewAdapter(store rangestore.Store, resolver RowResolver) *Adapter {
	return &Adapter{store: store, resolver: resolver}
}

// Report is the per-field outcome of an update. Fields are independent:
// a failure on one does not undo or prevent the others.
type Report struct {
	TransactionID string
	Row           int
	Written       map[string]string
	Failures      map[string]error
	Skipped       []string
}

// Complete reports whether every requested field was written.
func (r *Report) Complete() bool {
	return len(r.Failures) == 0 && len(r.Skipped) == 0
}

// MarshalJSON renders failures as their messages.
func (r *Report) MarshalJSON() ([]byte, error) {
	failures := make(map[string]string, len(r.Failures))
	for field, err := range r.Failures {
		failures[field] = err.Error()
	}
	return json.Marshal(struct {
		TransactionID string            `json:"transaction_id"`
		Row           int               `json:"row"`
		Written       map[string]string `json:"written"`
		Failures      map[string]string `json:"failures,omitempty"`
		Skipped       []string          `json:"skipped,omitempty"`
	}{r.TransactionID, r.Row, r.Written, failures, r.Skipped})
}

// FormulaRisk reports whether a cell in the given row may hold a formula.
// Only data rows of transaction sheets are treated as plain values.
func FormulaRisk(sheetType domain.SheetType, row int) bool {
	if sheetType != domain.SheetTypeTransactions {
		return true
	}
	return row <= 1
}

// Update writes fields to the row holding txID. Fields are applied in name
// order. Failing to find the row is fatal and nothing is written; every
// other failure is recorded against its field in the report. A positional
// id only counts as found when its row still holds data, so a stale or
// made-up row_<n> never writes into empty rows below the ledger.
func (a *Adapter) Update(ctx context.Context, sheet domain.Sheet, schema domain.SheetSchema, txID string, fields map[string]string) (*Report, error) {
	log := logger.FromContext(ctx)

	row, err := a.resolver.Resolve(ctx, sheet.SpreadsheetRef, sheet.SheetName, schema, txID)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	if _, positional := domain.ParseRowID(txID); positional {
		if err := a.requireData(ctx, sheet, schema, txID, row); err != nil {
			return nil, fmt.Errorf("Update: %w", err)
		}
	}

	report := &Report{
		TransactionID: txID,
		Row:           row,
		Written:       map[string]string{},
		Failures:      map[string]error{},
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := fields[name]

		col, ok := ResolveColumn(schema, name)
		if !ok {
			log.Warn().Str("field", name).Str("sheet", sheet.SheetName).Msg("No column for field, skipping")
			report.Skipped = append(report.Skipped, name)
			continue
		}
		if !writableColumns[strings.ToLower(col.Header)] {
			report.Failures[name] = &domain.UnwritableColumnError{Header: col.Header}
			continue
		}

		cell := rangestore.CellRange(sheet.SheetName, col.Letter, row)
		if FormulaRisk(sheet.SheetType, row) {
			report.Failures[name] = &domain.FormulaProtectionError{Header: col.Header, Cell: cell}
			continue
		}

		if err := a.store.UpdateValues(ctx, sheet.SpreadsheetRef, cell, rangestore.Grid{{value}}); err != nil {
			log.Error().Err(err).Str("field", name).Str("cell", cell).Msg("Cell write failed")
			report.Failures[name] = rangestore.Wrap("UpdateValues", cell, err)
			continue
		}
		report.Written[name] = value
	}

	log.Info().
		Str("sheet", sheet.SheetName).
		Str("transaction_id", txID).
		Int("row", row).
		Int("written", len(report.Written)).
		Int("failed", len(report.Failures)).
		Int("skipped", len(report.Skipped)).
		Msg("Applied transaction update")

	return report, nil
}

func (a *Adapter) requireData(ctx context.Context, sheet domain.Sheet, schema domain.SheetSchema, txID string, row int) error {
	rng := rangestore.RowWindowRange(sheet.SheetName, schema.LastLetter(), row, row)
	grid, err := a.store.GetValues(ctx, sheet.SpreadsheetRef, rng)
	if err != nil {
		return rangestore.Wrap("GetValues", rng, err)
	}
	for _, cells := range grid {
		for _, c := range cells {
			if strings.TrimSpace(c) != "" {
				return nil
			}
		}
	}
	return &domain.IdentityNotFoundError{TransactionID: txID}
}

// ResolveColumn finds the column a request field refers to: first by
// header, then through the synonym table.
func ResolveColumn(schema domain.SheetSchema, field string) (domain.ColumnMapping, bool) {
	if col, ok := schema.Column(field); ok {
		return col, true
	}
	if header, ok := synonyms[strings.ToLower(strings.TrimSpace(field))]; ok {
		return schema.Column(header)
	}
	return domain.ColumnMapping{}, false
}
