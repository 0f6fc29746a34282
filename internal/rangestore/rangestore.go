// Package rangestore describes the cell-range transport the ledger reads
// from and writes to, plus helpers for building A1 range expressions.
package rangestore

import (
	"context"
	"errors"

	"github.com/dvloznov/sheetledger/internal/domain"
)

// Grid is a rectangular-ish block of cell text. Rows may be ragged: stores
// omit trailing empty cells and trailing empty rows.
type Grid [][]string

// Cell returns the text at (row, col) of the grid, or "" when out of range.
func (g Grid) Cell(row, col int) string {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return ""
	}
	return g[row][col]
}

// SheetMeta describes one tab of a spreadsheet.
type SheetMeta struct {
	SheetID int64  `json:"sheet_id"`
	Title   string `json:"title"`
	Index   int    `json:"index"`
}

// Store reads and writes cell ranges of a spreadsheet.
//
// Implementations must not retry; callers decide whether an operation is
// worth repeating. Writes interpret values the way a user typing them would.
type Store interface {
	// GetValues returns the formatted text of every cell in rng.
	GetValues(ctx context.Context, spreadsheetID, rng string) (Grid, error)

	// UpdateValues writes values starting at the top-left cell of rng.
	UpdateValues(ctx context.Context, spreadsheetID, rng string, values Grid) error

	// AppendValues inserts values as new rows after the table found in rng.
	AppendValues(ctx context.Context, spreadsheetID, rng string, values Grid) error

	// GetSpreadsheetMetadata lists the tabs of the spreadsheet in display order.
	GetSpreadsheetMetadata(ctx context.Context, spreadsheetID string) ([]SheetMeta, error)
}

// Wrap reports a failed store call as a domain.TransportError. Errors that
// already are one are returned unchanged.
func Wrap(op, rng string, err error) error {
	if err == nil {
		return nil
	}
	var te *domain.TransportError
	if errors.As(err, &te) {
		return err
	}
	return &domain.TransportError{Op: op, Range: rng, Err: err}
}
