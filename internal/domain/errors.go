package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSheetNotFound is returned when a sheet id is unknown or belongs to another owner.
var ErrSheetNotFound = errors.New("sheet not found")

// ErrSchemaNotFound is returned when a sheet has no stored schema yet.
var ErrSchemaNotFound = errors.New("sheet schema not found")

// DetectionReadError marks one candidate sheet whose headers could not be read.
// Detection keeps going without it.
type DetectionReadError struct {
	SheetName string
	Err       error
}

func (e *DetectionReadError) Error() string {
	return fmt.Sprintf("could not read headers of sheet %q: %v", e.SheetName, e.Err)
}

func (e *DetectionReadError) Unwrap() error {
	return e.Err
}

// ValidationError rejects a schema or request before anything is persisted.
type ValidationError struct {
	Missing []string
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("invalid transaction sheet: missing required columns %s", strings.Join(e.Missing, ", "))
	}
	return "validation failed: " + e.Reason
}

// IdentityNotFoundError means a transaction id resolved to no row.
type IdentityNotFoundError struct {
	TransactionID string
}

func (e *IdentityNotFoundError) Error() string {
	return fmt.Sprintf("transaction not found: %s", e.TransactionID)
}

// UnwritableColumnError rejects a write to a column outside the allow-list.
type UnwritableColumnError struct {
	Header string
}

func (e *UnwritableColumnError) Error() string {
	return fmt.Sprintf("cannot write to column: %s", e.Header)
}

// FormulaProtectionError rejects a write to a cell that may hold a formula.
type FormulaProtectionError struct {
	Header string
	Cell   string
}

func (e *FormulaProtectionError) Error() string {
	return fmt.Sprintf("cannot overwrite possible formula in column %s (%s)", e.Header, e.Cell)
}

// TransportError wraps a failure of the underlying spreadsheet store.
type TransportError struct {
	Op    string
	Range string
	Err   error
}

func (e *TransportError) Error() string {
	if e.Range != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Range, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
