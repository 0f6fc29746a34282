package domain

import (
	"fmt"
	"strings"
	"time"
)

// SheetType classifies what a configured tab holds.
type SheetType string

const (
	// SheetTypeTransactions is a ledger of transaction rows.
	SheetTypeTransactions SheetType = "transactions"
	// SheetTypeCategories lists categories and their groups.
	SheetTypeCategories SheetType = "categories"
	// SheetTypeBalances holds account balances.
	SheetTypeBalances SheetType = "balances"
	// SheetTypeBudget holds budget targets.
	SheetTypeBudget SheetType = "budget"
	// SheetTypeUnknown is only produced by detection and is never persisted.
	SheetTypeUnknown SheetType = "unknown"
)

// ParseSheetType accepts any of the persisted sheet types, case-insensitively.
func ParseSheetType(s string) (SheetType, error) {
	switch t := SheetType(strings.ToLower(strings.TrimSpace(s))); t {
	case SheetTypeTransactions, SheetTypeCategories, SheetTypeBalances, SheetTypeBudget:
		return t, nil
	default:
		return "", &ValidationError{Reason: fmt.Sprintf("unsupported sheet type %q", s)}
	}
}

// Sheet is one tab of a user's spreadsheet configured for use by the app.
type Sheet struct {
	ID             string     `json:"id"`
	Owner          string     `json:"owner"`
	SpreadsheetRef string     `json:"spreadsheet_id"`
	SheetName      string     `json:"sheet_name"`
	SheetType      SheetType  `json:"sheet_type"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	SchemaVersion  int        `json:"schema_version"`
}

// InitialSchemaVersion is the version a sheet carries before any schema mutation.
const InitialSchemaVersion = 1
