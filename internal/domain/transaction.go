package domain

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const rowIDPrefix = "row_"

// Transaction is one ledger row projected from a sheet grid.
// It is recomputed on every read and never persisted.
type Transaction struct {
	RowNumber   int             `json:"row"`          // 1-indexed sheet row, always >= 2
	ID          string          `json:"id"`           // mobile id, or row_<n> before one is provisioned
	Date        string          `json:"date"`         // cell text as rendered by the sheet
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`       // 0 when the cell is missing or not numeric
	Account     string          `json:"account"`
	Category    string          `json:"category,omitempty"`
	Note        string          `json:"note,omitempty"`
	Tags        string          `json:"tags,omitempty"`
}

// IsUncategorized reports whether the category cell is blank.
func (t Transaction) IsUncategorized() bool {
	return isBlank(t.Category)
}

// RowID is the positional identifier of a row that has no mobile id yet.
// n is the row's offset below the header, so RowID(n) sits on sheet row n+1.
func RowID(n int) string {
	return rowIDPrefix + strconv.Itoa(n)
}

// ParseRowID extracts n from a RowID. Only n >= 1 is valid: the header row
// never holds a transaction.
func ParseRowID(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, rowIDPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
