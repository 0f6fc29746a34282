// Package identity maps transaction ids to the sheet rows currently holding them.
package identity

import (
	"context"
	"fmt"

	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/dvloznov/sheetledger/internal/logger"
	"github.com/dvloznov/sheetledger/internal/rangestore"
)

// Resolver finds rows by id. It keeps no state: the id column is re-read on
// every call so rows inserted or sorted by the user are picked up.
type Resolver struct {
	store rangestore.Store
}

// NewResolver creates a resolver reading through store.
func NewResolver(store rangestore.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the 1-indexed sheet row holding txID.
//
// With a mobile id column the column is scanned for an exact match below
// the header. Ids of the form row_<n> fall back to row n+1; that mapping
// goes stale as soon as rows move, so each use is logged. Anything else is
// an IdentityNotFoundError. A failed scan is returned as is and never falls
// back to the positional id.
func (r *Resolver) Resolve(ctx context.Context, spreadsheetID, sheetName string, schema domain.SheetSchema, txID string) (int, error) {
	log := logger.FromContext(ctx)

	if col, ok := schema.MobileIDColumn(); ok && txID != "" {
		rng := rangestore.ColumnRange(sheetName, col.Letter)
		grid, err := r.store.GetValues(ctx, spreadsheetID, rng)
		if err != nil {
			return 0, fmt.Errorf("Resolve: scanning id column: %w", rangestore.Wrap("GetValues", rng, err))
		}
		for i := 1; i < len(grid); i++ {
			if len(grid[i]) > 0 && grid[i][0] == txID {
				return i + 1, nil
			}
		}
	}

	if n, ok := domain.ParseRowID(txID); ok {
		log.Warn().
			Str("sheet", sheetName).
			Str("transaction_id", txID).
			Int("row", n+1).
			Bool("has_mobile_id_column", schema.HasMobileIDColumn).
			Msg("Resolving transaction by position; the row may have moved")
		return n + 1, nil
	}

	return 0, &domain.IdentityNotFoundError{TransactionID: txID}
}
