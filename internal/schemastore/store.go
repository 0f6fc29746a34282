// Package schemastore persists configured sheets and their column schemas.
package schemastore

import (
	"context"
	"time"

	"github.com/dvloznov/sheetledger/internal/domain"
)

// Store persists sheets and schemas.
//
// Every read of a sheet is scoped to its owner: a sheet owned by someone
// else is reported as domain.ErrSheetNotFound.
type Store interface {
	// UpsertSheet creates the sheet, or updates the type of the sheet already
	// registered for the same (owner, spreadsheet, sheet name). The stored
	// sheet is returned with its id and current schema version.
	UpsertSheet(ctx context.Context, sheet domain.Sheet) (*domain.Sheet, error)

	// GetSheet returns one sheet of owner.
	GetSheet(ctx context.Context, owner, sheetID string) (*domain.Sheet, error)

	// ListSheets returns every sheet of owner ordered by spreadsheet and name.
	ListSheets(ctx context.Context, owner string) ([]*domain.Sheet, error)

	// DeleteSheet removes a sheet and its schema.
	DeleteSheet(ctx context.Context, owner, sheetID string) error

	// SaveSchema stores the schema of a sheet. The first save keeps the
	// sheet's initial version; later saves bump it by one when the columns
	// changed and leave it alone otherwise. The resulting version is returned.
	SaveSchema(ctx context.Context, schema domain.SheetSchema) (int, error)

	// GetSchema returns the schema of a sheet or domain.ErrSchemaNotFound.
	GetSchema(ctx context.Context, sheetID string) (*domain.SheetSchema, error)

	// MarkSynced records the last time the sheet's contents were read.
	MarkSynced(ctx context.Context, sheetID string, at time.Time) error
}
