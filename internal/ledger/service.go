// Package ledger exposes a user's spreadsheet as a typed transaction ledger.
// It ties detection, schema storage, reads and safe writes together; every
// call is scoped to the owner passed in.
package ledger

import (
	"context"
	"time"

	"github.com/dvloznov/sheetledger/internal/audit"
	"github.com/dvloznov/sheetledger/internal/detect"
	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/dvloznov/sheetledger/internal/gridparse"
	"github.com/dvloznov/sheetledger/internal/identity"
	"github.com/dvloznov/sheetledger/internal/logger"
	"github.com/dvloznov/sheetledger/internal/rangestore"
	"github.com/dvloznov/sheetledger/internal/schemastore"
	"github.com/dvloznov/sheetledger/internal/writer"
)

// Options tune a Service. Zero values pick defaults.
type Options struct {
	DetectConcurrency int
	DefaultPerPage    int
	MaxPerPage        int
}

// Service implements the ledger operations.
type Service struct {
	cells    rangestore.Store
	schemas  schemastore.Store
	detector *detect.Detector
	resolver *identity.Resolver
	writer   *writer.Adapter
	audit    audit.Recorder

	defaultPerPage int
	maxPerPage     int
	now            func() time.Time
}

// NewService wires a service. A nil recorder discards audit entries.
func NewService(cells rangestore.Store, schemas schemastore.Store, recorder audit.Recorder, opts Options) *Service {
	if recorder == nil {
		recorder = audit.Multi{}
	}
	if opts.DefaultPerPage < 1 {
		opts.DefaultPerPage = gridparse.DefaultPerPage
	}
	if opts.MaxPerPage < opts.DefaultPerPage {
		opts.MaxPerPage = 500
	}
	resolver := identity.NewResolver(cells)
	return &Service{
		cells:          cells,
		schemas:        schemas,
		detector:       detect.NewDetector(cells, opts.DetectConcurrency),
		resolver:       resolver,
		writer:         writer.NewAdapter(cells, resolver),
		audit:          recorder,
		defaultPerPage: opts.DefaultPerPage,
		maxPerPage:     opts.MaxPerPage,
		now:            time.Now,
	}
}

// loadSheet returns an owner's sheet with its schema.
func (s *Service) loadSheet(ctx context.Context, owner, sheetID string) (*domain.Sheet, *domain.SheetSchema, error) {
	sheet, err := s.schemas.GetSheet(ctx, owner, sheetID)
	if err != nil {
		return nil, nil, err
	}
	schema, err := s.schemas.GetSchema(ctx, sheet.ID)
	if err != nil {
		return nil, nil, err
	}
	return sheet, schema, nil
}

// readAll scans every row of a sheet wide enough to cover its schema.
func (s *Service) readAll(ctx context.Context, sheet *domain.Sheet, schema *domain.SheetSchema) (rangestore.Grid, error) {
	rng := rangestore.ScanRange(sheet.SheetName, schema.LastLetter())
	grid, err := s.cells.GetValues(ctx, sheet.SpreadsheetRef, rng)
	if err != nil {
		return nil, rangestore.Wrap("GetValues", rng, err)
	}
	return grid, nil
}

func (s *Service) record(ctx context.Context, entries []audit.Entry) {
	if len(entries) == 0 {
		return
	}
	audit.Stamp(entries, s.now())
	if err := s.audit.Record(ctx, entries); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Int("entries", len(entries)).Msg("Failed to record audit entries")
	}
}

func auditBase(op audit.Operation, owner string, sheet *domain.Sheet) audit.Entry {
	return audit.Entry{
		Operation:      op,
		Owner:          owner,
		SheetID:        sheet.ID,
		SpreadsheetRef: sheet.SpreadsheetRef,
		SheetName:      sheet.SheetName,
	}
}
