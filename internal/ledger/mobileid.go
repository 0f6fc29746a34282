package ledger

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/dvloznov/sheetledger/internal/audit"
	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/dvloznov/sheetledger/internal/logger"
	"github.com/dvloznov/sheetledger/internal/rangestore"
	"github.com/google/uuid"
)

// MobileIDResult describes what AddMobileIDColumn did.
type MobileIDResult struct {
	Sheet         *domain.Sheet        `json:"sheet"`
	Schema        *domain.SheetSchema `json:"schema"`
	Column        domain.ColumnMapping `json:"column"`
	HeaderWritten bool                 `json:"header_written"`
	Backfilled    int                  `json:"backfilled"`
}

// AddMobileIDColumn gives every row of a sheet a stable identifier.
//
// The reserved header goes into the first column right of both the schema
// and the live header row, unless the live header row already has it. Data
// rows with an empty id cell get a new UUID; rows that already carry one are
// never written. Before each write the target rows are read again and any
// row that no longer matches the scan is left for a later call. Calling it
// again only fills rows added since, so the header is never duplicated and
// the schema version moves at most once.
func (s *Service) AddMobileIDColumn(ctx context.Context, owner, sheetID string) (*MobileIDResult, error) {
	log := logger.FromContext(ctx)

	sheet, schema, err := s.loadSheet(ctx, owner, sheetID)
	if err != nil {
		return nil, fmt.Errorf("AddMobileIDColumn: %w", err)
	}
	result := &MobileIDResult{Sheet: sheet, Schema: schema}
	base := auditBase(audit.OperationBackfill, owner, sheet)

	col, ok := schema.MobileIDColumn()
	if !ok {
		col, result.HeaderWritten, err = s.provisionMobileIDHeader(ctx, sheet, schema)
		if err != nil {
			return nil, fmt.Errorf("AddMobileIDColumn: %w", err)
		}

		updated := withColumn(*schema, col)
		version, err := s.schemas.SaveSchema(ctx, updated)
		if err != nil {
			return nil, fmt.Errorf("AddMobileIDColumn: storing schema: %w", err)
		}
		sheet.SchemaVersion = version
		schema = &updated
		result.Schema = schema

		if result.HeaderWritten {
			e := base
			e.Row, e.Field, e.Value, e.Outcome = 1, col.Header, col.Header, audit.OutcomeWritten
			s.record(ctx, []audit.Entry{e})
		}
	}
	result.Column = col

	grid, err := s.readAll(ctx, sheet, schema)
	if err != nil {
		return nil, fmt.Errorf("AddMobileIDColumn: %w", err)
	}

	for _, run := range backfillRuns(grid, col.Position) {
		n, err := s.fillRun(ctx, sheet, schema, col, run, base)
		result.Backfilled += n
		if err != nil {
			return nil, fmt.Errorf("AddMobileIDColumn: backfilling ids: %w", err)
		}
	}

	log.Info().
		Str("sheet_id", sheet.ID).
		Str("column", col.Letter).
		Bool("header_written", result.HeaderWritten).
		Int("backfilled", result.Backfilled).
		Int("schema_version", sheet.SchemaVersion).
		Msg("Mobile id column provisioned")

	return result, nil
}

// provisionMobileIDHeader adopts a reserved header already present in the
// live header row, or writes one to the first free column.
func (s *Service) provisionMobileIDHeader(ctx context.Context, sheet *domain.Sheet, schema *domain.SheetSchema) (domain.ColumnMapping, bool, error) {
	rng := rangestore.HeaderRange(sheet.SheetName)
	grid, err := s.cells.GetValues(ctx, sheet.SpreadsheetRef, rng)
	if err != nil {
		return domain.ColumnMapping{}, false, rangestore.Wrap("GetValues", rng, err)
	}
	var headers []string
	if len(grid) > 0 {
		headers = grid[0]
	}
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), domain.MobileIDHeader) {
			return domain.NewColumnMapping(domain.MobileIDHeader, i), false, nil
		}
	}

	pos := max(schema.NextPosition(), len(headers))
	col := domain.NewColumnMapping(domain.MobileIDHeader, pos)
	cell := rangestore.CellRange(sheet.SheetName, col.Letter, 1)
	if err := s.cells.UpdateValues(ctx, sheet.SpreadsheetRef, cell, rangestore.Grid{{domain.MobileIDHeader}}); err != nil {
		return domain.ColumnMapping{}, false, rangestore.Wrap("UpdateValues", cell, err)
	}
	return col, true, nil
}

// withColumn returns schema with col added, replacing whatever the schema
// had at the same position.
func withColumn(schema domain.SheetSchema, col domain.ColumnMapping) domain.SheetSchema {
	cols := make([]domain.ColumnMapping, 0, len(schema.Columns)+1)
	for _, c := range schema.Columns {
		if c.Position != col.Position {
			cols = append(cols, c)
		}
	}
	cols = append(cols, col)
	sort.Slice(cols, func(i, j int) bool { return cols[i].Position < cols[j].Position })

	schema.Columns = cols
	schema.SyncMobileIDFlag()
	return schema
}

// idRun is a block of adjacent data rows that all need an id. first is the
// 1-based sheet row of rows[0].
type idRun struct {
	first int
	rows  rangestore.Grid
}

func (r idRun) last() int { return r.first + len(r.rows) - 1 }

// backfillRuns groups the rows of a scan that have data but no id into
// contiguous runs.
func backfillRuns(grid rangestore.Grid, pos int) []idRun {
	var runs []idRun
	for i := 1; i < len(grid); i++ {
		if grid.Cell(i, pos) != "" || blankRow(grid[i]) {
			continue
		}
		row := i + 1
		if n := len(runs); n > 0 && runs[n-1].last() == row-1 {
			runs[n-1].rows = append(runs[n-1].rows, grid[i])
			continue
		}
		runs = append(runs, idRun{first: row, rows: rangestore.Grid{grid[i]}})
	}
	return runs
}

// fillRun rereads the rows of run and writes new ids into the ones that are
// unchanged since the scan. It returns how many ids were written.
func (s *Service) fillRun(ctx context.Context, sheet *domain.Sheet, schema *domain.SheetSchema, col domain.ColumnMapping, run idRun, base audit.Entry) (int, error) {
	rng := rangestore.RowWindowRange(sheet.SheetName, schema.LastLetter(), run.first, run.last())
	current, err := s.cells.GetValues(ctx, sheet.SpreadsheetRef, rng)
	if err != nil {
		return 0, rangestore.Wrap("GetValues", rng, err)
	}

	parts := unchanged(run, current)
	written := 0
	for _, part := range parts {
		ids := make(rangestore.Grid, len(part.rows))
		entries := make([]audit.Entry, len(part.rows))
		for i := range part.rows {
			id := uuid.New().String()
			ids[i] = []string{id}
			e := base
			e.TransactionID, e.Row, e.Field, e.Value, e.Outcome = id, part.first+i, domain.MobileIDHeader, id, audit.OutcomeWritten
			entries[i] = e
		}

		cells := rangestore.ColumnSpanRange(sheet.SheetName, col.Letter, part.first, part.last())
		if err := s.cells.UpdateValues(ctx, sheet.SpreadsheetRef, cells, ids); err != nil {
			err = rangestore.Wrap("UpdateValues", cells, err)
			for i := range entries {
				entries[i].Outcome, entries[i].Error = audit.OutcomeFailed, err.Error()
			}
			s.record(ctx, entries)
			return written, err
		}
		s.record(ctx, entries)
		written += len(entries)
	}

	if skipped := len(run.rows) - countRows(parts); skipped > 0 {
		log := logger.FromContext(ctx)
		log.Warn().
			Str("sheet_id", sheet.ID).
			Int("from_row", run.first).
			Int("skipped", skipped).
			Msg("Rows changed during backfill, leaving them for the next run")
	}
	return written, nil
}

// unchanged splits run into the contiguous parts whose rows in current are
// identical to the scan. A scanned row has an empty id cell, so an identical
// row still has one too.
func unchanged(run idRun, current rangestore.Grid) []idRun {
	var parts []idRun
	for i, scanned := range run.rows {
		var now []string
		if i < len(current) {
			now = current[i]
		}
		if !slices.Equal(rangestore.TrimRow(scanned), rangestore.TrimRow(now)) {
			continue
		}
		row := run.first + i
		if n := len(parts); n > 0 && parts[n-1].last() == row-1 {
			parts[n-1].rows = append(parts[n-1].rows, scanned)
			continue
		}
		parts = append(parts, idRun{first: row, rows: rangestore.Grid{scanned}})
	}
	return parts
}

func countRows(runs []idRun) int {
	n := 0
	for _, r := range runs {
		n += len(r.rows)
	}
	return n
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
