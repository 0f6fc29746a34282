// Package xlsx implements rangestore.Store on a local Excel workbook, for
// working against an exported copy of a ledger without Google access.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/dvloznov/sheetledger/internal/rangestore"
	"github.com/xuri/excelize/v2"
)

// Store serves a single workbook. The spreadsheet id passed to each call is
// ignored. Every write is saved to disk before the call returns.
type Store struct {
	path string

	mu sync.Mutex
	f  *excelize.File
}

// Open opens the workbook at path, creating an empty one when it does not exist.
func Open(path string) (*Store, error) {
	f, err := excelize.OpenFile(path)
	if errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
		if err := f.SaveAs(path); err != nil {
			return nil, fmt.Errorf("Open: creating workbook: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	return &Store{path: path, f: f}, nil
}

// Close releases the workbook.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// AddSheet creates a tab filled with rows, replacing any tab of the same name.
func (s *Store) AddSheet(title string, rows rangestore.Grid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, _ := s.f.GetSheetIndex(title); idx >= 0 {
		if err := s.f.DeleteSheet(title); err != nil {
			return fmt.Errorf("AddSheet: %w", err)
		}
	}
	if _, err := s.f.NewSheet(title); err != nil {
		return fmt.Errorf("AddSheet: %w", err)
	}
	if err := s.write(title, 1, 0, rows); err != nil {
		return fmt.Errorf("AddSheet: %w", err)
	}
	return s.save()
}

// GetValues implements rangestore.Store.
func (s *Store) GetValues(ctx context.Context, _ string, rng string) (rangestore.Grid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, rows, err := s.read(ctx, rng)
	if err != nil {
		return nil, rangestore.Wrap("GetValues", rng, err)
	}
	return r.Extract(rows), nil
}

// UpdateValues implements rangestore.Store.
func (s *Store) UpdateValues(ctx context.Context, _ string, rng string, values rangestore.Grid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, _, err := s.read(ctx, rng)
	if err != nil {
		return rangestore.Wrap("UpdateValues", rng, err)
	}
	if err := s.write(r.Sheet, r.FromRow, r.FromCol, values); err != nil {
		return rangestore.Wrap("UpdateValues", rng, err)
	}
	return rangestore.Wrap("UpdateValues", rng, s.save())
}

// AppendValues implements rangestore.Store.
func (s *Store) AppendValues(ctx context.Context, _ string, rng string, values rangestore.Grid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, rows, err := s.read(ctx, rng)
	if err != nil {
		return rangestore.Wrap("AppendValues", rng, err)
	}
	if err := s.write(r.Sheet, rangestore.NextFreeRow(rows)+1, r.FromCol, values); err != nil {
		return rangestore.Wrap("AppendValues", rng, err)
	}
	return rangestore.Wrap("AppendValues", rng, s.save())
}

// GetSpreadsheetMetadata implements rangestore.Store.
func (s *Store) GetSpreadsheetMetadata(ctx context.Context, _ string) ([]rangestore.SheetMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, rangestore.Wrap("GetSpreadsheetMetadata", "", err)
	}
	var out []rangestore.SheetMeta
	for i, name := range s.f.GetSheetList() {
		id, err := s.f.GetSheetIndex(name)
		if err != nil {
			return nil, rangestore.Wrap("GetSpreadsheetMetadata", "", err)
		}
		out = append(out, rangestore.SheetMeta{SheetID: int64(id), Title: name, Index: i})
	}
	return out, nil
}

func (s *Store) read(ctx context.Context, rng string) (rangestore.Range, rangestore.Grid, error) {
	if err := ctx.Err(); err != nil {
		return rangestore.Range{}, nil, err
	}
	r, err := rangestore.ParseRange(rng)
	if err != nil {
		return r, nil, err
	}
	rows, err := s.f.GetRows(r.Sheet)
	if err != nil {
		return r, nil, err
	}
	return r, rows, nil
}

// write stores values with their top-left cell at (row, col); row is
// 1-indexed and col 0-indexed.
func (s *Store) write(sheet string, row, col int, values rangestore.Grid) error {
	for i, vals := range values {
		for j, v := range vals {
			cell, err := excelize.CoordinatesToCellName(col+j+1, row+i)
			if err != nil {
				return err
			}
			if err := s.f.SetCellValue(sheet, cell, userEntered(v)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) save() error {
	return s.f.SaveAs(s.path)
}

// userEntered interprets text the way a user typing it into a cell would
// for the plain numeric case. Everything else stays text.
func userEntered(v string) interface{} {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return v
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return n
	}
	return v
}

var _ rangestore.Store = (*Store)(nil)
