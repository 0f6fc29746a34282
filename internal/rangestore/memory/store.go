// Package memory is an in-process rangestore.Store used by tests and local runs.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dvloznov/sheetledger/internal/rangestore"
)

// Call records one request made against the store.
type Call struct {
	Op    string
	Range string
}

type tab struct {
	meta rangestore.SheetMeta
	rows [][]string
}

type failure struct {
	op  string
	rng string
	err error
}

// Store keeps spreadsheets as ragged string grids. It mimics the Sheets API
// closely enough for the ledger: trailing empty cells and rows are trimmed
// from reads, and appends land below the last non-empty row.
// It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	books    map[string][]*tab
	calls    []Call
	failures []failure
}

// New creates an empty store.
func New() *Store {
	return &Store{books: make(map[string][]*tab)}
}

// AddSheet creates a tab, or replaces the contents of an existing one.
func (s *Store) AddSheet(spreadsheetID, title string, rows rangestore.Grid) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t := s.find(spreadsheetID, title); t != nil {
		t.rows = cloneGrid(rows)
		return
	}
	book := s.books[spreadsheetID]
	s.books[spreadsheetID] = append(book, &tab{
		meta: rangestore.SheetMeta{SheetID: int64(len(book)), Title: title, Index: len(book)},
		rows: cloneGrid(rows),
	})
}

// Rows returns a copy of every stored row of a tab.
func (s *Store) Rows(spreadsheetID, title string) rangestore.Grid {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t := s.find(spreadsheetID, title); t != nil {
		return cloneGrid(t.rows)
	}
	return nil
}

// Calls returns the requests made so far in order.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsOf returns the requests made so far for one operation.
func (s *Store) CallsOf(op string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Fail makes every future call of op fail with err. An empty rng matches
// any range; otherwise the range must match exactly.
func (s *Store) Fail(op, rng string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{op: op, rng: rng, err: err})
}

// GetValues implements rangestore.Store.
func (s *Store) GetValues(ctx context.Context, spreadsheetID, rng string) (rangestore.Grid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, r, err := s.begin(ctx, "GetValues", spreadsheetID, rng)
	if err != nil {
		return nil, err
	}

	return r.Extract(t.rows), nil
}

// UpdateValues implements rangestore.Store.
func (s *Store) UpdateValues(ctx context.Context, spreadsheetID, rng string, values rangestore.Grid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, r, err := s.begin(ctx, "UpdateValues", spreadsheetID, rng)
	if err != nil {
		return err
	}
	t.write(r.FromRow-1, r.FromCol, values)
	return nil
}

// AppendValues implements rangestore.Store.
func (s *Store) AppendValues(ctx context.Context, spreadsheetID, rng string, values rangestore.Grid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, r, err := s.begin(ctx, "AppendValues", spreadsheetID, rng)
	if err != nil {
		return err
	}
	t.write(rangestore.NextFreeRow(t.rows), r.FromCol, values)
	return nil
}

// GetSpreadsheetMetadata implements rangestore.Store.
func (s *Store) GetSpreadsheetMetadata(ctx context.Context, spreadsheetID string) ([]rangestore.SheetMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Op: "GetSpreadsheetMetadata"})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.failure("GetSpreadsheetMetadata", ""); err != nil {
		return nil, err
	}
	book, ok := s.books[spreadsheetID]
	if !ok {
		return nil, fmt.Errorf("spreadsheet not found: %s", spreadsheetID)
	}
	out := make([]rangestore.SheetMeta, len(book))
	for i, t := range book {
		out[i] = t.meta
	}
	return out, nil
}

func (s *Store) begin(ctx context.Context, op, spreadsheetID, rng string) (*tab, rangestore.Range, error) {
	s.calls = append(s.calls, Call{Op: op, Range: rng})
	if err := ctx.Err(); err != nil {
		return nil, rangestore.Range{}, err
	}
	if err := s.failure(op, rng); err != nil {
		return nil, rangestore.Range{}, err
	}
	r, err := rangestore.ParseRange(rng)
	if err != nil {
		return nil, r, err
	}
	t := s.find(spreadsheetID, r.Sheet)
	if t == nil {
		return nil, r, fmt.Errorf("unable to parse range: %s", rng)
	}
	return t, r, nil
}

func (s *Store) failure(op, rng string) error {
	for _, f := range s.failures {
		if f.op == op && (f.rng == "" || f.rng == rng) {
			return f.err
		}
	}
	return nil
}

func (s *Store) find(spreadsheetID, title string) *tab {
	for _, t := range s.books[spreadsheetID] {
		if strings.EqualFold(t.meta.Title, title) {
			return t
		}
	}
	return nil
}

func (t *tab) write(row, col int, values rangestore.Grid) {
	for i, vals := range values {
		for len(t.rows) <= row+i {
			t.rows = append(t.rows, nil)
		}
		cells := t.rows[row+i]
		for len(cells) < col+len(vals) {
			cells = append(cells, "")
		}
		copy(cells[col:], vals)
		t.rows[row+i] = cells
	}
}

func cloneGrid(g rangestore.Grid) rangestore.Grid {
	if g == nil {
		return nil
	}
	out := make(rangestore.Grid, len(g))
	for i, row := range g {
		out[i] = append([]string(nil), row...)
	}
	return out
}

var _ rangestore.Store = (*Store)(nil)
