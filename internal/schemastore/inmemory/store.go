// Package inmemory is a schemastore.Store kept in process memory.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/dvloznov/sheetledger/internal/schemastore"
	"github.com/google/uuid"
)

// Store is safe for concurrent use. Values are copied on the way in and
// out, so callers never share memory with the store.
type Store struct {
	mu      sync.RWMutex
	sheets  map[string]*domain.Sheet
	schemas map[string]*domain.SheetSchema
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sheets:  make(map[string]*domain.Sheet),
		schemas: make(map[string]*domain.SheetSchema),
	}
}

// UpsertSheet implements schemastore.Store.
func (s *Store) UpsertSheet(ctx context.Context, sheet domain.Sheet) (*domain.Sheet, error) {
	if sheet.Owner == "" || sheet.SpreadsheetRef == "" || sheet.SheetName == "" {
		return nil, fmt.Errorf("UpsertSheet: owner, spreadsheet and sheet name are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sheets {
		if existing.Owner == sheet.Owner && existing.SpreadsheetRef == sheet.SpreadsheetRef && existing.SheetName == sheet.SheetName {
			existing.SheetType = sheet.SheetType
			return copySheet(existing), nil
		}
	}

	stored := copySheet(&sheet)
	stored.ID = uuid.New().String()
	stored.SchemaVersion = domain.InitialSchemaVersion
	s.sheets[stored.ID] = stored
	return copySheet(stored), nil
}

// GetSheet implements schemastore.Store.
func (s *Store) GetSheet(ctx context.Context, owner, sheetID string) (*domain.Sheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sheet, ok := s.sheets[sheetID]
	if !ok || sheet.Owner != owner {
		return nil, domain.ErrSheetNotFound
	}
	return copySheet(sheet), nil
}

// ListSheets implements schemastore.Store.
func (s *Store) ListSheets(ctx context.Context, owner string) ([]*domain.Sheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.Sheet{}
	for _, sheet := range s.sheets {
		if sheet.Owner == owner {
			result = append(result, copySheet(sheet))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SpreadsheetRef != result[j].SpreadsheetRef {
			return result[i].SpreadsheetRef < result[j].SpreadsheetRef
		}
		return strings.ToLower(result[i].SheetName) < strings.ToLower(result[j].SheetName)
	})
	return result, nil
}

// DeleteSheet implements schemastore.Store.
func (s *Store) DeleteSheet(ctx context.Context, owner, sheetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, ok := s.sheets[sheetID]
	if !ok || sheet.Owner != owner {
		return domain.ErrSheetNotFound
	}
	delete(s.sheets, sheetID)
	delete(s.schemas, sheetID)
	return nil
}

// SaveSchema implements schemastore.Store.
func (s *Store) SaveSchema(ctx context.Context, schema domain.SheetSchema) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, ok := s.sheets[schema.SheetID]
	if !ok {
		return 0, domain.ErrSheetNotFound
	}

	if existing, ok := s.schemas[schema.SheetID]; ok && !domain.SameColumns(existing.Columns, schema.Columns) {
		sheet.SchemaVersion++
	}
	s.schemas[schema.SheetID] = copySchema(&schema)
	return sheet.SchemaVersion, nil
}

// GetSchema implements schemastore.Store.
func (s *Store) GetSchema(ctx context.Context, sheetID string) (*domain.SheetSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schema, ok := s.schemas[sheetID]
	if !ok {
		return nil, domain.ErrSchemaNotFound
	}
	return copySchema(schema), nil
}

// MarkSynced implements schemastore.Store.
func (s *Store) MarkSynced(ctx context.Context, sheetID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, ok := s.sheets[sheetID]
	if !ok {
		return domain.ErrSheetNotFound
	}
	at = at.UTC()
	sheet.LastSyncedAt = &at
	return nil
}

func copySheet(in *domain.Sheet) *domain.Sheet {
	out := *in
	if in.LastSyncedAt != nil {
		t := *in.LastSyncedAt
		out.LastSyncedAt = &t
	}
	return &out
}

func copySchema(in *domain.SheetSchema) *domain.SheetSchema {
	out := *in
	out.Columns = domain.CloneColumns(in.Columns)
	return &out
}

// Ensure Store implements schemastore.Store.
var _ schemastore.Store = (*Store)(nil)
