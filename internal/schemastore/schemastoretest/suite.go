// Package schemastoretest holds behaviour tests shared by every
// schemastore.Store implementation.
package schemastoretest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/dvloznov/sheetledger/internal/schemastore"
)

// Run exercises a store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) schemastore.Store) {
	t.Run("UpsertSheetIsIdempotent", func(t *testing.T) { testUpsertSheet(t, newStore(t)) })
	t.Run("OwnerScoping", func(t *testing.T) { testOwnerScoping(t, newStore(t)) })
	t.Run("SchemaVersioning", func(t *testing.T) { testSchemaVersioning(t, newStore(t)) })
	t.Run("DeleteCascades", func(t *testing.T) { testDeleteCascades(t, newStore(t)) })
	t.Run("MarkSynced", func(t *testing.T) { testMarkSynced(t, newStore(t)) })
}

func newSheet(owner, name string) domain.Sheet {
	return domain.Sheet{
		Owner:          owner,
		SpreadsheetRef: "1AbCdEf",
		SheetName:      name,
		SheetType:      domain.SheetTypeTransactions,
	}
}

func columns(headers ...string) []domain.ColumnMapping {
	var out []domain.ColumnMapping
	for i, h := range headers {
		out = append(out, domain.NewColumnMapping(h, i))
	}
	return out
}

func testUpsertSheet(t *testing.T, s schemastore.Store) {
	ctx := context.Background()

	first, err := s.UpsertSheet(ctx, newSheet("alice", "Transactions"))
	if err != nil {
		t.Fatalf("UpsertSheet failed: %v", err)
	}
	if first.ID == "" || first.SchemaVersion != domain.InitialSchemaVersion {
		t.Fatalf("unexpected created sheet %+v", first)
	}

	again := newSheet("alice", "Transactions")
	again.SheetType = domain.SheetTypeBudget
	second, err := s.UpsertSheet(ctx, again)
	if err != nil {
		t.Fatalf("UpsertSheet failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same id on upsert, got %s and %s", first.ID, second.ID)
	}
	if second.SheetType != domain.SheetTypeBudget {
		t.Errorf("expected sheet type to be updated, got %s", second.SheetType)
	}

	sheets, err := s.ListSheets(ctx, "alice")
	if err != nil {
		t.Fatalf("ListSheets failed: %v", err)
	}
	if len(sheets) != 1 {
		t.Errorf("expected one sheet, got %d", len(sheets))
	}
}

func testOwnerScoping(t *testing.T, s schemastore.Store) {
	ctx := context.Background()

	sheet, err := s.UpsertSheet(ctx, newSheet("alice", "Transactions"))
	if err != nil {
		t.Fatalf("UpsertSheet failed: %v", err)
	}
	if _, err := s.UpsertSheet(ctx, newSheet("bob", "Transactions")); err != nil {
		t.Fatalf("UpsertSheet failed: %v", err)
	}

	if _, err := s.GetSheet(ctx, "bob", sheet.ID); !errors.Is(err, domain.ErrSheetNotFound) {
		t.Errorf("expected ErrSheetNotFound for another owner, got %v", err)
	}
	if err := s.DeleteSheet(ctx, "bob", sheet.ID); !errors.Is(err, domain.ErrSheetNotFound) {
		t.Errorf("expected ErrSheetNotFound deleting another owner's sheet, got %v", err)
	}
	got, err := s.GetSheet(ctx, "alice", sheet.ID)
	if err != nil || got.SheetName != "Transactions" {
		t.Errorf("GetSheet: %+v, %v", got, err)
	}

	bobs, err := s.ListSheets(ctx, "bob")
	if err != nil || len(bobs) != 1 || bobs[0].ID == sheet.ID {
		t.Errorf("ListSheets(bob): %+v, %v", bobs, err)
	}
}

func testSchemaVersioning(t *testing.T, s schemastore.Store) {
	ctx := context.Background()

	sheet, err := s.UpsertSheet(ctx, newSheet("alice", "Transactions"))
	if err != nil {
		t.Fatalf("UpsertSheet failed: %v", err)
	}
	if _, err := s.GetSchema(ctx, sheet.ID); !errors.Is(err, domain.ErrSchemaNotFound) {
		t.Fatalf("expected ErrSchemaNotFound before first save, got %v", err)
	}

	schema := domain.SheetSchema{
		SheetID:          sheet.ID,
		Columns:          columns("Date", "Description", "Amount"),
		DetectedTemplate: domain.TemplateBasic,
	}
	steps := []struct {
		name    string
		columns []domain.ColumnMapping
		want    int
	}{
		{"first save keeps initial version", schema.Columns, 1},
		{"identical save is a no-op", columns("Date", "Description", "Amount"), 1},
		{"added column bumps", columns("Date", "Description", "Amount", domain.MobileIDHeader), 2},
		{"remap bumps", func() []domain.ColumnMapping {
			c := columns("Date", "Description", "Amount", domain.MobileIDHeader)
			c[1].SemanticType = domain.SemanticNote
			return c
		}(), 3},
	}
	for _, step := range steps {
		schema.Columns = step.columns
		schema.SyncMobileIDFlag()
		version, err := s.SaveSchema(ctx, schema)
		if err != nil {
			t.Fatalf("%s: SaveSchema failed: %v", step.name, err)
		}
		if version != step.want {
			t.Errorf("%s: version = %d, want %d", step.name, version, step.want)
		}
	}

	got, err := s.GetSchema(ctx, sheet.ID)
	if err != nil {
		t.Fatalf("GetSchema failed: %v", err)
	}
	if !got.HasMobileIDColumn || len(got.Columns) != 4 || got.Columns[1].SemanticType != domain.SemanticNote {
		t.Errorf("unexpected stored schema %+v", got)
	}
	stored, _ := s.GetSheet(ctx, "alice", sheet.ID)
	if stored.SchemaVersion != 3 {
		t.Errorf("expected sheet version 3, got %d", stored.SchemaVersion)
	}

	if _, err := s.SaveSchema(ctx, domain.SheetSchema{SheetID: "00000000-0000-0000-0000-000000000000"}); !errors.Is(err, domain.ErrSheetNotFound) {
		t.Errorf("expected ErrSheetNotFound for unknown sheet, got %v", err)
	}
}

func testDeleteCascades(t *testing.T, s schemastore.Store) {
	ctx := context.Background()

	sheet, err := s.UpsertSheet(ctx, newSheet("alice", "Transactions"))
	if err != nil {
		t.Fatalf("UpsertSheet failed: %v", err)
	}
	if _, err := s.SaveSchema(ctx, domain.SheetSchema{SheetID: sheet.ID, Columns: columns("Date"), DetectedTemplate: domain.TemplateCustom}); err != nil {
		t.Fatalf("SaveSchema failed: %v", err)
	}
	if err := s.DeleteSheet(ctx, "alice", sheet.ID); err != nil {
		t.Fatalf("DeleteSheet failed: %v", err)
	}
	if _, err := s.GetSheet(ctx, "alice", sheet.ID); !errors.Is(err, domain.ErrSheetNotFound) {
		t.Errorf("expected ErrSheetNotFound after delete, got %v", err)
	}
	if _, err := s.GetSchema(ctx, sheet.ID); !errors.Is(err, domain.ErrSchemaNotFound) {
		t.Errorf("expected schema to be deleted with the sheet, got %v", err)
	}
}

func testMarkSynced(t *testing.T, s schemastore.Store) {
	ctx := context.Background()

	sheet, err := s.UpsertSheet(ctx, newSheet("alice", "Transactions"))
	if err != nil {
		t.Fatalf("UpsertSheet failed: %v", err)
	}
	if sheet.LastSyncedAt != nil {
		t.Fatalf("expected new sheet to be unsynced")
	}

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.MarkSynced(ctx, sheet.ID, at); err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}
	got, _ := s.GetSheet(ctx, "alice", sheet.ID)
	if got.LastSyncedAt == nil || !got.LastSyncedAt.Equal(at) {
		t.Errorf("expected LastSyncedAt %v, got %v", at, got.LastSyncedAt)
	}
}
