// Package postgres is a schemastore.Store backed by PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/dvloznov/sheetledger/internal/schemastore"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store keeps sheets and schemas in the tables created by Migrate.
type Store struct {
	db *pgxpool.Pool
}

// NewStore wraps an open pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Connect opens a pool for dsn and checks it is reachable.
func Connect(ctx context.Context, dsn string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("Connect: parsing DSN: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("Connect: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("Connect: ping: %w", err)
	}
	return pool, nil
}

const sheetColumns = `id, owner, spreadsheet_id, sheet_name, sheet_type, last_synced_at, schema_version`

// UpsertSheet implements schemastore.Store.
func (s *Store) UpsertSheet(ctx context.Context, sheet domain.Sheet) (*domain.Sheet, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO sheets (id, owner, spreadsheet_id, sheet_name, sheet_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner, spreadsheet_id, sheet_name)
		DO UPDATE SET sheet_type = EXCLUDED.sheet_type, updated_at = now()
		RETURNING `+sheetColumns,
		uuid.New().String(), sheet.Owner, sheet.SpreadsheetRef, sheet.SheetName, string(sheet.SheetType))

	stored, err := scanSheet(row)
	if err != nil {
		return nil, fmt.Errorf("UpsertSheet: %w", err)
	}
	return stored, nil
}

// GetSheet implements schemastore.Store.
func (s *Store) GetSheet(ctx context.Context, owner, sheetID string) (*domain.Sheet, error) {
	if !validID(sheetID) {
		return nil, domain.ErrSheetNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+sheetColumns+` FROM sheets WHERE id = $1 AND owner = $2`, sheetID, owner)

	sheet, err := scanSheet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSheetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetSheet: %w", err)
	}
	return sheet, nil
}

// ListSheets implements schemastore.Store.
func (s *Store) ListSheets(ctx context.Context, owner string) ([]*domain.Sheet, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+sheetColumns+`
		FROM sheets
		WHERE owner = $1
		ORDER BY spreadsheet_id, lower(sheet_name)`, owner)
	if err != nil {
		return nil, fmt.Errorf("ListSheets: querying: %w", err)
	}
	defer rows.Close()

	result := []*domain.Sheet{}
	for rows.Next() {
		sheet, err := scanSheet(rows)
		if err != nil {
			return nil, fmt.Errorf("ListSheets: scanning: %w", err)
		}
		result = append(result, sheet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListSheets: iterating: %w", err)
	}
	return result, nil
}

// DeleteSheet implements schemastore.Store. The schema row goes with the
// sheet through the foreign key.
func (s *Store) DeleteSheet(ctx context.Context, owner, sheetID string) error {
	if !validID(sheetID) {
		return domain.ErrSheetNotFound
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM sheets WHERE id = $1 AND owner = $2`, sheetID, owner)
	if err != nil {
		return fmt.Errorf("DeleteSheet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSheetNotFound
	}
	return nil
}

// SaveSchema implements schemastore.Store.
func (s *Store) SaveSchema(ctx context.Context, schema domain.SheetSchema) (int, error) {
	if !validID(schema.SheetID) {
		return 0, domain.ErrSheetNotFound
	}
	cols, err := json.Marshal(nonNil(schema.Columns))
	if err != nil {
		return 0, fmt.Errorf("SaveSchema: encoding columns: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("SaveSchema: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var version int
	err = tx.QueryRow(ctx, `SELECT schema_version FROM sheets WHERE id = $1 FOR UPDATE`, schema.SheetID).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrSheetNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("SaveSchema: locking sheet: %w", err)
	}

	var existing []byte
	err = tx.QueryRow(ctx, `SELECT columns FROM sheet_schemas WHERE sheet_id = $1`, schema.SheetID).Scan(&existing)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		existing = nil
	case err != nil:
		return 0, fmt.Errorf("SaveSchema: reading current schema: %w", err)
	}

	if existing != nil {
		var current []domain.ColumnMapping
		if err := json.Unmarshal(existing, &current); err != nil {
			return 0, fmt.Errorf("SaveSchema: decoding current columns: %w", err)
		}
		if !domain.SameColumns(current, schema.Columns) {
			err = tx.QueryRow(ctx, `
				UPDATE sheets SET schema_version = schema_version + 1, updated_at = now()
				WHERE id = $1
				RETURNING schema_version`, schema.SheetID).Scan(&version)
			if err != nil {
				return 0, fmt.Errorf("SaveSchema: bumping version: %w", err)
			}
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sheet_schemas (sheet_id, columns, detected_template, has_mobile_id_column)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sheet_id) DO UPDATE SET
			columns = EXCLUDED.columns,
			detected_template = EXCLUDED.detected_template,
			has_mobile_id_column = EXCLUDED.has_mobile_id_column,
			updated_at = now()`,
		schema.SheetID, cols, string(schema.DetectedTemplate), schema.HasMobileIDColumn)
	if err != nil {
		return 0, fmt.Errorf("SaveSchema: writing schema: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("SaveSchema: commit: %w", err)
	}
	return version, nil
}

// GetSchema implements schemastore.Store.
func (s *Store) GetSchema(ctx context.Context, sheetID string) (*domain.SheetSchema, error) {
	if !validID(sheetID) {
		return nil, domain.ErrSchemaNotFound
	}

	var (
		schema   = domain.SheetSchema{SheetID: sheetID}
		cols     []byte
		template string
	)
	err := s.db.QueryRow(ctx, `
		SELECT columns, detected_template, has_mobile_id_column
		FROM sheet_schemas WHERE sheet_id = $1`, sheetID).
		Scan(&cols, &template, &schema.HasMobileIDColumn)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSchemaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetSchema: %w", err)
	}
	if err := json.Unmarshal(cols, &schema.Columns); err != nil {
		return nil, fmt.Errorf("GetSchema: decoding columns: %w", err)
	}
	schema.DetectedTemplate = domain.Template(template)
	return &schema, nil
}

// MarkSynced implements schemastore.Store.
func (s *Store) MarkSynced(ctx context.Context, sheetID string, at time.Time) error {
	if !validID(sheetID) {
		return domain.ErrSheetNotFound
	}
	tag, err := s.db.Exec(ctx, `UPDATE sheets SET last_synced_at = $2 WHERE id = $1`, sheetID, at.UTC())
	if err != nil {
		return fmt.Errorf("MarkSynced: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSheetNotFound
	}
	return nil
}

func scanSheet(row pgx.Row) (*domain.Sheet, error) {
	var (
		sheet     domain.Sheet
		sheetType string
	)
	if err := row.Scan(
		&sheet.ID,
		&sheet.Owner,
		&sheet.SpreadsheetRef,
		&sheet.SheetName,
		&sheetType,
		&sheet.LastSyncedAt,
		&sheet.SchemaVersion,
	); err != nil {
		return nil, err
	}
	sheet.SheetType = domain.SheetType(sheetType)
	return &sheet, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nonNil(cols []domain.ColumnMapping) []domain.ColumnMapping {
	if cols == nil {
		return []domain.ColumnMapping{}
	}
	return cols
}

// Ensure Store implements schemastore.Store.
var _ schemastore.Store = (*Store)(nil)
