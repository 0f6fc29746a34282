package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/sheetledger/internal/detect"
	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/dvloznov/sheetledger/internal/logger"
	"github.com/dvloznov/sheetledger/internal/rangestore"
)

// SheetDetail is a configured sheet with its schema.
type SheetDetail struct {
	Sheet  *domain.Sheet        `json:"sheet"`
	Schema *domain.SheetSchema `json:"schema"`
}

// DetectSheets scores the tabs of a spreadsheet given by id or URL.
func (s *Service) DetectSheets(ctx context.Context, spreadsheetRef string) (*detect.Detection, error) {
	id, err := rangestore.SpreadsheetIDFromRef(spreadsheetRef)
	if err != nil {
		return nil, fmt.Errorf("DetectSheets: %w", err)
	}
	return s.detector.DetectSheets(ctx, id)
}

// ConfigureSheet registers a tab for owner and stores its detected schema.
// Transaction sheets must carry Date, Amount and Description; otherwise a
// ValidationError is returned and nothing is stored.
func (s *Service) ConfigureSheet(ctx context.Context, owner, spreadsheetRef, sheetName, sheetType string) (*SheetDetail, error) {
	id, err := rangestore.SpreadsheetIDFromRef(spreadsheetRef)
	if err != nil {
		return nil, fmt.Errorf("ConfigureSheet: %w", err)
	}
	st, err := domain.ParseSheetType(sheetType)
	if err != nil {
		return nil, fmt.Errorf("ConfigureSheet: %w", err)
	}
	if strings.TrimSpace(sheetName) == "" {
		return nil, fmt.Errorf("ConfigureSheet: %w", &domain.ValidationError{Reason: "sheet name is required"})
	}

	schema, err := s.detectValidSchema(ctx, id, sheetName, st)
	if err != nil {
		return nil, fmt.Errorf("ConfigureSheet: %w", err)
	}

	sheet, err := s.schemas.UpsertSheet(ctx, domain.Sheet{
		Owner:          owner,
		SpreadsheetRef: id,
		SheetName:      sheetName,
		SheetType:      st,
	})
	if err != nil {
		return nil, fmt.Errorf("ConfigureSheet: storing sheet: %w", err)
	}

	schema.SheetID = sheet.ID
	if existing, err := s.schemas.GetSchema(ctx, sheet.ID); err == nil {
		carryRemaps(existing, &schema)
	}
	version, err := s.schemas.SaveSchema(ctx, schema)
	if err != nil {
		return nil, fmt.Errorf("ConfigureSheet: storing schema: %w", err)
	}
	sheet.SchemaVersion = version

	log := logger.FromContext(ctx)
	log.Info().
		Str("owner", owner).
		Str("sheet_id", sheet.ID).
		Str("sheet", sheetName).
		Str("sheet_type", string(st)).
		Str("template", string(schema.DetectedTemplate)).
		Int("columns", len(schema.Columns)).
		Msg("Configured sheet")

	return &SheetDetail{Sheet: sheet, Schema: &schema}, nil
}

// ListSheets returns every sheet owner has configured.
func (s *Service) ListSheets(ctx context.Context, owner string) ([]*domain.Sheet, error) {
	sheets, err := s.schemas.ListSheets(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("ListSheets: %w", err)
	}
	return sheets, nil
}

// GetSheet returns one sheet with its schema.
func (s *Service) GetSheet(ctx context.Context, owner, sheetID string) (*SheetDetail, error) {
	sheet, schema, err := s.loadSheet(ctx, owner, sheetID)
	if err != nil {
		return nil, fmt.Errorf("GetSheet: %w", err)
	}
	return &SheetDetail{Sheet: sheet, Schema: schema}, nil
}

// DeleteSheet forgets a sheet and its schema. The spreadsheet is untouched.
func (s *Service) DeleteSheet(ctx context.Context, owner, sheetID string) error {
	if err := s.schemas.DeleteSheet(ctx, owner, sheetID); err != nil {
		return fmt.Errorf("DeleteSheet: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("owner", owner).Str("sheet_id", sheetID).Msg("Deleted sheet")
	return nil
}

// RefreshSchema re-reads the header row of a configured sheet and stores
// the result. Columns that kept their header and position keep any
// semantic type the user assigned.
func (s *Service) RefreshSchema(ctx context.Context, owner, sheetID string) (*SheetDetail, error) {
	sheet, current, err := s.loadSheet(ctx, owner, sheetID)
	if err != nil {
		return nil, fmt.Errorf("RefreshSchema: %w", err)
	}

	schema, err := s.detectValidSchema(ctx, sheet.SpreadsheetRef, sheet.SheetName, sheet.SheetType)
	if err != nil {
		return nil, fmt.Errorf("RefreshSchema: %w", err)
	}
	schema.SheetID = sheet.ID
	carryRemaps(current, &schema)

	version, err := s.schemas.SaveSchema(ctx, schema)
	if err != nil {
		return nil, fmt.Errorf("RefreshSchema: storing schema: %w", err)
	}
	sheet.SchemaVersion = version
	return &SheetDetail{Sheet: sheet, Schema: &schema}, nil
}

// RemapColumns assigns semantic types to columns by header. The reserved
// mobile id column cannot be remapped, and no other column can take its type.
func (s *Service) RemapColumns(ctx context.Context, owner, sheetID string, mapping map[string]string) (*SheetDetail, error) {
	if len(mapping) == 0 {
		return nil, fmt.Errorf("RemapColumns: %w", &domain.ValidationError{Reason: "no columns to remap"})
	}
	sheet, schema, err := s.loadSheet(ctx, owner, sheetID)
	if err != nil {
		return nil, fmt.Errorf("RemapColumns: %w", err)
	}

	updated := *schema
	updated.Columns = domain.CloneColumns(schema.Columns)
	for header, raw := range mapping {
		semantic, ok := domain.ParseSemanticType(raw)
		if !ok {
			return nil, fmt.Errorf("RemapColumns: %w", &domain.ValidationError{Reason: fmt.Sprintf("unknown semantic type %q", raw)})
		}
		idx := columnIndex(updated.Columns, header)
		if idx < 0 {
			return nil, fmt.Errorf("RemapColumns: %w", &domain.ValidationError{Reason: fmt.Sprintf("no column with header %q", header)})
		}
		reserved := strings.EqualFold(updated.Columns[idx].Header, domain.MobileIDHeader)
		if reserved != (semantic == domain.SemanticMobileID) {
			return nil, fmt.Errorf("RemapColumns: %w", &domain.ValidationError{Reason: fmt.Sprintf("%s is reserved for the %s column", domain.SemanticMobileID, domain.MobileIDHeader)})
		}
		updated.Columns[idx].SemanticType = semantic
	}

	version, err := s.schemas.SaveSchema(ctx, updated)
	if err != nil {
		return nil, fmt.Errorf("RemapColumns: storing schema: %w", err)
	}
	sheet.SchemaVersion = version
	return &SheetDetail{Sheet: sheet, Schema: &updated}, nil
}

func (s *Service) detectValidSchema(ctx context.Context, spreadsheetID, sheetName string, st domain.SheetType) (domain.SheetSchema, error) {
	schema, err := s.detector.DetectSchema(ctx, spreadsheetID, sheetName)
	if err != nil {
		return domain.SheetSchema{}, err
	}
	if st == domain.SheetTypeTransactions {
		if err := detect.ValidateTransactionSheet(schema.Headers()); err != nil {
			return domain.SheetSchema{}, err
		}
	}
	return schema, nil
}

// carryRemaps copies semantic types from old onto columns of next that
// still have the same header at the same position.
func carryRemaps(old *domain.SheetSchema, next *domain.SheetSchema) {
	for i, col := range next.Columns {
		for _, prev := range old.Columns {
			if prev.Position == col.Position && prev.Header == col.Header {
				next.Columns[i].SemanticType = prev.SemanticType
				break
			}
		}
	}
}

// columnIndex finds the left-most column with header, ignoring case.
func columnIndex(cols []domain.ColumnMapping, header string) int {
	for i, c := range cols {
		if strings.EqualFold(c.Header, strings.TrimSpace(header)) {
			return i
		}
	}
	return -1
}
