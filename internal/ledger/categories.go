package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/dvloznov/sheetledger/internal/rangestore"
)

// DefaultCategories is served to owners without a categories sheet.
var DefaultCategories = []string{
	"Auto & Transport",
	"Bills & Utilities",
	"Business Services",
	"Education",
	"Entertainment",
	"Fees & Charges",
	"Food & Dining",
	"Gifts & Donations",
	"Health & Fitness",
	"Home",
	"Income",
	"Investments",
	"Kids",
	"Personal Care",
	"Pets",
	"Shopping",
	"Taxes",
	"Transfer",
	"Travel",
	"Uncategorized",
}

// ListCategories returns the Category column of the owner's first
// categories sheet, deduplicated in sheet order, or DefaultCategories when
// there is none or it is empty.
func (s *Service) ListCategories(ctx context.Context, owner string) ([]string, error) {
	sheets, err := s.schemas.ListSheets(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: %w", err)
	}

	for _, sheet := range sheets {
		if sheet.SheetType != domain.SheetTypeCategories {
			continue
		}
		schema, err := s.schemas.GetSchema(ctx, sheet.ID)
		if errors.Is(err, domain.ErrSchemaNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategories: %w", err)
		}
		col, ok := categoryColumn(*schema)
		if !ok {
			continue
		}

		rng := rangestore.ColumnRange(sheet.SheetName, col.Letter)
		grid, err := s.cells.GetValues(ctx, sheet.SpreadsheetRef, rng)
		if err != nil {
			return nil, fmt.Errorf("ListCategories: %w", rangestore.Wrap("GetValues", rng, err))
		}
		if names := distinctCells(grid); len(names) > 0 {
			return names, nil
		}
	}

	out := make([]string, len(DefaultCategories))
	copy(out, DefaultCategories)
	return out, nil
}

func categoryColumn(schema domain.SheetSchema) (domain.ColumnMapping, bool) {
	if col, ok := schema.Column("Category"); ok {
		return col, true
	}
	if cols := schema.ColumnsOfType(domain.SemanticCategory); len(cols) > 0 {
		return cols[0], true
	}
	return domain.ColumnMapping{}, false
}

// distinctCells returns the non-empty first cells below the header, once each.
func distinctCells(grid rangestore.Grid) []string {
	seen := map[string]bool{}
	var out []string
	for i := 1; i < len(grid); i++ {
		v := strings.TrimSpace(grid.Cell(i, 0))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
