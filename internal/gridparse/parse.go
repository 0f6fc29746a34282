// Package gridparse turns raw sheet grids into transactions and applies the
// list filters and pagination. Everything here is pure.
package gridparse

import (
	"regexp"
	"strings"

	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/dvloznov/sheetledger/internal/rangestore"
	"github.com/shopspring/decimal"
)

// field ties a transaction attribute to its default header and semantic type.
type field struct {
	header   string
	semantic domain.SemanticType
}

var (
	fieldDate        = field{"Date", domain.SemanticDate}
	fieldDescription = field{"Description", domain.SemanticDescription}
	fieldAmount      = field{"Amount", domain.SemanticAmount}
	fieldAccount     = field{"Account", domain.SemanticAccount}
	fieldCategory    = field{"Category", domain.SemanticCategory}
	fieldNote        = field{"Note", domain.SemanticNote}
	fieldTags        = field{"Tags", domain.SemanticTags}
	fieldMobileID    = field{domain.MobileIDHeader, domain.SemanticMobileID}
)

var (
	// amountNoise is stripped from an amount cell before parsing.
	amountNoise = regexp.MustCompile(`[\p{Sc}\s,]`)
	// amountPattern is what must remain: digits with an optional sign in
	// front or a trailing minus.
	amountPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)-?$`)
)

// Parse converts grid into transactions. grid[0] is the header row. Rows
// whose description and amount cells are both empty are skipped.
func Parse(grid rangestore.Grid, schema domain.SheetSchema) []domain.Transaction {
	if len(grid) == 0 {
		return []domain.Transaction{}
	}
	cols := newColumnIndex(grid[0], schema)

	out := make([]domain.Transaction, 0, len(grid)-1)
	for i := 1; i < len(grid); i++ {
		row := grid[i]
		cell := func(f field) string {
			pos := cols.lookup(f)
			if pos < 0 || pos >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[pos])
		}

		description := cell(fieldDescription)
		rawAmount := cell(fieldAmount)
		if description == "" && rawAmount == "" {
			continue
		}

		id := cell(fieldMobileID)
		if id == "" {
			id = domain.RowID(i)
		}

		out = append(out, domain.Transaction{
			RowNumber:   i + 1,
			ID:          id,
			Date:        cell(fieldDate),
			Description: description,
			Amount:      ParseAmount(rawAmount),
			Account:     cell(fieldAccount),
			Category:    cell(fieldCategory),
			Note:        cell(fieldNote),
			Tags:        cell(fieldTags),
		})
	}
	return out
}

// ParseAmount reads a money cell as rendered by a spreadsheet: currency
// symbols, thousands separators and accounting parentheses are accepted.
// Anything unreadable is zero.
func ParseAmount(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero
	}
	negative := false
	if open := strings.Index(s, "("); open >= 0 && strings.HasSuffix(s, ")") {
		negative = true
		s = s[:open] + s[open+1:len(s)-1]
	}
	s = amountNoise.ReplaceAllString(s, "")
	if !amountPattern.MatchString(s) {
		return decimal.Zero
	}
	if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		d = d.Neg()
	}
	return d
}

// columnIndex locates fields in one grid: by header text first, then by the
// header of a column the schema assigns the field's semantic type to, which
// covers user remaps. Positions always come from the grid's own header row.
type columnIndex struct {
	headers map[string]int
	schema  domain.SheetSchema
}

func newColumnIndex(headerRow []string, schema domain.SheetSchema) columnIndex {
	idx := columnIndex{headers: make(map[string]int, len(headerRow)), schema: schema}
	for i, h := range headerRow {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := idx.headers[key]; !seen && key != "" {
			idx.headers[key] = i
		}
	}
	return idx
}

func (c columnIndex) lookup(f field) int {
	if pos, ok := c.headers[strings.ToLower(f.header)]; ok {
		return pos
	}
	for _, col := range c.schema.ColumnsOfType(f.semantic) {
		if pos, ok := c.headers[strings.ToLower(strings.TrimSpace(col.Header))]; ok {
			return pos
		}
	}
	return -1
}
