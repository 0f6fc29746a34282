package detect

import (
	"strings"

	"github.com/dvloznov/sheetledger/internal/domain"
)

// Header names and sheet name fragments that suggest transaction data.
var (
	signatureColumns = []string{"Date", "Description", "Amount", "Account", "Category"}
	namePatterns     = []string{"Transactions", "Categories", "Balances", "Register", "Tiller"}
	requiredColumns  = []string{"Date", "Amount", "Description"}
)

const (
	nameScore      = 30
	signatureScore = 70
)

// Confidence scores how likely a sheet is to hold transaction data, 0 to 100.
// A recognizable name is worth 30; the remaining 70 are split across the
// signature columns found in the header row.
func Confidence(sheetName string, headers []string) int {
	score := 0
	lower := strings.ToLower(sheetName)
	for _, p := range namePatterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			score += nameScore
			break
		}
	}
	return score + countSignatureColumns(headers)*signatureScore/len(signatureColumns)
}

// InferSheetType guesses the sheet type from its name, then from its headers.
func InferSheetType(sheetName string, headers []string) domain.SheetType {
	lower := strings.ToLower(sheetName)
	switch {
	case strings.Contains(lower, "transaction"):
		return domain.SheetTypeTransactions
	case strings.Contains(lower, "categor"):
		return domain.SheetTypeCategories
	case strings.Contains(lower, "balance"):
		return domain.SheetTypeBalances
	case strings.Contains(lower, "budget"):
		return domain.SheetTypeBudget
	}

	set := headerSet(headers)
	switch {
	case set["date"] && set["amount"]:
		return domain.SheetTypeTransactions
	case set["category"] && set["group"]:
		return domain.SheetTypeCategories
	case set["account"] && set["balance"]:
		return domain.SheetTypeBalances
	}
	return domain.SheetTypeUnknown
}

// ClassifyTemplate recognizes the common ledger templates by their headers.
func ClassifyTemplate(headers []string) domain.Template {
	set := headerSet(headers)
	switch {
	case set["month"] || set["week"]:
		return domain.TemplateFoundation
	case set["budget"] || set["available"]:
		return domain.TemplateBudget
	case countSignatureColumns(headers) >= 3:
		return domain.TemplateBasic
	}
	return domain.TemplateCustom
}

// ValidateTransactionSheet checks that a header row carries the columns every
// transaction sheet needs. The returned ValidationError names the missing ones.
func ValidateTransactionSheet(headers []string) error {
	set := headerSet(headers)
	var missing []string
	for _, col := range requiredColumns {
		if !set[strings.ToLower(col)] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &domain.ValidationError{Missing: missing}
	}
	return nil
}

// BuildSchema maps every non-blank header cell to its column.
func BuildSchema(sheetID string, headers []string) domain.SheetSchema {
	schema := domain.SheetSchema{
		SheetID:          sheetID,
		DetectedTemplate: ClassifyTemplate(headers),
	}
	for i, h := range headers {
		if strings.TrimSpace(h) == "" {
			continue
		}
		schema.Columns = append(schema.Columns, domain.NewColumnMapping(h, i))
	}
	schema.SyncMobileIDFlag()
	return schema
}

func countSignatureColumns(headers []string) int {
	set := headerSet(headers)
	n := 0
	for _, col := range signatureColumns {
		if set[strings.ToLower(col)] {
			n++
		}
	}
	return n
}

func headerSet(headers []string) map[string]bool {
	set := make(map[string]bool, len(headers))
	for _, h := range headers {
		set[strings.ToLower(strings.TrimSpace(h))] = true
	}
	return set
}
