package domain

import (
	"strings"
)

// MobileIDHeader is the reserved header of the column the app injects to
// give every row a stable identifier.
const MobileIDHeader = "__mobile_app_id"

// SemanticType is the meaning the app assigns to a column.
type SemanticType string

const (
	SemanticDate        SemanticType = "date"
	SemanticDescription SemanticType = "description"
	SemanticAmount      SemanticType = "amount"
	SemanticAccount     SemanticType = "account"
	SemanticCategory    SemanticType = "category"
	SemanticNote        SemanticType = "note"
	SemanticTags        SemanticType = "tags"
	SemanticMobileID    SemanticType = "mobileId"
	SemanticOther       SemanticType = "other"
)

// ParseSemanticType validates a user-supplied semantic type.
func ParseSemanticType(s string) (SemanticType, bool) {
	for _, t := range []SemanticType{
		SemanticDate, SemanticDescription, SemanticAmount, SemanticAccount,
		SemanticCategory, SemanticNote, SemanticTags, SemanticMobileID, SemanticOther,
	} {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, true
		}
	}
	return "", false
}

// SemanticTypeForHeader guesses a column's meaning from its header text.
func SemanticTypeForHeader(header string) SemanticType {
	switch strings.ToLower(strings.TrimSpace(header)) {
	case "date":
		return SemanticDate
	case "description":
		return SemanticDescription
	case "amount":
		return SemanticAmount
	case "account":
		return SemanticAccount
	case "category":
		return SemanticCategory
	case "note", "notes":
		return SemanticNote
	case "tags", "tag":
		return SemanticTags
	case MobileIDHeader:
		return SemanticMobileID
	default:
		return SemanticOther
	}
}

// Template is a coarse classification of a sheet's layout.
type Template string

const (
	TemplateFoundation Template = "foundation"
	TemplateBudget     Template = "budget"
	TemplateBasic      Template = "basic"
	TemplateCustom     Template = "custom"
)

// ColumnMapping ties one header cell to its position and meaning.
type ColumnMapping struct {
	Header       string       `json:"header"`
	Position     int          `json:"position"`
	Letter       string       `json:"letter"`
	SemanticType SemanticType `json:"semantic_type"`
}

// NewColumnMapping derives the letter and semantic type for a header at position.
func NewColumnMapping(header string, position int) ColumnMapping {
	return ColumnMapping{
		Header:       header,
		Position:     position,
		Letter:       ColumnLetter(position),
		SemanticType: SemanticTypeForHeader(header),
	}
}

// SheetSchema is the app's understanding of a sheet's column layout.
//
// Columns are ordered by position. Headers are kept verbatim, duplicates
// included; every lookup by header resolves to the left-most match.
type SheetSchema struct {
	SheetID           string          `json:"sheet_id"`
	Columns           []ColumnMapping `json:"columns"`
	DetectedTemplate  Template        `json:"detected_template"`
	HasMobileIDColumn bool            `json:"has_mobile_id_column"`
}

// Column returns the first column whose header equals header, ignoring case.
func (s SheetSchema) Column(header string) (ColumnMapping, bool) {
	for _, c := range s.Columns {
		if strings.EqualFold(c.Header, header) {
			return c, true
		}
	}
	return ColumnMapping{}, false
}

// ColumnsOfType returns every column carrying the given semantic type.
func (s SheetSchema) ColumnsOfType(t SemanticType) []ColumnMapping {
	var out []ColumnMapping
	for _, c := range s.Columns {
		if c.SemanticType == t {
			out = append(out, c)
		}
	}
	return out
}

// MobileIDColumn returns the reserved identifier column, if provisioned.
func (s SheetSchema) MobileIDColumn() (ColumnMapping, bool) {
	return s.Column(MobileIDHeader)
}

// Headers lists the header text of every column in position order.
func (s SheetSchema) Headers() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Header
	}
	return out
}

// NextPosition is the first position to the right of every mapped column.
func (s SheetSchema) NextPosition() int {
	next := 0
	for _, c := range s.Columns {
		if c.Position+1 > next {
			next = c.Position + 1
		}
	}
	return next
}

// LastLetter is the letter of the right-most mapped column, or "" when empty.
func (s SheetSchema) LastLetter() string {
	if len(s.Columns) == 0 {
		return ""
	}
	return ColumnLetter(s.NextPosition() - 1)
}

// SyncMobileIDFlag recomputes HasMobileIDColumn from the column list.
func (s *SheetSchema) SyncMobileIDFlag() {
	_, ok := s.MobileIDColumn()
	s.HasMobileIDColumn = ok
}

// SameColumns reports whether two column lists are identical, order included.
func SameColumns(a, b []ColumnMapping) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CloneColumns returns a copy that does not share the backing array.
func CloneColumns(cols []ColumnMapping) []ColumnMapping {
	if cols == nil {
		return nil
	}
	out := make([]ColumnMapping, len(cols))
	copy(out, cols)
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
