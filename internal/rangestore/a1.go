package rangestore

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dvloznov/sheetledger/internal/domain"
)

var (
	plainSheetName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	cellLike       = regexp.MustCompile(`(?i)^[a-z]{1,3}[0-9]+$`)
	spreadsheetURL = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)
	spreadsheetID  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// minScanLetter is the right edge of a whole-sheet scan unless the schema is wider.
const minScanLetter = "Z"

// QuoteSheet renders a sheet name for use in an A1 expression.
func QuoteSheet(name string) string {
	if plainSheetName.MatchString(name) && !cellLike.MatchString(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// CellRange addresses a single cell, e.g. Transactions!C5.
func CellRange(sheet, letter string, row int) string {
	return fmt.Sprintf("%s!%s%d", QuoteSheet(sheet), letter, row)
}

// HeaderRange addresses the first row of a sheet.
func HeaderRange(sheet string) string {
	return QuoteSheet(sheet) + "!1:1"
}

// ColumnRange addresses an entire column.
func ColumnRange(sheet, letter string) string {
	return fmt.Sprintf("%s!%s:%s", QuoteSheet(sheet), letter, letter)
}

// ScanRange addresses every column from A to at least Z, widened to
// lastLetter when the sheet extends past Z.
func ScanRange(sheet, lastLetter string) string {
	return fmt.Sprintf("%s!A:%s", QuoteSheet(sheet), scanEnd(lastLetter))
}

// RowWindowRange addresses rows fromRow..toRow with the same columns as
// ScanRange, so a window read compares cell for cell with a full scan.
func RowWindowRange(sheet, lastLetter string, fromRow, toRow int) string {
	end := scanEnd(lastLetter)
	return fmt.Sprintf("%s!A%d:%s%d", QuoteSheet(sheet), fromRow, end, toRow)
}

func scanEnd(lastLetter string) string {
	if lastLetter != "" {
		last, err := domain.ColumnPosition(lastLetter)
		if err == nil && last > 25 {
			return domain.ColumnLetter(last)
		}
	}
	return minScanLetter
}

// Range is a parsed A1 expression. Columns are 0-indexed and rows 1-indexed.
// ToCol < 0 and ToRow == 0 mean the range is unbounded in that direction.
type Range struct {
	Sheet   string
	FromCol int
	ToCol   int
	FromRow int
	ToRow   int
}

// ParseRange parses the subset of A1 notation produced by this package:
// Sheet!B7, Sheet!A:Z, Sheet!1:1, Sheet!C:C and Sheet!A2:D9.
func ParseRange(expr string) (Range, error) {
	sheet, ref, err := splitSheet(expr)
	if err != nil {
		return Range{}, fmt.Errorf("ParseRange: %w", err)
	}

	from, to, found := strings.Cut(ref, ":")
	start, err := parseEndpoint(from)
	if err != nil {
		return Range{}, fmt.Errorf("ParseRange: %q: %w", expr, err)
	}
	end := start
	if found {
		if end, err = parseEndpoint(to); err != nil {
			return Range{}, fmt.Errorf("ParseRange: %q: %w", expr, err)
		}
	}

	r := Range{Sheet: sheet, FromCol: 0, ToCol: -1, FromRow: 1, ToRow: 0}
	if start.col >= 0 {
		r.FromCol = start.col
	}
	if end.col >= 0 {
		r.ToCol = end.col
	}
	if start.row > 0 {
		r.FromRow = start.row
	}
	if end.row > 0 {
		r.ToRow = end.row
	}
	if r.ToCol >= 0 && r.ToCol < r.FromCol || r.ToRow > 0 && r.ToRow < r.FromRow {
		return Range{}, fmt.Errorf("ParseRange: %q: inverted range", expr)
	}
	return r, nil
}

type endpoint struct {
	col int // -1 when absent
	row int // 0 when absent
}

func parseEndpoint(s string) (endpoint, error) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && (s[i] >= 'A' && s[i] <= 'Z' || s[i] >= 'a' && s[i] <= 'z') {
		i++
	}
	ep := endpoint{col: -1}
	if i > 0 {
		col, err := domain.ColumnPosition(s[:i])
		if err != nil {
			return ep, err
		}
		ep.col = col
	}
	if i < len(s) {
		row, err := strconv.Atoi(s[i:])
		if err != nil || row < 1 {
			return ep, fmt.Errorf("invalid row %q", s[i:])
		}
		ep.row = row
	}
	if ep.col < 0 && ep.row == 0 {
		return ep, fmt.Errorf("empty reference")
	}
	return ep, nil
}

func splitSheet(expr string) (string, string, error) {
	if strings.HasPrefix(expr, "'") {
		var b strings.Builder
		for i := 1; i < len(expr); i++ {
			if expr[i] != '\'' {
				b.WriteByte(expr[i])
				continue
			}
			if i+1 < len(expr) && expr[i+1] == '\'' {
				b.WriteByte('\'')
				i++
				continue
			}
			if i+1 >= len(expr) || expr[i+1] != '!' {
				return "", "", fmt.Errorf("missing ! after quoted sheet name in %q", expr)
			}
			return b.String(), expr[i+2:], nil
		}
		return "", "", fmt.Errorf("unterminated sheet name in %q", expr)
	}
	sheet, ref, ok := strings.Cut(expr, "!")
	if !ok || sheet == "" {
		return "", "", fmt.Errorf("missing sheet name in %q", expr)
	}
	return sheet, ref, nil
}

// SpreadsheetIDFromRef accepts either a bare spreadsheet id or a Google
// Sheets URL and returns the id.
func SpreadsheetIDFromRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if m := spreadsheetURL.FindStringSubmatch(ref); m != nil {
		return m[1], nil
	}
	if spreadsheetID.MatchString(ref) {
		return ref, nil
	}
	return "", &domain.ValidationError{Reason: fmt.Sprintf("not a spreadsheet id or URL: %q", ref)}
}

// Extract cuts the cells covered by r out of a sheet's full contents, with
// rows[0] being sheet row 1. Trailing empty cells and rows are dropped the
// way the Sheets API drops them.
func (r Range) Extract(rows Grid) Grid {
	last := len(rows)
	if r.ToRow > 0 && r.ToRow < last {
		last = r.ToRow
	}
	var out Grid
	for i := r.FromRow - 1; i < last; i++ {
		row := rows[i]
		end := len(row)
		if r.ToCol >= 0 && r.ToCol+1 < end {
			end = r.ToCol + 1
		}
		cells := []string{}
		if r.FromCol < end {
			cells = append(cells, row[r.FromCol:end]...)
		}
		out = append(out, TrimRow(cells))
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// TrimRow drops trailing empty cells.
func TrimRow(row []string) []string {
	end := len(row)
	for end > 0 && row[end-1] == "" {
		end--
	}
	return row[:end:end]
}

// NextFreeRow returns the 0-indexed row just below the last non-empty row.
func NextFreeRow(rows Grid) int {
	next := 0
	for i, row := range rows {
		if len(TrimRow(row)) > 0 {
			next = i + 1
		}
	}
	return next
}

// ColumnSpanRange addresses rows fromRow..toRow of a single column.
func ColumnSpanRange(sheet, letter string, fromRow, toRow int) string {
	return fmt.Sprintf("%s!%s%d:%s%d", QuoteSheet(sheet), letter, fromRow, letter, toRow)
}

// RowSpanRange addresses columns A..lastLetter of a sheet, for appends.
func RowSpanRange(sheet, lastLetter string) string {
	if lastLetter == "" {
		lastLetter = "A"
	}
	return fmt.Sprintf("%s!A:%s", QuoteSheet(sheet), lastLetter)
}
