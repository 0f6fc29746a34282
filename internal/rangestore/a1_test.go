package rangestore

import (
	"errors"
	"testing"

	"github.com/dvloznov/sheetledger/internal/domain"
)

func TestQuoteSheet(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Transactions", "Transactions"},
		{"Sheet_1", "Sheet_1"},
		{"My Budget", "'My Budget'"},
		{"Bob's Ledger", "'Bob''s Ledger'"},
		{"AB12", "'AB12'"},
		{"2024", "'2024'"},
	}
	for _, tt := range tests {
		if got := QuoteSheet(tt.name); got != tt.want {
			t.Errorf("QuoteSheet(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestRangeBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"cell", CellRange("Transactions", "C", 5), "Transactions!C5"},
		{"header", HeaderRange("Tiller Transactions"), "'Tiller Transactions'!1:1"},
		{"column", ColumnRange("Transactions", "K"), "Transactions!K:K"},
		{"scan default", ScanRange("Transactions", ""), "Transactions!A:Z"},
		{"scan narrow schema", ScanRange("Transactions", "F"), "Transactions!A:Z"},
		{"scan wide schema", ScanRange("Transactions", "AC"), "Transactions!A:AC"},
		{"column span", ColumnSpanRange("My Budget", "K", 2, 40), "'My Budget'!K2:K40"},
		{"row span", RowSpanRange("Transactions", "F"), "Transactions!A:F"},
		{"row window", RowWindowRange("Transactions", "F", 6, 9), "Transactions!A6:Z9"},
		{"row window wide", RowWindowRange("My Budget", "AC", 2, 2), "'My Budget'!A2:AC2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		expr string
		want Range
	}{
		{"Transactions!C5", Range{Sheet: "Transactions", FromCol: 2, ToCol: 2, FromRow: 5, ToRow: 5}},
		{"Transactions!A:Z", Range{Sheet: "Transactions", FromCol: 0, ToCol: 25, FromRow: 1, ToRow: 0}},
		{"Transactions!1:1", Range{Sheet: "Transactions", FromCol: 0, ToCol: -1, FromRow: 1, ToRow: 1}},
		{"'Bob''s Ledger'!K:K", Range{Sheet: "Bob's Ledger", FromCol: 10, ToCol: 10, FromRow: 1, ToRow: 0}},
		{"'A!B'!B2:D9", Range{Sheet: "A!B", FromCol: 1, ToCol: 3, FromRow: 2, ToRow: 9}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseRange(tt.expr)
			if err != nil {
				t.Fatalf("ParseRange failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseRange(%q) = %+v, want %+v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestParseRange_Invalid(t *testing.T) {
	for _, expr := range []string{"A1", "!A1", "Sheet!", "'Open!A1", "Sheet!D9:B2", "Sheet!A0"} {
		if _, err := ParseRange(expr); err == nil {
			t.Errorf("ParseRange(%q) expected error", expr)
		}
	}
}

func TestParseRange_RoundTripsBuilders(t *testing.T) {
	for _, expr := range []string{
		CellRange("My Budget", "AA", 12),
		HeaderRange("Bob's Ledger"),
		ColumnRange("Transactions", "B"),
		ScanRange("Transactions", "AC"),
		RowWindowRange("Transactions", "", 3, 7),
	} {
		if _, err := ParseRange(expr); err != nil {
			t.Errorf("ParseRange(%q) failed: %v", expr, err)
		}
	}
}

func TestSpreadsheetIDFromRef(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"1AbC_d-9", "1AbC_d-9"},
		{"https://docs.google.com/spreadsheets/d/1AbC_d-9/edit#gid=0", "1AbC_d-9"},
		{"  1xyz  ", "1xyz"},
	}
	for _, tt := range tests {
		got, err := SpreadsheetIDFromRef(tt.ref)
		if err != nil {
			t.Fatalf("SpreadsheetIDFromRef(%q) failed: %v", tt.ref, err)
		}
		if got != tt.want {
			t.Errorf("SpreadsheetIDFromRef(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}

	_, err := SpreadsheetIDFromRef("https://example.com/not a sheet")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestGridCell(t *testing.T) {
	g := Grid{{"a", "b"}, {"c"}}
	if g.Cell(0, 1) != "b" || g.Cell(1, 1) != "" || g.Cell(5, 0) != "" || g.Cell(-1, 0) != "" {
		t.Error("unexpected Grid.Cell results")
	}
}

func TestWrap(t *testing.T) {
	if Wrap("GetValues", "S!1:1", nil) != nil {
		t.Error("expected nil for nil error")
	}

	base := errors.New("503")
	err := Wrap("GetValues", "S!1:1", base)
	var te *domain.TransportError
	if !errors.As(err, &te) || te.Op != "GetValues" || te.Range != "S!1:1" {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if again := Wrap("UpdateValues", "S!A2", err); again != err {
		t.Error("expected an existing TransportError to pass through")
	}
}
