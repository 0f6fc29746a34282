package domain

import (
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestColumnLetter(t *testing.T) {
	tests := []struct {
		position int
		want     string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{51, "AZ"},
		{52, "BA"},
		{701, "ZZ"},
		{702, "AAA"},
		{-1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := ColumnLetter(tt.position); got != tt.want {
				t.Errorf("ColumnLetter(%d) = %q, want %q", tt.position, got, tt.want)
			}
		})
	}
}

func TestColumnLetter_RoundTrip(t *testing.T) {
	for p := 0; p < 5000; p++ {
		letter := ColumnLetter(p)
		got, err := ColumnPosition(letter)
		if err != nil {
			t.Fatalf("ColumnPosition(%q) failed: %v", letter, err)
		}
		if got != p {
			t.Fatalf("ColumnPosition(ColumnLetter(%d)) = %d", p, got)
		}
	}
}

func TestColumnLetter_MatchesExcelize(t *testing.T) {
	for p := 0; p < 2000; p++ {
		want, err := excelize.ColumnNumberToName(p + 1)
		if err != nil {
			t.Fatalf("excelize.ColumnNumberToName(%d) failed: %v", p+1, err)
		}
		if got := ColumnLetter(p); got != want {
			t.Fatalf("ColumnLetter(%d) = %q, excelize says %q", p, got, want)
		}
	}
}

func TestColumnPosition_Invalid(t *testing.T) {
	for _, in := range []string{"", "  ", "A1", "-", "Ä"} {
		if _, err := ColumnPosition(in); err == nil {
			t.Errorf("ColumnPosition(%q) expected error", in)
		}
	}
}

func TestColumnPosition_CaseInsensitive(t *testing.T) {
	got, err := ColumnPosition("ab")
	if err != nil {
		t.Fatalf("ColumnPosition failed: %v", err)
	}
	if got != 27 {
		t.Errorf("ColumnPosition(\"ab\") = %d, want 27", got)
	}
}
