package writer

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/dvloznov/sheetledger/internal/detect"
	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/dvloznov/sheetledger/internal/identity"
	"github.com/dvloznov/sheetledger/internal/rangestore"
	"github.com/dvloznov/sheetledger/internal/rangestore/memory"
)

// fakeResolver returns a fixed row or error.
type fakeResolver struct {
	row   int
	err   error
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, spreadsheetID, sheetName string, schema domain.SheetSchema, txID string) (int, error) {
	f.calls++
	return f.row, f.err
}

var headers = []string{"Date", "Description", "Amount", "Category", "Note", "Tags", "Account", domain.MobileIDHeader}

func setup(t *testing.T) (*memory.Store, domain.Sheet, domain.SheetSchema) {
	t.Helper()
	store := memory.New()
	store.AddSheet("book", "Transactions", rangestore.Grid{
		headers,
		{"2024-01-01", "Coffee", "-4.50", "", "", "", "Checking", "id-1"},
		{"2024-01-02", "Salary", "2000", "", "", "", "Checking", "id-2"},
	})
	sheet := domain.Sheet{ID: "sheet-1", SpreadsheetRef: "book", SheetName: "Transactions", SheetType: domain.SheetTypeTransactions}
	return store, sheet, detect.BuildSchema(sheet.ID, headers)
}

func TestAdapter_PartialWrite(t *testing.T) {
	store, sheet, schema := setup(t)
	a := NewAdapter(store, identity.NewResolver(store))

	report, err := a.Update(context.Background(), sheet, schema, "id-2", map[string]string{
		"Amount":   "0",
		"Category": "Income",
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if report.Row != 3 {
		t.Errorf("expected row 3, got %d", report.Row)
	}
	if !reflect.DeepEqual(report.Written, map[string]string{"Category": "Income"}) {
		t.Errorf("unexpected written fields %v", report.Written)
	}
	var uw *domain.UnwritableColumnError
	if !errors.As(report.Failures["Amount"], &uw) || uw.Header != "Amount" {
		t.Errorf("expected UnwritableColumnError for Amount, got %v", report.Failures["Amount"])
	}
	if report.Complete() {
		t.Error("expected report to be incomplete")
	}

	rows := store.Rows("book", "Transactions")
	if rows[2][3] != "Income" || rows[2][2] != "2000" {
		t.Errorf("unexpected row after write: %v", rows[2])
	}
	updates := store.CallsOf("UpdateValues")
	if len(updates) != 1 || updates[0].Range != "Transactions!D3" {
		t.Errorf("expected a single write to D3, got %v", updates)
	}
}

func TestAdapter_SynonymsAndOrder(t *testing.T) {
	store, sheet, schema := setup(t)
	a := NewAdapter(store, &fakeResolver{row: 2})

	report, err := a.Update(context.Background(), sheet, schema, "id-1", map[string]string{
		"tags":       "coffee, work",
		"notes":      "with Sam",
		"categories": "Food & Dining",
		"memo":       "ignored",
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(report.Written) != 3 {
		t.Errorf("expected 3 writes, got %v (failures %v)", report.Written, report.Failures)
	}
	if !reflect.DeepEqual(report.Skipped, []string{"memo"}) {
		t.Errorf("expected memo to be skipped, got %v", report.Skipped)
	}

	var ranges []string
	for _, c := range store.CallsOf("UpdateValues") {
		ranges = append(ranges, c.Range)
	}
	want := []string{"Transactions!D2", "Transactions!E2", "Transactions!F2"}
	if !reflect.DeepEqual(ranges, want) {
		t.Errorf("expected writes in field-name order %v, got %v", want, ranges)
	}
}

func TestAdapter_FormulaProtection(t *testing.T) {
	store, sheet, schema := setup(t)

	t.Run("header row", func(t *testing.T) {
		report, err := NewAdapter(store, &fakeResolver{row: 1}).Update(context.Background(), sheet, schema, "x", map[string]string{"Category": "Food"})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		var fp *domain.FormulaProtectionError
		if !errors.As(report.Failures["Category"], &fp) || fp.Cell != "Transactions!D1" {
			t.Errorf("expected FormulaProtectionError on D1, got %v", report.Failures["Category"])
		}
	})

	t.Run("non transaction sheet", func(t *testing.T) {
		budget := sheet
		budget.SheetType = domain.SheetTypeBudget
		report, err := NewAdapter(store, &fakeResolver{row: 5}).Update(context.Background(), budget, schema, "x", map[string]string{"Note": "n"})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		var fp *domain.FormulaProtectionError
		if !errors.As(report.Failures["Note"], &fp) {
			t.Errorf("expected FormulaProtectionError, got %v", report.Failures["Note"])
		}
	})

	if len(store.CallsOf("UpdateValues")) != 0 {
		t.Errorf("expected no writes, got %v", store.CallsOf("UpdateValues"))
	}
}

func TestAdapter_ResolveFailureIsFatal(t *testing.T) {
	store, sheet, schema := setup(t)
	resolver := &fakeResolver{err: &domain.IdentityNotFoundError{TransactionID: "nope"}}

	_, err := NewAdapter(store, resolver).Update(context.Background(), sheet, schema, "nope", map[string]string{"Category": "Food"})
	var nf *domain.IdentityNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected IdentityNotFoundError, got %v", err)
	}
	if resolver.calls != 1 || len(store.CallsOf("UpdateValues")) != 0 {
		t.Errorf("expected one resolve and no writes")
	}
}

func TestAdapter_PositionalIDWithoutData(t *testing.T) {
	store, sheet, schema := setup(t)
	rows := store.Rows("book", "Transactions")
	rows = append(rows, []string{}, []string{"2024-01-04", "Rent", "-900"})
	store.AddSheet("book", "Transactions", rows)
	schema = detect.BuildSchema(sheet.ID, []string{"Date", "Description", "Amount", "Category", "Note", "Tags", "Account"})
	a := NewAdapter(store, identity.NewResolver(store))

	tests := []struct {
		name  string
		txID  string
		found bool
		row   int
	}{
		{"data row", "row_2", true, 3},
		{"blank row inside the ledger", "row_3", false, 0},
		{"row after the ledger", "row_4", true, 5},
		{"past the last row", "row_9", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(store.CallsOf("UpdateValues"))
			report, err := a.Update(context.Background(), sheet, schema, tt.txID, map[string]string{"Note": "checked"})
			if !tt.found {
				var nf *domain.IdentityNotFoundError
				if !errors.As(err, &nf) {
					t.Fatalf("expected IdentityNotFoundError, got %v", err)
				}
				if len(store.CallsOf("UpdateValues")) != before {
					t.Errorf("expected no writes for %s", tt.txID)
				}
				return
			}
			if err != nil {
				t.Fatalf("Update failed: %v", err)
			}
			if report.Row != tt.row || report.Written["Note"] != "checked" {
				t.Errorf("unexpected report %+v", report)
			}
		})
	}

	got := store.Rows("book", "Transactions")
	if len(got) != 5 {
		t.Errorf("expected the sheet to keep 5 rows, got %d", len(got))
	}
}

func TestAdapter_TransportFailureIsPerField(t *testing.T) {
	store, sheet, schema := setup(t)
	store.Fail("UpdateValues", "Transactions!D2", errors.New("quota"))

	report, err := NewAdapter(store, &fakeResolver{row: 2}).Update(context.Background(), sheet, schema, "id-1", map[string]string{
		"Category": "Food",
		"Note":     "lunch",
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	var te *domain.TransportError
	if !errors.As(report.Failures["Category"], &te) {
		t.Errorf("expected TransportError for Category, got %v", report.Failures["Category"])
	}
	if report.Written["Note"] != "lunch" {
		t.Errorf("expected Note to be written, got %v", report.Written)
	}
}

func TestFormulaRisk(t *testing.T) {
	tests := []struct {
		sheetType domain.SheetType
		row       int
		want      bool
	}{
		{domain.SheetTypeTransactions, 2, false},
		{domain.SheetTypeTransactions, 500, false},
		{domain.SheetTypeTransactions, 1, true},
		{domain.SheetTypeTransactions, 0, true},
		{domain.SheetTypeCategories, 2, true},
		{domain.SheetTypeBalances, 10, true},
		{domain.SheetTypeBudget, 10, true},
	}
	for _, tt := range tests {
		if got := FormulaRisk(tt.sheetType, tt.row); got != tt.want {
			t.Errorf("FormulaRisk(%s, %d) = %v, want %v", tt.sheetType, tt.row, got, tt.want)
		}
	}
}

func TestReport_MarshalJSON(t *testing.T) {
	r := &Report{
		TransactionID: "id-1",
		Row:           2,
		Written:       map[string]string{"Category": "Food"},
		Failures:      map[string]error{"Amount": &domain.UnwritableColumnError{Header: "Amount"}},
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(b), `"Amount":"cannot write to column: Amount"`) {
		t.Errorf("unexpected JSON %s", b)
	}
}
