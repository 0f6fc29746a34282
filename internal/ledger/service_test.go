package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/dvloznov/sheetledger/internal/audit"
	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/dvloznov/sheetledger/internal/gridparse"
	"github.com/dvloznov/sheetledger/internal/rangestore"
	"github.com/dvloznov/sheetledger/internal/rangestore/memory"
	"github.com/dvloznov/sheetledger/internal/schemastore/inmemory"
)

// fakeRecorder keeps every audit entry it is given.
type fakeRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (f *fakeRecorder) Record(ctx context.Context, entries []audit.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeRecorder) byOutcome(o audit.Outcome) []audit.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []audit.Entry
	for _, e := range f.entries {
		if e.Outcome == o {
			out = append(out, e)
		}
	}
	return out
}

const owner = "user-1"

func newTestService(t *testing.T, rows rangestore.Grid) (*Service, *memory.Store, *fakeRecorder) {
	t.Helper()
	cells := memory.New()
	cells.AddSheet("book", "Transactions", rows)
	rec := &fakeRecorder{}
	return NewService(cells, inmemory.NewStore(), rec, Options{}), cells, rec
}

func configure(t *testing.T, svc *Service) *SheetDetail {
	t.Helper()
	detail, err := svc.ConfigureSheet(context.Background(), owner, "book", "Transactions", "transactions")
	if err != nil {
		t.Fatalf("ConfigureSheet failed: %v", err)
	}
	return detail
}

var ledgerRows = rangestore.Grid{
	{"Date", "Description", "Amount", "Category", "Account"},
	{"2024-01-01", "Coffee", "$4.50", "", "Checking"},
	{"2024-01-05", "Salary", "2,000.00", "Income", "Checking"},
	{},
	{"2024-02-01", "Rent", "(900)", "", "Savings"},
}

func TestConfigureSheet(t *testing.T) {
	svc, _, _ := newTestService(t, ledgerRows)
	ctx := context.Background()

	detail := configure(t, svc)
	if detail.Sheet.SchemaVersion != domain.InitialSchemaVersion {
		t.Errorf("expected version %d, got %d", domain.InitialSchemaVersion, detail.Sheet.SchemaVersion)
	}
	if len(detail.Schema.Columns) != 5 || detail.Schema.Columns[4].Letter != "E" {
		t.Errorf("unexpected columns %+v", detail.Schema.Columns)
	}
	if detail.Schema.HasMobileIDColumn {
		t.Error("expected no mobile id column")
	}

	again, err := svc.ConfigureSheet(ctx, owner, "https://docs.google.com/spreadsheets/d/book/edit#gid=0", "Transactions", "Transactions")
	if err != nil {
		t.Fatalf("reconfigure failed: %v", err)
	}
	if again.Sheet.ID != detail.Sheet.ID {
		t.Errorf("expected the same sheet id, got %s and %s", detail.Sheet.ID, again.Sheet.ID)
	}
	if again.Sheet.SchemaVersion != domain.InitialSchemaVersion {
		t.Errorf("unchanged headers must not bump the version, got %d", again.Sheet.SchemaVersion)
	}
}

func TestConfigureSheet_InvalidTransactionSheet(t *testing.T) {
	svc, _, _ := newTestService(t, rangestore.Grid{{"Date", "Amount", "Category"}})
	ctx := context.Background()

	_, err := svc.ConfigureSheet(ctx, owner, "book", "Transactions", "transactions")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !reflect.DeepEqual(ve.Missing, []string{"Description"}) {
		t.Errorf("expected Description to be missing, got %v", ve.Missing)
	}

	sheets, err := svc.ListSheets(ctx, owner)
	if err != nil {
		t.Fatalf("ListSheets failed: %v", err)
	}
	if len(sheets) != 0 {
		t.Errorf("expected nothing stored, got %d sheets", len(sheets))
	}
}

func TestConfigureSheet_BadInput(t *testing.T) {
	svc, _, _ := newTestService(t, ledgerRows)

	tests := []struct {
		name      string
		ref       string
		sheetName string
		sheetType string
	}{
		{"unknown type", "book", "Transactions", "unknown"},
		{"bad ref", "not a ref!", "Transactions", "transactions"},
		{"blank sheet", "book", "  ", "transactions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ConfigureSheet(context.Background(), owner, tt.ref, tt.sheetName, tt.sheetType)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestSheets_OwnerScoped(t *testing.T) {
	svc, _, _ := newTestService(t, ledgerRows)
	ctx := context.Background()
	detail := configure(t, svc)

	if _, err := svc.GetSheet(ctx, "someone-else", detail.Sheet.ID); !errors.Is(err, domain.ErrSheetNotFound) {
		t.Errorf("expected ErrSheetNotFound for another owner, got %v", err)
	}
	if err := svc.DeleteSheet(ctx, "someone-else", detail.Sheet.ID); !errors.Is(err, domain.ErrSheetNotFound) {
		t.Errorf("expected ErrSheetNotFound on foreign delete, got %v", err)
	}

	got, err := svc.GetSheet(ctx, owner, detail.Sheet.ID)
	if err != nil {
		t.Fatalf("GetSheet failed: %v", err)
	}
	if got.Schema == nil || len(got.Schema.Columns) != 5 {
		t.Errorf("expected schema with 5 columns, got %+v", got.Schema)
	}

	if err := svc.DeleteSheet(ctx, owner, detail.Sheet.ID); err != nil {
		t.Fatalf("DeleteSheet failed: %v", err)
	}
	if _, err := svc.GetSheet(ctx, owner, detail.Sheet.ID); !errors.Is(err, domain.ErrSheetNotFound) {
		t.Errorf("expected ErrSheetNotFound after delete, got %v", err)
	}
}

func TestListTransactions(t *testing.T) {
	svc, _, _ := newTestService(t, ledgerRows)
	ctx := context.Background()
	detail := configure(t, svc)

	tests := []struct {
		name    string
		filters gridparse.Filters
		page    int
		perPage int
		wantIDs []string
		total   int
		last    int
	}{
		{"all", gridparse.Filters{}, 1, 0, []string{"row_1", "row_2", "row_4"}, 3, 1},
		{"uncategorized", gridparse.Filters{UncategorizedOnly: true}, 1, 10, []string{"row_1", "row_4"}, 2, 1},
		{"account", gridparse.Filters{Account: "Savings"}, 1, 10, []string{"row_4"}, 1, 1},
		{"from date", gridparse.Filters{FromDate: "2024-01-05"}, 1, 10, []string{"row_2", "row_4"}, 2, 1},
		{"second page", gridparse.Filters{}, 2, 2, []string{"row_4"}, 3, 2},
		{"past the end", gridparse.Filters{}, 5, 2, []string{}, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.ListTransactions(ctx, owner, detail.Sheet.ID, tt.filters, tt.page, tt.perPage)
			if err != nil {
				t.Fatalf("ListTransactions failed: %v", err)
			}
			ids := []string{}
			for _, tx := range page.Items {
				ids = append(ids, tx.ID)
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("expected ids %v, got %v", tt.wantIDs, ids)
			}
			if page.Total != tt.total || page.LastPage != tt.last {
				t.Errorf("expected total %d last %d, got %d %d", tt.total, tt.last, page.Total, page.LastPage)
			}
		})
	}

	sheet, err := svc.GetSheet(ctx, owner, detail.Sheet.ID)
	if err != nil {
		t.Fatalf("GetSheet failed: %v", err)
	}
	if sheet.Sheet.LastSyncedAt == nil {
		t.Error("expected the sheet to be marked synced")
	}
}

func TestListTransactions_ClampsPerPage(t *testing.T) {
	cells := memory.New()
	cells.AddSheet("book", "Transactions", ledgerRows)
	svc := NewService(cells, inmemory.NewStore(), nil, Options{DefaultPerPage: 1, MaxPerPage: 2})
	detail := configure(t, svc)

	page, err := svc.ListTransactions(context.Background(), owner, detail.Sheet.ID, gridparse.Filters{}, 1, 100)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if page.PerPage != 2 || len(page.Items) != 2 {
		t.Errorf("expected per page clamped to 2, got %d with %d items", page.PerPage, len(page.Items))
	}
}

func TestGetTransaction(t *testing.T) {
	svc, _, _ := newTestService(t, ledgerRows)
	ctx := context.Background()
	detail := configure(t, svc)

	tx, err := svc.GetTransaction(ctx, owner, detail.Sheet.ID, "row_2")
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if tx.Description != "Salary" || tx.RowNumber != 3 || tx.Amount.String() != "2000" {
		t.Errorf("unexpected transaction %+v", tx)
	}

	for _, id := range []string{"row_3", "row_0", "nope"} {
		_, err := svc.GetTransaction(ctx, owner, detail.Sheet.ID, id)
		var nf *domain.IdentityNotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("%s: expected IdentityNotFoundError, got %v", id, err)
		}
	}
}

func TestUpdateTransaction_PartialWrite(t *testing.T) {
	svc, cells, rec := newTestService(t, ledgerRows)
	ctx := context.Background()
	detail := configure(t, svc)

	category := "Dining"
	note := "with Sam"
	report, err := svc.UpdateTransaction(ctx, owner, detail.Sheet.ID, "row_1", TransactionUpdate{
		Category: &category,
		Note:     &note,
	})
	if err != nil {
		t.Fatalf("UpdateTransaction failed: %v", err)
	}

	if !reflect.DeepEqual(report.Written, map[string]string{"Category": "Dining"}) {
		t.Errorf("unexpected written fields %v", report.Written)
	}
	if !reflect.DeepEqual(report.Skipped, []string{"Note"}) {
		t.Errorf("expected Note to be skipped, got %v", report.Skipped)
	}
	if report.Complete() {
		t.Error("expected an incomplete report")
	}
	if got := cells.Rows("book", "Transactions")[1][3]; got != "Dining" {
		t.Errorf("expected D2 to be Dining, got %q", got)
	}

	written := rec.byOutcome(audit.OutcomeWritten)
	if len(written) != 1 || written[0].Field != "Category" || written[0].Row != 2 || written[0].Owner != owner {
		t.Errorf("unexpected written audit entries %+v", written)
	}
	if skipped := rec.byOutcome(audit.OutcomeSkipped); len(skipped) != 1 || skipped[0].Field != "Note" {
		t.Errorf("unexpected skipped audit entries %+v", skipped)
	}
	for _, e := range rec.entries {
		if e.ID == "" || e.At.IsZero() {
			t.Errorf("expected stamped entry, got %+v", e)
		}
	}
}

func TestUpdateTransaction_TransportFailure(t *testing.T) {
	svc, cells, rec := newTestService(t, ledgerRows)
	ctx := context.Background()
	detail := configure(t, svc)
	cells.Fail("UpdateValues", "", errors.New("quota exceeded"))

	category := "Dining"
	report, err := svc.UpdateTransaction(ctx, owner, detail.Sheet.ID, "row_1", TransactionUpdate{Category: &category})
	if err != nil {
		t.Fatalf("UpdateTransaction failed: %v", err)
	}
	var te *domain.TransportError
	if !errors.As(report.Failures["Category"], &te) {
		t.Errorf("expected TransportError, got %v", report.Failures["Category"])
	}
	if failed := rec.byOutcome(audit.OutcomeFailed); len(failed) != 1 || failed[0].Error == "" {
		t.Errorf("expected one failed audit entry with an error, got %+v", failed)
	}
}

func TestUpdateTransaction_Validation(t *testing.T) {
	svc, _, _ := newTestService(t, ledgerRows)
	detail := configure(t, svc)

	long := make([]byte, 256)
	for i := range long {
		long[i] = 'x'
	}
	tooLong := string(long)

	tests := []struct {
		name   string
		update TransactionUpdate
	}{
		{"empty", TransactionUpdate{}},
		{"category too long", TransactionUpdate{Category: &tooLong}},
		{"tag too long", TransactionUpdate{Tags: []string{"ok", tooLong}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateTransaction(context.Background(), owner, detail.Sheet.ID, "row_1", tt.update)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestAddMobileIDColumn_Idempotent(t *testing.T) {
	svc, cells, rec := newTestService(t, ledgerRows)
	ctx := context.Background()
	detail := configure(t, svc)

	first, err := svc.AddMobileIDColumn(ctx, owner, detail.Sheet.ID)
	if err != nil {
		t.Fatalf("AddMobileIDColumn failed: %v", err)
	}
	if !first.HeaderWritten || first.Column.Letter != "F" || first.Backfilled != 3 {
		t.Errorf("unexpected first result %+v", first)
	}
	if first.Sheet.SchemaVersion != 2 || !first.Schema.HasMobileIDColumn {
		t.Errorf("expected version 2 with the flag set, got %d %v", first.Sheet.SchemaVersion, first.Schema.HasMobileIDColumn)
	}

	rows := cells.Rows("book", "Transactions")
	if rows[0][5] != domain.MobileIDHeader {
		t.Fatalf("expected header in F1, got %v", rows[0])
	}
	for _, r := range []int{1, 2, 4} {
		if len(rows[r]) < 6 || rows[r][5] == "" {
			t.Errorf("expected id in row %d, got %v", r+1, rows[r])
		}
	}
	if len(rows[3]) > 5 && rows[3][5] != "" {
		t.Errorf("blank row must stay blank, got %v", rows[3])
	}
	salaryID := rows[2][5]

	second, err := svc.AddMobileIDColumn(ctx, owner, detail.Sheet.ID)
	if err != nil {
		t.Fatalf("second AddMobileIDColumn failed: %v", err)
	}
	if second.HeaderWritten || second.Backfilled != 0 || second.Sheet.SchemaVersion != 2 {
		t.Errorf("expected a no-op, got %+v", second)
	}
	headerCount := 0
	for _, h := range cells.Rows("book", "Transactions")[0] {
		if h == domain.MobileIDHeader {
			headerCount++
		}
	}
	if headerCount != 1 {
		t.Errorf("expected a single id header, got %d", headerCount)
	}
	if got := cells.Rows("book", "Transactions")[2][5]; got != salaryID {
		t.Errorf("existing id changed from %s to %s", salaryID, got)
	}
	if backfill := rec.byOutcome(audit.OutcomeWritten); len(backfill) != 4 {
		t.Errorf("expected header plus 3 backfill entries, got %d", len(backfill))
	}

	tx, err := svc.GetTransaction(ctx, owner, detail.Sheet.ID, salaryID)
	if err != nil {
		t.Fatalf("GetTransaction by mobile id failed: %v", err)
	}
	if tx.Description != "Salary" {
		t.Errorf("expected Salary, got %+v", tx)
	}
}

func TestAddMobileIDColumn_BackfillsNewRows(t *testing.T) {
	svc, cells, _ := newTestService(t, ledgerRows)
	ctx := context.Background()
	detail := configure(t, svc)

	if _, err := svc.AddMobileIDColumn(ctx, owner, detail.Sheet.ID); err != nil {
		t.Fatalf("AddMobileIDColumn failed: %v", err)
	}
	rows := cells.Rows("book", "Transactions")
	rows = append(rows, []string{"2024-03-01", "Books", "12", "", "Checking"})
	cells.AddSheet("book", "Transactions", rows)

	again, err := svc.AddMobileIDColumn(ctx, owner, detail.Sheet.ID)
	if err != nil {
		t.Fatalf("AddMobileIDColumn failed: %v", err)
	}
	if again.HeaderWritten || again.Backfilled != 1 || again.Sheet.SchemaVersion != 2 {
		t.Errorf("expected only the new row to be filled, got %+v", again)
	}
}

// shiftingStore inserts a row under the header right after the next full
// scan of the Transactions tab, the way a user typing in the sheet would.
type shiftingStore struct {
	*memory.Store
	insert []string
}

func (s *shiftingStore) GetValues(ctx context.Context, spreadsheetID, rng string) (rangestore.Grid, error) {
	grid, err := s.Store.GetValues(ctx, spreadsheetID, rng)
	if s.insert != nil && rng == "Transactions!A:Z" {
		rows := s.Rows(spreadsheetID, "Transactions")
		shifted := rangestore.Grid{rows[0], s.insert}
		shifted = append(shifted, rows[1:]...)
		s.AddSheet(spreadsheetID, "Transactions", shifted)
		s.insert = nil
	}
	return grid, err
}

func idsByDescription(rows rangestore.Grid) map[string]string {
	ids := make(map[string]string)
	for _, r := range rows[1:] {
		if len(r) < 2 || r[1] == "" {
			continue
		}
		ids[r[1]] = ""
		if len(r) > 5 {
			ids[r[1]] = r[5]
		}
	}
	return ids
}

func TestAddMobileIDColumn_RowInsertedDuringBackfill(t *testing.T) {
	cells := &shiftingStore{Store: memory.New()}
	cells.AddSheet("book", "Transactions", ledgerRows)
	svc := NewService(cells, inmemory.NewStore(), &fakeRecorder{}, Options{})
	ctx := context.Background()
	detail := configure(t, svc)

	if _, err := svc.AddMobileIDColumn(ctx, owner, detail.Sheet.ID); err != nil {
		t.Fatalf("AddMobileIDColumn failed: %v", err)
	}
	before := idsByDescription(cells.Rows("book", "Transactions"))

	rows := cells.Rows("book", "Transactions")
	rows = append(rows, []string{"2024-03-01", "Lunch", "-8", "", "Checking"})
	cells.AddSheet("book", "Transactions", rows)
	cells.insert = []string{"2024-02-15", "Inserted", "1", "", "Checking"}

	again, err := svc.AddMobileIDColumn(ctx, owner, detail.Sheet.ID)
	if err != nil {
		t.Fatalf("AddMobileIDColumn failed: %v", err)
	}
	if again.Backfilled != 0 {
		t.Errorf("expected the moved row to be left alone, got %d ids written", again.Backfilled)
	}
	after := idsByDescription(cells.Rows("book", "Transactions"))
	for _, name := range []string{"Coffee", "Salary", "Rent"} {
		if after[name] == "" || after[name] != before[name] {
			t.Errorf("%s id changed from %q to %q", name, before[name], after[name])
		}
	}
	if after["Inserted"] != "" || after["Lunch"] != "" {
		t.Errorf("expected no ids on the new rows yet, got %v", after)
	}

	third, err := svc.AddMobileIDColumn(ctx, owner, detail.Sheet.ID)
	if err != nil {
		t.Fatalf("AddMobileIDColumn failed: %v", err)
	}
	if third.Backfilled != 2 {
		t.Errorf("expected both new rows to be filled, got %d", third.Backfilled)
	}
	final := idsByDescription(cells.Rows("book", "Transactions"))
	for _, name := range []string{"Coffee", "Salary", "Rent"} {
		if final[name] != before[name] {
			t.Errorf("%s id changed from %q to %q", name, before[name], final[name])
		}
	}
	if final["Inserted"] == "" || final["Lunch"] == "" || final["Inserted"] == final["Lunch"] {
		t.Errorf("expected distinct ids on the new rows, got %v", final)
	}
}

func TestAddMobileIDColumn_WritesOnlyBlankCells(t *testing.T) {
	svc, cells, _ := newTestService(t, ledgerRows)
	ctx := context.Background()
	detail := configure(t, svc)

	if _, err := svc.AddMobileIDColumn(ctx, owner, detail.Sheet.ID); err != nil {
		t.Fatalf("AddMobileIDColumn failed: %v", err)
	}
	got := map[string]bool{}
	for _, c := range cells.CallsOf("UpdateValues") {
		got[c.Range] = true
	}
	for _, want := range []string{"Transactions!F1", "Transactions!F2:F3", "Transactions!F5:F5"} {
		if !got[want] {
			t.Errorf("expected a write to %s, got %v", want, cells.CallsOf("UpdateValues"))
		}
	}
	if len(got) != 3 {
		t.Errorf("expected exactly 3 writes, got %v", cells.CallsOf("UpdateValues"))
	}
}

func TestAddMobileIDColumn_AdoptsLiveHeader(t *testing.T) {
	svc, cells, _ := newTestService(t, rangestore.Grid{
		{"Date", "Description", "Amount"},
		{"2024-01-01", "Coffee", "4"},
	})
	ctx := context.Background()
	detail := configure(t, svc)

	cells.AddSheet("book", "Transactions", rangestore.Grid{
		{"Date", "Description", "Amount", "Memo", domain.MobileIDHeader},
		{"2024-01-01", "Coffee", "4", "", "abc"},
		{"2024-01-02", "Tea", "3"},
	})

	result, err := svc.AddMobileIDColumn(ctx, owner, detail.Sheet.ID)
	if err != nil {
		t.Fatalf("AddMobileIDColumn failed: %v", err)
	}
	if result.HeaderWritten || result.Column.Letter != "E" || result.Backfilled != 1 {
		t.Errorf("unexpected result %+v", result)
	}
	for _, c := range cells.CallsOf("UpdateValues") {
		if c.Range == "Transactions!E1" || c.Range == "Transactions!D1" {
			t.Errorf("header must not be rewritten, got write to %s", c.Range)
		}
	}
	if got := cells.Rows("book", "Transactions")[1][4]; got != "abc" {
		t.Errorf("existing id changed to %q", got)
	}
}

func TestAddMobileIDColumn_HeaderWriteFails(t *testing.T) {
	svc, cells, _ := newTestService(t, ledgerRows)
	ctx := context.Background()
	detail := configure(t, svc)
	cells.Fail("UpdateValues", "Transactions!F1", errors.New("permission denied"))

	_, err := svc.AddMobileIDColumn(ctx, owner, detail.Sheet.ID)
	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	got, err := svc.GetSheet(ctx, owner, detail.Sheet.ID)
	if err != nil {
		t.Fatalf("GetSheet failed: %v", err)
	}
	if got.Schema.HasMobileIDColumn || got.Sheet.SchemaVersion != 1 {
		t.Errorf("schema must be untouched, got %+v", got)
	}
}

func TestCreateTransaction(t *testing.T) {
	rows := rangestore.Grid{
		{"Date", "Description", "Amount", "Category", "Account", "Tags", domain.MobileIDHeader},
		{"2024-01-01", "Coffee", "4.50", "", "Checking", "", "id-1"},
	}
	svc, cells, rec := newTestService(t, rows)
	ctx := context.Background()
	detail := configure(t, svc)

	tx, err := svc.CreateTransaction(ctx, owner, detail.Sheet.ID, NewTransaction{
		Date:        "2024-02-03",
		Description: "Lunch",
		Amount:      "-12.30",
		Account:     "Checking",
		Category:    "Food & Dining",
		Tags:        []string{"work", " ", "team"},
	})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if tx.ID == "" || tx.Row != 3 {
		t.Errorf("expected a mobile id on row 3, got %+v", tx)
	}

	want := []string{"2024-02-03", "Lunch", "-12.3", "Food & Dining", "Checking", "work, team", tx.ID}
	if got := cells.Rows("book", "Transactions")[2]; !reflect.DeepEqual(got, want) {
		t.Errorf("expected appended row %v, got %v", want, got)
	}
	appends := cells.CallsOf("AppendValues")
	if len(appends) != 1 || appends[0].Range != "Transactions!A:G" {
		t.Errorf("unexpected append calls %v", appends)
	}
	if entries := rec.byOutcome(audit.OutcomeWritten); len(entries) != 7 || entries[0].Operation != audit.OperationCreate {
		t.Errorf("expected 7 create entries, got %+v", entries)
	}
}

func TestCreateTransaction_WithoutMobileIDColumn(t *testing.T) {
	svc, cells, _ := newTestService(t, ledgerRows)
	ctx := context.Background()
	detail := configure(t, svc)

	tx, err := svc.CreateTransaction(ctx, owner, detail.Sheet.ID, NewTransaction{
		Date: "2024-03-01", Description: "Books", Amount: "-20", Account: "Checking",
	})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if tx.ID != "" || tx.Row != 0 {
		t.Errorf("expected no id and an unknown row, got %+v", tx)
	}
	body, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(body), `"row"`) || strings.Contains(string(body), `"id"`) {
		t.Errorf("expected row and id to be omitted, got %s", body)
	}
	rows := cells.Rows("book", "Transactions")
	if last := rows[len(rows)-1]; len(last) < 2 || last[1] != "Books" {
		t.Errorf("expected Books appended, got %v", last)
	}
}

func TestCreateTransaction_Validation(t *testing.T) {
	svc, _, _ := newTestService(t, ledgerRows)
	detail := configure(t, svc)

	valid := NewTransaction{Date: "2024-01-01", Description: "x", Amount: "1", Account: "Checking"}
	tests := []struct {
		name   string
		mutate func(*NewTransaction)
	}{
		{"missing date", func(n *NewTransaction) { n.Date = "" }},
		{"bad date", func(n *NewTransaction) { n.Date = "yesterday" }},
		{"blank description", func(n *NewTransaction) { n.Description = "   " }},
		{"bad amount", func(n *NewTransaction) { n.Amount = "ten" }},
		{"missing account", func(n *NewTransaction) { n.Account = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := valid
			tt.mutate(&input)
			_, err := svc.CreateTransaction(context.Background(), owner, detail.Sheet.ID, input)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestRemapColumns(t *testing.T) {
	rows := rangestore.Grid{{"Date", "Description", "Amount", "Memo", domain.MobileIDHeader}}
	svc, _, _ := newTestService(t, rows)
	ctx := context.Background()
	detail := configure(t, svc)

	updated, err := svc.RemapColumns(ctx, owner, detail.Sheet.ID, map[string]string{"memo": "note"})
	if err != nil {
		t.Fatalf("RemapColumns failed: %v", err)
	}
	if updated.Schema.Columns[3].SemanticType != domain.SemanticNote || updated.Sheet.SchemaVersion != 2 {
		t.Errorf("unexpected remap result %+v", updated)
	}

	bad := []map[string]string{
		{"Memo": "mobileId"},
		{domain.MobileIDHeader: "note"},
		{"Memo": "colour"},
		{"Missing": "note"},
		{},
	}
	for _, m := range bad {
		_, err := svc.RemapColumns(ctx, owner, detail.Sheet.ID, m)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%v: expected ValidationError, got %v", m, err)
		}
	}

	refreshed, err := svc.RefreshSchema(ctx, owner, detail.Sheet.ID)
	if err != nil {
		t.Fatalf("RefreshSchema failed: %v", err)
	}
	if refreshed.Schema.Columns[3].SemanticType != domain.SemanticNote || refreshed.Sheet.SchemaVersion != 2 {
		t.Errorf("refresh must keep the remap, got %+v", refreshed)
	}
}

func TestListCategories(t *testing.T) {
	svc, cells, _ := newTestService(t, ledgerRows)
	ctx := context.Background()

	got, err := svc.ListCategories(ctx, owner)
	if err != nil {
		t.Fatalf("ListCategories failed: %v", err)
	}
	if !reflect.DeepEqual(got, DefaultCategories) {
		t.Errorf("expected default categories, got %v", got)
	}

	cells.AddSheet("book", "Categories", rangestore.Grid{
		{"Category", "Group"},
		{"Groceries", "Living"},
		{"Rent", "Living"},
		{"Groceries", "Food"},
		{"", "Misc"},
	})
	if _, err := svc.ConfigureSheet(ctx, owner, "book", "Categories", "categories"); err != nil {
		t.Fatalf("ConfigureSheet failed: %v", err)
	}
	got, err = svc.ListCategories(ctx, owner)
	if err != nil {
		t.Fatalf("ListCategories failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"Groceries", "Rent"}) {
		t.Errorf("unexpected categories %v", got)
	}
}

func TestDetectSheets(t *testing.T) {
	svc, cells, _ := newTestService(t, ledgerRows)
	cells.AddSheet("book", "Notes", rangestore.Grid{{"Anything"}})

	detection, err := svc.DetectSheets(context.Background(), "https://docs.google.com/spreadsheets/d/book/edit")
	if err != nil {
		t.Fatalf("DetectSheets failed: %v", err)
	}
	if len(detection.Candidates) != 1 || detection.Candidates[0].SheetName != "Transactions" {
		t.Errorf("unexpected candidates %+v", detection.Candidates)
	}
}
