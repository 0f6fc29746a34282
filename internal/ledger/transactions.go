package ledger

import (
	"context"
	"fmt"

	"github.com/dvloznov/sheetledger/internal/audit"
	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/dvloznov/sheetledger/internal/gridparse"
	"github.com/dvloznov/sheetledger/internal/logger"
	"github.com/dvloznov/sheetledger/internal/rangestore"
	"github.com/dvloznov/sheetledger/internal/writer"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ListTransactions reads a transactions sheet, filters it and returns one page.
// A perPage above the configured maximum is clamped.
func (s *Service) ListTransactions(ctx context.Context, owner, sheetID string, filters gridparse.Filters, page, perPage int) (*gridparse.Page, error) {
	sheet, schema, err := s.loadTransactionSheet(ctx, owner, sheetID)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}

	grid, err := s.readAll(ctx, sheet, schema)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	s.markSynced(ctx, sheet)

	if perPage < 1 {
		perPage = s.defaultPerPage
	}
	if perPage > s.maxPerPage {
		perPage = s.maxPerPage
	}

	txs := gridparse.Filter(gridparse.Parse(grid, *schema), filters)
	result := gridparse.Paginate(txs, page, perPage)
	return &result, nil
}

// GetTransaction returns the transaction currently identified by txID.
func (s *Service) GetTransaction(ctx context.Context, owner, sheetID, txID string) (*domain.Transaction, error) {
	sheet, schema, err := s.loadTransactionSheet(ctx, owner, sheetID)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}

	row, err := s.resolver.Resolve(ctx, sheet.SpreadsheetRef, sheet.SheetName, *schema, txID)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	grid, err := s.readAll(ctx, sheet, schema)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	s.markSynced(ctx, sheet)

	for _, tx := range gridparse.Parse(grid, *schema) {
		if tx.RowNumber == row {
			return &tx, nil
		}
	}
	return nil, fmt.Errorf("GetTransaction: %w", &domain.IdentityNotFoundError{TransactionID: txID})
}

// UpdateTransaction writes the editable fields of one transaction. Fields
// are written independently; the report says which ones made it. The
// returned error is only set when nothing could be attempted.
func (s *Service) UpdateTransaction(ctx context.Context, owner, sheetID, txID string, update TransactionUpdate) (*writer.Report, error) {
	if err := validate.Struct(update); err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", validationError(err))
	}
	fields := update.Fields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("UpdateTransaction: %w", &domain.ValidationError{Reason: "no fields to update"})
	}

	sheet, schema, err := s.loadSheet(ctx, owner, sheetID)
	if err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}

	report, err := s.writer.Update(ctx, *sheet, *schema, txID, fields)
	if err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}

	s.record(ctx, reportEntries(auditBase(audit.OperationUpdate, owner, sheet), report, fields))
	return report, nil
}

// CreatedTransaction is what CreateTransaction wrote. Unlike a
// domain.Transaction read back from the grid, its row may be unknown.
type CreatedTransaction struct {
	Row         int             `json:"row,omitempty"` // 0 when the appended row could not be located
	ID          string          `json:"id,omitempty"`  // empty without a mobile id column
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Account     string          `json:"account"`
	Category    string          `json:"category,omitempty"`
	Note        string          `json:"note,omitempty"`
	Tags        string          `json:"tags,omitempty"`
}

// CreateTransaction appends a row to a transactions sheet. Cells are placed
// by the schema's semantic types; a fresh mobile id is filled in when the
// sheet has that column. Without one the new row cannot be located reliably
// and the result has no row number.
func (s *Service) CreateTransaction(ctx context.Context, owner, sheetID string, input NewTransaction) (*CreatedTransaction, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("CreateTransaction: %w", validationError(err))
	}
	date, ok := gridparse.ParseDate(input.Date)
	if !ok {
		return nil, fmt.Errorf("CreateTransaction: %w", &domain.ValidationError{Reason: fmt.Sprintf("unrecognised date %q", input.Date)})
	}
	amount, err := decimal.NewFromString(input.Amount)
	if err != nil {
		return nil, fmt.Errorf("CreateTransaction: %w", &domain.ValidationError{Reason: fmt.Sprintf("invalid amount %q", input.Amount)})
	}

	sheet, schema, err := s.loadTransactionSheet(ctx, owner, sheetID)
	if err != nil {
		return nil, fmt.Errorf("CreateTransaction: %w", err)
	}

	tx := CreatedTransaction{
		Date:        date.String(),
		Description: input.Description,
		Amount:      amount,
		Account:     input.Account,
		Category:    input.Category,
		Note:        input.Note,
		Tags:        JoinTags(input.Tags),
	}
	if schema.HasMobileIDColumn {
		tx.ID = uuid.New().String()
	}

	values := map[domain.SemanticType]string{
		domain.SemanticDate:        tx.Date,
		domain.SemanticDescription: tx.Description,
		domain.SemanticAmount:      tx.Amount.String(),
		domain.SemanticAccount:     tx.Account,
		domain.SemanticCategory:    tx.Category,
		domain.SemanticNote:        tx.Note,
		domain.SemanticTags:        tx.Tags,
		domain.SemanticMobileID:    tx.ID,
	}
	row := buildRow(*schema, values)

	base := auditBase(audit.OperationCreate, owner, sheet)
	base.TransactionID = tx.ID

	rng := rangestore.RowSpanRange(sheet.SheetName, schema.LastLetter())
	if err := s.cells.AppendValues(ctx, sheet.SpreadsheetRef, rng, rangestore.Grid{row}); err != nil {
		err = rangestore.Wrap("AppendValues", rng, err)
		s.record(ctx, rowEntries(base, *schema, row, audit.OutcomeFailed, err))
		return nil, fmt.Errorf("CreateTransaction: %w", err)
	}

	if tx.ID != "" {
		n, err := s.resolver.Resolve(ctx, sheet.SpreadsheetRef, sheet.SheetName, *schema, tx.ID)
		if err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Appended row could not be located")
		} else {
			tx.Row = n
		}
	}
	base.Row = tx.Row
	s.record(ctx, rowEntries(base, *schema, row, audit.OutcomeWritten, nil))

	log := logger.FromContext(ctx)
	log.Info().
		Str("sheet_id", sheet.ID).
		Str("transaction_id", tx.ID).
		Int("row", tx.Row).
		Msg("Created transaction")
	return &tx, nil
}

func (s *Service) loadTransactionSheet(ctx context.Context, owner, sheetID string) (*domain.Sheet, *domain.SheetSchema, error) {
	sheet, schema, err := s.loadSheet(ctx, owner, sheetID)
	if err != nil {
		return nil, nil, err
	}
	if sheet.SheetType != domain.SheetTypeTransactions {
		return nil, nil, &domain.ValidationError{Reason: fmt.Sprintf("sheet %s holds %s, not transactions", sheet.ID, sheet.SheetType)}
	}
	return sheet, schema, nil
}

func (s *Service) markSynced(ctx context.Context, sheet *domain.Sheet) {
	now := s.now()
	if err := s.schemas.MarkSynced(ctx, sheet.ID, now); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("sheet_id", sheet.ID).Msg("Failed to mark sheet synced")
		return
	}
	sheet.LastSyncedAt = &now
}

// buildRow lays values out by column position. Each semantic type fills
// only its left-most column; every other cell is left empty.
func buildRow(schema domain.SheetSchema, values map[domain.SemanticType]string) []string {
	row := make([]string, schema.NextPosition())
	used := map[domain.SemanticType]bool{}
	for _, col := range schema.Columns {
		if used[col.SemanticType] {
			continue
		}
		if v, ok := values[col.SemanticType]; ok {
			row[col.Position] = v
			used[col.SemanticType] = true
		}
	}
	return row
}

func reportEntries(base audit.Entry, report *writer.Report, fields map[string]string) []audit.Entry {
	base.TransactionID = report.TransactionID
	base.Row = report.Row

	var entries []audit.Entry
	for field, value := range report.Written {
		e := base
		e.Field, e.Value, e.Outcome = field, value, audit.OutcomeWritten
		entries = append(entries, e)
	}
	for field, err := range report.Failures {
		e := base
		e.Field, e.Value, e.Outcome, e.Error = field, fields[field], audit.OutcomeFailed, err.Error()
		entries = append(entries, e)
	}
	for _, field := range report.Skipped {
		e := base
		e.Field, e.Value, e.Outcome = field, fields[field], audit.OutcomeSkipped
		entries = append(entries, e)
	}
	return entries
}

func rowEntries(base audit.Entry, schema domain.SheetSchema, row []string, outcome audit.Outcome, err error) []audit.Entry {
	var entries []audit.Entry
	for _, col := range schema.Columns {
		if col.Position >= len(row) || row[col.Position] == "" {
			continue
		}
		e := base
		e.Field, e.Value, e.Outcome = col.Header, row[col.Position], outcome
		if err != nil {
			e.Error = err.Error()
		}
		entries = append(entries, e)
	}
	return entries
}
