package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/sheetledger/internal/api/middleware"
	"github.com/dvloznov/sheetledger/internal/gridparse"
	"github.com/dvloznov/sheetledger/internal/ledger"
	"github.com/go-chi/chi/v5"
)

// TransactionsHandler handles transaction endpoints of a configured sheet.
type TransactionsHandler struct {
	ledger *ledger.Service
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc *ledger.Service) *TransactionsHandler {
	return &TransactionsHandler{ledger: svc}
}

// List handles GET /api/sheets/{sheetID}/transactions
// Query params: uncategorized, account, from, page, per_page
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filters := gridparse.Filters{Account: strings.TrimSpace(query.Get("account"))}

	if v := query.Get("uncategorized"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "uncategorized must be a boolean")
			return
		}
		filters.UncategorizedOnly = b
	}
	if v := query.Get("from"); v != "" {
		from, ok := gridparse.ParseDate(v)
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, "from must be a date")
			return
		}
		filters.FromDate = from.String()
	}

	page, ok := intParam(w, query.Get("page"), "page")
	if !ok {
		return
	}
	perPage, ok := intParam(w, query.Get("per_page"), "per_page")
	if !ok {
		return
	}

	result, err := h.ledger.ListTransactions(r.Context(), owner, chi.URLParam(r, "sheetID"), filters, page, perPage)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// Get handles GET /api/sheets/{sheetID}/transactions/{txID}
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	tx, err := h.ledger.GetTransaction(r.Context(), owner, chi.URLParam(r, "sheetID"), chi.URLParam(r, "txID"))
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// Update handles PATCH /api/sheets/{sheetID}/transactions/{txID}
// A report with failed or skipped fields is returned as 207.
func (h *TransactionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	var update ledger.TransactionUpdate
	if !decodeBody(w, r, &update) {
		return
	}

	report, err := h.ledger.UpdateTransaction(r.Context(), owner, chi.URLParam(r, "sheetID"), chi.URLParam(r, "txID"), update)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if !report.Complete() {
		status = http.StatusMultiStatus
	}
	middleware.WriteJSON(w, status, report)
}

// Create handles POST /api/sheets/{sheetID}/transactions
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	var input ledger.NewTransaction
	if !decodeBody(w, r, &input) {
		return
	}

	tx, err := h.ledger.CreateTransaction(r.Context(), owner, chi.URLParam(r, "sheetID"), input)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// intParam parses an optional positive integer query value; 0 means unset.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		middleware.WriteError(w, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return n, true
}

// CategoriesHandler handles GET /api/categories.
type CategoriesHandler struct {
	ledger *ledger.Service
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(svc *ledger.Service) *CategoriesHandler {
	return &CategoriesHandler{ledger: svc}
}

// List handles GET /api/categories
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	categories, err := h.ledger.ListCategories(r.Context(), owner)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
	})
}
