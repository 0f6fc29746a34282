package handlers

import (
	"net/http"

	"github.com/dvloznov/sheetledger/internal/api/middleware"
	"github.com/dvloznov/sheetledger/internal/ledger"
	"github.com/dvloznov/sheetledger/internal/logger"
	"github.com/go-chi/chi/v5"
)

// SheetsHandler handles sheet discovery and configuration endpoints.
type SheetsHandler struct {
	ledger *ledger.Service
}

// NewSheetsHandler creates a new sheets handler.
func NewSheetsHandler(svc *ledger.Service) *SheetsHandler {
	return &SheetsHandler{ledger: svc}
}

type detectRequest struct {
	Spreadsheet string `json:"spreadsheet" validate:"required,max=2048"`
}

type skippedSheet struct {
	SheetName string `json:"sheet_name"`
	Error     string `json:"error"`
}

// Detect handles POST /api/sheets/detect
func (h *SheetsHandler) Detect(w http.ResponseWriter, r *http.Request) {
	if _, ok := ownerFrom(w, r); !ok {
		return
	}
	var req detectRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	detection, err := h.ledger.DetectSheets(r.Context(), req.Spreadsheet)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}

	skipped := make([]skippedSheet, 0, len(detection.Skipped))
	for _, s := range detection.Skipped {
		skipped = append(skipped, skippedSheet{SheetName: s.SheetName, Error: s.Err.Error()})
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sheets":  detection.Candidates,
		"skipped": skipped,
	})
}

type configureRequest struct {
	Spreadsheet string `json:"spreadsheet" validate:"required,max=2048"`
	SheetName   string `json:"sheet_name" validate:"required,max=255"`
	SheetType   string `json:"sheet_type" validate:"required"`
}

// Configure handles POST /api/sheets
func (h *SheetsHandler) Configure(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	var req configureRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	detail, err := h.ledger.ConfigureSheet(r.Context(), owner, req.Spreadsheet, req.SheetName, req.SheetType)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, detail)
}

// List handles GET /api/sheets
func (h *SheetsHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	sheets, err := h.ledger.ListSheets(r.Context(), owner)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sheets": sheets,
		"count":  len(sheets),
	})
}

// Get handles GET /api/sheets/{sheetID}
func (h *SheetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	detail, err := h.ledger.GetSheet(r.Context(), owner, chi.URLParam(r, "sheetID"))
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, detail)
}

// Delete handles DELETE /api/sheets/{sheetID}
func (h *SheetsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	sheetID := chi.URLParam(r, "sheetID")
	if err := h.ledger.DeleteSheet(r.Context(), owner, sheetID); err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	log := logger.FromContext(r.Context())
	log.Info().Str("sheet_id", sheetID).Msg("Sheet deleted")
	w.WriteHeader(http.StatusNoContent)
}

// RefreshSchema handles PUT /api/sheets/{sheetID}/schema
func (h *SheetsHandler) RefreshSchema(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	detail, err := h.ledger.RefreshSchema(r.Context(), owner, chi.URLParam(r, "sheetID"))
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, detail)
}

type remapRequest struct {
	Columns map[string]string `json:"columns" validate:"required,min=1,dive,keys,required,endkeys,required"`
}

// RemapColumns handles PATCH /api/sheets/{sheetID}/schema
func (h *SheetsHandler) RemapColumns(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	var req remapRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	detail, err := h.ledger.RemapColumns(r.Context(), owner, chi.URLParam(r, "sheetID"), req.Columns)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, detail)
}

// AddMobileID handles POST /api/sheets/{sheetID}/mobile-id
func (h *SheetsHandler) AddMobileID(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	result, err := h.ledger.AddMobileIDColumn(r.Context(), owner, chi.URLParam(r, "sheetID"))
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}
