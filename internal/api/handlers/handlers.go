package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dvloznov/sheetledger/internal/api/middleware"
	"github.com/dvloznov/sheetledger/internal/auth"
	"github.com/go-playground/validator/v10"
)

// maxBodyBytes caps request bodies; every payload here is a few fields.
const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ownerFrom returns the authenticated owner or writes a 401.
func ownerFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return "", false
	}
	return owner, true
}

// decodeBody reads a JSON body into dst. It writes a 400 and returns false
// on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			middleware.WriteError(w, http.StatusBadRequest, "Request body is required")
		} else {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		}
		return false
	}
	return true
}

// decodeRequest decodes a handler-owned request struct and checks its
// validate tags. Ledger input types are validated by the ledger itself.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if !decodeBody(w, r, dst) {
		return false
	}
	if err := validate.Struct(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, describe(err))
		return false
	}
	return true
}

// describe renders validator failures as "field: rule" pairs.
func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "invalid request: " + strings.Join(parts, ", ")
}
