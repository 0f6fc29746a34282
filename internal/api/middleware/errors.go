package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/dvloznov/sheetledger/internal/auth"
	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/dvloznov/sheetledger/internal/logger"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

// StatusFor maps an error from the ledger to an HTTP status.
func StatusFor(err error) int {
	var (
		validation *domain.ValidationError
		identity   *domain.IdentityNotFoundError
		transport  *domain.TransportError
		unwritable *domain.UnwritableColumnError
		formula    *domain.FormulaProtectionError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &unwritable), errors.As(err, &formula):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSheetNotFound), errors.Is(err, domain.ErrSchemaNotFound), errors.As(err, &identity):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.As(err, &transport):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteDomainError logs err and writes it with the status from StatusFor.
// Server-side failures are reported without their details.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	log := logger.FromContext(r.Context())

	resp := ErrorResponse{Error: err.Error()}
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusBadGateway:
		log.Error().Err(err).Int("status", status).Msg("Request failed")
		resp.Error = http.StatusText(status)
	case status == http.StatusBadGateway:
		log.Error().Err(err).Msg("Spreadsheet call failed")
	default:
		log.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}

	var validation *domain.ValidationError
	if errors.As(err, &validation) && validation.Reason == "" {
		resp.Error = "invalid transaction sheet"
		resp.Missing = validation.Missing
	}

	WriteJSON(w, status, resp)
}
