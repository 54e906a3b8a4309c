package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/masarpro/Masar-sub000/pkg/ledger"
)

type contextKey string

const (
	contextKeyOrganization contextKey = "organization"

	// OrganizationHeader carries the caller's organization on every /api/v1 request.
	OrganizationHeader = "X-Organization-ID"
)

// TenantMiddleware rejects requests without an organization and scopes the
// request context to it.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		org := strings.TrimSpace(r.Header.Get(OrganizationHeader))
		if org == "" {
			writeJSONError(w, http.StatusBadRequest, "missing_organization", "Missing "+OrganizationHeader+" header")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyOrganization, org)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// organizationID returns the organization stored by TenantMiddleware.
func organizationID(r *http.Request) string {
	org, _ := r.Context().Value(contextKeyOrganization).(string)
	return org
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

// writeJSON writes body as a JSON response.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// respond writes {key: v} with status, or the mapped error.
func respond(w http.ResponseWriter, r *http.Request, status int, key string, v interface{}, err error) {
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, status, map[string]interface{}{key: v})
}

// decodeJSON parses the request body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return false
	}
	return true
}

// writeLedgerError maps the ledger error taxonomy onto HTTP statuses.
func writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSONError(w, status, code, "Internal server error")
		return
	}
	writeJSONError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "invalid_amount"
	case errors.Is(err, ledger.ErrSameAccount):
		return http.StatusUnprocessableEntity, "same_account"
	case errors.Is(err, ledger.ErrEmptyRun):
		return http.StatusUnprocessableEntity, "empty_run"
	case errors.Is(err, ledger.ErrAlreadyCancelled):
		return http.StatusConflict, "already_cancelled"
	case errors.Is(err, ledger.ErrProtectedSource):
		return http.StatusConflict, "protected_source"
	case errors.Is(err, ledger.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}
