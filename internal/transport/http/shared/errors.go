package shared

import (
	"errors"
	"log/slog"
	"net/http"

	"workhours/internal/domain/auth"
	"workhours/internal/domain/employee"
	"workhours/internal/domain/inspection"
	"workhours/internal/domain/ledger"
	"workhours/internal/transport/http/api"
)

// WriteError maps a domain error onto the response envelope. Messages stay
// generic; the underlying error is only logged.
func WriteError(w http.ResponseWriter, err error, requestID string) {
	var vErr *ledger.ValidationError
	var depErr *ledger.DependencyError
	switch {
	case errors.As(err, &vErr):
		FailValidation(w, requestID, []ValidationIssue{{Field: vErr.Field, Reason: vErr.Message}})
	case errors.Is(err, ledger.ErrNotAuthenticated), errors.Is(err, auth.ErrInvalidCredentials):
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
	case errors.Is(err, ledger.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", requestID)
	case errors.Is(err, ledger.ErrWindowExpired):
		api.Fail(w, http.StatusForbidden, "window_expired", "hours for that day can no longer be logged", requestID)
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, employee.ErrNotFound), errors.Is(err, inspection.ErrUnknownTemplate):
		api.Fail(w, http.StatusNotFound, "not_found", "not found", requestID)
	case errors.Is(err, ledger.ErrEmployeeNotFound):
		api.Fail(w, http.StatusBadRequest, "unknown_employee", "employee not found", requestID)
	case errors.Is(err, ledger.ErrConflict), errors.Is(err, auth.ErrUserExists):
		api.Fail(w, http.StatusConflict, "conflict", "the record changed, reload and try again", requestID)
	case errors.As(err, &depErr):
		slog.Error("dependency failure", "op", depErr.Op, "err", depErr.Err, "requestId", requestID)
		api.Fail(w, http.StatusBadGateway, "dependency_failed", "a backing service failed, try again later", requestID)
	default:
		slog.Error("request failed", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
	}
}
