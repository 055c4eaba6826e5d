// Package httpx provides HTTP response utilities.
package httpx

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// ErrorBody is the structured error payload returned to clients.
type ErrorBody struct {
	Error   string              `json:"error"`
	Details []shared.FieldError `json:"details,omitempty"`
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind shared.Kind) int {
	switch kind {
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindUnauthorized:
		return http.StatusUnauthorized
	case shared.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses. Internal failures are
// logged with the request path and answered with a generic message.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	e := shared.AsError(err)
	status := StatusFor(e.Kind)
	if status == http.StatusInternalServerError && logger != nil {
		attrs := []any{slog.Any("error", err)}
		if r != nil {
			attrs = append(attrs, slog.String("method", r.Method), slog.String("path", r.URL.Path))
		}
		logger.Error("request failed", attrs...)
	}
	JSON(w, status, ErrorBody{Error: e.Message, Details: e.Details})
}
