package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/joelkehle/cip-designer/internal/cip"
	"github.com/joelkehle/cip-designer/internal/logging"
	"github.com/joelkehle/cip-designer/internal/store"
)

const (
	CodeValidation  = "validation"
	CodeNotFound    = "not_found"
	CodeRateLimited = "rate_limited"
	CodeUnavailable = "unavailable"
	CodeInternal    = "internal"
)

// Error is the API failure envelope. Fields carries per-field validation
// messages keyed by JSON field name.
type Error struct {
	Code       string
	Message    string
	Fields     map[string]string
	RetryAfter int
	Status     int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func statusForCode(code string) int {
	switch code {
	case CodeValidation:
		return 400
	case CodeNotFound:
		return 404
	case CodeRateLimited:
		return 429
	case CodeUnavailable:
		return 503
	default:
		return 500
	}
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: statusForCode(code)}
}

func newValidationJSONError(err error) *Error {
	return newError(CodeValidation, "invalid json: "+err.Error())
}

func writeError(w http.ResponseWriter, log *logging.Logger, err error) {
	var apiErr *Error
	var ve *cip.ValidationError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &ve):
		apiErr = newError(CodeValidation, ve.Message)
		apiErr.Fields = ve.Fields
	case errors.Is(err, store.ErrNotFound):
		apiErr = newError(CodeNotFound, "design not found")
	default:
		log.Error("request failed", "error", err)
		apiErr = newError(CodeInternal, "internal server error")
	}

	body := map[string]any{
		"code":    apiErr.Code,
		"message": apiErr.Message,
	}
	if len(apiErr.Fields) > 0 {
		body["fields"] = apiErr.Fields
	}
	if apiErr.RetryAfter > 0 {
		body["retry_after"] = apiErr.RetryAfter
		w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfter))
	}
	writeJSON(w, apiErr.Status, map[string]any{"ok": false, "error": body})
}
