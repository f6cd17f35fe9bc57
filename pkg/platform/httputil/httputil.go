// Package httputil centralizes JSON response writing and domain error
// translation so handlers stay thin.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "kopguard/pkg/domainerrors"
)

// WriteJSON encodes v as JSON with the given status. Encoding failures are
// ignored; headers are already committed by then.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody matches the wire contract used across the API.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:         http.StatusBadRequest,
	dErrors.CodeUnauthorized:       http.StatusUnauthorized,
	dErrors.CodePermissionDenied:   http.StatusForbidden,
	dErrors.CodeNotFound:           http.StatusNotFound,
	dErrors.CodeConflict:           http.StatusConflict,
	dErrors.CodeRateLimited:        http.StatusTooManyRequests,
	dErrors.CodeInvariantViolation: http.StatusUnprocessableEntity,
	dErrors.CodeInternal:           http.StatusInternalServerError,
}

// wireCodeByCode maps domain codes to the machine-readable codes clients
// branch on. These are part of the public API contract.
var wireCodeByCode = map[dErrors.Code]string{
	dErrors.CodeBadRequest:         "BAD_REQUEST",
	dErrors.CodeUnauthorized:       "AUTH_REQUIRED",
	dErrors.CodePermissionDenied:   "PERMISSION_DENIED",
	dErrors.CodeNotFound:           "NOT_FOUND",
	dErrors.CodeConflict:           "CONFLICT",
	dErrors.CodeRateLimited:        "RATE_LIMIT_EXCEEDED",
	dErrors.CodeInvariantViolation: "INVARIANT_VIOLATION",
	dErrors.CodeInternal:           "INTERNAL_ERROR",
}

// messageByCode fixes client-facing messages for codes whose internal detail
// must never leak.
var messageByCode = map[dErrors.Code]string{
	dErrors.CodeUnauthorized:     "Authentication required",
	dErrors.CodePermissionDenied: "Insufficient permissions",
	dErrors.CodeRateLimited:      "Too many requests",
	dErrors.CodeInternal:         "Internal server error",
}

// WriteError maps a domain error to its HTTP representation. Internal error
// detail never reaches the response body.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
		code = dErrors.CodeInternal
	}

	msg := messageByCode[code]
	if msg == "" {
		var de *dErrors.Error
		if errors.As(err, &de) {
			msg = de.Message
		} else {
			msg = "Internal server error"
		}
	}

	WriteJSON(w, status, ErrorBody{Error: msg, Code: wireCodeByCode[code]})
}
