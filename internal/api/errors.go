package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"example.com/fitlog/internal/domain"
)

var statusMessages = map[int]string{
	http.StatusBadRequest:          "Validation error",
	http.StatusUnauthorized:        "Authentication required",
	http.StatusForbidden:           "Permission denied",
	http.StatusNotFound:            "Resource not found",
	http.StatusMethodNotAllowed:    "Method not allowed",
	http.StatusTooManyRequests:     "Too many requests",
	http.StatusInternalServerError: "Internal server error",
}

const (
	detailUnauthenticated = "Authentication credentials were not provided"
	detailInvalidToken    = "Given token not valid for any token type"
	detailForbidden       = "You do not have permission to perform this action"
	detailNotFound        = "The requested resource does not exist"
	detailThrottled       = "Request was throttled. Expected available soon."
	detailServerError     = "An unexpected error occurred"
)

// ErrorResponse is the envelope every failed request returns.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the status, a fixed message per status and details.
type ErrorBody struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Details    any    `json:"details"`
}

func writeError(w http.ResponseWriter, status int, details any) {
	message, ok := statusMessages[status]
	if !ok {
		message = "An error occurred"
	}
	if details == nil {
		details = map[string]any{}
	}
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{
		StatusCode: status,
		Message:    message,
		Details:    details,
	}})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeError(w, status, map[string]string{"detail": detail})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %q not allowed.", r.Method))
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeDetail(w, http.StatusNotFound, detailNotFound)
}

// fail maps a service error onto the envelope. Unexpected errors are logged
// and reported without internals.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Fields)
	case errors.Is(err, domain.ErrUnauthenticated):
		writeDetail(w, http.StatusUnauthorized, detailUnauthenticated)
	case errors.Is(err, domain.ErrPermissionDenied):
		writeDetail(w, http.StatusForbidden, detailForbidden)
	case errors.Is(err, domain.ErrNotFound):
		writeDetail(w, http.StatusNotFound, detailNotFound)
	default:
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeDetail(w, http.StatusInternalServerError, detailServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}
