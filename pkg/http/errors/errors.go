package errors

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every failure response.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func write(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// RespondError writes a standardized error response.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	write(w, status, ErrorResponse{Error: code, Message: message})
}

// RespondValidationError writes a 400 naming the offending field.
func RespondValidationError(w http.ResponseWriter, code, message, field string) {
	write(w, http.StatusBadRequest, ErrorResponse{Error: code, Message: message, Field: field})
}

// RespondFieldErrors writes a 400 validation_failed response with per-field messages.
func RespondFieldErrors(w http.ResponseWriter, fields map[string]string) {
	write(w, http.StatusBadRequest, ErrorResponse{
		Error:   ErrCodeValidationFailed,
		Message: "Validation failed",
		Details: map[string]any{"fields": fields},
	})
}

// RespondErrorWithDetails writes an error response with additional details.
func RespondErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	write(w, status, ErrorResponse{Error: code, Message: message, Details: details})
}

// RespondServiceError writes a 500 for an unexpected error. The underlying
// message is exposed only outside production.
func RespondServiceError(w http.ResponseWriter, err error, production bool) {
	msg := "Internal server error"
	if !production && err != nil {
		msg = err.Error()
	}
	RespondError(w, http.StatusInternalServerError, ErrCodeInternalError, msg)
}

// RespondInternalError writes an internal server error response.
func RespondInternalError(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// RespondNotFound writes a not found error response.
func RespondNotFound(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusNotFound, code, message)
}

// RespondUnauthorized writes an unauthorized error response.
func RespondUnauthorized(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusUnauthorized, code, message)
}

// RespondForbidden writes a forbidden error response.
func RespondForbidden(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusForbidden, code, message)
}

// RespondBadRequest writes a bad request error response.
func RespondBadRequest(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusBadRequest, code, message)
}

// RespondConflict writes a conflict error response.
func RespondConflict(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusConflict, code, message)
}

// RespondFieldConflict writes a 409 naming the field that collided.
func RespondFieldConflict(w http.ResponseWriter, code, message, field string) {
	write(w, http.StatusConflict, ErrorResponse{Error: code, Message: message, Field: field})
}

// RespondServiceUnavailable writes a service unavailable error response.
func RespondServiceUnavailable(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusServiceUnavailable, code, message)
}
