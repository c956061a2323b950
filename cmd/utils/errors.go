package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies every error the service layer can return. Handlers
// map codes to HTTP statuses; the code is also part of the response body so
// clients don't have to parse messages.
type ErrorCode string

const (
	CodeUnauthorized    ErrorCode = "unauthorized"
	CodeNotFound        ErrorCode = "not_found"
	CodeInvalidArgument ErrorCode = "invalid_argument"
	CodeConflict        ErrorCode = "conflict"
	CodeUpstream        ErrorCode = "upstream"
)

type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"error"`
	cause   error
}

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.cause }

func Unauthorized(message string) error {
	return &APIError{Code: CodeUnauthorized, Message: message}
}

func NotFound(message string) error {
	return &APIError{Code: CodeNotFound, Message: message}
}

func InvalidArgument(message string) error {
	return &APIError{Code: CodeInvalidArgument, Message: message}
}

func Conflict(message string) error {
	return &APIError{Code: CodeConflict, Message: message}
}

// Upstream wraps a datastore or identity-provider failure that has no more
// specific classification.
func Upstream(message string, cause error) error {
	return &APIError{Code: CodeUpstream, Message: message, cause: cause}
}

func statusFor(code ErrorCode) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError sends err as a JSON error response. Unclassified errors are
// reported as upstream failures without leaking their details.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		apiErr = &APIError{Code: CodeUpstream, Message: "internal error"}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(apiErr.Code))
	json.NewEncoder(w).Encode(apiErr)
}

// WriteJSON sends a success response.
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
