package apierror

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrBadRequest     ErrorCode = "BAD_REQUEST"
	ErrInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrGateway        ErrorCode = "GATEWAY_ERROR"
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
)

type APIError struct {
	Code      ErrorCode   `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	logrus.Error(details)
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewValidationError builds an INVALID_INPUT error carrying a field-to-message
// map. Validation failures are caller errors surfaced for correction, so they
// are not logged as system failures.
func NewValidationError(message string, fields map[string]string) APIError {
	return APIError{
		Code:    ErrInvalidInput,
		Message: message,
		Details: fields,
	}
}

// NewGatewayError wraps a failure from the ledger gateway. retryable marks
// failures the caller may retry with backoff after re-fetching state.
func NewGatewayError(message string, err error, retryable bool) APIError {
	logrus.Error(err)
	return APIError{
		Code:      ErrGateway,
		Message:   message,
		Details:   err.Error(),
		Retryable: retryable,
	}
}

// Fields returns the per-field error map of an INVALID_INPUT error, or nil.
func (e APIError) Fields() map[string]string {
	if e.Code != ErrInvalidInput {
		return nil
	}
	fields, ok := e.Details.(map[string]string)
	if !ok {
		return nil
	}
	return fields
}

func MapErrorToHTTPStatus(err error) int {
	if apiErr, ok := err.(APIError); ok {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrConflict:
			return http.StatusConflict
		case ErrInvalidInput:
			return http.StatusBadRequest
		case ErrBadRequest:
			return http.StatusBadRequest
		case ErrGateway:
			return http.StatusBadGateway
		case ErrInternalServer:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
