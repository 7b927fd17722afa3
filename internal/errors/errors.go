// FilePath: internal/errors/errors.go
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Error types
	ErrorTypeValidation          ErrorType = "validation"
	ErrorTypeUpload              ErrorType = "upload"
	ErrorTypeVerificationService ErrorType = "verification_service"
	ErrorTypeNotification        ErrorType = "notification"
	ErrorTypeLedgerInconsistency ErrorType = "ledger_inconsistency"
	ErrorTypeDatabase            ErrorType = "database"
	ErrorTypeDuplicate           ErrorType = "duplicate"
	ErrorTypeAuth                ErrorType = "authentication"
	ErrorTypeAuthorize           ErrorType = "authorization"
	ErrorTypeNotFound            ErrorType = "not_found"
	ErrorTypeInternal            ErrorType = "internal"
	ErrorTypeUnavailable         ErrorType = "service_unavailable"
	ErrorTypeCancelled           ErrorType = "cancelled"
)

// StatusClientClosedRequest is returned when the caller went away mid-request.
const StatusClientClosedRequest = 499

// APIError represents a structured API error
type APIError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	Details   any       `json:"details,omitempty"`
	err       error     // Internal error for logging
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the internal cause to errors.Is / errors.As
func (e *APIError) Unwrap() error {
	return e.err
}

// Retryable reports whether the caller may retry the same request later.
// The core itself never retries.
func (e *APIError) Retryable() bool {
	switch e.Type {
	case ErrorTypeUpload, ErrorTypeVerificationService, ErrorTypeNotification, ErrorTypeUnavailable:
		return true
	}
	return false
}

// WithRequestID adds a request ID to the error
func (e *APIError) WithRequestID(id string) *APIError {
	e.RequestID = id
	return e
}

// WithDetails adds additional details to the error
func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

func newError(t ErrorType, code int, msg string, err error) *APIError {
	return &APIError{
		Type:    t,
		Message: msg,
		Code:    code,
		err:     err,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(msg string, err error) *APIError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, msg, err)
}

// NewUploadError creates an error for a failed object-store upload
func NewUploadError(msg string, err error) *APIError {
	return newError(ErrorTypeUpload, http.StatusBadGateway, msg, err)
}

// NewVerificationServiceError creates an error for a failed image verdict call.
// status is the upstream HTTP status, or 0 when no response was received.
func NewVerificationServiceError(msg string, status int, err error) *APIError {
	e := newError(ErrorTypeVerificationService, http.StatusBadGateway, msg, err)
	if status != 0 {
		e.Details = map[string]int{"upstream_status": status}
	}
	return e
}

// NewNotificationError creates an error for a failed escalation notification
func NewNotificationError(msg string, err error) *APIError {
	return newError(ErrorTypeNotification, http.StatusBadGateway, msg, err)
}

// NewLedgerInconsistencyError creates a non-fatal error for a secondary ledger
// write that failed after the primary write succeeded
func NewLedgerInconsistencyError(msg string, err error) *APIError {
	return newError(ErrorTypeLedgerInconsistency, http.StatusInternalServerError, msg, err)
}

// NewDatabaseError creates a new database error
func NewDatabaseError(msg string, err error) *APIError {
	return newError(ErrorTypeDatabase, http.StatusInternalServerError, msg, err)
}

// NewDuplicateError creates an error for a primary or unique key collision
func NewDuplicateError(msg string, err error) *APIError {
	return newError(ErrorTypeDuplicate, http.StatusConflict, msg, err)
}

// NewAuthError creates a new authentication error
func NewAuthError(msg string, err error) *APIError {
	return newError(ErrorTypeAuth, http.StatusUnauthorized, msg, err)
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(msg string, err error) *APIError {
	return newError(ErrorTypeAuthorize, http.StatusForbidden, msg, err)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(msg string, err error) *APIError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, msg, err)
}

// NewInternalError creates a new internal server error
func NewInternalError(msg string, err error) *APIError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, msg, err)
}

// NewUnavailableError creates an error for a dependency that is not configured or reachable
func NewUnavailableError(msg string, err error) *APIError {
	return newError(ErrorTypeUnavailable, http.StatusServiceUnavailable, msg, err)
}

// NewCancelledError creates an error for work abandoned because the caller cancelled
func NewCancelledError(msg string, err error) *APIError {
	return newError(ErrorTypeCancelled, StatusClientClosedRequest, msg, err)
}

// TypeOf returns the ErrorType of the first APIError in err's chain, or "" if none.
func TypeOf(err error) ErrorType {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ""
}

// IsNotFound checks if an error is a NotFound error
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsValidation checks if an error is a Validation error
func IsValidation(err error) bool {
	return TypeOf(err) == ErrorTypeValidation
}

// IsDuplicate checks if an error is a Duplicate error
func IsDuplicate(err error) bool {
	return TypeOf(err) == ErrorTypeDuplicate
}

// IsUpload checks if an error is an Upload error
func IsUpload(err error) bool {
	return TypeOf(err) == ErrorTypeUpload
}

// IsVerificationService checks if an error is a VerificationService error
func IsVerificationService(err error) bool {
	return TypeOf(err) == ErrorTypeVerificationService
}

// IsLedgerInconsistency checks if an error is a LedgerInconsistency error
func IsLedgerInconsistency(err error) bool {
	return TypeOf(err) == ErrorTypeLedgerInconsistency
}

// IsCancelled checks if an error is a Cancelled error
func IsCancelled(err error) bool {
	return TypeOf(err) == ErrorTypeCancelled
}

// AsAPIError returns err as an APIError. A bare context cancellation becomes a
// cancelled error, anything else unknown is internal.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	if stderrors.Is(err, context.Canceled) {
		return NewCancelledError("request cancelled", err)
	}
	return NewInternalError("internal server error", err)
}
