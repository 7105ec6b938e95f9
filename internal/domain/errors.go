package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID      = "invalid"      // Invalid input or validation failure
	EUNAUTHORIZED = "unauthorized" // Authentication required
	EFORBIDDEN    = "forbidden"    // Permission denied
	ENOTFOUND     = "not_found"    // Resource not found
	ECONFLICT     = "conflict"     // Resource conflict (e.g., duplicate)
	EQUOTA        = "quota"        // Query quota exhausted
	ERATELIMIT    = "rate_limit"   // Request rate limit exceeded
	EUPSTREAM     = "upstream"     // Payment provider or score oracle failed
	EPARTIAL      = "partial"      // Provider succeeded but local persistence failed
	EINTERNAL     = "internal"     // Internal server error
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "checkout.start")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var qe *QuotaError
	if errors.As(err, &qe) {
		return EQUOTA
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
// Internal and partial-failure errors are reduced to a generic message so
// provider-specific error shapes never leak to the client.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL || e.Code == EPARTIAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	var qe *QuotaError
	if errors.As(err, &qe) {
		return "Search limit reached"
	}
	return "An internal error occurred. Please try again later."
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Unauthorized creates an authentication error.
func Unauthorized(op, message string) *Error {
	return &Error{
		Code:    EUNAUTHORIZED,
		Op:      op,
		Message: message,
	}
}

// Conflict creates a conflict error.
func Conflict(op, message string) *Error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Upstream creates an error for a failed external dependency (payment
// provider or score oracle). These are transient and safe for the client
// to retry.
func Upstream(err error, op, message string) *Error {
	return &Error{
		Code:    EUPSTREAM,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// PartialFailure records the degraded state where the payment provider
// call succeeded but the local write failed. It must be logged for manual
// reconciliation and never silently swallowed.
func PartialFailure(err error, op, providerRef string) *Error {
	return &Error{
		Code:    EPARTIAL,
		Op:      op,
		Message: fmt.Sprintf("provider subscription %q created but local record failed", providerRef),
		Err:     err,
	}
}

// RateLimit creates a rate limit error.
func RateLimit(op string) *Error {
	return &Error{
		Code:    ERATELIMIT,
		Op:      op,
		Message: "Too many requests. Please try again later.",
	}
}

// QuotaError is returned when a query is denied because the user's quota
// is exhausted. It carries enough structure for the client to render an
// upgrade prompt.
type QuotaError struct {
	Op       string
	Limit    int
	Consumed int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: query limit reached (%d of %d used)", e.Op, e.Consumed, e.Limit)
}

// Remaining returns the remaining query count, never negative.
func (e *QuotaError) Remaining() int {
	if r := e.Limit - e.Consumed; r > 0 {
		return r
	}
	return 0
}

// QuotaExceeded creates a quota exhaustion error.
func QuotaExceeded(op string, consumed, limit int) *QuotaError {
	return &QuotaError{
		Op:       op,
		Limit:    limit,
		Consumed: consumed,
	}
}
