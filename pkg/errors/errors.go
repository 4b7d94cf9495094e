package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Domain errors
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// Application errors
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"

	// Infrastructure errors
	ErrorTypeDatabase ErrorType = "DATABASE"
)

// Error codes carried in AppError.Code. Callers branch on these, never on messages.
const (
	CodeNullInput            = "NULL_INPUT"
	CodeMinLength            = "MIN_LENGTH"
	CodeMemoReserved         = "MEMO_RESERVED"
	CodeDraftModified        = "DRAFT_MODIFIED"
	CodeDuplicateTitle       = "DUPLICATE_TITLE"
	CodeMemoNotFound         = "MEMO_NOT_FOUND"
	CodePointNotFound        = "POINT_NOT_FOUND"
	CodeRevisionNotFound     = "REVISION_NOT_FOUND"
	CodeContentNotFound      = "CONTENT_NOT_FOUND"
	CodePointMaxMemosReached = "POINT_MAX_MEMOS_REACHED"
	CodeExternalMemo         = "EXTERNAL_MEMO"
	CodeNotExternalMemo      = "NOT_EXTERNAL_MEMO"
	CodeUnknown              = "UNKNOWN"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a single detail entry
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := ""
	for {
		frame, more := frames.Next()
		stack += fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return stack
}

// Constructor functions for common error types

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		StackTrace: captureStackTrace(),
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		StackTrace: captureStackTrace(),
	}
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
		StackTrace: captureStackTrace(),
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
		StackTrace: captureStackTrace(),
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		Code:       CodeUnknown,
		HTTPStatus: http.StatusInternalServerError,
		StackTrace: captureStackTrace(),
	}
}

// NewUnavailableError creates a service unavailable error
func NewUnavailableError(service string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnavailable,
		Message:    fmt.Sprintf("service '%s' is unavailable", service),
		HTTPStatus: http.StatusServiceUnavailable,
		StackTrace: captureStackTrace(),
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeDatabase,
		Message:    fmt.Sprintf("database operation '%s' failed", operation),
		Cause:      err,
		HTTPStatus: http.StatusInternalServerError,
		StackTrace: captureStackTrace(),
	}
}

// Memo domain errors

// MemoReserved is returned when an unexpired reservation held by someone else
// blocks the caller. until is when that reservation lapses.
func MemoReserved(memoID, holderID string, until time.Time) *AppError {
	return NewConflictError(fmt.Sprintf("the memo is currently reserved by another user - memo: %s / user: %s", memoID, holderID)).
		WithCode(CodeMemoReserved).
		WithDetail("memo_id", memoID).
		WithDetail("reserved_by", holderID).
		WithDetail("reserved_until", until)
}

// MinLength is returned when a non-empty body trims to fewer than min characters.
func MinLength(field string, min int) *AppError {
	return NewValidationError(fmt.Sprintf("%s must be empty or at least %d characters", field, min)).
		WithCode(CodeMinLength).
		WithDetail("field", field).
		WithDetail("min", min)
}

// NullInput is returned when a required parameter is missing.
func NullInput(fields ...string) *AppError {
	return NewValidationError(fmt.Sprintf("parameter is null - %v", fields)).
		WithCode(CodeNullInput).
		WithDetail("fields", fields)
}

// MemoNotFound is returned when the memo id does not exist.
func MemoNotFound(memoID string) *AppError {
	return NewNotFoundError("memo "+memoID).WithCode(CodeMemoNotFound)
}

// PointNotFound is returned when the point id does not exist in the graph.
func PointNotFound(pointID string) *AppError {
	return NewNotFoundError("point "+pointID).WithCode(CodePointNotFound)
}

// RevisionNotFound is returned when a revision id is unknown or belongs to another memo.
func RevisionNotFound(revisionID string) *AppError {
	return NewNotFoundError("revision "+revisionID).WithCode(CodeRevisionNotFound)
}

// ContentNotFound is returned when a revision content id is unknown.
func ContentNotFound(contentID string) *AppError {
	return NewNotFoundError("revision content "+contentID).WithCode(CodeContentNotFound)
}

// Helper functions

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// HasCode checks if an error carries a specific code
func HasCode(err error, code string) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return IsType(err, ErrorTypeConflict)
}

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool {
	return IsType(err, ErrorTypeInternal) || IsType(err, ErrorTypeDatabase)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, add context to message
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	// Otherwise create a new internal error
	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
