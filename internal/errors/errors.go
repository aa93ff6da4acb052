// Package errors provides error code definitions shared across the sync engine
// and the client surfaces that report them to the UI.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable identifier the UI layers can match on.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Local storage errors. Fatal to the current sync cycle; the pending
	// change log itself is the guard against data loss, so the cycle aborts
	// and the next trigger retries.
	ErrLocalStorage ErrorCode = "LOCAL_STORAGE_ERROR"
	ErrMigration    ErrorCode = "MIGRATION_FAILED"

	// Sync errors. Conflicts carry no code here: a detected conflict is a
	// normal outcome surfaced as data (SyncConflict, the conflicts API and
	// the sync.conflict_detected event), never as an error.
	ErrNetwork        ErrorCode = "NETWORK_ERROR"   // unreachable or timed out; retried next cycle
	ErrServerRejected ErrorCode = "SERVER_REJECTED" // 4xx/validation; change stays pending
	ErrSyncDisabled   ErrorCode = "SYNC_DISABLED"
	ErrSyncTimeout    ErrorCode = "SYNC_TIMEOUT"
)

// AppError carries an error code alongside a message and optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error, anywhere in its chain, carries the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the error code of err, or ErrInternal for plain errors.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}
