// Package errors defines the application error type and code taxonomy.
//
// Codes are grouped by failure class so handlers and callers can map an error
// to behavior without string matching:
//
//	1xxx generic, 2xxx admission (rejected before any storage write),
//	3xxx compression (recoverable background failures),
//	4xxx integrity (checksum mismatches, never auto-corrected),
//	5xxx database and resource exhaustion.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a failure class.
type ErrorCode int

const (
	// Generic codes (1000-1999)
	ErrSuccess        ErrorCode = 0
	ErrInternalServer ErrorCode = 1000
	ErrInvalidParams  ErrorCode = 1001
	ErrNotFound       ErrorCode = 1004

	// Admission codes (2000-2999): upload rejected before any storage write.
	// Fully recoverable by the caller retrying with different input.
	ErrQuotaExceeded   ErrorCode = 2000
	ErrInvalidFileType ErrorCode = 2001
	ErrFileTooLarge    ErrorCode = 2002
	ErrEmptyFile       ErrorCode = 2003

	// Compression codes (3000-3999): background compression failures.
	// Recoverable; the document falls back to its uncompressed bytes.
	ErrCompressionFailed    ErrorCode = 3000
	ErrCompressionTimeout   ErrorCode = 3001
	ErrCompressionInFlight  ErrorCode = 3002
	ErrBackupCreationFailed ErrorCode = 3003
	ErrBackupNotExpirable   ErrorCode = 3004

	// Integrity codes (4000-4999): checksum mismatch after decompression.
	// Surfaced loudly, never silently corrected.
	ErrChecksumMismatch ErrorCode = 4000
	ErrDecompressFailed ErrorCode = 4001

	// Database and resource codes (5000-5999)
	ErrDatabaseQuery      ErrorCode = 5000
	ErrDatabaseTx         ErrorCode = 5001
	ErrStorageWrite       ErrorCode = 5002
	ErrStorageRead        ErrorCode = 5003
	ErrTempSpaceExhausted ErrorCode = 5004
)

// errorMessages maps codes to their default messages.
var errorMessages = map[ErrorCode]string{
	ErrSuccess:        "success",
	ErrInternalServer: "internal server error",
	ErrInvalidParams:  "invalid parameters",
	ErrNotFound:       "resource not found",

	ErrQuotaExceeded:   "storage quota exceeded",
	ErrInvalidFileType: "file type not allowed",
	ErrFileTooLarge:    "file size exceeds maximum",
	ErrEmptyFile:       "file is empty",

	ErrCompressionFailed:    "compression failed",
	ErrCompressionTimeout:   "compression timed out",
	ErrCompressionInFlight:  "compression already in progress",
	ErrBackupCreationFailed: "backup creation failed",
	ErrBackupNotExpirable:   "backup not eligible for expiry",

	ErrChecksumMismatch: "checksum verification failed",
	ErrDecompressFailed: "decompression failed",

	ErrDatabaseQuery:      "database query failed",
	ErrDatabaseTx:         "database transaction failed",
	ErrStorageWrite:       "storage write failed",
	ErrStorageRead:        "storage read failed",
	ErrTempSpaceExhausted: "temporary space exhausted",
}

// AppError is the unified application error.
type AppError struct {
	Code          ErrorCode `json:"code"`
	Message       string    `json:"message"`
	Details       string    `json:"details,omitempty"`
	OriginalError error     `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap exposes the original error for errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.OriginalError
}

// WithDetails attaches detail text to the error.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// New creates an AppError with the default message for the code.
func New(code ErrorCode) *AppError {
	return &AppError{
		Code:    code,
		Message: GetErrorMessage(code),
	}
}

// NewWithDetails creates an AppError with detail text.
func NewWithDetails(code ErrorCode, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: GetErrorMessage(code),
		Details: details,
	}
}

// Wrap wraps an underlying error into an AppError.
func Wrap(code ErrorCode, err error) *AppError {
	appErr := &AppError{
		Code:          code,
		Message:       GetErrorMessage(code),
		OriginalError: err,
	}
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// GetAppError extracts an AppError from an error chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetErrorMessage returns the default message for a code.
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsAdmission reports whether err is an admission rejection.
func IsAdmission(err error) bool {
	return codeInRange(err, 2000, 2999)
}

// IsCompressionFailure reports whether err is a recoverable compression failure.
func IsCompressionFailure(err error) bool {
	return codeInRange(err, 3000, 3999)
}

// IsIntegrity reports whether err is an integrity failure.
func IsIntegrity(err error) bool {
	return codeInRange(err, 4000, 4999)
}

// IsResourceExhaustion reports whether err is a resource exhaustion failure.
func IsResourceExhaustion(err error) bool {
	if appErr, ok := GetAppError(err); ok {
		return appErr.Code == ErrTempSpaceExhausted || appErr.Code == ErrCompressionTimeout
	}
	return false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	if appErr, ok := GetAppError(err); ok {
		return appErr.Code == ErrNotFound
	}
	return false
}

func codeInRange(err error, lo, hi ErrorCode) bool {
	if appErr, ok := GetAppError(err); ok {
		return appErr.Code >= lo && appErr.Code <= hi
	}
	return false
}
