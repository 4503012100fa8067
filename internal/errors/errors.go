package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an xstats error code.
type ErrorCode string

const (
	ErrMissingData    ErrorCode = "MISSING_DATA"    // fatal: archive source data unusable
	ErrTransform      ErrorCode = "TRANSFORM"       // stage-local: intermediate document unusable
	ErrReportQuery    ErrorCode = "REPORT_QUERY"    // per report: query failed
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // bad flags or tool arguments
	ErrNotFound       ErrorCode = "NOT_FOUND"       // artifact or file absent
	ErrCancelled      ErrorCode = "CANCELLED"       // context cancelled between steps
	ErrInternal       ErrorCode = "INTERNAL"
)

// Process exit statuses.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitMissingData = 2
)

// XError represents a structured error with code, message, and details.
type XError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *XError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *XError) Unwrap() error {
	return e.Err
}

// NewMissingData creates a fatal error for archive data that cannot be loaded.
// The path is always part of the message so the diagnostic names the offending file.
func NewMissingData(path, reason string, cause error) *XError {
	msg := fmt.Sprintf("%s: %s", path, reason)
	if cause != nil {
		msg = fmt.Sprintf("%s: %s: %v", path, reason, cause)
	}
	return &XError{
		Code:    ErrMissingData,
		Message: msg,
		Details: map[string]any{"path": path},
		Err:     cause,
	}
}

// NewTransform creates a stage-local error for a malformed intermediate document.
func NewTransform(stage, artifact string, cause error) *XError {
	msg := fmt.Sprintf("%s stage failed on %s", stage, artifact)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &XError{
		Code:    ErrTransform,
		Message: msg,
		Details: map[string]any{"stage": stage, "artifact": artifact},
		Err:     cause,
	}
}

// NewReportQuery creates a per-report error for a failed query.
func NewReportQuery(report string, cause error) *XError {
	msg := fmt.Sprintf("report %q failed", report)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &XError{
		Code:    ErrReportQuery,
		Message: msg,
		Details: map[string]any{"report": report},
		Err:     cause,
	}
}

// NewInvalidRequest creates an error for invalid request parameters.
func NewInvalidRequest(msg string) *XError {
	return &XError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewNotFound creates an error for a missing artifact.
func NewNotFound(identifier string) *XError {
	return &XError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates an error for a missing file on disk.
func NewFileNotFound(path string) *XError {
	return &XError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewCancelled creates an error for an operation stopped by context cancellation.
func NewCancelled(operation string) *XError {
	return &XError{
		Code:    ErrCancelled,
		Message: fmt.Sprintf("%s cancelled", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewInternal creates an error for unexpected internal failures.
// The message stays generic; the original error goes to Details for logging.
func NewInternal(err error) *XError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &XError{
		Code:    ErrInternal,
		Message: "an internal error occurred",
		Details: details,
		Err:     err,
	}
}

// Is checks if err (or anything it wraps) is an XError with the given code.
func Is(err error, code ErrorCode) bool {
	var xErr *XError
	if stderrors.As(err, &xErr) {
		return xErr.Code == code
	}
	return false
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if Is(err, ErrMissingData) {
		return ExitMissingData
	}
	return ExitFailure
}
