package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors with a stable code.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// Sentinel errors shared across packages.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrPersist      = errors.New("persist failure")
	ErrNotFound     = errors.New("resource not found")
)

// ConvertReason names why the text-conversion boundary failed.
type ConvertReason string

const (
	ConvertFileNotFound    ConvertReason = "FILE_NOT_FOUND"
	ConvertUnsupportedType ConvertReason = "UNSUPPORTED_TYPE"
	ConvertTimeout         ConvertReason = "TIMEOUT"
	ConvertServiceError    ConvertReason = "SERVICE_ERROR"
	ConvertTextTooShort    ConvertReason = "TEXT_TOO_SHORT"
)

// ConvertError is returned by the OCR/conversion boundary. The reason is kept
// so the orchestrator can log something meaningful per document.
type ConvertError struct {
	Reason ConvertReason
	Cause  error
}

func (e *ConvertError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("conversion failed (%s): %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("conversion failed (%s)", e.Reason)
}

func (e *ConvertError) Unwrap() error { return e.Cause }

func NewConvertError(reason ConvertReason, cause error) *ConvertError {
	return &ConvertError{Reason: reason, Cause: cause}
}

// ExtractReason names why the LLM-extraction boundary failed.
type ExtractReason string

const (
	ExtractNoJSON         ExtractReason = "NO_JSON"
	ExtractBadJSON        ExtractReason = "BAD_JSON"
	ExtractSchemaMismatch ExtractReason = "SCHEMA_MISMATCH"
	ExtractTimeout        ExtractReason = "TIMEOUT"
	ExtractServiceError   ExtractReason = "SERVICE_ERROR"
)

// ExtractError is returned by the LLM boundary when no usable document could
// be produced. A failed extraction never yields a partial record.
type ExtractError struct {
	Reason ExtractReason
	Cause  error
}

func (e *ExtractError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction failed (%s): %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("extraction failed (%s)", e.Reason)
}

func (e *ExtractError) Unwrap() error { return e.Cause }

func NewExtractError(reason ExtractReason, cause error) *ExtractError {
	return &ExtractError{Reason: reason, Cause: cause}
}

// AsConvertError and AsExtractError are small helpers over errors.As.
func AsConvertError(err error) (*ConvertError, bool) {
	var ce *ConvertError
	ok := errors.As(err, &ce)
	return ce, ok
}

func AsExtractError(err error) (*ExtractError, bool) {
	var xe *ExtractError
	ok := errors.As(err, &xe)
	return xe, ok
}
