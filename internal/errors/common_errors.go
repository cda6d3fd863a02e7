package errors

import (
	"fmt"
)

// ErrorType classifies an AppError by the pipeline stage that raised it.
type ErrorType string

const (
	// ErrTypeConfig covers the YAML/env configuration and CLI options.
	ErrTypeConfig ErrorType = "CONFIG"
	// ErrTypeSchema covers field schema CSVs that fail a loader gate.
	ErrTypeSchema ErrorType = "SCHEMA"
	// ErrTypeParsing covers unreadable tapes, header maps and ramp strings.
	ErrTypeParsing ErrorType = "PARSING"
	// ErrTypeStorage covers file system access: opening inputs, writing reports.
	ErrTypeStorage ErrorType = "STORAGE"
	// ErrTypeValidation covers input files rejected before loading.
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	// ErrTypeStratification covers tables that cannot be built from a tape.
	ErrTypeStratification ErrorType = "STRATIFICATION"
)

// AppError is a classified error with optional structured context, such as
// the field, row or asset class involved.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error renders "[TYPE] message" followed by the cause, if any.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the cause so errors.Is matches the domain sentinels.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext sets one context key and returns e for chaining.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError builds an AppError with an empty context.
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewConfigError reports a bad configuration value or CLI option.
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewSchemaError reports a field schema that fails a loader gate.
func NewSchemaError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSchema, message, cause)
}

// NewParsingError reports input that could not be read or parsed.
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError reports a file that could not be opened, stat'ed or written.
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError reports an input file rejected by pre-flight checks.
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError reports a missing file or resource.
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewStratificationError reports a table that cannot be built, such as an
// unsupported summary set or an empty pool.
func NewStratificationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStratification, message, cause)
}
