package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the tape pipeline. The structured error types below
// report errors.Is equality with the matching sentinel.
var (
	ErrConfigFileNotFound   = errors.New("schema file not found")
	ErrConfigHeaderMismatch = errors.New("schema header mismatch")
	ErrConfigRowInvalid     = errors.New("schema row invalid")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrNoValidData          = errors.New("no valid data")
	ErrMalformedRampSpec    = errors.New("malformed ramp spec")
	ErrUnsupportedVariable  = errors.New("unsupported variable")
	ErrUnsupportedFormat    = errors.New("unsupported file format")
)

// ConfigFileNotFoundError reports a schema path that is absent or not a .csv file.
type ConfigFileNotFoundError struct {
	Path   string
	Reason string
}

func (e *ConfigFileNotFoundError) Error() string {
	return fmt.Sprintf("schema file %q: %s", e.Path, e.Reason)
}

// Is matches ErrConfigFileNotFound.
func (e *ConfigFileNotFoundError) Is(target error) bool {
	return target == ErrConfigFileNotFound
}

// ConfigHeaderMismatchError carries the expected and the actual schema header.
type ConfigHeaderMismatchError struct {
	Expected []string
	Actual   []string
}

func (e *ConfigHeaderMismatchError) Error() string {
	return fmt.Sprintf("schema header mismatch: expected [%s], got [%s]",
		strings.Join(e.Expected, ","), strings.Join(e.Actual, ","))
}

// Is matches ErrConfigHeaderMismatch.
func (e *ConfigHeaderMismatchError) Is(target error) bool {
	return target == ErrConfigHeaderMismatch
}

// ConfigRowInvalidError pinpoints the first bad cell of a schema file.
// Row is the 1-based data row number (the header is row 0).
type ConfigRowInvalidError struct {
	Row      int
	Field    string
	Expected string
	Actual   string
}

func (e *ConfigRowInvalidError) Error() string {
	return fmt.Sprintf("schema row %d: column %s expected %s, got %q", e.Row, e.Field, e.Expected, e.Actual)
}

// Is matches ErrConfigRowInvalid.
func (e *ConfigRowInvalidError) Is(target error) bool {
	return target == ErrConfigRowInvalid
}

// MissingRequiredFieldError lists every required field a tape lacks.
type MissingRequiredFieldError struct {
	AssetClass string
	Fields     []string
}

func (e *MissingRequiredFieldError) Error() string {
	if e.AssetClass == "" {
		return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("%s: missing required fields: %s", e.AssetClass, strings.Join(e.Fields, ", "))
}

// Is matches ErrMissingRequiredField.
func (e *MissingRequiredFieldError) Is(target error) bool {
	return target == ErrMissingRequiredField
}

// UnsupportedVariableError reports a bucketize or stratify request on a field
// that is absent from the record set or the schema.
type UnsupportedVariableError struct {
	Variable string
	Reason   string
}

func (e *UnsupportedVariableError) Error() string {
	return fmt.Sprintf("variable %q: %s", e.Variable, e.Reason)
}

// Is matches ErrUnsupportedVariable.
func (e *UnsupportedVariableError) Is(target error) bool {
	return target == ErrUnsupportedVariable
}

// MalformedRampError describes the token that broke a ramp expression.
type MalformedRampError struct {
	Input  string
	Token  string
	Reason string
}

func (e *MalformedRampError) Error() string {
	return fmt.Sprintf("malformed ramp %q at token %q: %s", e.Input, e.Token, e.Reason)
}

// Is matches ErrMalformedRampSpec.
func (e *MalformedRampError) Is(target error) bool {
	return target == ErrMalformedRampSpec
}
