package domain

import (
	"errors"
	"fmt"
)

// Error codes for schema loading failures
const (
	SchemaErrMalformed         = "MALFORMED_SCHEMA"
	SchemaErrDuplicateID       = "DUPLICATE_ID"
	SchemaErrInvalidKind       = "INVALID_FIELD_KIND"
	SchemaErrInvalidConstraint = "INVALID_CONSTRAINT"
	SchemaErrInvalidCondition  = "INVALID_CONDITION"
	SchemaErrInvalidOccurs     = "INVALID_OCCURRENCE_BOUNDS"
	SchemaErrNestingTooDeep    = "SECTION_NESTING_TOO_DEEP"
	SchemaErrInvalidVersion    = "INVALID_SCHEMA_VERSION"
)

// Error codes for codec failures
const (
	CodecErrMalformed          = "MALFORMED_ENVELOPE"
	CodecErrUnsupportedVersion = "UNSUPPORTED_SCHEMA_VERSION"
	CodecErrUnknownVersion     = "UNKNOWN_SCHEMA_VERSION"
)

// Sentinel errors shared across the engine
var (
	// ErrNotFound is returned by stores and registries when a report or
	// schema version does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedSchemaVersion marks envelopes written with a schema
	// newer than any version known to this process. Decoding such data must
	// fail outright rather than silently dropping fields.
	ErrUnsupportedSchemaVersion = errors.New("unsupported schema version")
)

// SchemaError reports a malformed schema definition. Schema errors are fatal
// at load time and are never silently repaired.
type SchemaError struct {
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s at %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewSchemaError creates a SchemaError for the given location.
func NewSchemaError(code, path, message string) *SchemaError {
	return &SchemaError{Code: code, Path: path, Message: message}
}

// CodecError reports a failure to encode or decode a report envelope.
type CodecError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	wrapped error
}

// Error implements the error interface.
func (e *CodecError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the sentinel, if any, for errors.Is checks.
func (e *CodecError) Unwrap() error {
	return e.wrapped
}

// NewCodecError creates a CodecError with the given code.
func NewCodecError(code, message string) *CodecError {
	err := &CodecError{Code: code, Message: message}
	if code == CodecErrUnsupportedVersion {
		err.wrapped = ErrUnsupportedSchemaVersion
	}
	return err
}

// ValidationIssue is a single business-rule violation found in an instance.
// Issues are data, not errors: the validator reports every offending field
// at once so an external form can highlight them all.
type ValidationIssue struct {
	Path    string    `json:"path"`
	Code    IssueCode `json:"code"`
	Message string    `json:"message"`
}

// ValidationResult is the outcome of validating one instance against its
// schema. An empty issue list means the instance is valid.
type ValidationResult struct {
	Issues []ValidationIssue `json:"issues"`
}

// Valid reports whether validation found no issues.
func (r ValidationResult) Valid() bool {
	return len(r.Issues) == 0
}

// Add appends an issue, preserving the deterministic rule ordering the
// validator produced it in.
func (r *ValidationResult) Add(path string, code IssueCode, format string, args ...any) {
	r.Issues = append(r.Issues, ValidationIssue{
		Path:    path,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}
