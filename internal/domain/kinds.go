// Package domain contains the core entities of the structured-report engine:
// field and section descriptors, report instances, answer values, and the
// declarative condition grammar used for conditionally required fields.
//
// The model follows the PSMA PET/CT structured reporting template
// (PROMISE V2 style forms), but nothing in this package is specific to a
// single report type: schemas are pure data and drive validation, rendering
// and serialization without duplication.
package domain

// FieldKind represents the answer type of a single report question.
type FieldKind string

const (
	// CHECKBOX selects one or more values from a declared option set.
	// Single-select (radio style) fields declare maxSelect=1.
	CHECKBOX FieldKind = "CHECKBOX"
	// BOOLEAN is a strict two-value yes/no answer.
	BOOLEAN FieldKind = "BOOLEAN"
	// NUMBER is a finite real value, optionally bounded (SUV values are >= 0).
	NUMBER FieldKind = "NUMBER"
	// OPEN_TEXT is free text; staging impressions (miTNM, PROMISE, PRIMARY,
	// RECIP) are recorded as opaque open text, never computed.
	OPEN_TEXT FieldKind = "OPEN_TEXT"
)

// IsValid reports whether the field kind is one of the supported answer types.
func (k FieldKind) IsValid() bool {
	switch k {
	case CHECKBOX, BOOLEAN, NUMBER, OPEN_TEXT:
		return true
	default:
		return false
	}
}

// String returns the string representation of the field kind.
func (k FieldKind) String() string {
	return string(k)
}

// IssueCode identifies the validation rule a report instance violated.
// Codes are stable strings so external form renderers can key on them.
type IssueCode string

const (
	UnknownField             IssueCode = "UNKNOWN_FIELD"
	TypeMismatch             IssueCode = "TYPE_MISMATCH"
	ConstraintViolation      IssueCode = "CONSTRAINT_VIOLATION"
	MissingRequiredField     IssueCode = "MISSING_REQUIRED_FIELD"
	OccurrenceCountViolation IssueCode = "OCCURRENCE_COUNT_VIOLATION"
)

// IsValid reports whether the issue code is part of the closed code set.
func (c IssueCode) IsValid() bool {
	switch c {
	case UnknownField, TypeMismatch, ConstraintViolation, MissingRequiredField, OccurrenceCountViolation:
		return true
	default:
		return false
	}
}

// String returns the string representation of the issue code.
func (c IssueCode) String() string {
	return string(c)
}
