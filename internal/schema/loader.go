// Package schema loads declarative report schema documents and manages the
// registry of published schema versions.
//
// A schema document is pure data: a versioned JSON tree of section and
// field nodes with kinds, constraints and conditional-required expressions.
// The same compiled schema drives validation, rendering and the codec.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/psma-report-engine/internal/domain"
)

// maxNestingDepth caps section nesting. Documents are trees by construction
// so true cycles cannot be expressed, but a runaway generator producing
// pathological nesting is rejected at this bound instead of at a stack
// overflow deep inside the validator.
const maxNestingDepth = 32

// Load reads and compiles a schema document. It returns a *domain.SchemaError
// on any malformed structure: duplicate sibling ids, unknown field kinds,
// invalid constraints for a kind, unresolvable or ill-typed conditions,
// inconsistent occurrence bounds.
func Load(r io.Reader) (*domain.Schema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.NewSchemaError(domain.SchemaErrMalformed, "", fmt.Sprintf("reading schema document: %v", err))
	}
	return Parse(data)
}

// Parse compiles a schema document held in memory.
func Parse(data []byte) (*domain.Schema, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	sc := &domain.Schema{}
	if err := dec.Decode(sc); err != nil {
		return nil, domain.NewSchemaError(domain.SchemaErrMalformed, "", fmt.Sprintf("parsing schema document: %v", err))
	}
	if dec.More() {
		return nil, domain.NewSchemaError(domain.SchemaErrMalformed, "", "trailing data after schema document")
	}
	if err := compile(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func compile(sc *domain.Schema) error {
	if sc.Version < 1 {
		return domain.NewSchemaError(domain.SchemaErrInvalidVersion, "", fmt.Sprintf("schemaVersion must be >= 1, got %d", sc.Version))
	}
	if sc.Root == nil {
		return domain.NewSchemaError(domain.SchemaErrMalformed, "", "schema has no root section")
	}
	if sc.Root.Repeatable {
		return domain.NewSchemaError(domain.SchemaErrInvalidOccurs, sc.Root.ID, "root section cannot be repeatable")
	}
	if err := checkSection(sc.Root, sc.Root.ID, 1); err != nil {
		return err
	}
	sc.Root.BuildIndexes()
	return nil
}

func checkSection(s *domain.SectionSpec, path string, depth int) error {
	if depth > maxNestingDepth {
		return domain.NewSchemaError(domain.SchemaErrNestingTooDeep, path, fmt.Sprintf("section nesting exceeds %d levels", maxNestingDepth))
	}
	if s.ID == "" {
		return domain.NewSchemaError(domain.SchemaErrMalformed, path, "section has empty id")
	}
	if err := checkOccurs(s, path); err != nil {
		return err
	}

	// Field and section ids share one sibling namespace; uniqueness is
	// scoped to this section only, because repeatable sections reuse the
	// same ids per occurrence.
	seen := make(map[string]bool, len(s.Fields)+len(s.Sections))
	for _, f := range s.Fields {
		fieldPath := path + "." + f.ID
		if f.ID == "" {
			return domain.NewSchemaError(domain.SchemaErrMalformed, path, "field has empty id")
		}
		if seen[f.ID] {
			return domain.NewSchemaError(domain.SchemaErrDuplicateID, fieldPath, fmt.Sprintf("duplicate sibling id %q", f.ID))
		}
		seen[f.ID] = true
		if err := checkField(f, s, fieldPath); err != nil {
			return err
		}
	}
	for _, sub := range s.Sections {
		if sub.ID == "" {
			return domain.NewSchemaError(domain.SchemaErrMalformed, path, "section has empty id")
		}
		subPath := path + "." + sub.ID
		if seen[sub.ID] {
			return domain.NewSchemaError(domain.SchemaErrDuplicateID, subPath, fmt.Sprintf("duplicate sibling id %q", sub.ID))
		}
		seen[sub.ID] = true
		if err := checkSection(sub, subPath, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func checkOccurs(s *domain.SectionSpec, path string) error {
	if !s.Repeatable {
		if s.MinOccurs != 0 || s.MaxOccurs != 0 {
			return domain.NewSchemaError(domain.SchemaErrInvalidOccurs, path, "minOccurs/maxOccurs are only valid on repeatable sections")
		}
		return nil
	}
	if s.MinOccurs < 0 {
		return domain.NewSchemaError(domain.SchemaErrInvalidOccurs, path, fmt.Sprintf("minOccurs must be >= 0, got %d", s.MinOccurs))
	}
	if s.MaxOccurs < 0 {
		return domain.NewSchemaError(domain.SchemaErrInvalidOccurs, path, fmt.Sprintf("maxOccurs must be >= 0, got %d", s.MaxOccurs))
	}
	// MaxOccurs 0 means unbounded.
	if s.MaxOccurs > 0 && s.MaxOccurs < s.MinOccurs {
		return domain.NewSchemaError(domain.SchemaErrInvalidOccurs, path, fmt.Sprintf("maxOccurs %d is below minOccurs %d", s.MaxOccurs, s.MinOccurs))
	}
	return nil
}

func checkField(f *domain.FieldSpec, parent *domain.SectionSpec, path string) error {
	if !f.Kind.IsValid() {
		return domain.NewSchemaError(domain.SchemaErrInvalidKind, path, fmt.Sprintf("unknown field kind %q", f.Kind))
	}
	if err := checkConstraints(f, path); err != nil {
		return err
	}
	if f.Required && f.RequiredIf != nil {
		return domain.NewSchemaError(domain.SchemaErrInvalidCondition, path, "field declares both required and requiredIf")
	}
	if f.RequiredIf != nil {
		if err := checkCondition(f, parent, path); err != nil {
			return err
		}
	}
	return nil
}

func checkConstraints(f *domain.FieldSpec, path string) error {
	c := f.Constraints
	switch f.Kind {
	case domain.NUMBER:
		if len(c.Options) > 0 || c.MaxSelect != 0 {
			return domain.NewSchemaError(domain.SchemaErrInvalidConstraint, path, "options/maxSelect are not valid on NUMBER fields")
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return domain.NewSchemaError(domain.SchemaErrInvalidConstraint, path, fmt.Sprintf("min %v exceeds max %v", *c.Min, *c.Max))
		}
	case domain.CHECKBOX:
		if c.Min != nil || c.Max != nil {
			return domain.NewSchemaError(domain.SchemaErrInvalidConstraint, path, "min/max are not valid on CHECKBOX fields")
		}
		if len(c.Options) == 0 {
			return domain.NewSchemaError(domain.SchemaErrInvalidConstraint, path, "CHECKBOX field declares no options")
		}
		seen := make(map[string]bool, len(c.Options))
		for _, opt := range c.Options {
			if opt == "" {
				return domain.NewSchemaError(domain.SchemaErrInvalidConstraint, path, "CHECKBOX option is empty")
			}
			if seen[opt] {
				return domain.NewSchemaError(domain.SchemaErrInvalidConstraint, path, fmt.Sprintf("duplicate CHECKBOX option %q", opt))
			}
			seen[opt] = true
		}
		if c.MaxSelect < 0 || c.MaxSelect > len(c.Options) {
			return domain.NewSchemaError(domain.SchemaErrInvalidConstraint, path, fmt.Sprintf("maxSelect %d is outside 0..%d", c.MaxSelect, len(c.Options)))
		}
	case domain.BOOLEAN, domain.OPEN_TEXT:
		if c.Min != nil || c.Max != nil || len(c.Options) > 0 || c.MaxSelect != 0 {
			return domain.NewSchemaError(domain.SchemaErrInvalidConstraint, path, fmt.Sprintf("%s fields carry no constraints", f.Kind))
		}
	}
	return nil
}

// checkCondition resolves every field reference of a requiredIf expression
// against the enclosing section and checks literal types, so the validator
// can later interpret conditions without re-checking the grammar.
func checkCondition(f *domain.FieldSpec, parent *domain.SectionSpec, path string) error {
	if err := f.RequiredIf.CheckShape(); err != nil {
		return domain.NewSchemaError(domain.SchemaErrInvalidCondition, path, err.Error())
	}
	for _, ref := range f.RequiredIf.References() {
		if ref == f.ID {
			return domain.NewSchemaError(domain.SchemaErrInvalidCondition, path, "condition references the field itself")
		}
		var sibling *domain.FieldSpec
		for _, cand := range parent.Fields {
			if cand.ID == ref {
				sibling = cand
				break
			}
		}
		if sibling == nil {
			return domain.NewSchemaError(domain.SchemaErrInvalidCondition, path, fmt.Sprintf("condition references unknown sibling field %q", ref))
		}
	}
	return checkConditionLiterals(f.RequiredIf, parent, path)
}

func checkConditionLiterals(c *domain.Condition, parent *domain.SectionSpec, path string) error {
	if c.Op == domain.EQUALS {
		var sibling *domain.FieldSpec
		for _, cand := range parent.Fields {
			if cand.ID == c.Field {
				sibling = cand
				break
			}
		}
		if sibling != nil && c.Value.Kind != sibling.Kind {
			return domain.NewSchemaError(domain.SchemaErrInvalidCondition, path,
				fmt.Sprintf("condition compares %s field %q against %s literal", sibling.Kind, c.Field, c.Value.Kind))
		}
		if sibling != nil && sibling.Kind == domain.CHECKBOX {
			declared := make(map[string]bool, len(sibling.Constraints.Options))
			for _, opt := range sibling.Constraints.Options {
				declared[opt] = true
			}
			for _, opt := range c.Value.Options {
				if !declared[opt] {
					return domain.NewSchemaError(domain.SchemaErrInvalidCondition, path,
						fmt.Sprintf("condition literal %q is not a declared option of field %q", opt, c.Field))
				}
			}
		}
	}
	for _, arg := range c.Args {
		if err := checkConditionLiterals(arg, parent, path); err != nil {
			return err
		}
	}
	return nil
}
