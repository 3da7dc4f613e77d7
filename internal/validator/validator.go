// Package validator checks report instances against their schema. All
// business rules live here: SetField only guarantees shape, the validator
// enforces types, constraints, conditional requirements and occurrence
// bounds, reporting every violation at once as data.
package validator

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/psma-report-engine/internal/domain"
)

// Validator evaluates the rule pipeline. Rules run in a fixed order
// (structural, type, constraint, conditional-required, occurrence-count) so
// the issue list is deterministic and reproducible across runs. Validation
// is a pure function of (instance, schema): no hidden state, safe to re-run
// concurrently against a shared schema.
type Validator struct {
	logger *logrus.Logger
}

// New creates a validator.
func New(logger *logrus.Logger) *Validator {
	return &Validator{logger: logger}
}

// Validate checks the instance against the schema and returns every issue
// found. A version mismatch between the two is a caller error, not a
// validation outcome: instances are only meaningful against the exact
// schema version they were created with.
func (v *Validator) Validate(in *domain.Instance, sc *domain.Schema) (domain.ValidationResult, error) {
	if in == nil || in.Root == nil {
		return domain.ValidationResult{}, fmt.Errorf("nil instance")
	}
	if in.SchemaVersion != sc.Version {
		return domain.ValidationResult{}, fmt.Errorf("instance schema version %d does not match schema version %d", in.SchemaVersion, sc.Version)
	}

	var result domain.ValidationResult
	root := domain.Path{}

	if in.Root.SectionID != sc.Root.ID {
		result.Add(in.Root.SectionID, domain.UnknownField, "unknown root section %q", in.Root.SectionID)
		return result, nil
	}

	for _, occ := range in.Root.Occurrences {
		v.checkStructural(&result, root, sc.Root, occ)
	}
	for _, occ := range in.Root.Occurrences {
		v.checkTypes(&result, root, sc.Root, occ)
	}
	for _, occ := range in.Root.Occurrences {
		v.checkConstraints(&result, root, sc.Root, occ)
	}
	for _, occ := range in.Root.Occurrences {
		v.checkRequired(&result, root, sc.Root, occ)
	}
	v.checkOccurrences(&result, root, sc.Root, in.Root)

	v.logger.WithFields(logrus.Fields{
		"schema_version": sc.Version,
		"issues":         len(result.Issues),
		"valid":          result.Valid(),
	}).Debug("Completed report validation")

	return result, nil
}

// checkStructural flags instance content that does not resolve to a spec in
// this schema version. Unknown sections are reported once and not descended
// into; their contents cannot be checked against anything.
func (v *Validator) checkStructural(result *domain.ValidationResult, path domain.Path, spec *domain.SectionSpec, occ *domain.Occurrence) {
	for _, fv := range occ.Fields {
		if _, ok := spec.Field(fv.FieldID); !ok {
			result.Add(path.WithField(fv.FieldID).String(), domain.UnknownField,
				"field %q is not declared in section %q", fv.FieldID, spec.ID)
		}
	}
	for _, si := range occ.Sections {
		sub, ok := spec.Section(si.SectionID)
		if !ok {
			result.Add(path.Child(si.SectionID, 0).String(), domain.UnknownField,
				"section %q is not declared in section %q", si.SectionID, spec.ID)
			continue
		}
		for i, subOcc := range si.Occurrences {
			v.checkStructural(result, path.Child(si.SectionID, i), sub, subOcc)
		}
	}
}

// checkTypes verifies that every set value is a well-shaped answer for its
// field kind. Values entering through SetField already conform; this pass
// re-checks decoded instances, which bypass the shape gate.
func (v *Validator) checkTypes(result *domain.ValidationResult, path domain.Path, spec *domain.SectionSpec, occ *domain.Occurrence) {
	for _, fv := range occ.Fields {
		fieldSpec, ok := spec.Field(fv.FieldID)
		if !ok {
			continue
		}
		if err := fv.Value.Conforms(fieldSpec.Kind); err != nil {
			result.Add(path.WithField(fv.FieldID).String(), domain.TypeMismatch, "%v", err)
		}
	}
	v.descend(path, spec, occ, func(childPath domain.Path, childSpec *domain.SectionSpec, childOcc *domain.Occurrence) {
		v.checkTypes(result, childPath, childSpec, childOcc)
	})
}

// checkConstraints enforces declared bounds on well-typed values: numeric
// min/max and checkbox option membership and selection limits.
func (v *Validator) checkConstraints(result *domain.ValidationResult, path domain.Path, spec *domain.SectionSpec, occ *domain.Occurrence) {
	for _, fv := range occ.Fields {
		fieldSpec, ok := spec.Field(fv.FieldID)
		if !ok || fv.Value.Conforms(fieldSpec.Kind) != nil {
			continue
		}
		fieldPath := path.WithField(fv.FieldID).String()
		c := fieldSpec.Constraints
		switch fieldSpec.Kind {
		case domain.NUMBER:
			n := *fv.Value.Number
			if c.Min != nil && n < *c.Min {
				result.Add(fieldPath, domain.ConstraintViolation, "value %v is below minimum %v", n, *c.Min)
			}
			if c.Max != nil && n > *c.Max {
				result.Add(fieldPath, domain.ConstraintViolation, "value %v is above maximum %v", n, *c.Max)
			}
		case domain.CHECKBOX:
			declared := make(map[string]bool, len(c.Options))
			for _, opt := range c.Options {
				declared[opt] = true
			}
			seen := make(map[string]bool, len(fv.Value.Options))
			for _, opt := range fv.Value.Options {
				if !declared[opt] {
					result.Add(fieldPath, domain.ConstraintViolation, "option %q is not declared for this field", opt)
				}
				if seen[opt] {
					result.Add(fieldPath, domain.ConstraintViolation, "option %q is selected more than once", opt)
				}
				seen[opt] = true
			}
			if c.MaxSelect > 0 && len(fv.Value.Options) > c.MaxSelect {
				result.Add(fieldPath, domain.ConstraintViolation, "%d options selected, at most %d allowed", len(fv.Value.Options), c.MaxSelect)
			}
		}
	}
	v.descend(path, spec, occ, func(childPath domain.Path, childSpec *domain.SectionSpec, childOcc *domain.Occurrence) {
		v.checkConstraints(result, childPath, childSpec, childOcc)
	})
}

// checkRequired walks fields in schema order and reports unset fields whose
// requirement holds: either required outright or with a satisfied
// conditional predicate over sibling values. Required fields only apply to
// occurrences that exist; a repeatable section with zero occurrences
// contributes nothing here.
func (v *Validator) checkRequired(result *domain.ValidationResult, path domain.Path, spec *domain.SectionSpec, occ *domain.Occurrence) {
	for _, fieldSpec := range spec.Fields {
		if _, set := occ.Field(fieldSpec.ID); set {
			continue
		}
		required := fieldSpec.Required
		if !required && fieldSpec.RequiredIf != nil {
			required = evalCondition(fieldSpec.RequiredIf, occ)
		}
		if required {
			result.Add(path.WithField(fieldSpec.ID).String(), domain.MissingRequiredField,
				"field %q is required but not set", fieldSpec.ID)
		}
	}
	v.descend(path, spec, occ, func(childPath domain.Path, childSpec *domain.SectionSpec, childOcc *domain.Occurrence) {
		v.checkRequired(result, childPath, childSpec, childOcc)
	})
}

// checkOccurrences verifies occurrence counts in schema order: repeatable
// sections against their declared bounds, non-repeatable sections against
// exactly one. A section instance entirely absent from the tree counts as
// zero occurrences, so a repeatable section with minOccurs 0 may be missing
// without raising an issue.
func (v *Validator) checkOccurrences(result *domain.ValidationResult, path domain.Path, spec *domain.SectionSpec, si *domain.SectionInstance) {
	count := 0
	if si != nil {
		count = len(si.Occurrences)
	}
	sectionPath := path.String()
	if sectionPath == "" {
		sectionPath = spec.ID
	}

	if spec.Repeatable {
		if count < spec.MinOccurs {
			result.Add(sectionPath, domain.OccurrenceCountViolation,
				"section has %d occurrences, at least %d required", count, spec.MinOccurs)
		}
		if spec.MaxOccurs > 0 && count > spec.MaxOccurs {
			result.Add(sectionPath, domain.OccurrenceCountViolation,
				"section has %d occurrences, at most %d allowed", count, spec.MaxOccurs)
		}
	} else if count != 1 {
		result.Add(sectionPath, domain.OccurrenceCountViolation,
			"section must have exactly one occurrence, found %d", count)
	}

	if si == nil {
		return
	}
	for i, occ := range si.Occurrences {
		occPath := path
		if len(path.Sections) > 0 {
			occPath = domain.Path{Sections: append(append([]domain.PathSegment{}, path.Sections[:len(path.Sections)-1]...),
				domain.PathSegment{Section: spec.ID, Index: i})}
		}
		for _, sub := range spec.Sections {
			v.checkOccurrences(result, occPath.Child(sub.ID, 0), sub, occ.Section(sub.ID))
		}
	}
}

// descend visits every known child section occurrence in instance order.
func (v *Validator) descend(path domain.Path, spec *domain.SectionSpec, occ *domain.Occurrence, visit func(domain.Path, *domain.SectionSpec, *domain.Occurrence)) {
	for _, si := range occ.Sections {
		sub, ok := spec.Section(si.SectionID)
		if !ok {
			continue
		}
		for i, subOcc := range si.Occurrences {
			visit(path.Child(si.SectionID, i), sub, subOcc)
		}
	}
}
