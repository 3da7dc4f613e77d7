package domain

import "fmt"

// FieldValue records one answered field inside a section occurrence.
// A field id absent from the occurrence is "unset", which is distinct from
// any legal value including empty text and empty option selections.
type FieldValue struct {
	FieldID string `json:"fieldId"`
	Value   Value  `json:"value"`
}

// Occurrence is one concrete instantiation of a section: its answered
// fields plus its nested section instances, both in stable insertion order
// so serialization and validation output are reproducible.
type Occurrence struct {
	Fields   []FieldValue       `json:"fields"`
	Sections []*SectionInstance `json:"sections"`
}

// Field returns the value set for the given field id within this occurrence.
func (o *Occurrence) Field(id string) (Value, bool) {
	for _, fv := range o.Fields {
		if fv.FieldID == id {
			return fv.Value, true
		}
	}
	return Value{}, false
}

// Section returns the nested section instance with the given id.
func (o *Occurrence) Section(id string) *SectionInstance {
	for _, si := range o.Sections {
		if si.SectionID == id {
			return si
		}
	}
	return nil
}

func (o *Occurrence) setField(id string, v Value) {
	for i, fv := range o.Fields {
		if fv.FieldID == id {
			o.Fields[i].Value = v
			return
		}
	}
	o.Fields = append(o.Fields, FieldValue{FieldID: id, Value: v})
}

// SectionInstance holds the occurrence arena of one section: zero or more
// occurrence records, exactly one unless the section is repeatable. A
// repeatable section with no occurrences is kept in the tree as an explicit
// empty marker so "no lesions recorded" is distinguishable from "section
// never visited" after a round trip through the codec.
type SectionInstance struct {
	SectionID   string        `json:"sectionId"`
	Occurrences []*Occurrence `json:"occurrences"`
}

// Instance is a concrete filled-in report mirroring the schema it was
// created against. An instance is only meaningful relative to that exact
// schema version; SchemaVersion binds the two.
//
// Instances are mutated by one logical editing session at a time and share
// no state with each other, so no internal locking is needed.
type Instance struct {
	SchemaVersion int              `json:"schemaVersion"`
	Root          *SectionInstance `json:"root"`

	schema *Schema
}

// NewInstance creates an empty report instance for the given schema. The
// skeleton instantiates every non-repeatable section once and every
// repeatable section with zero occurrences.
func NewInstance(sc *Schema) *Instance {
	return &Instance{
		SchemaVersion: sc.Version,
		Root: &SectionInstance{
			SectionID:   sc.Root.ID,
			Occurrences: []*Occurrence{newOccurrence(sc.Root)},
		},
		schema: sc,
	}
}

// BindInstance attaches a decoded instance tree to its compiled schema.
// Used by the codec after version resolution; the tree is taken as-is, so
// structural conformance is still the validator's job.
func BindInstance(sc *Schema, root *SectionInstance) *Instance {
	return &Instance{SchemaVersion: sc.Version, Root: root, schema: sc}
}

// Schema returns the compiled schema this instance is bound to.
func (in *Instance) Schema() *Schema {
	return in.schema
}

func newOccurrence(spec *SectionSpec) *Occurrence {
	occ := &Occurrence{Fields: []FieldValue{}, Sections: make([]*SectionInstance, 0, len(spec.Sections))}
	for _, sub := range spec.Sections {
		si := &SectionInstance{SectionID: sub.ID, Occurrences: []*Occurrence{}}
		if !sub.Repeatable {
			si.Occurrences = append(si.Occurrences, newOccurrence(sub))
		}
		occ.Sections = append(occ.Sections, si)
	}
	return occ
}

// SetField stores a raw value at the given field path after a shape check
// only: the path must resolve to a FieldSpec and the value must conform to
// its kind. Business rules (bounds, option membership, required fields) are
// deferred to the validator so an in-progress instance stays type-consistent
// while still being rule-incomplete.
func (in *Instance) SetField(p Path, v Value) error {
	spec := in.schema.ResolveField(p)
	if spec == nil {
		return fmt.Errorf("unknown field path %q in schema version %d", p.String(), in.SchemaVersion)
	}
	if err := v.Conforms(spec.Kind); err != nil {
		return fmt.Errorf("field %q: %w", p.String(), err)
	}
	occ, err := in.resolveOccurrence(p.SectionPath())
	if err != nil {
		return err
	}
	occ.setField(p.Field, v)
	return nil
}

// Field returns the value currently set at the given field path.
func (in *Instance) Field(p Path) (Value, bool) {
	occ, err := in.resolveOccurrence(p.SectionPath())
	if err != nil {
		return Value{}, false
	}
	return occ.Field(p.Field)
}

// AddOccurrence appends a new occurrence to the repeatable section the path
// addresses and returns its index. The occurrence index of the path's final
// segment is ignored; parent segments select the enclosing occurrences.
func (in *Instance) AddOccurrence(p Path) (int, error) {
	if len(p.Sections) == 0 || p.Field != "" {
		return 0, fmt.Errorf("path %q does not address a section", p.String())
	}
	spec := in.schema.ResolveSection(p)
	if spec == nil {
		return 0, fmt.Errorf("unknown section path %q in schema version %d", p.String(), in.SchemaVersion)
	}
	if !spec.Repeatable {
		return 0, fmt.Errorf("section %q is not repeatable", p.String())
	}
	last := p.Sections[len(p.Sections)-1]
	parent, err := in.resolveOccurrence(Path{Sections: p.Sections[:len(p.Sections)-1]})
	if err != nil {
		return 0, err
	}
	si := parent.Section(last.Section)
	if si == nil {
		si = &SectionInstance{SectionID: last.Section, Occurrences: []*Occurrence{}}
		parent.Sections = append(parent.Sections, si)
	}
	si.Occurrences = append(si.Occurrences, newOccurrence(spec))
	return len(si.Occurrences) - 1, nil
}

// RemoveOccurrence deletes the occurrence addressed by the path's final
// segment together with its entire subtree. Later occurrences shift down so
// indexes stay contiguous; subsequent validation never sees the removed
// paths again.
func (in *Instance) RemoveOccurrence(p Path) error {
	if len(p.Sections) == 0 || p.Field != "" {
		return fmt.Errorf("path %q does not address a section occurrence", p.String())
	}
	spec := in.schema.ResolveSection(p)
	if spec == nil {
		return fmt.Errorf("unknown section path %q in schema version %d", p.String(), in.SchemaVersion)
	}
	if !spec.Repeatable {
		return fmt.Errorf("section %q is not repeatable", p.String())
	}
	last := p.Sections[len(p.Sections)-1]
	parent, err := in.resolveOccurrence(Path{Sections: p.Sections[:len(p.Sections)-1]})
	if err != nil {
		return err
	}
	si := parent.Section(last.Section)
	if si == nil || last.Index < 0 || last.Index >= len(si.Occurrences) {
		return fmt.Errorf("occurrence %q does not exist", p.String())
	}
	si.Occurrences = append(si.Occurrences[:last.Index], si.Occurrences[last.Index+1:]...)
	return nil
}

// OccurrenceCount returns the number of occurrences of the section the path
// addresses, or 0 when the section instance is absent.
func (in *Instance) OccurrenceCount(p Path) int {
	if len(p.Sections) == 0 {
		return len(in.Root.Occurrences)
	}
	last := p.Sections[len(p.Sections)-1]
	parent, err := in.resolveOccurrence(Path{Sections: p.Sections[:len(p.Sections)-1]})
	if err != nil {
		return 0
	}
	si := parent.Section(last.Section)
	if si == nil {
		return 0
	}
	return len(si.Occurrences)
}

// resolveOccurrence walks the instance tree along the path's section
// segments and returns the addressed occurrence record.
func (in *Instance) resolveOccurrence(p Path) (*Occurrence, error) {
	if len(in.Root.Occurrences) == 0 {
		return nil, fmt.Errorf("instance has no root occurrence")
	}
	occ := in.Root.Occurrences[0]
	for i, seg := range p.Sections {
		si := occ.Section(seg.Section)
		if si == nil {
			return nil, fmt.Errorf("section %q does not exist in instance", Path{Sections: p.Sections[:i+1]}.String())
		}
		if seg.Index < 0 || seg.Index >= len(si.Occurrences) {
			return nil, fmt.Errorf("occurrence %q does not exist", Path{Sections: p.Sections[:i+1]}.String())
		}
		occ = si.Occurrences[seg.Index]
	}
	return occ, nil
}

// Equal reports deep equality of two instances: same schema version and
// identical trees, including empty-occurrence markers. This is the equality
// the codec round-trip law is stated over.
func (in *Instance) Equal(other *Instance) bool {
	if other == nil || in.SchemaVersion != other.SchemaVersion {
		return false
	}
	return sectionInstanceEqual(in.Root, other.Root)
}

func sectionInstanceEqual(a, b *SectionInstance) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.SectionID != b.SectionID || len(a.Occurrences) != len(b.Occurrences) {
		return false
	}
	for i := range a.Occurrences {
		if !occurrenceEqual(a.Occurrences[i], b.Occurrences[i]) {
			return false
		}
	}
	return true
}

func occurrenceEqual(a, b *Occurrence) bool {
	if len(a.Fields) != len(b.Fields) || len(a.Sections) != len(b.Sections) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i].FieldID != b.Fields[i].FieldID || !a.Fields[i].Value.Equal(b.Fields[i].Value) {
			return false
		}
	}
	for i := range a.Sections {
		if !sectionInstanceEqual(a.Sections[i], b.Sections[i]) {
			return false
		}
	}
	return true
}
