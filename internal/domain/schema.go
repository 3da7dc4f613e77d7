package domain

// Constraints bound the legal payloads of a field. Which members apply
// depends on the field kind: Min/Max on NUMBER, Options/MaxSelect on
// CHECKBOX. BOOLEAN and OPEN_TEXT fields carry no constraints.
type Constraints struct {
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Options   []string `json:"options,omitempty"`
	MaxSelect int      `json:"maxSelect,omitempty"` // 0 means unlimited
}

// FieldSpec describes one answerable question: its stable id, answer kind,
// constraints, and whether an answer is required unconditionally or only
// when a sibling-field condition holds.
type FieldSpec struct {
	ID          string      `json:"id"`
	Label       string      `json:"label,omitempty"`
	Kind        FieldKind   `json:"kind"`
	Required    bool        `json:"required,omitempty"`
	RequiredIf  *Condition  `json:"requiredIf,omitempty"`
	Constraints Constraints `json:"constraints,omitempty"`
}

// SectionSpec is an ordered group of fields and nested sections. A
// repeatable section is instantiated zero or more times per report; its
// occurrence count is bounded by MinOccurs/MaxOccurs (MaxOccurs 0 means
// unbounded). Field and section ids are unique among siblings only, because
// repeatable sections reuse the same ids per occurrence.
type SectionSpec struct {
	ID         string         `json:"id"`
	Label      string         `json:"label,omitempty"`
	Repeatable bool           `json:"repeatable,omitempty"`
	MinOccurs  int            `json:"minOccurs,omitempty"`
	MaxOccurs  int            `json:"maxOccurs,omitempty"`
	Fields     []*FieldSpec   `json:"fields,omitempty"`
	Sections   []*SectionSpec `json:"sections,omitempty"`

	fieldIndex   map[string]*FieldSpec
	sectionIndex map[string]*SectionSpec
}

// Field resolves a child field by id.
func (s *SectionSpec) Field(id string) (*FieldSpec, bool) {
	f, ok := s.fieldIndex[id]
	return f, ok
}

// Section resolves a child section by id.
func (s *SectionSpec) Section(id string) (*SectionSpec, bool) {
	sub, ok := s.sectionIndex[id]
	return sub, ok
}

// BuildIndexes populates the sibling lookup maps for this section and every
// nested section. The schema loader calls this once after structural
// validation; the indexes are read-only afterwards so a compiled schema is
// safe to share across concurrent validations.
func (s *SectionSpec) BuildIndexes() {
	s.fieldIndex = make(map[string]*FieldSpec, len(s.Fields))
	for _, f := range s.Fields {
		s.fieldIndex[f.ID] = f
	}
	s.sectionIndex = make(map[string]*SectionSpec, len(s.Sections))
	for _, sub := range s.Sections {
		s.sectionIndex[sub.ID] = sub
		sub.BuildIndexes()
	}
}

// Schema is a complete, versioned report template: the ordered tree of
// section specs for one report type. A published schema is immutable;
// evolution produces a new version so previously serialized instances
// remain interpretable against the version they were written with.
type Schema struct {
	Name    string       `json:"name"`
	Version int          `json:"schemaVersion"`
	Root    *SectionSpec `json:"root"`
}

// ResolveSection walks the schema along a path's section segments.
// It returns nil if any segment does not name a known nested section.
func (sc *Schema) ResolveSection(p Path) *SectionSpec {
	cur := sc.Root
	for _, seg := range p.Sections {
		sub, ok := cur.Section(seg.Section)
		if !ok {
			return nil
		}
		cur = sub
	}
	return cur
}

// ResolveField resolves a full field path to its FieldSpec, or nil when the
// path does not exist in this schema version.
func (sc *Schema) ResolveField(p Path) *FieldSpec {
	if p.Field == "" {
		return nil
	}
	section := sc.ResolveSection(p)
	if section == nil {
		return nil
	}
	f, ok := section.Field(p.Field)
	if !ok {
		return nil
	}
	return f
}
