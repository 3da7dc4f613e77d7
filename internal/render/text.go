// Package render produces human-readable exports of validated report
// instances by walking the schema tree, so output order always follows the
// form layout rather than data entry order.
package render

import (
	"fmt"
	"strings"

	"github.com/psma-report-engine/internal/domain"
)

// Text renders a plain-text report. Unset fields are skipped; sections with
// no set content are omitted entirely. Repeatable occurrences are numbered.
func Text(in *domain.Instance) (string, error) {
	sc := in.Schema()
	if sc == nil {
		return "", fmt.Errorf("instance is not bound to a schema")
	}
	if len(in.Root.Occurrences) == 0 {
		return "", fmt.Errorf("instance has no root occurrence")
	}

	var b strings.Builder
	title := strings.ToUpper(sc.Name)
	b.WriteString(title)
	b.WriteByte('\n')
	b.WriteString(strings.Repeat("=", len(title)))
	b.WriteByte('\n')

	root := in.Root.Occurrences[0]
	writeFields(&b, sc.Root, root, 0)
	for _, sub := range sc.Root.Sections {
		writeSection(&b, sub, root.Section(sub.ID), 0)
	}
	return b.String(), nil
}

func writeSection(b *strings.Builder, spec *domain.SectionSpec, si *domain.SectionInstance, depth int) {
	if si == nil || !hasContent(spec, si) {
		return
	}
	heading := spec.Label
	if heading == "" {
		heading = spec.ID
	}
	for i, occ := range si.Occurrences {
		if !occurrenceHasContent(spec, occ) {
			continue
		}
		b.WriteByte('\n')
		b.WriteString(indent(depth))
		if spec.Repeatable {
			b.WriteString(fmt.Sprintf("%s #%d", heading, i+1))
		} else {
			b.WriteString(strings.ToUpper(heading))
		}
		b.WriteByte('\n')
		if !spec.Repeatable {
			b.WriteString(indent(depth))
			b.WriteString(strings.Repeat("-", len(heading)))
			b.WriteByte('\n')
		}
		writeFields(b, spec, occ, depth)
		for _, sub := range spec.Sections {
			writeSection(b, sub, occ.Section(sub.ID), depth+1)
		}
	}
}

func writeFields(b *strings.Builder, spec *domain.SectionSpec, occ *domain.Occurrence, depth int) {
	for _, f := range spec.Fields {
		value, set := occ.Field(f.ID)
		if !set {
			continue
		}
		rendered := value.String()
		if strings.TrimSpace(rendered) == "" {
			continue
		}
		label := f.Label
		if label == "" {
			label = f.ID
		}
		b.WriteString(indent(depth))
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(rendered)
		b.WriteByte('\n')
	}
}

func hasContent(spec *domain.SectionSpec, si *domain.SectionInstance) bool {
	for _, occ := range si.Occurrences {
		if occurrenceHasContent(spec, occ) {
			return true
		}
	}
	return false
}

func occurrenceHasContent(spec *domain.SectionSpec, occ *domain.Occurrence) bool {
	for _, f := range spec.Fields {
		if value, set := occ.Field(f.ID); set && strings.TrimSpace(value.String()) != "" {
			return true
		}
	}
	for _, sub := range spec.Sections {
		if si := occ.Section(sub.ID); si != nil && hasContent(sub, si) {
			return true
		}
	}
	return false
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}
