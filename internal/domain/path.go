package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// PathSegment names one section step of a structural path together with the
// occurrence it addresses. Non-repeatable sections always have occurrence 0.
type PathSegment struct {
	Section string
	Index   int
}

// Path addresses a section occurrence or a leaf field inside an instance:
// an ordered sequence of section segments below the root, optionally ending
// in a field id. The textual form is dotted, with bracketed occurrence
// indexes, e.g. "pelvicLymphNodes.obturator.lesions[1].suvMax".
// An omitted index means occurrence 0.
type Path struct {
	Sections []PathSegment
	Field    string
}

// SectionPath returns the path without its trailing field component.
func (p Path) SectionPath() Path {
	return Path{Sections: p.Sections}
}

// Child extends a section path by one nested section segment.
func (p Path) Child(section string, index int) Path {
	segs := make([]PathSegment, len(p.Sections), len(p.Sections)+1)
	copy(segs, p.Sections)
	return Path{Sections: append(segs, PathSegment{Section: section, Index: index})}
}

// WithField returns the path addressing a field of this section path.
func (p Path) WithField(field string) Path {
	return Path{Sections: p.Sections, Field: field}
}

// String renders the canonical textual form. Occurrence 0 is left implicit.
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p.Sections {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.Section)
		if seg.Index > 0 {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.Index))
			b.WriteByte(']')
		}
	}
	if p.Field != "" {
		if len(p.Sections) > 0 {
			b.WriteByte('.')
		}
		b.WriteString(p.Field)
	}
	return b.String()
}

// ParsePath parses the textual path form. The final dotted component is
// treated as a field id unless it carries an occurrence index, in which case
// the path addresses a section occurrence.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, fmt.Errorf("empty path")
	}
	parts := strings.Split(s, ".")
	var p Path
	for i, part := range parts {
		id, index, indexed, err := parseSegment(part)
		if err != nil {
			return Path{}, fmt.Errorf("path %q: %w", s, err)
		}
		last := i == len(parts)-1
		if last && !indexed {
			p.Field = id
			return p, nil
		}
		p.Sections = append(p.Sections, PathSegment{Section: id, Index: index})
	}
	return p, nil
}

// ParseSectionPath parses a path that must address a section occurrence,
// never a field; the final component is a section id even without an index.
func ParseSectionPath(s string) (Path, error) {
	if s == "" {
		return Path{}, fmt.Errorf("empty path")
	}
	var p Path
	for _, part := range strings.Split(s, ".") {
		id, index, _, err := parseSegment(part)
		if err != nil {
			return Path{}, fmt.Errorf("path %q: %w", s, err)
		}
		p.Sections = append(p.Sections, PathSegment{Section: id, Index: index})
	}
	return p, nil
}

func parseSegment(part string) (id string, index int, indexed bool, err error) {
	open := strings.IndexByte(part, '[')
	if open < 0 {
		if part == "" {
			return "", 0, false, fmt.Errorf("empty segment")
		}
		return part, 0, false, nil
	}
	if !strings.HasSuffix(part, "]") || open == 0 {
		return "", 0, false, fmt.Errorf("malformed segment %q", part)
	}
	idx, convErr := strconv.Atoi(part[open+1 : len(part)-1])
	if convErr != nil || idx < 0 {
		return "", 0, false, fmt.Errorf("malformed occurrence index in %q", part)
	}
	return part[:open], idx, true, nil
}
