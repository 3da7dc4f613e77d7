package domain

import (
	"fmt"
	"math"
	"strings"
)

// Value is a typed answer for a single field instance. Exactly one payload
// slot is populated, matching Kind. Pointer payloads keep "false"/"0"/""
// distinguishable from absent when a value crosses the wire; the options
// slice never carries omitempty, because an empty selection is a legal
// CHECKBOX answer that must survive a round trip.
type Value struct {
	Kind    FieldKind `json:"kind"`
	Bool    *bool     `json:"bool,omitempty"`
	Number  *float64  `json:"number,omitempty"`
	Text    *string   `json:"text,omitempty"`
	Options []string  `json:"options"`
}

// NewBool creates a BOOLEAN value.
func NewBool(b bool) Value {
	return Value{Kind: BOOLEAN, Bool: &b}
}

// NewNumber creates a NUMBER value. Finiteness is enforced at the point the
// value enters an instance, not here, so callers can build literals freely.
func NewNumber(n float64) Value {
	return Value{Kind: NUMBER, Number: &n}
}

// NewText creates an OPEN_TEXT value.
func NewText(s string) Value {
	return Value{Kind: OPEN_TEXT, Text: &s}
}

// NewOptions creates a CHECKBOX value with the given selected options.
// An empty selection is a legal value, distinct from the field being unset.
func NewOptions(selected ...string) Value {
	if selected == nil {
		selected = []string{}
	}
	return Value{Kind: CHECKBOX, Options: selected}
}

// Conforms checks that the value is a well-shaped answer for the given field
// kind: the kinds match and exactly the matching payload slot is populated.
// This is the shape check applied at SetField time; business rules such as
// numeric bounds and option membership are left to the validator.
func (v Value) Conforms(kind FieldKind) error {
	if v.Kind != kind {
		return fmt.Errorf("value kind %s does not match field kind %s", v.Kind, kind)
	}
	switch kind {
	case BOOLEAN:
		if v.Bool == nil {
			return fmt.Errorf("BOOLEAN value has no boolean payload")
		}
	case NUMBER:
		if v.Number == nil {
			return fmt.Errorf("NUMBER value has no numeric payload")
		}
		if math.IsNaN(*v.Number) || math.IsInf(*v.Number, 0) {
			return fmt.Errorf("NUMBER value must be a finite real, got %v", *v.Number)
		}
	case OPEN_TEXT:
		if v.Text == nil {
			return fmt.Errorf("OPEN_TEXT value has no text payload")
		}
	case CHECKBOX:
		if v.Options == nil {
			return fmt.Errorf("CHECKBOX value has no option payload")
		}
	default:
		return fmt.Errorf("unsupported field kind %q", kind)
	}
	return nil
}

// Equal reports strict equality of two values, including selection order for
// CHECKBOX payloads. Used by the codec round-trip law.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case BOOLEAN:
		return eqBoolPtr(v.Bool, o.Bool)
	case NUMBER:
		return eqFloatPtr(v.Number, o.Number)
	case OPEN_TEXT:
		return eqStringPtr(v.Text, o.Text)
	case CHECKBOX:
		if (v.Options == nil) != (o.Options == nil) || len(v.Options) != len(o.Options) {
			return false
		}
		for i := range v.Options {
			if v.Options[i] != o.Options[i] {
				return false
			}
		}
		return true
	}
	return false
}

// EqualAsSet compares two values treating CHECKBOX selections as unordered
// sets. Condition evaluation uses this so "localization == [Left, Right]"
// does not depend on click order.
func (v Value) EqualAsSet(o Value) bool {
	if v.Kind != CHECKBOX || o.Kind != CHECKBOX {
		return v.Equal(o)
	}
	if len(v.Options) != len(o.Options) {
		return false
	}
	set := make(map[string]int, len(v.Options))
	for _, opt := range v.Options {
		set[opt]++
	}
	for _, opt := range o.Options {
		if set[opt] == 0 {
			return false
		}
		set[opt]--
	}
	return true
}

// String returns a human-readable rendering of the value, used by the text
// report renderer and in log fields.
func (v Value) String() string {
	switch v.Kind {
	case BOOLEAN:
		if v.Bool == nil {
			return ""
		}
		if *v.Bool {
			return "Yes"
		}
		return "No"
	case NUMBER:
		if v.Number == nil {
			return ""
		}
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", *v.Number), "0"), ".")
	case OPEN_TEXT:
		if v.Text == nil {
			return ""
		}
		return *v.Text
	case CHECKBOX:
		return strings.Join(v.Options, ", ")
	}
	return ""
}

func eqBoolPtr(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
