package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSchema builds a compiled schema with one gated region and one
// repeatable lesion list, the recurring shape of the report template.
func testSchema(t *testing.T) *Schema {
	t.Helper()
	zero := 0.0
	sc := &Schema{
		Name:    "test",
		Version: 3,
		Root: &SectionSpec{
			ID: "report",
			Sections: []*SectionSpec{
				{
					ID: "prostateGland",
					Fields: []*FieldSpec{
						{ID: "lesionsPresent", Kind: BOOLEAN},
						{
							ID:          "suvMax",
							Kind:        NUMBER,
							Constraints: Constraints{Min: &zero},
							RequiredIf: &Condition{
								Op:    EQUALS,
								Field: "lesionsPresent",
								Value: &Value{Kind: BOOLEAN, Bool: boolPtr(true)},
							},
						},
					},
				},
				{
					ID: "obturator",
					Sections: []*SectionSpec{
						{
							ID:         "lesions",
							Repeatable: true,
							Fields: []*FieldSpec{
								{ID: "suvMax", Kind: NUMBER, Required: true, Constraints: Constraints{Min: &zero}},
								{ID: "notes", Kind: OPEN_TEXT},
							},
						},
					},
				},
			},
		},
	}
	sc.Root.BuildIndexes()
	return sc
}

func boolPtr(b bool) *bool { return &b }

func mustParsePath(t *testing.T, s string) Path {
	t.Helper()
	p, err := ParsePath(s)
	require.NoError(t, err)
	return p
}

func TestNewInstanceSkeleton(t *testing.T) {
	sc := testSchema(t)
	in := NewInstance(sc)

	assert.Equal(t, 3, in.SchemaVersion)
	require.Len(t, in.Root.Occurrences, 1)

	// Non-repeatable sections are instantiated once, repeatable sections
	// start as explicit zero-occurrence markers.
	assert.Equal(t, 1, in.OccurrenceCount(mustParsePath(t, "prostateGland[0]")))
	assert.Equal(t, 0, in.OccurrenceCount(mustParsePath(t, "obturator.lesions[0]")))
}

func TestSetFieldShapeChecks(t *testing.T) {
	sc := testSchema(t)
	in := NewInstance(sc)

	err := in.SetField(mustParsePath(t, "prostateGland.lesionsPresent"), NewBool(true))
	require.NoError(t, err)

	value, set := in.Field(mustParsePath(t, "prostateGland.lesionsPresent"))
	require.True(t, set)
	assert.True(t, *value.Bool)

	// Unknown path is rejected at set time, not deferred to validation.
	err = in.SetField(mustParsePath(t, "prostateGland.psaLevel"), NewNumber(1))
	assert.Error(t, err)

	// Wrong value kind is a shape error.
	err = in.SetField(mustParsePath(t, "prostateGland.suvMax"), NewText("12.5"))
	assert.Error(t, err)

	// Out-of-range values pass the shape check; bounds are business rules.
	err = in.SetField(mustParsePath(t, "prostateGland.suvMax"), NewNumber(-4))
	assert.NoError(t, err)

	// Overwriting replaces the value in place.
	err = in.SetField(mustParsePath(t, "prostateGland.suvMax"), NewNumber(8.1))
	require.NoError(t, err)
	value, set = in.Field(mustParsePath(t, "prostateGland.suvMax"))
	require.True(t, set)
	assert.Equal(t, 8.1, *value.Number)
}

func TestAddRemoveOccurrence(t *testing.T) {
	sc := testSchema(t)
	in := NewInstance(sc)
	lesions := mustParsePath(t, "obturator.lesions[0]").SectionPath()

	for i, suv := range []float64{3.1, 7.7, 12.4} {
		idx, err := in.AddOccurrence(lesions)
		require.NoError(t, err)
		assert.Equal(t, i, idx)
		p, err := ParsePath(fmt.Sprintf("obturator.lesions[%d].suvMax", i))
		require.NoError(t, err)
		require.NoError(t, in.SetField(p, NewNumber(suv)))
	}
	assert.Equal(t, 3, in.OccurrenceCount(lesions))

	// Removing the middle occurrence drops its subtree and re-indexes the
	// rest contiguously.
	require.NoError(t, in.RemoveOccurrence(mustParsePath(t, "obturator.lesions[1]")))
	assert.Equal(t, 2, in.OccurrenceCount(lesions))

	first, set := in.Field(mustParsePath(t, "obturator.lesions[0].suvMax"))
	require.True(t, set)
	assert.Equal(t, 3.1, *first.Number)

	second, set := in.Field(mustParsePath(t, "obturator.lesions[1].suvMax"))
	require.True(t, set)
	assert.Equal(t, 12.4, *second.Number)

	_, set = in.Field(mustParsePath(t, "obturator.lesions[2].suvMax"))
	assert.False(t, set)
}

func TestNegativeOccurrenceIndex(t *testing.T) {
	sc := testSchema(t)
	in := NewInstance(sc)

	_, err := in.AddOccurrence(mustParsePath(t, "obturator.lesions[0]").SectionPath())
	require.NoError(t, err)

	// Paths built in code can carry indexes ParsePath would never produce;
	// they must fail like any other missing occurrence.
	err = in.RemoveOccurrence(Path{Sections: []PathSegment{
		{Section: "obturator"}, {Section: "lesions", Index: -1},
	}})
	assert.Error(t, err)

	err = in.SetField(Path{
		Sections: []PathSegment{{Section: "obturator"}, {Section: "lesions", Index: -2}},
		Field:    "suvMax",
	}, NewNumber(5))
	assert.Error(t, err)

	assert.Equal(t, 1, in.OccurrenceCount(mustParsePath(t, "obturator.lesions[0]")))
}

func TestAddOccurrenceRejectsNonRepeatable(t *testing.T) {
	sc := testSchema(t)
	in := NewInstance(sc)

	_, err := in.AddOccurrence(mustParsePath(t, "prostateGland[0]").SectionPath())
	assert.Error(t, err)

	err = in.RemoveOccurrence(mustParsePath(t, "prostateGland[0]"))
	assert.Error(t, err)
}

func TestInstanceEqual(t *testing.T) {
	sc := testSchema(t)
	a := NewInstance(sc)
	b := NewInstance(sc)
	assert.True(t, a.Equal(b))

	require.NoError(t, a.SetField(mustParsePath(t, "prostateGland.lesionsPresent"), NewBool(false)))
	assert.False(t, a.Equal(b))

	require.NoError(t, b.SetField(mustParsePath(t, "prostateGland.lesionsPresent"), NewBool(false)))
	assert.True(t, a.Equal(b))
}

func TestPathRoundTrip(t *testing.T) {
	tests := []struct {
		in       string
		isField  bool
		rendered string
	}{
		{"prostateGland.suvMax", true, "prostateGland.suvMax"},
		{"pelvicLymphNodes.obturator.lesions[2].notes", true, "pelvicLymphNodes.obturator.lesions[2].notes"},
		{"pelvicLymphNodes.obturator.lesions[0]", false, "pelvicLymphNodes.obturator.lesions"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParsePath(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.isField, p.Field != "")
			assert.Equal(t, tt.rendered, p.String())
		})
	}

	for _, bad := range []string{"", "a..b", "a[x].b", "a[-1]", "[2]", "a[2"} {
		t.Run("malformed "+bad, func(t *testing.T) {
			_, err := ParsePath(bad)
			assert.Error(t, err)
		})
	}
}
