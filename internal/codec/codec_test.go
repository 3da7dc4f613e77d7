package codec

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psma-report-engine/internal/domain"
	"github.com/psma-report-engine/internal/schema"
)

const reportSchema = `{
	"name": "mini",
	"schemaVersion": 5,
	"root": {
		"id": "report",
		"fields": [
			{"id": "impression", "kind": "OPEN_TEXT"},
			{"id": "localization", "kind": "CHECKBOX",
				"constraints": {"options": ["Left", "Right"]}}
		],
		"sections": [
			{
				"id": "prostateGland",
				"fields": [
					{"id": "lesionsPresent", "kind": "BOOLEAN"},
					{"id": "suvMax", "kind": "NUMBER"}
				]
			},
			{
				"id": "lesions",
				"repeatable": true,
				"fields": [
					{"id": "sizeMm", "kind": "NUMBER"}
				]
			}
		]
	}
}`

// stubResolver serves a single compiled schema, standing in for the registry.
type stubResolver struct {
	sc *domain.Schema
}

func (r stubResolver) Resolve(version int) (*domain.Schema, error) {
	if r.sc == nil || version != r.sc.Version {
		return nil, fmt.Errorf("schema version %d: %w", version, domain.ErrNotFound)
	}
	return r.sc, nil
}

func (r stubResolver) Latest() int {
	if r.sc == nil {
		return 0
	}
	return r.sc.Version
}

func testCodec(t *testing.T) (*Codec, *domain.Schema) {
	t.Helper()
	sc, err := schema.Parse([]byte(reportSchema))
	require.NoError(t, err)
	return New(stubResolver{sc: sc}), sc
}

func mustPath(t *testing.T, s string) domain.Path {
	t.Helper()
	p, err := domain.ParsePath(s)
	require.NoError(t, err)
	return p
}

func mustSectionPath(t *testing.T, s string) domain.Path {
	t.Helper()
	p, err := domain.ParseSectionPath(s)
	require.NoError(t, err)
	return p
}

func TestRoundTrip(t *testing.T) {
	c, sc := testCodec(t)

	in := domain.NewInstance(sc)
	require.NoError(t, in.SetField(mustPath(t, "impression"), domain.NewText("high tumor burden")))
	require.NoError(t, in.SetField(mustPath(t, "prostateGland.lesionsPresent"), domain.NewBool(true)))
	require.NoError(t, in.SetField(mustPath(t, "prostateGland.suvMax"), domain.NewNumber(22.4)))
	for i, size := range []float64{4, 11.5} {
		_, err := in.AddOccurrence(mustSectionPath(t, "lesions"))
		require.NoError(t, err)
		require.NoError(t, in.SetField(mustPath(t, fmt.Sprintf("lesions[%d].sizeMm", i)), domain.NewNumber(size)))
	}

	data, err := c.Encode(in)
	require.NoError(t, err)

	out, err := c.Decode(data)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
	assert.Equal(t, 5, out.SchemaVersion)

	got, set := out.Field(mustPath(t, "lesions[1].sizeMm"))
	require.True(t, set)
	require.NotNil(t, got.Number)
	assert.Equal(t, 11.5, *got.Number)
}

func TestRoundTripEmptyCheckboxSelection(t *testing.T) {
	c, sc := testCodec(t)

	in := domain.NewInstance(sc)
	require.NoError(t, in.SetField(mustPath(t, "localization"), domain.NewOptions()))

	data, err := c.Encode(in)
	require.NoError(t, err)
	// The empty selection must appear on the wire, not be dropped.
	assert.Contains(t, string(data), `"options":[]`)

	out, err := c.Decode(data)
	require.NoError(t, err)
	require.True(t, in.Equal(out))

	got, set := out.Field(mustPath(t, "localization"))
	require.True(t, set)
	require.NotNil(t, got.Options)
	assert.Empty(t, got.Options)
	assert.NoError(t, got.Conforms(domain.CHECKBOX))
}

func TestRoundTripEmptySkeleton(t *testing.T) {
	c, sc := testCodec(t)

	in := domain.NewInstance(sc)
	data, err := c.Encode(in)
	require.NoError(t, err)

	out, err := c.Decode(data)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))

	// The zero-occurrence repeatable section survives as an explicit
	// marker rather than collapsing into absence.
	assert.Equal(t, 0, out.OccurrenceCount(mustSectionPath(t, "lesions")))
}

func TestDecodeRejectsNewerSchemaVersion(t *testing.T) {
	c, sc := testCodec(t)

	in := domain.NewInstance(sc)
	data, err := c.Encode(in)
	require.NoError(t, err)

	// Stamp the envelope with a version two ahead of anything registered,
	// as if written by a future deployment.
	newer := []byte(fmt.Sprintf(`{"format": %q, "formatVersion": 1, "schemaVersion": 7, "root": {"sectionId": "report", "occurrences": [{}]}}`, FormatName))

	out, err := c.Decode(newer)
	assert.Nil(t, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedSchemaVersion)
	var codecErr *domain.CodecError
	require.ErrorAs(t, err, &codecErr)
	assert.Equal(t, domain.CodecErrUnsupportedVersion, codecErr.Code)

	// The original bytes still decode.
	_, err = c.Decode(data)
	assert.NoError(t, err)
}

func TestDecodeRejectsMalformedEnvelopes(t *testing.T) {
	c, _ := testCodec(t)

	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `{"format": `},
		{name: "wrong format name", data: `{"format": "dicom-sr", "formatVersion": 1, "schemaVersion": 5, "root": {"sectionId": "report", "occurrences": [{}]}}`},
		{name: "wrong format version", data: `{"format": "psma-structured-report", "formatVersion": 9, "schemaVersion": 5, "root": {"sectionId": "report", "occurrences": [{}]}}`},
		{name: "missing root", data: `{"format": "psma-structured-report", "formatVersion": 1, "schemaVersion": 5}`},
		{name: "zero schema version", data: `{"format": "psma-structured-report", "formatVersion": 1, "schemaVersion": 0, "root": {"sectionId": "report", "occurrences": [{}]}}`},
		{name: "unknown envelope key", data: `{"format": "psma-structured-report", "formatVersion": 1, "schemaVersion": 5, "root": {"sectionId": "report", "occurrences": [{}]}, "extra": 1}`},
		{name: "null occurrence record", data: `{"format": "psma-structured-report", "formatVersion": 1, "schemaVersion": 5, "root": {"sectionId": "report", "occurrences": [null]}}`},
		{name: "null section record", data: `{"format": "psma-structured-report", "formatVersion": 1, "schemaVersion": 5, "root": {"sectionId": "report", "occurrences": [{"sections": [null]}]}}`},
		{name: "null nested occurrence record", data: `{"format": "psma-structured-report", "formatVersion": 1, "schemaVersion": 5, "root": {"sectionId": "report", "occurrences": [{"sections": [{"sectionId": "prostateGland", "occurrences": [{}, null]}]}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := c.Decode([]byte(tt.data))
			assert.Nil(t, out)
			var codecErr *domain.CodecError
			require.ErrorAs(t, err, &codecErr)
			assert.Equal(t, domain.CodecErrMalformed, codecErr.Code)
		})
	}
}

func TestDecodeUnknownRegisteredVersion(t *testing.T) {
	// A resolver whose latest is ahead of the stamped version but with a
	// gap at that version: supported in principle, just not registered.
	sc, err := schema.Parse([]byte(reportSchema))
	require.NoError(t, err)
	c := New(gappedResolver{latest: 9, sc: sc})

	data := []byte(`{"format": "psma-structured-report", "formatVersion": 1, "schemaVersion": 3, "root": {"sectionId": "report", "occurrences": [{}]}}`)
	out, err := c.Decode(data)
	assert.Nil(t, out)
	var codecErr *domain.CodecError
	require.ErrorAs(t, err, &codecErr)
	assert.Equal(t, domain.CodecErrUnknownVersion, codecErr.Code)
}

type gappedResolver struct {
	latest int
	sc     *domain.Schema
}

func (r gappedResolver) Resolve(version int) (*domain.Schema, error) {
	if version != r.sc.Version {
		return nil, fmt.Errorf("schema version %d: %w", version, domain.ErrNotFound)
	}
	return r.sc, nil
}

func (r gappedResolver) Latest() int { return r.latest }

func TestEncodeNilInstance(t *testing.T) {
	c, _ := testCodec(t)
	_, err := c.Encode(nil)
	var codecErr *domain.CodecError
	require.ErrorAs(t, err, &codecErr)
	assert.Equal(t, domain.CodecErrMalformed, codecErr.Code)
}
