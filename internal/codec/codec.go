// Package codec serializes report instances to and from the durable wire
// format. The format is a versioned, self-describing JSON envelope: it
// embeds the schema version and, per field, the field id with its typed
// value, so stored reports can always be bound back to the exact schema
// they were written with.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/psma-report-engine/internal/domain"
)

const (
	// FormatName identifies the envelope format.
	FormatName = "psma-structured-report"
	// FormatVersion is the envelope layout version, independent of the
	// report schema version carried inside.
	FormatVersion = 1
)

// envelope is the wire layout. Empty repeatable sections are serialized as
// explicit zero-occurrence markers, never omitted, so absence stays
// distinguishable from "not yet visited" after a round trip.
type envelope struct {
	Format        string                  `json:"format"`
	FormatVersion int                     `json:"formatVersion"`
	SchemaVersion int                     `json:"schemaVersion"`
	Root          *domain.SectionInstance `json:"root"`
}

// SchemaResolver resolves published schema versions; the schema registry
// implements it. Latest bounds the versions this process understands.
type SchemaResolver interface {
	Resolve(version int) (*domain.Schema, error)
	Latest() int
}

// Codec encodes and decodes report envelopes. Encode and Decode are pure
// in-memory transforms; persistence of the produced bytes belongs to an
// external storage collaborator.
type Codec struct {
	resolver SchemaResolver
}

// New creates a codec bound to a schema resolver.
func New(resolver SchemaResolver) *Codec {
	return &Codec{resolver: resolver}
}

// Encode serializes an instance. Decode(Encode(x)) reproduces x exactly for
// every instance whose tree round-trips through JSON, including empty
// optional sections and zero-occurrence repeatable sections.
func (c *Codec) Encode(in *domain.Instance) ([]byte, error) {
	if in == nil || in.Root == nil {
		return nil, domain.NewCodecError(domain.CodecErrMalformed, "cannot encode nil instance")
	}
	env := envelope{
		Format:        FormatName,
		FormatVersion: FormatVersion,
		SchemaVersion: in.SchemaVersion,
		Root:          in.Root,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, domain.NewCodecError(domain.CodecErrMalformed, fmt.Sprintf("encoding report: %v", err))
	}
	return data, nil
}

// Decode parses an envelope and binds it to its registered schema version.
// Data stamped with a version newer than any this process knows fails with
// an UnsupportedSchemaVersion error and produces no partial instance;
// silently truncating unknown fields is not acceptable for clinical data.
func (c *Codec) Decode(data []byte) (*domain.Instance, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, domain.NewCodecError(domain.CodecErrMalformed, fmt.Sprintf("parsing report envelope: %v", err))
	}
	if env.Format != FormatName {
		return nil, domain.NewCodecError(domain.CodecErrMalformed, fmt.Sprintf("unknown envelope format %q", env.Format))
	}
	if env.FormatVersion != FormatVersion {
		return nil, domain.NewCodecError(domain.CodecErrMalformed, fmt.Sprintf("unsupported envelope format version %d", env.FormatVersion))
	}
	if env.Root == nil {
		return nil, domain.NewCodecError(domain.CodecErrMalformed, "envelope has no report content")
	}
	if err := checkRecords(env.Root); err != nil {
		return nil, err
	}
	if env.SchemaVersion < 1 {
		return nil, domain.NewCodecError(domain.CodecErrMalformed, fmt.Sprintf("invalid schema version %d", env.SchemaVersion))
	}

	if latest := c.resolver.Latest(); env.SchemaVersion > latest {
		return nil, domain.NewCodecError(domain.CodecErrUnsupportedVersion,
			fmt.Sprintf("report was written with schema version %d, newest known is %d", env.SchemaVersion, latest))
	}
	sc, err := c.resolver.Resolve(env.SchemaVersion)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewCodecError(domain.CodecErrUnknownVersion,
				fmt.Sprintf("schema version %d is not registered", env.SchemaVersion))
		}
		return nil, domain.NewCodecError(domain.CodecErrUnknownVersion, err.Error())
	}

	return domain.BindInstance(sc, env.Root), nil
}

// checkRecords rejects envelopes whose occurrence or section arrays contain
// JSON nulls. Such records decode to nil pointers that every downstream
// consumer would have to guard against, so they are refused at the boundary.
func checkRecords(si *domain.SectionInstance) error {
	if si == nil {
		return domain.NewCodecError(domain.CodecErrMalformed, "envelope contains a null section record")
	}
	for _, occ := range si.Occurrences {
		if occ == nil {
			return domain.NewCodecError(domain.CodecErrMalformed,
				fmt.Sprintf("section %q contains a null occurrence record", si.SectionID))
		}
		for _, sub := range occ.Sections {
			if err := checkRecords(sub); err != nil {
				return err
			}
		}
	}
	return nil
}
