package schema

import (
	_ "embed"

	"github.com/sirupsen/logrus"
)

// psmaTemplate is the packaged PSMA PET/CT structured report template,
// version 1, transcribed from the PROMISE-style reporting form: clinical
// history, procedure details, background reference uptake, the anatomical
// region sections with their lesion-presence gates, and the staging
// impression block.
//
//go:embed psma_template.json
var psmaTemplate []byte

// PSMATemplate returns the packaged PSMA PET/CT schema document.
func PSMATemplate() []byte {
	doc := make([]byte, len(psmaTemplate))
	copy(doc, psmaTemplate)
	return doc
}

// NewDefaultRegistry creates a registry with the packaged PSMA PET/CT
// template published. This is the registry a process normally starts with.
func NewDefaultRegistry(logger *logrus.Logger) (*Registry, error) {
	registry, err := NewRegistry(logger)
	if err != nil {
		return nil, err
	}
	if _, err := registry.Register(psmaTemplate); err != nil {
		return nil, err
	}
	return registry, nil
}
