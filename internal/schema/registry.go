package schema

import (
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/psma-report-engine/internal/domain"
)

// schemaCacheSize bounds the number of compiled schemas held in memory.
// Registered documents are kept as raw bytes and recompiled on demand, so a
// long-lived process carrying many historical versions stays bounded.
const schemaCacheSize = 16

// Registry holds every published schema version of the report type this
// process serves. Versions are registered once at startup and never mutated
// afterwards; resolution is safe for arbitrarily many concurrent readers.
type Registry struct {
	logger *logrus.Logger

	mu     sync.RWMutex
	docs   map[int][]byte
	latest int

	cache *lru.Cache[int, *domain.Schema]
}

// NewRegistry creates an empty schema registry.
func NewRegistry(logger *logrus.Logger) (*Registry, error) {
	cache, err := lru.New[int, *domain.Schema](schemaCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating schema cache: %w", err)
	}
	return &Registry{
		logger: logger,
		docs:   make(map[int][]byte),
		cache:  cache,
	}, nil
}

// Register compiles and publishes a schema document. Registering an already
// published version fails: published schemas are immutable, evolution must
// produce a new version.
func (r *Registry) Register(doc []byte) (int, error) {
	sc, err := Parse(doc)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.docs[sc.Version]; exists {
		return 0, domain.NewSchemaError(domain.SchemaErrInvalidVersion, "",
			fmt.Sprintf("schema version %d is already published", sc.Version))
	}
	stored := make([]byte, len(doc))
	copy(stored, doc)
	r.docs[sc.Version] = stored
	if sc.Version > r.latest {
		r.latest = sc.Version
	}
	r.cache.Add(sc.Version, sc)

	r.logger.WithFields(logrus.Fields{
		"schema_name":    sc.Name,
		"schema_version": sc.Version,
	}).Info("Registered report schema")

	return sc.Version, nil
}

// Resolve returns the compiled schema for a published version, recompiling
// from the stored document on a cache miss. Unknown versions return
// domain.ErrNotFound.
func (r *Registry) Resolve(version int) (*domain.Schema, error) {
	if sc, ok := r.cache.Get(version); ok {
		return sc, nil
	}

	r.mu.RLock()
	doc, ok := r.docs[version]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("schema version %d: %w", version, domain.ErrNotFound)
	}

	sc, err := Parse(doc)
	if err != nil {
		// Registered documents already compiled once, so this indicates
		// memory corruption rather than a bad document.
		return nil, fmt.Errorf("recompiling schema version %d: %w", version, err)
	}
	r.cache.Add(version, sc)
	return sc, nil
}

// Latest returns the highest published version, or 0 when none exist.
func (r *Registry) Latest() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Versions returns all published versions in ascending order.
func (r *Registry) Versions() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions := make([]int, 0, len(r.docs))
	for v := range r.docs {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions
}
