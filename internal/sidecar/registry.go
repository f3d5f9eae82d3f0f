// Package sidecar resolves and maintains convention-named companion files
// (previews, metadata JSON, info files) that live next to an asset.
package sidecar

import (
	"sort"

	"github.com/starford/raido/internal/models"
)

// Registry maps sidecar filename suffixes to their kind. The set is
// configurable so new sidecar conventions can be added without touching
// rename logic.
type Registry struct {
	kinds   map[string]models.SidecarKind
	ordered []string
}

// DefaultSuffixes is the conventional suffix set observed in the wild.
func DefaultSuffixes() map[string]models.SidecarKind {
	return map[string]models.SidecarKind{
		".preview.png":  models.SidecarPreview,
		".preview.jpg":  models.SidecarPreview,
		".png":          models.SidecarPreview,
		".jpg":          models.SidecarPreview,
		".jpeg":         models.SidecarPreview,
		".json":         models.SidecarMetadata,
		".model.json":   models.SidecarMetadata,
		".civitai.info": models.SidecarInfo,
		".txt":          models.SidecarOther,
		".yaml":         models.SidecarOther,
	}
}

// NewRegistry builds a Registry from a suffix → kind mapping. Suffix
// iteration order is deterministic (lexicographic).
func NewRegistry(suffixes map[string]models.SidecarKind) *Registry {
	r := &Registry{kinds: make(map[string]models.SidecarKind, len(suffixes))}
	for s, k := range suffixes {
		r.kinds[s] = k
		r.ordered = append(r.ordered, s)
	}
	sort.Strings(r.ordered)
	return r
}

// Suffixes returns the registered suffixes in deterministic order.
func (r *Registry) Suffixes() []string {
	return r.ordered
}

// Kind returns the kind registered for suffix, or SidecarOther.
func (r *Registry) Kind(suffix string) models.SidecarKind {
	if k, ok := r.kinds[suffix]; ok {
		return k
	}
	return models.SidecarOther
}
