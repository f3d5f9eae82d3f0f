// Package library maintains the in-memory index of library assets keyed by
// content fingerprint, with a secondary display-name map for reference
// lookup. The index is rebuilt by a full scan; every rebuild bumps a
// generation counter used to invalidate stale rename plans.
package library

import (
	"sort"
	"sync"

	"github.com/starford/raido/internal/models"
)

// Index is the in-memory library index. Safe for concurrent use.
type Index struct {
	mu            sync.RWMutex
	byFingerprint map[string]models.Asset
	byName        map[string]models.Asset
	generation    uint64
}

// NewIndex returns an empty index at generation zero.
func NewIndex() *Index {
	return &Index{
		byFingerprint: make(map[string]models.Asset),
		byName:        make(map[string]models.Asset),
	}
}

// LookupByName returns the asset with the given display name.
func (ix *Index) LookupByName(name string) (models.Asset, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	a, ok := ix.byName[name]
	return a, ok
}

// LookupByFingerprint returns the asset with the given fingerprint.
func (ix *Index) LookupByFingerprint(fp string) (models.Asset, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	a, ok := ix.byFingerprint[fp]
	return a, ok
}

// All returns every indexed asset ordered by path.
func (ix *Index) All() []models.Asset {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]models.Asset, 0, len(ix.byFingerprint))
	for _, a := range ix.byFingerprint {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Names returns every display name, optionally filtered by kind
// (empty kind means all), sorted.
func (ix *Index) Names(kind models.AssetKind) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []string
	for name, a := range ix.byName {
		if kind == "" || a.Kind == kind {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Generation returns the current rebuild generation.
func (ix *Index) Generation() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.generation
}

// replace swaps in a freshly scanned asset set and bumps the generation.
// Stale entries disappear implicitly: only scanned files are present.
func (ix *Index) replace(assets []models.Asset) {
	byFP := make(map[string]models.Asset, len(assets))
	byName := make(map[string]models.Asset, len(assets))
	for _, a := range assets {
		if _, dup := byFP[a.Fingerprint]; dup {
			continue // at most one asset per fingerprint
		}
		byFP[a.Fingerprint] = a
		if _, dup := byName[a.Name]; !dup {
			byName[a.Name] = a
		}
	}
	ix.mu.Lock()
	ix.byFingerprint = byFP
	ix.byName = byName
	ix.generation++
	ix.mu.Unlock()
}

// ApplyRename records a committed rename without bumping the generation, so
// sibling plans in the same batch stay valid. The coordinator is the only
// caller; external changes go through Rebuild instead.
func (ix *Index) ApplyRename(fingerprint, newPath, newName string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	a, ok := ix.byFingerprint[fingerprint]
	if !ok {
		return
	}
	delete(ix.byName, a.Name)
	a.Path = newPath
	a.Name = newName
	ix.byFingerprint[fingerprint] = a
	ix.byName[newName] = a
}

// fingerprintHint is used during rescans to skip rehashing unchanged files.
type fingerprintHint struct {
	size        int64
	unixNano    int64
	fingerprint string
}

// hints snapshots path → fingerprint hints from the current index contents.
func (ix *Index) hints() map[string]fingerprintHint {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[string]fingerprintHint, len(ix.byFingerprint))
	for _, a := range ix.byFingerprint {
		out[a.Path] = fingerprintHint{
			size:        a.Size,
			unixNano:    a.UpdatedAt.UnixNano(),
			fingerprint: a.Fingerprint,
		}
	}
	return out
}
