package sidecar

import (
	"path/filepath"
	"strings"

	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/storage"
)

// Resolve enumerates the sidecars of the asset at assetPath: files in the
// same directory whose name is the asset's base name plus a registered
// suffix. The result is deduplicated by path and ordered by suffix.
func Resolve(store storage.Provider, registry *Registry, assetPath string) []models.Sidecar {
	base := strings.TrimSuffix(assetPath, filepath.Ext(assetPath))

	seen := make(map[string]struct{})
	var out []models.Sidecar
	for _, suffix := range registry.Suffixes() {
		p := base + suffix
		if _, dup := seen[p]; dup {
			continue
		}
		if !store.Exists(p) {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, models.Sidecar{
			Path:   p,
			Suffix: suffix,
			Kind:   registry.Kind(suffix),
		})
	}
	return out
}

// Rebase returns the sidecar's path under a new asset base name. newAssetPath
// is the asset's new path; the sidecar keeps its suffix.
func Rebase(sc models.Sidecar, newAssetPath string) string {
	base := strings.TrimSuffix(newAssetPath, filepath.Ext(newAssetPath))
	return base + sc.Suffix
}
