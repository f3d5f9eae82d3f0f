package sidecar

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// PatchMetadata rewrites self-referential fields inside a metadata JSON
// document after a rename: top-level "filename" and "name" fields that equal
// the old filename or stem, and entries of a "files" list whose node is the
// primary model file. Returns the patched document and whether anything
// changed. Field order is not preserved (the document is re-marshalled);
// unknown fields are carried through untouched.
func PatchMetadata(doc []byte, oldFilename, newFilename string) ([]byte, bool, error) {
	var data map[string]any
	if err := json.Unmarshal(doc, &data); err != nil {
		return nil, false, fmt.Errorf("sidecar: parse metadata: %w", err)
	}

	oldStem := strings.TrimSuffix(oldFilename, filepath.Ext(oldFilename))
	newStem := strings.TrimSuffix(newFilename, filepath.Ext(newFilename))

	changed := false
	if v, ok := data["filename"].(string); ok && v == oldFilename {
		data["filename"] = newFilename
		changed = true
	}
	if v, ok := data["name"].(string); ok && (v == oldStem || v == oldFilename) {
		if v == oldFilename {
			data["name"] = newFilename
		} else {
			data["name"] = newStem
		}
		changed = true
	}
	if files, ok := data["files"].([]any); ok {
		for _, raw := range files {
			node, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			primary, _ := node["primary"].(bool)
			typ, _ := node["type"].(string)
			if typ == "Model" || primary {
				if name, _ := node["name"].(string); name != newFilename {
					node["name"] = newFilename
					changed = true
				}
			}
		}
	}

	if !changed {
		return doc, false, nil
	}
	out, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return nil, false, fmt.Errorf("sidecar: marshal metadata: %w", err)
	}
	return out, true, nil
}
