package sidecar

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/storage"
)

func testStore(t *testing.T, files ...string) storage.Provider {
	t.Helper()
	dir := t.TempDir()
	for _, name := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestResolve_FindsRegisteredSuffixes(t *testing.T) {
	store := testStore(t,
		"My Character V2.safetensors",
		"My Character V2.preview.png",
		"My Character V2.json",
		"My Character V2.unrelated",
		"Other Model.json",
	)
	reg := NewRegistry(DefaultSuffixes())
	got := Resolve(store, reg, "My Character V2.safetensors")
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(got), got)
	}
	byPath := map[string]models.SidecarKind{}
	for _, sc := range got {
		byPath[sc.Path] = sc.Kind
	}
	if byPath["My Character V2.json"] != models.SidecarMetadata {
		t.Errorf("json kind = %v", byPath["My Character V2.json"])
	}
	if byPath["My Character V2.preview.png"] != models.SidecarPreview {
		t.Errorf("preview kind = %v", byPath["My Character V2.preview.png"])
	}
}

func TestResolve_DeduplicatesByPath(t *testing.T) {
	store := testStore(t, "m.safetensors", "m.json")
	reg := NewRegistry(map[string]models.SidecarKind{
		".json": models.SidecarMetadata,
	})
	got := Resolve(store, reg, "m.safetensors")
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
}

func TestRebase(t *testing.T) {
	sc := models.Sidecar{Path: "loras/Old Name.preview.png", Suffix: ".preview.png"}
	got := Rebase(sc, "loras/new_name.safetensors")
	if got != "loras/new_name.preview.png" {
		t.Errorf("got %q", got)
	}
}

func TestPatchMetadata_FilesListAndTopLevel(t *testing.T) {
	doc := []byte(`{
		"name": "My Character V2",
		"filename": "My Character V2.safetensors",
		"trainedWords": ["mychar"],
		"files": [
			{"name": "My Character V2.safetensors", "type": "Model", "primary": true},
			{"name": "other.vae.pt", "type": "VAE"}
		]
	}`)
	out, changed, err := PatchMetadata(doc, "My Character V2.safetensors", "my_character_v2.safetensors")
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected change")
	}
	var data map[string]any
	if err := json.Unmarshal(out, &data); err != nil {
		t.Fatal(err)
	}
	if data["filename"] != "my_character_v2.safetensors" {
		t.Errorf("filename = %v", data["filename"])
	}
	if data["name"] != "my_character_v2" {
		t.Errorf("name = %v", data["name"])
	}
	files := data["files"].([]any)
	first := files[0].(map[string]any)
	if first["name"] != "my_character_v2.safetensors" {
		t.Errorf("files[0].name = %v", first["name"])
	}
	second := files[1].(map[string]any)
	if second["name"] != "other.vae.pt" {
		t.Errorf("files[1].name = %v, want untouched", second["name"])
	}
	// Unrelated fields carried through.
	if data["trainedWords"].([]any)[0] != "mychar" {
		t.Errorf("trainedWords lost")
	}
}

func TestPatchMetadata_NoSelfReference(t *testing.T) {
	doc := []byte(`{"description": "nothing to see"}`)
	out, changed, err := PatchMetadata(doc, "a.safetensors", "b.safetensors")
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("expected no change")
	}
	if string(out) != string(doc) {
		t.Error("document rewritten despite no change")
	}
}

func TestPatchMetadata_InvalidJSON(t *testing.T) {
	if _, _, err := PatchMetadata([]byte("{nope"), "a", "b"); err == nil {
		t.Error("expected error")
	}
}
