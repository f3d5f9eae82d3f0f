package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/history"
	"github.com/starford/raido/internal/library"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/rename"
	"github.com/starford/raido/internal/resolve"
	"github.com/starford/raido/internal/sidecar"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	testutil.WriteAsset(t, root, rel, []byte(content))
}

type fixture struct {
	root  string
	store storage.Provider
	db    *history.DB
	ix    *library.Index
	svc   *Service
}

func newFixture(t *testing.T, autoAccept float64) *fixture {
	t.Helper()
	root, store := testutil.TestLibrary(t)
	db := testutil.TestHistoryDB(t)

	logger := discardLogger()
	ix := library.NewIndex()
	scanner := library.NewScanner(store, []string{".safetensors"}, logger)
	registry := sidecar.NewRegistry(sidecar.DefaultSuffixes())
	co := rename.NewCoordinator(store, db, ix, registry, logger)
	resolver := resolve.New(0.5, autoAccept, 5)

	return &fixture{
		root:  root,
		store: store,
		db:    db,
		ix:    ix,
		svc:   NewService(store, db, ix, scanner, co, resolver, logger),
	}
}

func (fx *fixture) rescan(t *testing.T) {
	t.Helper()
	if err := fx.svc.Rescan(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func (fx *fixture) seed(t *testing.T, id, promptText string) {
	t.Helper()
	err := fx.db.Insert(models.HistoryRecord{ID: id, Prompt: promptText, Timestamp: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
}

func (fx *fixture) promptOf(t *testing.T, id string) string {
	t.Helper()
	rec, err := fx.db.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	return rec.Prompt
}

func TestScanForChanges(t *testing.T) {
	fx := newFixture(t, 0.95)
	writeFile(t, fx.root, "loras/My Character V2.safetensors", "a")
	writeFile(t, fx.root, "loras/clean_name.safetensors", "b")
	writeFile(t, fx.root, "loras/Foo Bar.safetensors", "c")
	writeFile(t, fx.root, "loras/foo_bar.safetensors", "d")
	fx.rescan(t)

	plans, err := fx.svc.ScanForChanges(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[string]string)
	for _, p := range plans {
		got[p.OldName] = filepath.Base(p.NewPath)
	}
	want := map[string]string{
		"My Character V2": "my_character_v2.safetensors",
		"Foo Bar":         "foo_bar_1.safetensors",
	}
	if len(got) != len(want) {
		t.Fatalf("plans = %v, want %v", got, want)
	}
	for old, newFilename := range want {
		if got[old] != newFilename {
			t.Errorf("plan for %q = %q, want %q", old, got[old], newFilename)
		}
	}
}

func TestScanForChangesClaimsTargets(t *testing.T) {
	fx := newFixture(t, 0.95)
	writeFile(t, fx.root, "loras/A B.safetensors", "a")
	writeFile(t, fx.root, "loras/A-B.safetensors", "b")
	fx.rescan(t)

	plans, err := fx.svc.ScanForChanges(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(plans) != 2 {
		t.Fatalf("plans = %d, want 2", len(plans))
	}

	// Both sanitize to the same stem; the second in path order must
	// disambiguate against the first's claimed target.
	targets := map[string]bool{}
	for _, p := range plans {
		targets[filepath.Base(p.NewPath)] = true
	}
	if !targets["a_b.safetensors"] || !targets["a_b_1.safetensors"] {
		t.Fatalf("targets = %v, want a_b and a_b_1", targets)
	}
}

func TestSanitizeLibrary(t *testing.T) {
	fx := newFixture(t, 0.95)
	writeFile(t, fx.root, "loras/My Character V2.safetensors", "weights")
	writeFile(t, fx.root, "loras/My Character V2.json", `{"filename": "My Character V2.safetensors"}`)
	fx.rescan(t)
	fx.seed(t, "rec-1", "<lora:My Character V2:0.8>, masterpiece")

	results, err := fx.svc.SanitizeLibrary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("plan failed: %v", results[0].Err)
	}
	if results[0].State != rename.StateCommitted {
		t.Fatalf("state = %v, want committed", results[0].State)
	}

	if !fx.store.Exists("loras/my_character_v2.safetensors") {
		t.Error("asset not renamed")
	}
	if !fx.store.Exists("loras/my_character_v2.json") {
		t.Error("sidecar not renamed")
	}
	if got := fx.promptOf(t, "rec-1"); got != "<lora:my_character_v2:0.8>, masterpiece" {
		t.Errorf("prompt = %q", got)
	}

	// A second run over a now-clean library proposes nothing.
	again, err := fx.svc.SanitizeLibrary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Fatalf("second run produced %d plans, want 0", len(again))
	}
}

func TestMissingReferences(t *testing.T) {
	fx := newFixture(t, 0.95)
	writeFile(t, fx.root, "loras/style_anime.safetensors", "a")
	fx.rescan(t)

	fx.seed(t, "rec-1", "<lora:style_anime:1.0>, ok")
	fx.seed(t, "rec-2", "<lora:style-anime:0.8>, typo")
	fx.seed(t, "rec-3", "<lora:style-anime:0.5> with <lora:gone_forever:1.0>")

	missing, err := fx.svc.MissingReferences(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 2 {
		t.Fatalf("missing = %+v, want 2 distinct names", missing)
	}
	if missing[0].Name != "gone_forever" || missing[1].Name != "style-anime" {
		t.Fatalf("names = %q, %q", missing[0].Name, missing[1].Name)
	}
	if got := missing[1].Records; len(got) != 2 || got[0] != "rec-2" || got[1] != "rec-3" {
		t.Errorf("style-anime records = %v", got)
	}
	if len(missing[1].Candidates) == 0 || missing[1].Candidates[0].Name != "style_anime" {
		t.Errorf("style-anime candidates = %+v", missing[1].Candidates)
	}
}

func TestAutoResolve(t *testing.T) {
	fx := newFixture(t, 0.95)
	writeFile(t, fx.root, "loras/style_anime.safetensors", "a")
	fx.rescan(t)

	fx.seed(t, "rec-1", "<lora:style-anime:0.8>, typo")
	fx.seed(t, "rec-2", "<lora:gone_forever:1.0>, orphan")

	results, ambiguous, err := fx.svc.AutoResolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("auto-resolve plan failed: %v", results[0].Err)
	}
	if got := fx.promptOf(t, "rec-1"); got != "<lora:style_anime:0.8>, typo" {
		t.Errorf("prompt = %q", got)
	}
	if len(ambiguous) != 1 || ambiguous[0].Name != "gone_forever" {
		t.Fatalf("ambiguous = %+v, want gone_forever only", ambiguous)
	}
	if got := fx.promptOf(t, "rec-2"); got != "<lora:gone_forever:1.0>, orphan" {
		t.Errorf("ambiguous record was mutated: %q", got)
	}
}

func TestResolveMissingUnknownTarget(t *testing.T) {
	fx := newFixture(t, 0.95)
	fx.rescan(t)

	_, err := fx.svc.ResolveMissing(context.Background(), map[string]string{"broken": "no_such_asset"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
