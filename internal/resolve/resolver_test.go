package resolve

import (
	"fmt"
	"testing"

	"github.com/starford/raido/internal/models"
)

func TestSimilarity_SeparatorInsensitive(t *testing.T) {
	score, dist := Similarity("MyCharacter", "my_character")
	if score < 0.95 {
		t.Errorf("score = %v, want near 1.0", score)
	}
	if dist != 0 {
		t.Errorf("dist = %d, want 0", dist)
	}
}

func TestSimilarity_Unrelated(t *testing.T) {
	score, _ := Similarity("landscape_pack", "my_character_v2")
	if score > 0.4 {
		t.Errorf("score = %v, want low", score)
	}
}

func TestCandidates_ThresholdAndOrder(t *testing.T) {
	r := New(0.5, 0.9, 5)
	assets := []models.Asset{
		{Name: "my_character_v2", Path: "loras/my_character_v2.safetensors"},
		{Name: "my_character", Path: "loras/my_character.safetensors"},
		{Name: "landscape_pack", Path: "loras/landscape_pack.safetensors"},
	}
	cands := r.Candidates("MyCharacter", assets)
	if len(cands) < 1 {
		t.Fatal("no candidates")
	}
	if cands[0].Name != "my_character" {
		t.Errorf("top = %q", cands[0].Name)
	}
	for _, c := range cands {
		if c.Name == "landscape_pack" {
			t.Error("below-threshold candidate retained")
		}
	}
	for i, c := range cands {
		if c.Rank != i+1 {
			t.Errorf("rank[%d] = %d", i, c.Rank)
		}
	}
}

func TestSelectTop_RankingProperty(t *testing.T) {
	r := New(0.5, 0.9, 5)
	cands := []models.MatchCandidate{
		{Name: "b", Score: 0.81, Distance: 3},
		{Name: "d", Score: 0.40, Distance: 1},
		{Name: "a", Score: 0.95, Distance: 2},
		{Name: "c", Score: 0.81, Distance: 2},
	}
	got := r.selectTop(cands)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	wantScores := []float64{0.95, 0.81, 0.81}
	for i, s := range wantScores {
		if got[i].Score != s {
			t.Errorf("score[%d] = %v, want %v", i, got[i].Score, s)
		}
	}
	// Tie at 0.81 breaks by shorter edit distance: c (2) before b (3).
	if got[1].Name != "c" || got[2].Name != "b" {
		t.Errorf("tie order = %q, %q", got[1].Name, got[2].Name)
	}
}

func TestSelectTop_LexicalTieBreak(t *testing.T) {
	r := New(0.0, 0.9, 5)
	got := r.selectTop([]models.MatchCandidate{
		{Name: "zeta", Score: 0.8, Distance: 2},
		{Name: "alpha", Score: 0.8, Distance: 2},
	})
	if got[0].Name != "alpha" {
		t.Errorf("got %q first", got[0].Name)
	}
}

func TestAutoAcceptable(t *testing.T) {
	r := New(0.5, 0.9, 5)
	if _, ok := r.AutoAcceptable(nil); ok {
		t.Error("empty list auto-accepted")
	}
	if _, ok := r.AutoAcceptable([]models.MatchCandidate{{Name: "x", Score: 0.8}}); ok {
		t.Error("below-threshold auto-accepted")
	}
	c, ok := r.AutoAcceptable([]models.MatchCandidate{{Name: "x", Score: 0.95}})
	if !ok || c.Name != "x" {
		t.Errorf("c = %+v ok = %v", c, ok)
	}
}

func TestCandidates_TruncatesToK(t *testing.T) {
	r := New(0.0, 0.9, 2)
	assets := []models.Asset{
		{Name: "name_one"}, {Name: "name_two"}, {Name: "name_three"},
	}
	cands := r.Candidates("name", assets)
	if len(cands) != 2 {
		t.Errorf("len = %d, want 2", len(cands))
	}
}

func TestCandidates_PermutedNameBeyondFuzzyReach(t *testing.T) {
	// A token permutation shares no character subsequence with the broken
	// name, so the fuzzy prefilter finds nothing. The full set must then be
	// scored; any positional slice would miss the real match.
	assets := make([]models.Asset, 0, maxPool+60)
	for i := 0; i < maxPool+59; i++ {
		assets = append(assets, models.Asset{
			Name: fmt.Sprintf("asset_%04d", i),
			Path: fmt.Sprintf("loras/asset_%04d.safetensors", i),
		})
	}
	assets = append(assets, models.Asset{Name: "zzv_qqx", Path: "loras/zzv_qqx.safetensors"})

	r := New(0.5, 0.95, 5)
	cands := r.Candidates("qqx_zzv", assets)
	if len(cands) == 0 {
		t.Fatal("no candidates for a permuted name past the prefilter cap")
	}
	if cands[0].Name != "zzv_qqx" {
		t.Errorf("top = %q, want zzv_qqx", cands[0].Name)
	}
}
