// Package resolve proposes library assets for history references that no
// longer resolve by name. It only proposes; applying a match goes through
// the rename coordinator as a history-only rename.
package resolve

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/sahilm/fuzzy"

	"github.com/starford/raido/internal/models"
)

// maxPool caps the number of names scored per broken reference. Libraries
// larger than this are pre-filtered with fuzzy subsequence matching.
const maxPool = 200

// Resolver scores library display names against broken reference names.
type Resolver struct {
	minScore      float64
	autoAccept    float64
	maxCandidates int
}

// New creates a Resolver. minScore is the retention threshold, autoAccept the
// score at or above which the top candidate may be applied without
// confirmation, maxCandidates the top-K cutoff.
func New(minScore, autoAccept float64, maxCandidates int) *Resolver {
	if maxCandidates <= 0 {
		maxCandidates = 5
	}
	return &Resolver{minScore: minScore, autoAccept: autoAccept, maxCandidates: maxCandidates}
}

// Candidates returns the top-K assets whose display name is most similar to
// the broken name, ranked descending by score. Ties break by shorter edit
// distance, then lexical order.
func (r *Resolver) Candidates(broken string, assets []models.Asset) []models.MatchCandidate {
	pool := assets
	if len(assets) > maxPool {
		pool = prefilter(broken, assets)
	}

	var cands []models.MatchCandidate
	for _, a := range pool {
		score, dist := Similarity(broken, a.Name)
		if score < r.minScore {
			continue
		}
		cands = append(cands, models.MatchCandidate{
			Name:     a.Name,
			Path:     a.Path,
			Score:    score,
			Distance: dist,
		})
	}
	return r.selectTop(cands)
}

// AutoAcceptable reports whether the ranked candidate list has an
// unambiguous winner at or above the auto-accept threshold.
func (r *Resolver) AutoAcceptable(cands []models.MatchCandidate) (models.MatchCandidate, bool) {
	if len(cands) == 0 || cands[0].Score < r.autoAccept {
		return models.MatchCandidate{}, false
	}
	return cands[0], true
}

// selectTop filters, orders, truncates, and ranks candidates.
func (r *Resolver) selectTop(cands []models.MatchCandidate) []models.MatchCandidate {
	kept := cands[:0]
	for _, c := range cands {
		if c.Score >= r.minScore {
			kept = append(kept, c)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		if kept[i].Distance != kept[j].Distance {
			return kept[i].Distance < kept[j].Distance
		}
		return kept[i].Name < kept[j].Name
	})
	if len(kept) > r.maxCandidates {
		kept = kept[:r.maxCandidates]
	}
	for i := range kept {
		kept[i].Rank = i + 1
	}
	return kept
}

// Similarity returns a normalized score in [0, 1] combining token overlap
// (Dice coefficient) with edit-distance proximity, plus the raw edit
// distance used for tie-breaking. Names are tokenized on separators and
// camelCase boundaries, so "MyCharacter" and "my_character" land close.
func Similarity(a, b string) (float64, int) {
	ta, tb := tokenize(a), tokenize(b)
	na, nb := strings.Join(ta, " "), strings.Join(tb, " ")

	dist := levenshtein.ComputeDistance(na, nb)
	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	prox := 0.0
	if maxLen > 0 {
		prox = 1.0 - float64(dist)/float64(maxLen)
	}
	overlap := dice(ta, tb)
	return 0.5*overlap + 0.5*prox, dist
}

// prefilter narrows large libraries with fuzzy subsequence matching before
// exact scoring, keeping at most maxPool assets. When nothing shares a
// subsequence with the broken name (token permutations do this) the full set
// is scored; any slice of it would drop the real match.
func prefilter(broken string, assets []models.Asset) []models.Asset {
	names := make([]string, len(assets))
	for i, a := range assets {
		names[i] = a.Name
	}
	matches := fuzzy.Find(broken, names)
	if len(matches) == 0 {
		return assets
	}
	if len(matches) > maxPool {
		matches = matches[:maxPool]
	}
	out := make([]models.Asset, 0, len(matches))
	for _, m := range matches {
		out = append(out, assets[m.Index])
	}
	return out
}

func dice(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	shared := 0
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(set)+len(seen))
}

// tokenize lowercases and splits a name on non-alphanumeric separators and
// lower-to-upper camelCase boundaries.
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	prevLower := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			if unicode.IsUpper(r) && prevLower {
				flush()
			}
			cur.WriteRune(unicode.ToLower(r))
			prevLower = unicode.IsLower(r)
		case unicode.IsDigit(r):
			cur.WriteRune(r)
			prevLower = false
		default:
			flush()
			prevLower = false
		}
	}
	flush()
	return tokens
}
