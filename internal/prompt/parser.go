// Package prompt extracts and rewrites asset references embedded in
// generation prompt text.
//
// Two forms are recognized: the parameterized tag <lora:Name:weight>, and a
// bare trigger word matched case-sensitively against known embedding names.
package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/starford/raido/internal/models"
)

var (
	loraTagRe  = regexp.MustCompile(`<lora:([^:>]+):([+-]?\d*\.?\d+)>`)
	loraOpenRe = regexp.MustCompile(`<lora:`)
)

// Warning reports a malformed reference occurrence. Malformed tags are left
// untouched in the prompt; they never fail parsing.
type Warning struct {
	Pos    int    `json:"pos"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

func (w Warning) String() string {
	return fmt.Sprintf("malformed reference at %d (%s): %q", w.Pos, w.Reason, w.Text)
}

// Parse extracts references from text. triggers is the set of known embedding
// display names to match as bare tokens; it may be nil. References are
// returned ordered by byte offset.
func Parse(text string, triggers []string) ([]models.Reference, []Warning) {
	var refs []models.Reference

	tagSpans := loraTagRe.FindAllStringSubmatchIndex(text, -1)
	for _, m := range tagSpans {
		refs = append(refs, models.Reference{
			Kind:   models.RefLoraTag,
			Name:   text[m[2]:m[3]],
			Weight: text[m[4]:m[5]],
			Start:  m[0],
			End:    m[1],
		})
	}

	warnings, malformed := scanMalformed(text, tagSpans)

	for _, name := range triggers {
		if name == "" {
			continue
		}
		for _, span := range standaloneOccurrences(text, name) {
			if insideAny(span[0], tagSpans) || insideAny(span[0], malformed) {
				continue
			}
			refs = append(refs, models.Reference{
				Kind:  models.RefEmbeddingTrigger,
				Name:  name,
				Start: span[0],
				End:   span[1],
			})
		}
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Start < refs[j].Start })
	return refs, warnings
}

// Rewrite replaces every reference whose name appears in mapping, preserving
// weights and surrounding text byte-for-byte, and returns the new text with
// the number of replacements. Zero replacements is a valid outcome.
func Rewrite(text string, mapping map[string]string) (string, int, []Warning) {
	triggers := make([]string, 0, len(mapping))
	for old := range mapping {
		triggers = append(triggers, old)
	}
	sort.Strings(triggers)

	refs, warnings := Parse(text, triggers)

	var b strings.Builder
	b.Grow(len(text))
	count := 0
	last := 0
	for _, ref := range refs {
		newName, ok := mapping[ref.Name]
		if !ok || ref.Start < last {
			continue
		}
		b.WriteString(text[last:ref.Start])
		switch ref.Kind {
		case models.RefLoraTag:
			b.WriteString("<lora:")
			b.WriteString(newName)
			b.WriteString(":")
			b.WriteString(ref.Weight)
			b.WriteString(">")
		case models.RefEmbeddingTrigger:
			b.WriteString(newName)
		}
		last = ref.End
		count++
	}
	b.WriteString(text[last:])
	return b.String(), count, warnings
}

// scanMalformed reports <lora: openings that did not produce a well-formed
// tag: unterminated, missing weight, or a non-numeric weight. The returned
// spans cover the malformed regions so trigger matching can skip them.
func scanMalformed(text string, wellFormed [][]int) ([]Warning, [][]int) {
	var out []Warning
	var spans [][]int
	for _, open := range loraOpenRe.FindAllStringIndex(text, -1) {
		if insideAny(open[0], wellFormed) {
			continue
		}
		end := strings.IndexByte(text[open[0]:], '>')
		if end < 0 {
			out = append(out, Warning{
				Pos:    open[0],
				Text:   truncate(text[open[0]:], 40),
				Reason: "unterminated tag",
			})
			spans = append(spans, []int{open[0], len(text)})
			continue
		}
		raw := text[open[0] : open[0]+end+1]
		out = append(out, Warning{
			Pos:    open[0],
			Text:   raw,
			Reason: "missing or non-numeric weight",
		})
		spans = append(spans, []int{open[0], open[0] + end + 1})
	}
	return out, spans
}

// standaloneOccurrences finds case-sensitive occurrences of name in text that
// are not part of a larger word (neighbouring bytes are not letters, digits,
// or underscores).
func standaloneOccurrences(text, name string) [][2]int {
	var out [][2]int
	for ofs := 0; ; {
		i := strings.Index(text[ofs:], name)
		if i < 0 {
			break
		}
		start := ofs + i
		end := start + len(name)
		if (start == 0 || !isWordByte(text[start-1])) &&
			(end == len(text) || !isWordByte(text[end])) {
			out = append(out, [2]int{start, end})
		}
		ofs = start + 1
	}
	return out
}

func insideAny(pos int, spans [][]int) bool {
	for _, s := range spans {
		if pos >= s[0] && pos < s[1] {
			return true
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
