// Package sanitize normalizes asset filenames into a portable canonical form.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/starford/raido/internal/apperr"
)

// maxStemLength bounds the canonical stem so names stay usable on FAT/NTFS.
const maxStemLength = 64

// maxSuffixAttempts bounds collision disambiguation before giving up.
const maxSuffixAttempts = 1000

var (
	nonPortableRe = regexp.MustCompile(`[^a-zA-Z0-9\-.]`)
	collapseRe    = regexp.MustCompile(`[_\-]+`)
)

// Portable maps a raw filename to its canonical portable form:
// NFKD decomposition, non-ASCII stripped, non-portable characters replaced
// with underscores, runs of underscores and hyphens collapsed, lowercased,
// truncated, trimmed. The extension is preserved byte-for-byte.
//
// Pure and idempotent: Portable(Portable(x)) == Portable(x).
func Portable(filename string) string {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	decomposed := norm.NFKD.String(stem)
	ascii := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, decomposed)

	clean := nonPortableRe.ReplaceAllString(ascii, "_")
	clean = collapseRe.ReplaceAllString(clean, "_")
	clean = strings.ToLower(clean)
	if len(clean) > maxStemLength {
		clean = clean[:maxStemLength]
	}
	clean = strings.Trim(clean, "._-")

	if clean == "" {
		// Nothing survived (e.g. a name that was entirely CJK or emoji).
		// Derive a stable stand-in from the original so the result is
		// deterministic across runs.
		sum := sha256.Sum256([]byte(filename))
		clean = "renamed_" + hex.EncodeToString(sum[:4])
	}
	return clean + ext
}

// Unique disambiguates filename against existing entries by appending _1, _2,
// ... before the extension until exists reports false. exists is consulted
// with the bare filename; the caller scopes it to the target directory.
// Returns apperr.ErrCollisionUnresolved when disambiguation is exhausted.
func Unique(filename string, exists func(string) bool) (string, error) {
	if !exists(filename) {
		return filename, nil
	}
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for i := 1; i <= maxSuffixAttempts; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("sanitize: %s: %w", filename, apperr.ErrCollisionUnresolved)
}
