package extract

import (
	"regexp"
	"strings"

	"github.com/agext/levenshtein"
)

// DefaultSimilarityThreshold is the minimum name similarity for two capture
// blocks to be treated as the same vendor.
const DefaultSimilarityThreshold = 0.70

// legalSuffixRe strips trailing legal-form suffixes so "X Co., Ltd." and "X"
// compare as the same vendor. Applied repeatedly since suffixes stack.
var legalSuffixRe = regexp.MustCompile(`[\s,.]*(?:co\.?,?\s*ltd\.?|ltd\.?|limited|llc|inc\.?|corp\.?|corporation|company|gmbh|sarl|s\.a\.|co\.?)[\s.]*$`)

var nonAlnumSpaceRe = regexp.MustCompile(`[^a-z0-9 ]+`)

// NormalizeVendorName lowercases, strips diacritics and legal suffixes, and
// collapses punctuation so OCR variants of the same vendor name converge.
func NormalizeVendorName(name string) string {
	n := Fold(name)
	for {
		stripped := legalSuffixRe.ReplaceAllString(n, "")
		if stripped == n || strings.TrimSpace(stripped) == "" {
			break
		}
		n = strings.TrimSpace(stripped)
	}
	n = nonAlnumSpaceRe.ReplaceAllString(n, " ")
	return strings.Join(strings.Fields(n), " ")
}

// NameSimilarity returns 1 - levenshtein/maxLen over the normalized names,
// in [0,1]. Two empty names score 0: absence of a name confirms nothing.
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeVendorName(a), NormalizeVendorName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	ra, rb := []rune(na), []rune(nb)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	dist := levenshtein.Distance(na, nb, nil)
	return 1 - float64(dist)/float64(maxLen)
}

// SameVendor reports whether two extracted names clear the similarity
// threshold.
func SameVendor(a, b string, threshold float64) bool {
	return NameSimilarity(a, b) >= threshold
}
