package categories

import (
	"strings"
	"unicode/utf8"
)

// maxEditDistance bounds the fuzzy match. One edit absorbs trivial typos
// and pluralization without letting unrelated categories collide.
const maxEditDistance = 1

// Normalize maps an arbitrary label to a canonical category. Matching runs
// in order: exact canonical, alias table, then Levenshtein distance of at
// most one against the canonical names. Unknown labels come back trimmed
// but otherwise unchanged; normalization never fails.
func Normalize(label string) string {
	trimmed := collapseWhitespace(label)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)

	if name, ok := lowerCanonical[lower]; ok {
		return name
	}

	if name, ok := aliasIndex[lower]; ok {
		return name
	}

	// First canonical within the edit bound wins.
	for _, name := range canonical {
		if withinEditDistance(lower, strings.ToLower(name), maxEditDistance) {
			return name
		}
	}

	return trimmed
}

// NormalizeAll normalizes a list of labels, drops empty results and
// deduplicates while preserving first-seen order.
func NormalizeAll(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		normalized := Normalize(label)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	return out
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// withinEditDistance reports whether the Levenshtein distance between a and
// b is at most max. The early length check must count runes, not bytes:
// deleting a single umlaut changes the byte length by two.
func withinEditDistance(a, b string, max int) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la-lb > max || lb-la > max {
		return false
	}
	return levenshtein(a, b) <= max
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[lb]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
