package consolidate

import (
	"strings"

	"github.com/tessera-labs/weave/internal/util"
)

// Similarity scores how alike two names are, in [0,1]. It takes the better
// of two views: normalized edit distance (catches typos and inflections)
// and token overlap (catches reordered or partially shared multi-word
// names). Comparison is case-insensitive on normalized names.
func Similarity(a, b string) float64 {
	a = util.NormalizeName(a)
	b = util.NormalizeName(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	edit := editSimilarity(a, b)
	overlap := tokenOverlap(a, b)
	if overlap > edit {
		return overlap
	}
	return edit
}

func editSimilarity(a, b string) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// tokenOverlap is the Jaccard index over whitespace-separated tokens.
func tokenOverlap(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(tokensA))
	for _, t := range tokensA {
		setA[t] = true
	}
	setB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		setB[t] = true
	}

	shared := 0
	for t := range setB {
		if setA[t] {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared

	return float64(shared) / float64(union)
}

func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			min := prev[j] + 1
			if ins := curr[j-1] + 1; ins < min {
				min = ins
			}
			if sub := prev[j-1] + cost; sub < min {
				min = sub
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
