package recommend

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// MatchScore rates how close two titles are, 1.0 for identical after
// case folding, 0.0 for nothing in common. One title containing the
// other scores at least 0.5, so "The Matrix" prefers "The Matrix
// Reloaded" over an unrelated title at a smaller edit distance.
func MatchScore(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1.0
	}

	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0.0
	}

	if a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a)) {
		shortest := len(a) + len(b) - longest
		return 0.5 + 0.5*float64(shortest)/float64(longest)
	}

	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(longest)
}

// BestMatch finds the candidate closest to the wanted title and its
// score. An empty candidate list scores 0.
func BestMatch(wanted string, candidates []string) (string, float64) {
	best := ""
	bestScore := 0.0
	for _, candidate := range candidates {
		if score := MatchScore(wanted, candidate); score > bestScore {
			best, bestScore = candidate, score
		}
	}
	return best, bestScore
}
