// Package similarity scores how alike two short texts are. It backs the
// description signal of identity resolution and "did you mean" hints.
package similarity

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Suggestion pairs a known name with its similarity score (0-1, higher is better).
type Suggestion struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// DefaultThreshold is the minimum similarity score for a suggestion to be returned.
const DefaultThreshold = 0.5

// DefaultTopN is the maximum number of suggestions returned.
const DefaultTopN = 5

// maxRunes bounds the text compared so long descriptions stay cheap.
const maxRunes = 256

// Suggest returns known names similar to name, ranked by similarity score.
func Suggest(name string, known []string) []Suggestion {
	return SuggestN(name, known, DefaultTopN, DefaultThreshold)
}

// SuggestN returns up to topN known names similar to name, with score >= threshold.
func SuggestN(name string, known []string, topN int, threshold float64) []Suggestion {
	if name == "" || len(known) == 0 {
		return nil
	}

	normName := Normalize(name)
	var results []Suggestion
	for _, k := range known {
		s := score(normName, Normalize(k))
		if s >= threshold {
			results = append(results, Suggestion{Name: k, Score: s})
		}
	}

	sortByScore(results)

	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results
}

// Score returns the similarity of two raw texts after normalization.
func Score(a, b string) float64 {
	return score(Normalize(a), Normalize(b))
}

// score combines normalized Levenshtein distance with prefix/suffix bonuses.
func score(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0.0
		}
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	lev := 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)

	prefixBonus := 0.1 * float64(commonPrefixLen(ra, rb)) / float64(maxLen)
	suffixBonus := 0.05 * float64(commonSuffixLen(ra, rb)) / float64(maxLen)

	s := lev + prefixBonus + suffixBonus
	if s > 1.0 {
		s = 1.0
	}
	return s
}

// Normalize lowercases s, splits camelCase, treats punctuation, underscores
// and hyphens as separators, and joins the words with single spaces.
func Normalize(s string) string {
	runes := []rune(s)
	var parts []string
	var current []rune

	flush := func() {
		if len(current) > 0 {
			parts = append(parts, string(current))
			current = current[:0]
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if len(current) > 0 {
				// Split on lower→upper ("readFile") and before the last
				// capital of an acronym ("XMLParser" → "xml parser").
				prevLower := i > 0 && unicode.IsLower(runes[i-1])
				prevUpper := i > 0 && unicode.IsUpper(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (prevUpper && nextLower) {
					flush()
				}
			}
			current = append(current, unicode.ToLower(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current = append(current, r)
		default:
			flush()
		}
	}
	flush()

	out := strings.Join(parts, " ")
	if r := []rune(out); len(r) > maxRunes {
		out = string(r[:maxRunes])
	}
	return out
}

func commonPrefixLen(a, b []rune) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func commonSuffixLen(a, b []rune) int {
	la, lb := len(a), len(b)
	n := min(la, lb)
	for i := 0; i < n; i++ {
		if a[la-1-i] != b[lb-1-i] {
			return i
		}
	}
	return n
}

// sortByScore sorts suggestions by score descending using insertion sort
// (sufficient for small result sets). Ties keep input order.
func sortByScore(s []Suggestion) {
	for i := 1; i < len(s); i++ {
		key := s[i]
		j := i - 1
		for j >= 0 && s[j].Score < key.Score {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = key
	}
}
