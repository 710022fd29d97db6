package analyzer

import (
	"strings"

	"github.com/RubachokBoss/plagiarism-checker/internal/service/textproc"
)

// Containment is the share of needle's distinct tokens present in haystack.
func Containment(needle, haystack []string) float64 {
	if len(needle) == 0 || len(haystack) == 0 {
		return 0
	}

	setN := toSet(needle)
	setH := toSet(haystack)

	found := 0
	for token := range setN {
		if _, ok := setH[token]; ok {
			found++
		}
	}
	return float64(found) / float64(len(setN))
}

// NGramContainment is Containment over word n-grams, so word order counts.
// Inputs shorter than n fall back to plain token containment.
func NGramContainment(needle, haystack []string, n int) float64 {
	if len(needle) < n || len(haystack) < n {
		return Containment(needle, haystack)
	}
	return Containment(createNGrams(needle, n), createNGrams(haystack, n))
}

// Confidence scores how much of sentence is backed by evidence text from a source.
// With no evidence the lookup itself was an exact-phrase hit, so it scores 1.
func Confidence(sentence, evidence string) float64 {
	if strings.TrimSpace(evidence) == "" {
		return 1
	}

	s := textproc.Words(sentence)
	e := textproc.Words(evidence)
	if len(s) == 0 {
		return 0
	}

	score := (Containment(s, e) + NGramContainment(s, e, 3)) / 2
	return round(score, 4)
}

func createNGrams(words []string, n int) []string {
	if n > len(words) {
		return []string{}
	}

	ngrams := make([]string, len(words)-n+1)
	for i := 0; i <= len(words)-n; i++ {
		ngrams[i] = strings.Join(words[i:i+n], " ")
	}
	return ngrams
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
