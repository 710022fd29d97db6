package analyzer

import (
	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/textproc"
)

// FindRepeated reports every normalized sentence of at least minWords words
// that occurs more than once. Each report carries the first occurrence's
// original text and the later occurrences. Results follow first-occurrence order.
func FindRepeated(sentences []textproc.Sentence, minWords int) []models.Match {
	type group struct {
		first   textproc.Sentence
		repeats []models.Occurrence
	}

	groups := make(map[string]*group)
	var order []string

	for _, s := range sentences {
		if s.Words < minWords {
			continue
		}

		key := textproc.Normalize(s.Text)
		g, ok := groups[key]
		if !ok {
			groups[key] = &group{first: s}
			order = append(order, key)
			continue
		}
		g.repeats = append(g.repeats, models.Occurrence{
			SentenceIndex: s.Index,
			Start:         s.Start,
			End:           s.End,
		})
	}

	var matches []models.Match
	for _, key := range order {
		g := groups[key]
		if len(g.repeats) == 0 {
			continue
		}
		matches = append(matches, models.Match{
			Stage:         models.StageSelf,
			SentenceIndex: g.first.Index,
			Sentence:      g.first.Text,
			Start:         g.first.Start,
			End:           g.first.End,
			Score:         1,
			Count:         len(g.repeats) + 1,
			Repeats:       g.repeats,
		})
	}

	return matches
}

// Eligible returns the sentences with at least minWords words.
func Eligible(sentences []textproc.Sentence, minWords int) []textproc.Sentence {
	var out []textproc.Sentence
	for _, s := range sentences {
		if s.Words >= minWords {
			out = append(out, s)
		}
	}
	return out
}
