package analyzer

import (
	"math"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/textproc"
)

type Score struct {
	TotalWords   int
	FlaggedWords int
	Similarity   float64
	Originality  float64
}

// FlaggedSentences returns the indices of sentences that count against originality.
// The first occurrence of a repeated sentence is not flagged; its repeats are.
func FlaggedSentences(matches []models.Match) map[int]struct{} {
	flagged := make(map[int]struct{})
	for _, m := range matches {
		if m.IsRepeat() {
			for _, r := range m.Repeats {
				flagged[r.SentenceIndex] = struct{}{}
			}
			continue
		}
		flagged[m.SentenceIndex] = struct{}{}
	}
	return flagged
}

// ComputeScore weighs flagged sentences by word count. Similarity is rounded
// to two decimals and Originality is its complement.
func ComputeScore(sentences []textproc.Sentence, matches []models.Match) Score {
	flagged := FlaggedSentences(matches)

	var score Score
	for _, s := range sentences {
		score.TotalWords += s.Words
		if _, ok := flagged[s.Index]; ok {
			score.FlaggedWords += s.Words
		}
	}

	if score.TotalWords > 0 {
		score.Similarity = clamp(round(100*float64(score.FlaggedWords)/float64(score.TotalWords), 2))
	}
	score.Originality = round(100-score.Similarity, 2)

	return score
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
