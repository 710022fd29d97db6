package analyzer

import (
	"strings"
	"testing"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/textproc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repeated = "The quick brown fox jumps over the lazy sleeping dog today."

func TestFindRepeated(t *testing.T) {
	text := strings.Join([]string{
		repeated,
		"Short line here.",
		"  The QUICK brown fox jumps over the lazy sleeping dog today.  ",
		"Short line here.",
		repeated,
	}, " ")

	sentences := textproc.SplitSentences(text)
	require.Len(t, sentences, 5)

	matches := FindRepeated(sentences, 9)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, models.StageSelf, m.Stage)
	assert.Equal(t, repeated, m.Sentence)
	assert.Equal(t, 0, m.SentenceIndex)
	assert.Equal(t, 3, m.Count)
	require.Len(t, m.Repeats, 2)
	assert.Equal(t, 2, m.Repeats[0].SentenceIndex)
	assert.Equal(t, 4, m.Repeats[1].SentenceIndex)
	assert.True(t, m.IsRepeat())
}

func TestFindRepeatedIgnoresShortSentences(t *testing.T) {
	sentences := textproc.SplitSentences("Short line here. Short line here. Short line here.")
	assert.Empty(t, FindRepeated(sentences, 9))
}

func TestEligible(t *testing.T) {
	sentences := textproc.SplitSentences("One two three. " + repeated)
	got := Eligible(sentences, 10)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Index)
}

func TestContainment(t *testing.T) {
	assert.Equal(t, 1.0, Containment([]string{"a", "b"}, []string{"b", "a", "c"}))
	assert.Equal(t, 0.5, Containment([]string{"a", "b"}, []string{"a"}))
	assert.Zero(t, Containment(nil, []string{"a"}))
}

func TestNGramContainmentRespectsOrder(t *testing.T) {
	s := []string{"a", "b", "c", "d"}
	assert.Equal(t, 1.0, NGramContainment(s, []string{"x", "a", "b", "c", "d"}, 3))
	assert.Zero(t, NGramContainment(s, []string{"d", "c", "b", "a"}, 3))
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 1.0, Confidence("anything at all", ""))
	assert.Equal(t, 1.0, Confidence("Alpha beta gamma delta.", "We saw alpha beta gamma delta in the wild."))
	// Every word is present but no trigram is, so the two measures average to 0.5.
	assert.Equal(t, 0.5, Confidence("Alpha beta gamma delta.", "delta gamma beta alpha"))
}

func TestComputeScore(t *testing.T) {
	sentences := []textproc.Sentence{
		{Index: 0, Words: 10},
		{Index: 1, Words: 5},
		{Index: 2, Words: 10},
		{Index: 3, Words: 15},
	}
	matches := []models.Match{
		{Stage: models.StageSelf, SentenceIndex: 0, Count: 2, Repeats: []models.Occurrence{{SentenceIndex: 2}}},
		{Stage: models.StageAcademic, SentenceIndex: 3},
	}

	score := ComputeScore(sentences, matches)
	assert.Equal(t, 40, score.TotalWords)
	assert.Equal(t, 25, score.FlaggedWords)
	assert.Equal(t, 62.5, score.Similarity)
	assert.Equal(t, 37.5, score.Originality)
}

func TestComputeScoreNoMatches(t *testing.T) {
	score := ComputeScore([]textproc.Sentence{{Index: 0, Words: 3}}, nil)
	assert.Zero(t, score.Similarity)
	assert.Equal(t, 100.0, score.Originality)
}

func TestComputeScoreRounding(t *testing.T) {
	sentences := []textproc.Sentence{{Index: 0, Words: 1}, {Index: 1, Words: 2}}
	score := ComputeScore(sentences, []models.Match{{Stage: models.StageWeb, SentenceIndex: 0}})
	assert.Equal(t, 33.33, score.Similarity)
	assert.Equal(t, 66.67, score.Originality)
}
