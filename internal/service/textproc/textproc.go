// Package textproc splits extracted document text into sentences and words
// using Unicode text segmentation (UAX #29). Segments that end in a common
// abbreviation or an initial are joined with the segment that follows, and
// sentence word counts are whitespace-separated tokens.
package textproc

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/sentences"
	"github.com/clipperhouse/uax29/v2/words"
)

type Sentence struct {
	Index int
	// Text is the sentence with surrounding whitespace removed.
	Text string
	// Start and End are byte offsets of Text within the source text.
	Start int
	End   int
	Words int
}

// abbreviations never end a sentence, compared lowercased.
var abbreviations = map[string]struct{}{
	"dr.": {}, "prof.": {}, "mr.": {}, "mrs.": {}, "ms.": {}, "jr.": {},
	"sr.": {}, "fig.": {}, "figs.": {}, "eq.": {}, "vol.": {}, "pp.": {},
	"ch.": {}, "sec.": {}, "al.": {}, "cf.": {}, "vs.": {}, "e.g.": {},
	"i.e.": {}, "approx.": {},
}

// SplitSentences returns the non-blank sentences of text in order with dense indices.
func SplitSentences(text string) []Sentence {
	var out []Sentence

	start, end := -1, -1
	flush := func() {
		if start < 0 {
			return
		}
		trimmed := text[start:end]
		out = append(out, Sentence{
			Index: len(out),
			Text:  trimmed,
			Start: start,
			End:   end,
			Words: CountWords(trimmed),
		})
		start, end = -1, -1
	}

	iter := sentences.FromString(text)
	for iter.Next() {
		raw := iter.Value()
		trimmedLeft := strings.TrimLeftFunc(raw, unicode.IsSpace)
		trimmed := strings.TrimRightFunc(trimmedLeft, unicode.IsSpace)
		if trimmed == "" {
			continue
		}

		if start < 0 {
			start = iter.Start() + (len(raw) - len(trimmedLeft))
		}
		end = iter.Start() + (len(raw) - len(trimmedLeft)) + len(trimmed)

		// A line break after the abbreviation still ends the sentence.
		trailing := trimmedLeft[len(trimmed):]
		if !endsWithAbbreviation(trimmed) || strings.ContainsRune(trailing, '\n') {
			flush()
		}
	}
	flush()

	return out
}

// endsWithAbbreviation reports whether the last token of s is a known
// abbreviation or a single-letter initial such as "J.".
func endsWithAbbreviation(s string) bool {
	fields := strings.Fields(s)
	last := strings.TrimLeft(fields[len(fields)-1], "(\"'“‘[")
	if !strings.HasSuffix(last, ".") {
		return false
	}

	if _, ok := abbreviations[strings.ToLower(last)]; ok {
		return true
	}

	r, size := utf8.DecodeRuneInString(last)
	return unicode.IsUpper(r) && size+1 == len(last)
}

// Words returns the lowercased word tokens of s, skipping punctuation and whitespace.
func Words(s string) []string {
	var out []string

	iter := words.FromString(s)
	for iter.Next() {
		tok := iter.Value()
		if isWord(tok) {
			out = append(out, strings.ToLower(tok))
		}
	}

	return out
}

// CountWords counts whitespace-separated tokens, so "state-of-the-art" is one word.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// Normalize is the comparison key for duplicate detection.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isWord(tok string) bool {
	for len(tok) > 0 {
		r, size := utf8.DecodeRuneInString(tok)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
		tok = tok[size:]
	}
	return false
}
