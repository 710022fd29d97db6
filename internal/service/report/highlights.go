package report

import (
	"sort"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
)

type span struct{ start, end int }

// BuildHighlights splits text into consecutive spans that cover it exactly once.
// Sentences that matched any stage become flagged spans listing those stages;
// every occurrence of a repeated sentence is flagged.
func BuildHighlights(text string, matches []models.Match) []models.HighlightSpan {
	flagged := make(map[span]map[models.Stage]struct{})
	add := func(start, end int, stage models.Stage) {
		if start < 0 || end > len(text) || start >= end {
			return
		}
		key := span{start, end}
		if flagged[key] == nil {
			flagged[key] = make(map[models.Stage]struct{})
		}
		flagged[key][stage] = struct{}{}
	}

	for _, m := range matches {
		add(m.Start, m.End, m.Stage)
		for _, r := range m.Repeats {
			add(r.Start, r.End, m.Stage)
		}
	}

	keys := make([]span, 0, len(flagged))
	for k := range flagged {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].start < keys[j].start })

	var out []models.HighlightSpan
	pos := 0
	for _, k := range keys {
		// sentence spans never overlap, but skip anything malformed
		if k.start < pos {
			continue
		}
		if k.start > pos {
			out = append(out, models.HighlightSpan{Text: text[pos:k.start], Start: pos, End: k.start})
		}

		var stages []models.Stage
		for _, s := range models.Stages {
			if _, ok := flagged[k][s]; ok {
				stages = append(stages, s)
			}
		}
		out = append(out, models.HighlightSpan{Text: text[k.start:k.end], Start: k.start, End: k.end, Stages: stages})
		pos = k.end
	}
	if pos < len(text) {
		out = append(out, models.HighlightSpan{Text: text[pos:], Start: pos, End: len(text)})
	}

	return out
}
