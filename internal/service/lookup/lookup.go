// Package lookup queries external sources for verbatim occurrences of a sentence.
package lookup

import (
	"context"
	"errors"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
)

var (
	ErrRateLimited = errors.New("source rate limit exceeded")
	ErrBadResponse = errors.New("unexpected response from source")
)

// Result is the first hit a source returned for a sentence. Found is false when nothing matched.
type Result struct {
	Found   bool   `json:"found"`
	Title   string `json:"title,omitempty"`
	Authors string `json:"authors,omitempty"`
	URL     string `json:"url,omitempty"`
	// Evidence is text from the source (abstract or snippet) used to score the match.
	Evidence string `json:"evidence,omitempty"`
}

func (r Result) Source() models.Source {
	return models.Source{
		Title:   r.Title,
		Authors: r.Authors,
		URL:     r.URL,
	}
}

// Searcher looks up one sentence in one kind of source.
type Searcher interface {
	Stage() models.Stage
	Search(ctx context.Context, sentence string) (Result, error)
}

func quote(sentence string) string {
	return `"` + sentence + `"`
}
