package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/lookup"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/textproc"
	"github.com/RubachokBoss/plagiarism-checker/pkg/hash"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var ErrNoSentences = errors.New("document has no sentences to analyze")

// PriorDocuments finds fingerprints shared with the uploader's earlier documents.
type PriorDocuments interface {
	FindHits(ctx context.Context, uploadedBy, excludeDocumentID string, hashes []string) ([]models.FingerprintHit, error)
}

// ProgressFunc is called after each external lookup with the number of sentences done.
type ProgressFunc func(done, total int)

type PlagiarismChecker interface {
	Check(ctx context.Context, in CheckInput, progress ProgressFunc) (*CheckOutcome, error)
	Stages() []models.Stage
}

type PlagiarismCheckerConfig struct {
	Stages             []models.Stage
	SelfMinWords       int
	ExternalMinWords   int
	MaxParallelLookups int
}

type CheckInput struct {
	DocumentID   string
	DocumentName string
	UploadedBy   string
	Text         string
}

type CheckOutcome struct {
	Sentences    []textproc.Sentence
	Matches      []models.Match
	Stages       []models.StageSummary
	Score        Score
	Checked      int
	Fingerprints []models.Fingerprint
	Duration     time.Duration
}

// Apply copies the outcome onto result and marks it completed at completedAt.
func (o *CheckOutcome) Apply(result *models.AnalysisResult, completedAt time.Time) {
	result.Status = models.AnalysisStatusCompleted.String()
	result.Similarity = o.Score.Similarity
	result.Originality = o.Score.Originality
	result.TotalSentences = len(o.Sentences)
	result.CheckedSentences = o.Checked
	result.TotalWords = o.Score.TotalWords
	result.FlaggedWords = o.Score.FlaggedWords
	result.Matches = o.Matches
	result.Stages = o.Stages
	result.Error = ""
	result.CompletedAt = &completedAt
	result.UpdatedAt = completedAt
}

type plagiarismChecker struct {
	academic lookup.Searcher
	web      lookup.Searcher
	prior    PriorDocuments
	hasher   *hash.Hasher
	enabled  map[models.Stage]bool
	logger   zerolog.Logger
	config   PlagiarismCheckerConfig
}

// NewPlagiarismChecker wires the three stages. academic, web and prior may be nil,
// which disables the corresponding check.
func NewPlagiarismChecker(
	academic lookup.Searcher,
	web lookup.Searcher,
	prior PriorDocuments,
	hasher *hash.Hasher,
	logger zerolog.Logger,
	config PlagiarismCheckerConfig,
) PlagiarismChecker {
	if config.MaxParallelLookups < 1 {
		config.MaxParallelLookups = 1
	}

	enabled := make(map[models.Stage]bool, len(config.Stages))
	for _, s := range config.Stages {
		enabled[s] = true
	}
	if academic == nil {
		enabled[models.StageAcademic] = false
	}
	if web == nil {
		enabled[models.StageWeb] = false
	}

	return &plagiarismChecker{
		academic: academic,
		web:      web,
		prior:    prior,
		hasher:   hasher,
		enabled:  enabled,
		logger:   logger,
		config:   config,
	}
}

func (c *plagiarismChecker) Stages() []models.Stage {
	var out []models.Stage
	for _, s := range models.Stages {
		if c.enabled[s] {
			out = append(out, s)
		}
	}
	return out
}

func (c *plagiarismChecker) Check(ctx context.Context, in CheckInput, progress ProgressFunc) (*CheckOutcome, error) {
	start := time.Now()

	sentences := textproc.SplitSentences(in.Text)
	if len(sentences) == 0 {
		return nil, ErrNoSentences
	}

	log := c.logger.With().Str("document_id", in.DocumentID).Logger()
	log.Info().Int("sentences", len(sentences)).Strs("stages", stageNames(c.Stages())).Msg("Starting plagiarism check")

	summaries := make(map[models.Stage]*models.StageSummary, len(models.Stages))
	for _, s := range models.Stages {
		summaries[s] = &models.StageSummary{Stage: s, Enabled: c.enabled[s]}
	}

	outcome := &CheckOutcome{
		Sentences:    sentences,
		Fingerprints: c.fingerprints(in.DocumentID, sentences),
	}

	if c.enabled[models.StageSelf] {
		selfMatches := c.selfCheck(ctx, in, sentences, outcome.Fingerprints, summaries[models.StageSelf])
		outcome.Matches = append(outcome.Matches, selfMatches...)
	}

	if c.enabled[models.StageAcademic] || c.enabled[models.StageWeb] {
		eligible := Eligible(sentences, c.config.ExternalMinWords)
		outcome.Checked = len(eligible)

		external, err := c.externalCheck(ctx, eligible, summaries, progress)
		if err != nil {
			return nil, err
		}
		outcome.Matches = append(outcome.Matches, external...)
	}

	for _, s := range models.Stages {
		outcome.Stages = append(outcome.Stages, *summaries[s])
	}
	outcome.Score = ComputeScore(sentences, outcome.Matches)
	outcome.Duration = time.Since(start)

	log.Info().
		Int("matches", len(outcome.Matches)).
		Float64("similarity", outcome.Score.Similarity).
		Dur("duration", outcome.Duration).
		Msg("Plagiarism check completed")

	return outcome, nil
}

func (c *plagiarismChecker) fingerprints(documentID string, sentences []textproc.Sentence) []models.Fingerprint {
	if c.hasher == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []models.Fingerprint
	for _, s := range Eligible(sentences, c.config.SelfMinWords) {
		h := c.hasher.SumString(textproc.Normalize(s.Text))
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, models.Fingerprint{DocumentID: documentID, Hash: h, SentenceIndex: s.Index})
	}
	return out
}

// selfCheck finds repeats inside the document and, when the uploader is known,
// sentences reused from their earlier documents.
func (c *plagiarismChecker) selfCheck(
	ctx context.Context,
	in CheckInput,
	sentences []textproc.Sentence,
	fingerprints []models.Fingerprint,
	summary *models.StageSummary,
) []models.Match {
	summary.Checked = len(Eligible(sentences, c.config.SelfMinWords))

	matches := FindRepeated(sentences, c.config.SelfMinWords)
	for i := range matches {
		matches[i].Source = models.Source{DocumentID: in.DocumentID, DocumentName: in.DocumentName}
	}

	if c.prior != nil && in.UploadedBy != "" && len(fingerprints) > 0 {
		hashes := make([]string, len(fingerprints))
		byHash := make(map[string]int, len(fingerprints))
		for i, f := range fingerprints {
			hashes[i] = f.Hash
			byHash[f.Hash] = f.SentenceIndex
		}

		hits, err := c.prior.FindHits(ctx, in.UploadedBy, in.DocumentID, hashes)
		if err != nil {
			summary.Errors++
			c.logger.Warn().Err(err).Str("document_id", in.DocumentID).Msg("Prior document lookup failed")
		}
		for _, hit := range hits {
			idx, ok := byHash[hit.Hash]
			if !ok {
				continue
			}
			s := sentences[idx]
			matches = append(matches, models.Match{
				Stage:         models.StageSelf,
				SentenceIndex: s.Index,
				Sentence:      s.Text,
				Start:         s.Start,
				End:           s.End,
				Score:         1,
				Source:        models.Source{DocumentID: hit.DocumentID, DocumentName: hit.DocumentName},
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].SentenceIndex < matches[j].SentenceIndex
	})

	summary.Matches = len(matches)
	return matches
}

// externalCheck runs the academic lookup for every eligible sentence and falls
// back to the web lookup only when the academic source had nothing.
// Lookup failures count as "no match" and are tallied per stage.
func (c *plagiarismChecker) externalCheck(
	ctx context.Context,
	eligible []textproc.Sentence,
	summaries map[models.Stage]*models.StageSummary,
	progress ProgressFunc,
) ([]models.Match, error) {
	results := make([]*models.Match, len(eligible))

	var (
		mu   sync.Mutex
		done int
	)
	record := func(stage models.Stage, checked bool, failed bool) {
		mu.Lock()
		defer mu.Unlock()
		if checked {
			summaries[stage].Checked++
		}
		if failed {
			summaries[stage].Errors++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.MaxParallelLookups)

	for i, s := range eligible {
		i, s := i, s
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			if c.enabled[models.StageAcademic] {
				m, err := c.lookup(gctx, c.academic, s)
				if err != nil && gctx.Err() != nil {
					return gctx.Err()
				}
				record(models.StageAcademic, true, err != nil)
				if m != nil {
					results[i] = m
				}
			}

			if results[i] == nil && c.enabled[models.StageWeb] {
				m, err := c.lookup(gctx, c.web, s)
				if err != nil && gctx.Err() != nil {
					return gctx.Err()
				}
				record(models.StageWeb, true, err != nil)
				if m != nil {
					results[i] = m
				}
			}

			if progress != nil {
				mu.Lock()
				done++
				progress(done, len(eligible))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("external check aborted: %w", err)
	}

	var matches []models.Match
	for _, m := range results {
		if m == nil {
			continue
		}
		summaries[m.Stage].Matches++
		matches = append(matches, *m)
	}
	return matches, nil
}

func (c *plagiarismChecker) lookup(ctx context.Context, searcher lookup.Searcher, s textproc.Sentence) (*models.Match, error) {
	res, err := searcher.Search(ctx, s.Text)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn().
				Err(err).
				Str("stage", string(searcher.Stage())).
				Int("sentence_index", s.Index).
				Msg("Source lookup failed, treating as no match")
		}
		return nil, err
	}
	if !res.Found {
		return nil, nil
	}

	return &models.Match{
		Stage:         searcher.Stage(),
		SentenceIndex: s.Index,
		Sentence:      s.Text,
		Start:         s.Start,
		End:           s.End,
		Source:        res.Source(),
		Score:         Confidence(s.Text, res.Evidence),
	}, nil
}

func stageNames(stages []models.Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}
