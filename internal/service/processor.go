package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/repository"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/analyzer"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/extractor"
	"github.com/rs/zerolog"
)

// AnalysisProcessor runs the three-stage check for one pending analysis.
type AnalysisProcessor interface {
	Process(ctx context.Context, analysisID string) error
}

type ProcessorConfig struct {
	Timeout time.Duration
}

type analysisProcessor struct {
	analysisRepo    repository.AnalysisRepository
	documentRepo    repository.DocumentRepository
	fingerprintRepo repository.FingerprintRepository
	storage         repository.ObjectStorage
	extractor       extractor.Extractor
	checker         analyzer.PlagiarismChecker
	publisher       CompletionPublisher
	logger          zerolog.Logger
	config          ProcessorConfig
}

// NewAnalysisProcessor builds the processor. publisher may be nil.
func NewAnalysisProcessor(
	analysisRepo repository.AnalysisRepository,
	documentRepo repository.DocumentRepository,
	fingerprintRepo repository.FingerprintRepository,
	storage repository.ObjectStorage,
	extractor extractor.Extractor,
	checker analyzer.PlagiarismChecker,
	publisher CompletionPublisher,
	logger zerolog.Logger,
	config ProcessorConfig,
) AnalysisProcessor {
	return &analysisProcessor{
		analysisRepo:    analysisRepo,
		documentRepo:    documentRepo,
		fingerprintRepo: fingerprintRepo,
		storage:         storage,
		extractor:       extractor,
		checker:         checker,
		publisher:       publisher,
		logger:          logger,
		config:          config,
	}
}

func (p *analysisProcessor) Process(ctx context.Context, analysisID string) error {
	startTime := time.Now()

	analysis, err := p.analysisRepo.GetByID(ctx, analysisID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrAnalysisNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load analysis: %w", err)
	}

	log := p.logger.With().
		Str("analysis_id", analysisID).
		Str("document_id", analysis.DocumentID).
		Logger()

	if analysis.IsFinished() {
		log.Warn().Str("status", analysis.Status).Msg("Analysis already finished, skipping")
		return nil
	}

	claimed, err := p.analysisRepo.MarkProcessing(ctx, analysisID, startTime.UTC())
	if err != nil {
		return err
	}
	if !claimed {
		log.Warn().Msg("Analysis could not be claimed, skipping")
		return nil
	}

	err = p.run(ctx, analysis, startTime, log)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ErrAnalysisFailed) {
		return p.release(ctx, analysis, err)
	}
	return err
}

func (p *analysisProcessor) run(ctx context.Context, analysis *models.AnalysisResult, startTime time.Time, log zerolog.Logger) error {
	doc, err := p.documentRepo.GetByID(ctx, analysis.DocumentID)
	if errors.Is(err, repository.ErrNotFound) {
		return p.fail(ctx, analysis, ErrDocumentNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	text, err := p.documentText(ctx, doc)
	if err != nil {
		if isContentError(err) {
			return p.fail(ctx, analysis, err)
		}
		return err
	}

	checkCtx := ctx
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	outcome, err := p.checker.Check(checkCtx, analyzer.CheckInput{
		DocumentID:   doc.ID,
		DocumentName: doc.OriginalName,
		UploadedBy:   doc.UploadedBy,
		Text:         text,
	}, func(done, total int) {
		if done == total || done%25 == 0 {
			log.Debug().Int("checked", done).Int("total", total).Msg("Analysis progress")
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return p.fail(ctx, analysis, err)
	}

	if doc.UploadedBy != "" {
		if err := p.fingerprintRepo.Save(ctx, doc.UploadedBy, outcome.Fingerprints); err != nil {
			return fmt.Errorf("failed to save fingerprints: %w", err)
		}
	}
	if err := p.documentRepo.UpdateText(ctx, doc.ID, text, len(outcome.Sentences), models.DocumentStatusAnalyzed); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	completedAt := time.Now().UTC()
	processingTime := int(completedAt.Sub(startTime).Milliseconds())

	outcome.Apply(analysis, completedAt)
	analysis.ProcessingTimeMs = &processingTime

	if err := p.analysisRepo.Complete(ctx, analysis); err != nil {
		return fmt.Errorf("failed to store analysis result: %w", err)
	}

	log.Info().
		Float64("similarity", analysis.Similarity).
		Float64("originality", analysis.Originality).
		Int("matches", len(analysis.Matches)).
		Int("processing_time_ms", processingTime).
		Msg("Analysis completed")

	p.publish(ctx, analysis)
	return nil
}

// documentText prefers the text extracted at upload and falls back to the stored file.
func (p *analysisProcessor) documentText(ctx context.Context, doc *models.Document) (string, error) {
	if doc.Text != "" {
		return doc.Text, nil
	}

	data, err := p.storage.Get(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("failed to fetch document: %w", err)
	}
	return p.extractor.ExtractFormat(ctx, doc.Format, data)
}

// release hands an analysis interrupted by shutdown back to pending so the
// next delivery or restart runs it from the start.
func (p *analysisProcessor) release(ctx context.Context, analysis *models.AnalysisResult, cause error) error {
	if err := p.analysisRepo.Release(context.WithoutCancel(ctx), analysis.ID); err != nil {
		p.logger.Error().Err(err).Str("analysis_id", analysis.ID).Msg("Failed to release interrupted analysis")
	}

	p.logger.Info().
		Str("analysis_id", analysis.ID).
		Str("document_id", analysis.DocumentID).
		Msg("Analysis interrupted, released to pending")

	return fmt.Errorf("%w: %w", ErrAnalysisInterrupted, cause)
}

// fail stores the analysis as failed. Writes use a context that survives
// cancellation so a shutdown still records the outcome.
func (p *analysisProcessor) fail(ctx context.Context, analysis *models.AnalysisResult, cause error) error {
	ctx = context.WithoutCancel(ctx)

	message := cause.Error()
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		message = "analysis timed out"
	case errors.Is(cause, context.Canceled):
		message = "analysis was cancelled"
	}

	if err := p.analysisRepo.Fail(ctx, analysis.ID, message); err != nil {
		return fmt.Errorf("failed to mark analysis failed: %w", err)
	}

	p.logger.Warn().
		Err(cause).
		Str("analysis_id", analysis.ID).
		Str("document_id", analysis.DocumentID).
		Msg("Analysis failed")

	now := time.Now().UTC()
	analysis.Status = models.AnalysisStatusFailed.String()
	analysis.Error = message
	analysis.CompletedAt = &now
	p.publish(ctx, analysis)

	return fmt.Errorf("%w: %w", ErrAnalysisFailed, cause)
}

func (p *analysisProcessor) publish(ctx context.Context, analysis *models.AnalysisResult) {
	if p.publisher == nil {
		return
	}

	event := models.AnalysisCompletedEvent{
		AnalysisID:  analysis.ID,
		DocumentID:  analysis.DocumentID,
		Status:      analysis.Status,
		Similarity:  analysis.Similarity,
		Originality: analysis.Originality,
		MatchCount:  len(analysis.Matches),
		CompletedAt: time.Now().UTC(),
	}
	if analysis.CompletedAt != nil {
		event.CompletedAt = *analysis.CompletedAt
	}

	if err := p.publisher.PublishAnalysisCompleted(ctx, event); err != nil {
		p.logger.Error().Err(err).Str("analysis_id", analysis.ID).Msg("Failed to publish analysis completed event")
	}
}

func isContentError(err error) bool {
	return errors.Is(err, repository.ErrObjectNotFound) ||
		errors.Is(err, extractor.ErrUnsupportedFormat) ||
		errors.Is(err, extractor.ErrUnreadable) ||
		errors.Is(err, extractor.ErrInvalidEncoding) ||
		errors.Is(err, extractor.ErrEmptyDocument)
}
