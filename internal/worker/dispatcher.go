package worker

import (
	"context"
	"errors"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/service"
	"github.com/rs/zerolog"
)

// LocalDispatcher runs analyses on the in-process pool when no broker is configured.
type LocalDispatcher struct {
	ctx        context.Context
	workerPool *WorkerPool
	processor  service.AnalysisProcessor
	logger     zerolog.Logger
}

// NewLocalDispatcher starts pool. Analyses run under ctx, not under the
// request that dispatched them.
func NewLocalDispatcher(ctx context.Context, workerPool *WorkerPool, processor service.AnalysisProcessor, logger zerolog.Logger) *LocalDispatcher {
	workerPool.Start()
	return &LocalDispatcher{
		ctx:        ctx,
		workerPool: workerPool,
		processor:  processor,
		logger:     logger,
	}
}

func (d *LocalDispatcher) DispatchUploaded(_ context.Context, event models.DocumentUploadedEvent) error {
	return d.workerPool.Submit(func() {
		err := d.processor.Process(d.ctx, event.AnalysisID)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrAnalysisInterrupted):
			d.logger.Info().Str("analysis_id", event.AnalysisID).Msg("Analysis interrupted, it resumes on next start")
		case errors.Is(err, service.ErrAnalysisFailed):
			d.logger.Warn().Err(err).Str("analysis_id", event.AnalysisID).Msg("Analysis failed")
		default:
			d.logger.Error().Err(err).Str("analysis_id", event.AnalysisID).Msg("Failed to process analysis")
		}
	})
}

// Stop waits for queued analyses to finish.
func (d *LocalDispatcher) Stop() {
	d.workerPool.Stop()
}
