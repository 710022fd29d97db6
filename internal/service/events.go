package service

import (
	"context"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
)

// Dispatcher hands a pending analysis to whatever runs it: the broker or the
// in-process worker pool.
type Dispatcher interface {
	DispatchUploaded(ctx context.Context, event models.DocumentUploadedEvent) error
}

// CompletionPublisher announces finished analyses.
type CompletionPublisher interface {
	PublishAnalysisCompleted(ctx context.Context, event models.AnalysisCompletedEvent) error
}
