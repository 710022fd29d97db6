package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/repository"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/report"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxExportSize   = 1000
	maxResumeBatch  = 1000
)

// resumeRetryDelay spaces dispatch attempts while the in-process queue is full.
var resumeRetryDelay = time.Second

// Report is a rendered text report ready for download.
type Report struct {
	FileName string
	Body     []byte
}

type AnalysisService interface {
	Get(ctx context.Context, id string) (*models.AnalysisResult, error)
	Findings(ctx context.Context, id string) (*models.Findings, error)
	Highlights(ctx context.Context, id string) (*models.Highlights, error)
	Report(ctx context.Context, id string) (*Report, error)
	Search(ctx context.Context, filter models.AnalysisFilter) (*models.AnalysisListResponse, error)
	Export(ctx context.Context, filter models.AnalysisFilter, format string) ([]byte, string, error)
	Retry(ctx context.Context, id string) (*models.AnalysisResult, error)
	// ResumeUnfinished dispatches every pending or processing analysis again.
	// It serves the in-process mode, where queued work does not survive a restart.
	ResumeUnfinished(ctx context.Context) (int, error)
}

type analysisService struct {
	analysisRepo repository.AnalysisRepository
	documentRepo repository.DocumentRepository
	dispatcher   Dispatcher
	logger       zerolog.Logger
}

func NewAnalysisService(
	analysisRepo repository.AnalysisRepository,
	documentRepo repository.DocumentRepository,
	dispatcher Dispatcher,
	logger zerolog.Logger,
) AnalysisService {
	return &analysisService{
		analysisRepo: analysisRepo,
		documentRepo: documentRepo,
		dispatcher:   dispatcher,
		logger:       logger,
	}
}

func (s *analysisService) Get(ctx context.Context, id string) (*models.AnalysisResult, error) {
	analysis, err := s.analysisRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

func (s *analysisService) finished(ctx context.Context, id string) (*models.AnalysisResult, error) {
	analysis, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !analysis.IsFinished() {
		return nil, fmt.Errorf("%w: status %s", ErrAnalysisNotFinished, analysis.Status)
	}
	return analysis, nil
}

func (s *analysisService) Findings(ctx context.Context, id string) (*models.Findings, error) {
	analysis, err := s.finished(ctx, id)
	if err != nil {
		return nil, err
	}

	findings := report.BuildFindings(analysis)
	return &findings, nil
}

func (s *analysisService) Highlights(ctx context.Context, id string) (*models.Highlights, error) {
	analysis, err := s.finished(ctx, id)
	if err != nil {
		return nil, err
	}

	doc, err := s.document(ctx, analysis.DocumentID)
	if err != nil {
		return nil, err
	}

	return &models.Highlights{
		AnalysisID: analysis.ID,
		DocumentID: doc.ID,
		Spans:      report.BuildHighlights(doc.Text, analysis.Matches),
	}, nil
}

func (s *analysisService) Report(ctx context.Context, id string) (*Report, error) {
	analysis, err := s.finished(ctx, id)
	if err != nil {
		return nil, err
	}

	doc, err := s.document(ctx, analysis.DocumentID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := report.WriteText(&buf, doc, analysis); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	return &Report{FileName: report.FileName(doc), Body: buf.Bytes()}, nil
}

func (s *analysisService) Search(ctx context.Context, filter models.AnalysisFilter) (*models.AnalysisListResponse, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	items, total, err := s.analysisRepo.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &models.AnalysisListResponse{
		Items: items,
		Total: total,
		Page:  filter.Offset/filter.Limit + 1,
		Limit: filter.Limit,
	}, nil
}

func (s *analysisService) Export(ctx context.Context, filter models.AnalysisFilter, format string) ([]byte, string, error) {
	filter.Limit = maxExportSize
	filter.Offset = 0

	items, _, err := s.analysisRepo.Search(ctx, filter)
	if err != nil {
		return nil, "", err
	}
	return report.Export(items, format)
}

// Retry puts a failed analysis back to pending and dispatches it again.
func (s *analysisService) Retry(ctx context.Context, id string) (*models.AnalysisResult, error) {
	analysis, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if analysis.Status != models.AnalysisStatusFailed.String() {
		return nil, ErrAnalysisNotFailed
	}

	if err := s.analysisRepo.ResetFailed(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAnalysisNotFailed
		}
		return nil, err
	}

	event := models.DocumentUploadedEvent{
		AnalysisID: analysis.ID,
		DocumentID: analysis.DocumentID,
		UploadedBy: analysis.UploadedBy,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.dispatcher.DispatchUploaded(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to queue analysis: %w", err)
	}

	s.logger.Info().Str("analysis_id", id).Msg("Analysis queued for retry")

	analysis.Status = models.AnalysisStatusPending.String()
	analysis.Error = ""
	analysis.StartedAt = nil
	analysis.CompletedAt = nil
	return analysis, nil
}

func (s *analysisService) document(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.documentRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *analysisService) ResumeUnfinished(ctx context.Context) (int, error) {
	ids, err := s.analysisRepo.ListUnfinished(ctx, maxResumeBatch)
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, id := range ids {
		analysis, err := s.Get(ctx, id)
		if errors.Is(err, ErrAnalysisNotFound) {
			continue
		}
		if err != nil {
			return resumed, err
		}

		event := models.DocumentUploadedEvent{
			AnalysisID: analysis.ID,
			DocumentID: analysis.DocumentID,
			UploadedBy: analysis.UploadedBy,
			Timestamp:  time.Now().UTC(),
		}
		if err := s.redispatch(ctx, event); err != nil {
			return resumed, fmt.Errorf("failed to queue analysis %s: %w", id, err)
		}
		resumed++
	}

	if resumed > 0 {
		s.logger.Info().Int("count", resumed).Msg("Unfinished analyses queued again")
	}
	return resumed, nil
}

// redispatch keeps offering event until the dispatcher accepts it or ctx ends.
func (s *analysisService) redispatch(ctx context.Context, event models.DocumentUploadedEvent) error {
	for {
		err := s.dispatcher.DispatchUploaded(ctx, event)
		if err == nil {
			return nil
		}
		s.logger.Warn().Err(err).Str("analysis_id", event.AnalysisID).Msg("Dispatch refused, retrying")

		select {
		case <-ctx.Done():
			return err
		case <-time.After(resumeRetryDelay):
		}
	}
}
