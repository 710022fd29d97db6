package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/repository"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/extractor"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/textproc"
	"github.com/RubachokBoss/plagiarism-checker/pkg/hash"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type DocumentService interface {
	Upload(ctx context.Context, fileName string, data []byte, uploadedBy string) (*models.UploadDocumentResponse, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	Delete(ctx context.Context, id string) error
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
}

type DocumentConfig struct {
	MaxUploadSize     int64
	AllowedExtensions []string
	Retention         time.Duration
	APIPrefix         string
}

type documentService struct {
	documentRepo repository.DocumentRepository
	analysisRepo repository.AnalysisRepository
	storage      repository.ObjectStorage
	extractor    extractor.Extractor
	hasher       *hash.Hasher
	dispatcher   Dispatcher
	logger       zerolog.Logger
	config       DocumentConfig
	now          func() time.Time
}

const cleanupBatchSize = 100

func NewDocumentService(
	documentRepo repository.DocumentRepository,
	analysisRepo repository.AnalysisRepository,
	storage repository.ObjectStorage,
	extractor extractor.Extractor,
	hasher *hash.Hasher,
	dispatcher Dispatcher,
	logger zerolog.Logger,
	config DocumentConfig,
) DocumentService {
	return &documentService{
		documentRepo: documentRepo,
		analysisRepo: analysisRepo,
		storage:      storage,
		extractor:    extractor,
		hasher:       hasher,
		dispatcher:   dispatcher,
		logger:       logger,
		config:       config,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Upload validates and stores the file, records a pending analysis and
// dispatches it. Text is extracted up front so unreadable files are rejected
// before anything is stored.
func (s *documentService) Upload(ctx context.Context, fileName string, data []byte, uploadedBy string) (*models.UploadDocumentResponse, error) {
	fileName = filepath.Base(strings.TrimSpace(fileName))

	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(data)) > s.config.MaxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, s.config.MaxUploadSize)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if !s.isAllowed(ext) {
		return nil, fmt.Errorf("%w: %s", ErrFileTypeNotAllowed, fileName)
	}

	text, format, err := s.extractor.Extract(ctx, fileName, data)
	if err != nil {
		return nil, err
	}

	now := s.now()
	docID := uuid.New().String()
	storagePath := fmt.Sprintf("%s/%s%s", now.Format("2006/01/02"), docID, ext)

	if err := s.storage.Put(ctx, storagePath, data, format.ContentType()); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	doc := &models.Document{
		ID:            docID,
		OriginalName:  fileName,
		Format:        format,
		Size:          int64(len(data)),
		Hash:          s.hasher.Sum(data),
		UploadedBy:    strings.TrimSpace(uploadedBy),
		StorageBucket: s.storage.Bucket(),
		StoragePath:   storagePath,
		Text:          text,
		SentenceCount: len(textproc.SplitSentences(text)),
		Status:        models.DocumentStatusUploaded.String(),
		UploadedAt:    now,
		ExpiresAt:     now.Add(s.config.Retention),
	}

	if err := s.documentRepo.Create(ctx, doc); err != nil {
		s.removeObject(ctx, storagePath)
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	analysis := &models.AnalysisResult{
		ID:         uuid.New().String(),
		DocumentID: docID,
		Status:     models.AnalysisStatusPending.String(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.analysisRepo.Create(ctx, analysis); err != nil {
		s.rollback(ctx, doc)
		return nil, fmt.Errorf("failed to create analysis: %w", err)
	}

	event := models.DocumentUploadedEvent{
		AnalysisID: analysis.ID,
		DocumentID: docID,
		UploadedBy: doc.UploadedBy,
		Timestamp:  now,
	}
	if err := s.dispatcher.DispatchUploaded(ctx, event); err != nil {
		// The analysis row goes with the document.
		s.rollback(context.WithoutCancel(ctx), doc)
		return nil, fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}

	s.logger.Info().
		Str("document_id", docID).
		Str("analysis_id", analysis.ID).
		Str("original_name", fileName).
		Str("format", string(format)).
		Int64("size", doc.Size).
		Int("sentences", doc.SentenceCount).
		Msg("Document uploaded")

	return &models.UploadDocumentResponse{
		DocumentID: docID,
		AnalysisID: analysis.ID,
		Status:     analysis.Status,
		Hash:       doc.Hash,
		StatusURL:  fmt.Sprintf("%s/analyses/%s", s.config.APIPrefix, analysis.ID),
		ReportURL:  fmt.Sprintf("%s/analyses/%s/report", s.config.APIPrefix, analysis.ID),
		UploadedAt: now,
	}, nil
}

func (s *documentService) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.documentRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete discards the document, its analyses and fingerprints, and the stored file.
func (s *documentService) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.documentRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	s.removeObject(ctx, doc.StoragePath)

	s.logger.Info().Str("document_id", id).Msg("Document deleted")
	return nil
}

// CleanupExpired deletes documents past their retention window and returns how many were removed.
func (s *documentService) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	for {
		docs, err := s.documentRepo.ListExpired(ctx, now, cleanupBatchSize)
		if err != nil {
			return removed, err
		}

		for _, doc := range docs {
			if err := s.documentRepo.Delete(ctx, doc.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return removed, err
			}
			s.removeObject(ctx, doc.StoragePath)
			removed++
		}

		if len(docs) < cleanupBatchSize {
			return removed, nil
		}
	}
}

func (s *documentService) isAllowed(ext string) bool {
	if _, ok := models.FormatFromName(ext); !ok {
		return false
	}
	if len(s.config.AllowedExtensions) == 0 {
		return true
	}
	return slices.ContainsFunc(s.config.AllowedExtensions, func(allowed string) bool {
		return strings.EqualFold(allowed, ext)
	})
}

func (s *documentService) rollback(ctx context.Context, doc *models.Document) {
	if err := s.documentRepo.Delete(ctx, doc.ID); err != nil {
		s.logger.Error().Err(err).Str("document_id", doc.ID).Msg("Failed to roll back document")
	}
	s.removeObject(ctx, doc.StoragePath)
}

func (s *documentService) removeObject(ctx context.Context, path string) {
	if err := s.storage.Delete(ctx, path); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to delete stored object")
	}
}
