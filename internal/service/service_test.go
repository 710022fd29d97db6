package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/analyzer"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/extractor"
	"github.com/RubachokBoss/plagiarism-checker/pkg/hash"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repeatedText = "The committee approved the new budget for the coming fiscal year today. " +
	"It rained. " +
	"The committee approved the new budget for the coming fiscal year today."

type fixture struct {
	docs         *fakeDocumentRepo
	analyses     *fakeAnalysisRepo
	fingerprints *fakeFingerprintRepo
	storage      *fakeStorage
	dispatcher   *fakeDispatcher
	publisher    *fakePublisher
	documents    DocumentService
	processor    AnalysisProcessor
	queries      AnalysisService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hasher, err := hash.New("sha256")
	require.NoError(t, err)

	f := &fixture{
		docs:         newFakeDocumentRepo(),
		fingerprints: &fakeFingerprintRepo{},
		storage:      newFakeStorage(),
		dispatcher:   &fakeDispatcher{},
		publisher:    &fakePublisher{},
	}
	f.analyses = newFakeAnalysisRepo(f.docs)

	logger := zerolog.Nop()
	ext := extractor.New(logger)

	f.documents = NewDocumentService(f.docs, f.analyses, f.storage, ext, hasher, f.dispatcher, logger, DocumentConfig{
		MaxUploadSize:     1024,
		AllowedExtensions: []string{".txt", ".docx"},
		Retention:         time.Hour,
		APIPrefix:         "/api/v1",
	})

	checker := analyzer.NewPlagiarismChecker(nil, nil, f.fingerprints, hasher, logger, analyzer.PlagiarismCheckerConfig{
		Stages:             models.Stages,
		SelfMinWords:       9,
		ExternalMinWords:   10,
		MaxParallelLookups: 2,
	})
	f.processor = NewAnalysisProcessor(f.analyses, f.docs, f.fingerprints, f.storage, ext, checker, f.publisher, logger, ProcessorConfig{
		Timeout: time.Minute,
	})
	f.queries = NewAnalysisService(f.analyses, f.docs, f.dispatcher, logger)

	return f
}

func (f *fixture) upload(t *testing.T, text string) *models.UploadDocumentResponse {
	t.Helper()
	resp, err := f.documents.Upload(context.Background(), "essay.txt", []byte(text), "alice")
	require.NoError(t, err)
	return resp
}

func TestUpload_StoresDocumentAndDispatches(t *testing.T) {
	f := newFixture(t)

	resp := f.upload(t, repeatedText)

	assert.Equal(t, models.AnalysisStatusPending.String(), resp.Status)
	assert.Equal(t, "/api/v1/analyses/"+resp.AnalysisID, resp.StatusURL)
	assert.Equal(t, "/api/v1/analyses/"+resp.AnalysisID+"/report", resp.ReportURL)

	doc, err := f.documents.Get(context.Background(), resp.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "essay.txt", doc.OriginalName)
	assert.Equal(t, models.FormatTXT, doc.Format)
	assert.Equal(t, 3, doc.SentenceCount)
	assert.Equal(t, "alice", doc.UploadedBy)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}/\d{2}/\d{2}/`+resp.DocumentID+`\.txt$`), doc.StoragePath)
	assert.Equal(t, 1, f.storage.count())

	require.Len(t, f.dispatcher.events, 1)
	assert.Equal(t, resp.AnalysisID, f.dispatcher.events[0].AnalysisID)
}

func TestUpload_Validation(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    []byte
		wantErr error
	}{
		{name: "empty", file: "a.txt", data: nil, wantErr: ErrEmptyFile},
		{name: "too large", file: "a.txt", data: make([]byte, 2048), wantErr: ErrFileTooLarge},
		{name: "not allowed", file: "a.pdf", data: []byte("%PDF"), wantErr: ErrFileTypeNotAllowed},
		{name: "unknown extension", file: "a.exe", data: []byte("MZ"), wantErr: ErrFileTypeNotAllowed},
		{name: "invalid utf8", file: "a.txt", data: []byte{0xff, 0xfe, 0xfd}, wantErr: extractor.ErrInvalidEncoding},
		{name: "blank text", file: "a.txt", data: []byte("   \n  "), wantErr: extractor.ErrEmptyDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.documents.Upload(context.Background(), tt.file, tt.data, "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, f.storage.count())
			assert.Empty(t, f.dispatcher.events)
		})
	}
}

func TestUpload_RemovesObjectWhenMetadataFails(t *testing.T) {
	f := newFixture(t)
	f.docs.createErr = errors.New("db down")

	_, err := f.documents.Upload(context.Background(), "essay.txt", []byte(repeatedText), "")
	require.Error(t, err)
	assert.Zero(t, f.storage.count())
}

func TestUpload_DispatchFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.err = errBrokerDown

	resp, err := f.documents.Upload(context.Background(), "essay.txt", []byte(repeatedText), "")
	require.ErrorIs(t, err, ErrDispatchFailed)
	assert.ErrorIs(t, err, errBrokerDown)
	assert.Nil(t, resp)

	assert.Zero(t, f.storage.count())
	assert.Empty(t, f.docs.docs)
	items, total, err := f.analyses.Search(context.Background(), models.AnalysisFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	resp := f.upload(t, repeatedText)

	require.NoError(t, f.documents.Delete(context.Background(), resp.DocumentID))
	assert.Zero(t, f.storage.count())

	_, err := f.documents.Get(context.Background(), resp.DocumentID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.ErrorIs(t, f.documents.Delete(context.Background(), resp.DocumentID), ErrDocumentNotFound)
}

func TestCleanupExpired(t *testing.T) {
	f := newFixture(t)
	f.upload(t, repeatedText)
	f.upload(t, "A single sentence that stays.")

	removed, err := f.documents.CleanupExpired(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = f.documents.CleanupExpired(context.Background(), time.Now().UTC().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Zero(t, f.storage.count())
}

func TestProcess_CompletesAnalysis(t *testing.T) {
	f := newFixture(t)
	resp := f.upload(t, repeatedText)

	require.NoError(t, f.processor.Process(context.Background(), resp.AnalysisID))

	result, err := f.queries.Get(context.Background(), resp.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusCompleted.String(), result.Status)
	assert.Equal(t, 3, result.TotalSentences)
	assert.Equal(t, 26, result.TotalWords)
	assert.Equal(t, 12, result.FlaggedWords)
	assert.InDelta(t, 46.15, result.Similarity, 0.001)
	assert.InDelta(t, 100, result.Similarity+result.Originality, 0.001)
	require.Len(t, result.Matches, 1)
	assert.True(t, result.Matches[0].IsRepeat())
	require.NotNil(t, result.ProcessingTimeMs)

	assert.Len(t, f.fingerprints.saved, 1)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, models.AnalysisStatusCompleted.String(), f.publisher.events[0].Status)
	assert.Equal(t, 1, f.publisher.events[0].MatchCount)

	doc, err := f.documents.Get(context.Background(), resp.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusAnalyzed.String(), doc.Status)
}

func TestProcess_FinishedAnalysisIsSkipped(t *testing.T) {
	f := newFixture(t)
	resp := f.upload(t, repeatedText)

	require.NoError(t, f.processor.Process(context.Background(), resp.AnalysisID))
	require.NoError(t, f.processor.Process(context.Background(), resp.AnalysisID))
	assert.Len(t, f.publisher.events, 1)
}

func TestProcess_UnknownAnalysis(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.processor.Process(context.Background(), "missing"), ErrAnalysisNotFound)
}

func TestProcess_MissingFileFailsAnalysis(t *testing.T) {
	f := newFixture(t)
	resp := f.upload(t, repeatedText)

	// Drop the extracted text and the stored file so the processor has nothing to read.
	require.NoError(t, f.docs.UpdateText(context.Background(), resp.DocumentID, "", 0, models.DocumentStatusUploaded))
	for path := range f.storage.objects {
		require.NoError(t, f.storage.Delete(context.Background(), path))
	}

	err := f.processor.Process(context.Background(), resp.AnalysisID)
	require.ErrorIs(t, err, ErrAnalysisFailed)
	assert.Equal(t, models.AnalysisStatusFailed.String(), f.analyses.status(resp.AnalysisID))
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, models.AnalysisStatusFailed.String(), f.publisher.events[0].Status)
}

func TestProcess_ReextractsFromStorage(t *testing.T) {
	f := newFixture(t)
	resp := f.upload(t, repeatedText)
	require.NoError(t, f.docs.UpdateText(context.Background(), resp.DocumentID, "", 0, models.DocumentStatusUploaded))

	require.NoError(t, f.processor.Process(context.Background(), resp.AnalysisID))
	assert.Equal(t, models.AnalysisStatusCompleted.String(), f.analyses.status(resp.AnalysisID))
}

func TestProcess_ShutdownReleasesAnalysis(t *testing.T) {
	f := newFixture(t)
	next := f.processor
	f.processor = NewAnalysisProcessor(f.analyses, f.docs, f.fingerprints, f.storage, extractor.New(zerolog.Nop()),
		blockingChecker{}, f.publisher, zerolog.Nop(), ProcessorConfig{Timeout: time.Minute})
	resp := f.upload(t, repeatedText)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.processor.Process(ctx, resp.AnalysisID)
	require.ErrorIs(t, err, ErrAnalysisInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrAnalysisFailed)

	result, err := f.queries.Get(context.Background(), resp.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusPending.String(), result.Status)
	assert.Nil(t, result.StartedAt)
	assert.Empty(t, result.Error)
	assert.Empty(t, f.publisher.events)

	// The released analysis runs to completion on the next delivery.
	require.NoError(t, next.Process(context.Background(), resp.AnalysisID))
	assert.Equal(t, models.AnalysisStatusCompleted.String(), f.analyses.status(resp.AnalysisID))
}

func TestProcess_TimeoutFailsAnalysis(t *testing.T) {
	f := newFixture(t)
	f.processor = NewAnalysisProcessor(f.analyses, f.docs, f.fingerprints, f.storage, extractor.New(zerolog.Nop()),
		blockingChecker{}, f.publisher, zerolog.Nop(), ProcessorConfig{Timeout: 10 * time.Millisecond})
	resp := f.upload(t, repeatedText)

	err := f.processor.Process(context.Background(), resp.AnalysisID)
	require.ErrorIs(t, err, ErrAnalysisFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	result, err := f.queries.Get(context.Background(), resp.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusFailed.String(), result.Status)
	assert.Equal(t, "analysis timed out", result.Error)
	require.Len(t, f.publisher.events, 1)
}

// blockingChecker runs until its context ends.
type blockingChecker struct{}

func (blockingChecker) Check(ctx context.Context, _ analyzer.CheckInput, _ analyzer.ProgressFunc) (*analyzer.CheckOutcome, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingChecker) Stages() []models.Stage { return models.Stages }

func TestResumeUnfinished(t *testing.T) {
	f := newFixture(t)
	done := f.upload(t, repeatedText)
	waiting := f.upload(t, "A single sentence that stays.")
	require.NoError(t, f.processor.Process(context.Background(), done.AnalysisID))
	require.Len(t, f.dispatcher.events, 2)

	resumed, err := f.queries.ResumeUnfinished(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)
	require.Len(t, f.dispatcher.events, 3)
	assert.Equal(t, waiting.AnalysisID, f.dispatcher.events[2].AnalysisID)
	assert.Equal(t, waiting.DocumentID, f.dispatcher.events[2].DocumentID)
}

func TestResumeUnfinished_StopsWithContext(t *testing.T) {
	f := newFixture(t)
	f.upload(t, repeatedText)
	f.dispatcher.err = errBrokerDown

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	resumed, err := f.queries.ResumeUnfinished(ctx)
	assert.ErrorIs(t, err, errBrokerDown)
	assert.Zero(t, resumed)
}

func TestAnalysisViews_RequireFinishedAnalysis(t *testing.T) {
	f := newFixture(t)
	resp := f.upload(t, repeatedText)

	_, err := f.queries.Findings(context.Background(), resp.AnalysisID)
	assert.ErrorIs(t, err, ErrAnalysisNotFinished)
	_, err = f.queries.Highlights(context.Background(), resp.AnalysisID)
	assert.ErrorIs(t, err, ErrAnalysisNotFinished)
	_, err = f.queries.Report(context.Background(), resp.AnalysisID)
	assert.ErrorIs(t, err, ErrAnalysisNotFinished)
	_, err = f.queries.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAnalysisNotFound)
}

func TestAnalysisViews_AfterCompletion(t *testing.T) {
	f := newFixture(t)
	resp := f.upload(t, repeatedText)
	require.NoError(t, f.processor.Process(context.Background(), resp.AnalysisID))

	findings, err := f.queries.Findings(context.Background(), resp.AnalysisID)
	require.NoError(t, err)
	require.Len(t, findings.Stages, 3)
	assert.Equal(t, 1, findings.Stages[0].Count)

	highlights, err := f.queries.Highlights(context.Background(), resp.AnalysisID)
	require.NoError(t, err)
	var covered string
	for _, span := range highlights.Spans {
		covered += span.Text
	}
	assert.Equal(t, repeatedText, covered)

	rep, err := f.queries.Report(context.Background(), resp.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, "essay_report.txt", rep.FileName)
	assert.Contains(t, string(rep.Body), "(Found 2 times)")
}

func TestRetry(t *testing.T) {
	f := newFixture(t)
	resp := f.upload(t, repeatedText)

	_, err := f.queries.Retry(context.Background(), resp.AnalysisID)
	assert.ErrorIs(t, err, ErrAnalysisNotFailed)

	require.NoError(t, f.analyses.Fail(context.Background(), resp.AnalysisID, "boom"))

	retried, err := f.queries.Retry(context.Background(), resp.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusPending.String(), retried.Status)
	assert.Equal(t, models.AnalysisStatusPending.String(), f.analyses.status(resp.AnalysisID))
	assert.Len(t, f.dispatcher.events, 2)
}

func TestSearchPaging(t *testing.T) {
	f := newFixture(t)
	f.upload(t, repeatedText)

	list, err := f.queries.Search(context.Background(), models.AnalysisFilter{Limit: 500, Offset: 200})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, list.Limit)
	assert.Equal(t, 3, list.Page)
	assert.Equal(t, 1, list.Total)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.upload(t, repeatedText)

	data, contentType, err := f.queries.Export(context.Background(), models.AnalysisFilter{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(data), "pending")

	_, _, err = f.queries.Export(context.Background(), models.AnalysisFilter{}, "xml")
	assert.Error(t, err)
}
