package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/repository"
)

type fakeDocumentRepo struct {
	mu        sync.Mutex
	docs      map[string]*models.Document
	createErr error
	// onDelete mirrors the cascade from documents to analyses.
	onDelete func(documentID string)
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: make(map[string]*models.Document)}
}

func (r *fakeDocumentRepo) Create(_ context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *fakeDocumentRepo) GetByID(_ context.Context, id string) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (r *fakeDocumentRepo) UpdateText(_ context.Context, id, text string, sentenceCount int, status models.DocumentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	doc.Text = text
	doc.SentenceCount = sentenceCount
	doc.Status = status.String()
	return nil
}

func (r *fakeDocumentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.docs, id)
	if r.onDelete != nil {
		r.onDelete(id)
	}
	return nil
}

func (r *fakeDocumentRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Document
	for _, doc := range r.docs {
		if !doc.ExpiresAt.After(now) && len(out) < limit {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (r *fakeDocumentRepo) Ping(context.Context) error { return nil }

type fakeAnalysisRepo struct {
	mu       sync.Mutex
	analyses map[string]*models.AnalysisResult
	docs     *fakeDocumentRepo
}

func newFakeAnalysisRepo(docs *fakeDocumentRepo) *fakeAnalysisRepo {
	r := &fakeAnalysisRepo{analyses: make(map[string]*models.AnalysisResult), docs: docs}
	docs.onDelete = r.deleteForDocument
	return r
}

func (r *fakeAnalysisRepo) deleteForDocument(documentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.analyses {
		if a.DocumentID == documentID {
			delete(r.analyses, id)
		}
	}
}

func (r *fakeAnalysisRepo) Create(_ context.Context, a *models.AnalysisResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.analyses[a.ID] = &cp
	return nil
}

func (r *fakeAnalysisRepo) GetByID(ctx context.Context, id string) (*models.AnalysisResult, error) {
	r.mu.Lock()
	a, ok := r.analyses[id]
	if !ok {
		r.mu.Unlock()
		return nil, repository.ErrNotFound
	}
	cp := *a
	r.mu.Unlock()

	if doc, err := r.docs.GetByID(ctx, cp.DocumentID); err == nil {
		cp.DocumentName = doc.OriginalName
		cp.UploadedBy = doc.UploadedBy
	}
	return &cp, nil
}

func (r *fakeAnalysisRepo) MarkProcessing(_ context.Context, id string, startedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.analyses[id]
	if !ok || a.IsFinished() {
		return false, nil
	}
	a.Status = models.AnalysisStatusProcessing.String()
	a.StartedAt = &startedAt
	return true, nil
}

func (r *fakeAnalysisRepo) Complete(_ context.Context, a *models.AnalysisResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.analyses[a.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *a
	r.analyses[a.ID] = &cp
	return nil
}

func (r *fakeAnalysisRepo) Fail(_ context.Context, id, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.analyses[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = models.AnalysisStatusFailed.String()
	a.Error = message
	return nil
}

func (r *fakeAnalysisRepo) ResetFailed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.analyses[id]
	if !ok || a.Status != models.AnalysisStatusFailed.String() {
		return repository.ErrNotFound
	}
	a.Status = models.AnalysisStatusPending.String()
	a.Error = ""
	return nil
}

func (r *fakeAnalysisRepo) Release(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.analyses[id]
	if ok && a.Status == models.AnalysisStatusProcessing.String() {
		a.Status = models.AnalysisStatusPending.String()
		a.StartedAt = nil
	}
	return nil
}

func (r *fakeAnalysisRepo) ListUnfinished(_ context.Context, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var unfinished []*models.AnalysisResult
	for _, a := range r.analyses {
		if !a.IsFinished() {
			unfinished = append(unfinished, a)
		}
	}
	sort.Slice(unfinished, func(i, j int) bool {
		return unfinished[i].CreatedAt.Before(unfinished[j].CreatedAt)
	})

	var ids []string
	for _, a := range unfinished {
		if len(ids) == limit {
			break
		}
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (r *fakeAnalysisRepo) Search(_ context.Context, filter models.AnalysisFilter) ([]models.AnalysisSummary, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []models.AnalysisSummary
	for _, a := range r.analyses {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		items = append(items, models.AnalysisSummary{ID: a.ID, DocumentID: a.DocumentID, Status: a.Status})
	}
	return items, len(items), nil
}

func (r *fakeAnalysisRepo) Ping(context.Context) error { return nil }

func (r *fakeAnalysisRepo) status(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.analyses[id].Status
}

type fakeFingerprintRepo struct {
	mu    sync.Mutex
	saved []models.Fingerprint
	hits  []models.FingerprintHit
}

func (r *fakeFingerprintRepo) Save(_ context.Context, _ string, fingerprints []models.Fingerprint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, fingerprints...)
	return nil
}

func (r *fakeFingerprintRepo) FindHits(context.Context, string, string, []string) ([]models.FingerprintHit, error) {
	return r.hits, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) Bucket() string { return "documents" }

func (s *fakeStorage) Put(_ context.Context, path string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[path] = data
	return nil
}

func (s *fakeStorage) Get(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, repository.ErrObjectNotFound
	}
	return data, nil
}

func (s *fakeStorage) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, path)
	return nil
}

func (s *fakeStorage) Ping(context.Context) error { return nil }

func (s *fakeStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []models.DocumentUploadedEvent
	err    error
}

func (d *fakeDispatcher) DispatchUploaded(_ context.Context, event models.DocumentUploadedEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.events = append(d.events, event)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.AnalysisCompletedEvent
}

func (p *fakePublisher) PublishAnalysisCompleted(_ context.Context, event models.AnalysisCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

var errBrokerDown = errors.New("broker down")
