package httpd

import (
	"context"
	"net/http"

	"github.com/RubachokBoss/plagiarism-checker/internal/service"
	"github.com/RubachokBoss/plagiarism-checker/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const APIPrefix = "/api/v1"

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Handler struct {
	documentService service.DocumentService
	analysisService service.AnalysisService
	dependencies    map[string]Pinger
	worker          worker.AnalysisWorker
	maxUploadSize   int64
	logger          zerolog.Logger
}

// NewHandler builds the HTTP handler. analysisWorker may be nil when analyses run in-process.
func NewHandler(
	documentService service.DocumentService,
	analysisService service.AnalysisService,
	dependencies map[string]Pinger,
	analysisWorker worker.AnalysisWorker,
	maxUploadSize int64,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		documentService: documentService,
		analysisService: analysisService,
		dependencies:    dependencies,
		worker:          analysisWorker,
		maxUploadSize:   maxUploadSize,
		logger:          logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.HealthCheck)
	router.Get("/ready", h.ReadyCheck)

	router.Route(APIPrefix, func(api chi.Router) {
		api.Route("/documents", func(r chi.Router) {
			r.Post("/", h.UploadDocument)
			r.Get("/{id}", h.GetDocument)
			r.Delete("/{id}", h.DeleteDocument)
		})

		api.Route("/analyses", func(r chi.Router) {
			r.Get("/", h.ListAnalyses)
			r.Get("/export", h.ExportAnalyses)
			r.Get("/{id}", h.GetAnalysis)
			r.Get("/{id}/findings", h.GetFindings)
			r.Get("/{id}/highlights", h.GetHighlights)
			r.Get("/{id}/report", h.DownloadReport)
			r.Post("/{id}/retry", h.RetryAnalysis)
		})

		if h.worker != nil {
			api.Get("/stats", h.GetStats)
		}
	})
}

// pathID returns the {id} URL parameter, writing 400 when it is not a UUID.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return "", false
	}
	return id, true
}
