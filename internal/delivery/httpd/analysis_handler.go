package httpd

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/google/uuid"
)

func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	filter, ok := analysisFilter(w, r)
	if !ok {
		return
	}

	page := getIntQueryParam(r, "page", 1)
	if page < 1 {
		page = 1
	}
	filter.Limit = getIntQueryParam(r, "limit", 20)
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	filter.Offset = (page - 1) * filter.Limit

	list, err := h.analysisService.Search(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to list analyses")
		return
	}

	writeSuccess(w, list)
}

func (h *Handler) ExportAnalyses(w http.ResponseWriter, r *http.Request) {
	filter, ok := analysisFilter(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	data, contentType, err := h.analysisService.Export(r.Context(), filter, format)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to export analyses")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", attachment("analyses."+format))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	analysis, err := h.analysisService.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to get analysis")
		return
	}

	writeSuccess(w, analysis)
}

func (h *Handler) GetFindings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	findings, err := h.analysisService.Findings(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to get findings")
		return
	}

	writeSuccess(w, findings)
}

func (h *Handler) GetHighlights(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	highlights, err := h.analysisService.Highlights(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to get highlights")
		return
	}

	writeSuccess(w, highlights)
}

func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	rep, err := h.analysisService.Report(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to build report")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(rep.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(rep.Body)))
	w.WriteHeader(http.StatusOK)
	w.Write(rep.Body)
}

func (h *Handler) RetryAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	analysis, err := h.analysisService.Retry(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to retry analysis")
		return
	}

	writeSuccessStatus(w, http.StatusAccepted, analysis)
}

func analysisFilter(w http.ResponseWriter, r *http.Request) (models.AnalysisFilter, bool) {
	q := r.URL.Query()
	filter := models.AnalysisFilter{
		Status:     q.Get("status"),
		DocumentID: q.Get("document_id"),
		UploadedBy: q.Get("uploaded_by"),
	}

	switch models.AnalysisStatus(filter.Status) {
	case "", models.AnalysisStatusPending, models.AnalysisStatusProcessing,
		models.AnalysisStatusCompleted, models.AnalysisStatusFailed:
	default:
		writeError(w, http.StatusBadRequest, "Invalid status filter")
		return filter, false
	}

	if filter.DocumentID != "" {
		if _, err := uuid.Parse(filter.DocumentID); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid document_id")
			return filter, false
		}
	}

	return filter, true
}

func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
