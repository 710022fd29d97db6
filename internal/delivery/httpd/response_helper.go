package httpd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/service"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/extractor"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/report"
)

func getIntQueryParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	response := map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"type":    http.StatusText(status),
		},
		"success":   false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, status, response)
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeSuccessStatus(w, http.StatusOK, data)
}

func writeSuccessStatus(w http.ResponseWriter, status int, data any) {
	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, status, response)
}

// errorStatus maps service and extractor errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrDocumentNotFound),
		errors.Is(err, service.ErrAnalysisNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrFileTypeNotAllowed),
		errors.Is(err, extractor.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, extractor.ErrUnreadable),
		errors.Is(err, extractor.ErrInvalidEncoding),
		errors.Is(err, extractor.ErrEmptyDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrAnalysisNotFinished),
		errors.Is(err, service.ErrAnalysisNotFailed):
		return http.StatusConflict
	case errors.Is(err, service.ErrEmptyFile),
		errors.Is(err, report.ErrUnsupportedExportFormat):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrDispatchFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	status := errorStatus(err)
	switch status {
	case http.StatusInternalServerError:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg(action)
		writeError(w, status, action)
	case http.StatusServiceUnavailable:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg(action)
		writeError(w, status, "Analysis queue unavailable, try again later")
	default:
		writeError(w, status, err.Error())
	}
}
