package httpd

import (
	"errors"
	"io"
	"net/http"
)

const multipartOverhead = 1 << 20

func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File size exceeds limit")
			return
		}
		writeError(w, http.StatusBadRequest, "Content-Type must be multipart/form-data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	response, err := h.documentService.Upload(r.Context(), fileHeader.Filename, data, r.FormValue("uploaded_by"))
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to upload document")
		return
	}

	writeSuccessStatus(w, http.StatusAccepted, response)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	doc, err := h.documentService.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to get document")
		return
	}

	writeSuccess(w, doc)
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.documentService.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err, "Failed to delete document")
		return
	}

	writeSuccess(w, map[string]any{
		"document_id": id,
		"deleted":     true,
	})
}
