package http

import (
	"net/http"
)

// Upload handles POST /api/v1/uploads/{bucket} (multipart field "file").
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	name, body, done, ok := readImage(w, r, h.MaxUploadBytes)
	if !ok {
		return
	}
	defer done()

	up, err := h.Uploads.Upload(r.Context(), userID(r), urlParam(r, "bucket"), name, body)
	if err != nil {
		writeDomainError(w, err, "bucket not found")
		return
	}
	writeJSON(w, http.StatusCreated, up)
}

// DeleteUpload handles DELETE /api/v1/uploads/{bucket}/*.
func (h *Handlers) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	path := urlParam(r, "*")
	if path == "" {
		writeError(w, http.StatusBadRequest, "object path is required")
		return
	}
	if err := h.Uploads.Remove(r.Context(), userID(r), urlParam(r, "bucket"), path); err != nil {
		writeDomainError(w, err, "object not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
