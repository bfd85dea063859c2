package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/foodshare/internal/domain"
	"github.com/Strob0t/foodshare/internal/middleware"
)

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// userID returns the caller's ID. Routes using it sit behind
// middleware.RequireUser.
func userID(r *http.Request) string {
	id, _ := middleware.IdentityFromContext(r.Context())
	return id.UserID
}

// queryInt parses a positive integer query parameter, falling back to def.
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// sniffLen is how many bytes http.DetectContentType looks at.
const sniffLen = 512

// readImage extracts the "file" part of a multipart upload and checks that
// it holds an image. The returned reader replays the sniffed prefix.
func readImage(w http.ResponseWriter, r *http.Request, limit int64) (filename string, body io.Reader, closeFn func(), ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		} else {
			writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		}
		return "", nil, nil, false
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		_ = file.Close()
		writeError(w, http.StatusBadRequest, "unreadable upload")
		return "", nil, nil, false
	}
	head = head[:n]
	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		_ = file.Close()
		writeError(w, http.StatusUnsupportedMediaType, "only image uploads are accepted")
		return "", nil, nil, false
	}

	closeFn = func() {
		_ = file.Close()
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}
	return header.Filename, io.MultiReader(strings.NewReader(string(head)), file), closeFn, true
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps the domain sentinel errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, fallbackMsg)
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, conflictMessage(err))
	case errors.Is(err, domain.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
		writeError(w, http.StatusBadRequest, msg)
	default:
		writeInternalError(w, err)
	}
}

// conflictMessage keeps the part of a conflict error a user can act on.
func conflictMessage(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "insufficient power coins"):
		return "insufficient power coins"
	case strings.Contains(msg, "already reserved"):
		return "donation is no longer available"
	case strings.Contains(msg, "is Reserved"):
		return "reserved donations cannot be changed"
	default:
		return "resource was modified by another request"
	}
}

// writeInternalError logs the actual error server-side and returns a generic message to the client.
func writeInternalError(w http.ResponseWriter, err error) {
	slog.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
