package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ---------------------------------------------------------------------------
// Generic CRUD handler factories
// ---------------------------------------------------------------------------

// handleListForUser creates a handler that lists the caller's resources.
func handleListForUser[T any](listFn func(ctx context.Context, userID string) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := listFn(r.Context(), userID(r))
		if err != nil {
			writeInternalError(w, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// handleGet creates a handler that retrieves a single resource by URL param "id".
func handleGet[T any](getFn func(ctx context.Context, id string) (*T, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		item, err := getFn(r.Context(), id)
		if err != nil {
			writeDomainError(w, err, notFoundMsg)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// handleGetForUser is handleGet for resources only some callers may see.
func handleGetForUser[T any](getFn func(ctx context.Context, userID, id string) (*T, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := getFn(r.Context(), userID(r), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err, notFoundMsg)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// handleCreateForUser creates a handler that decodes a JSON body and
// creates a resource owned by the caller.
func handleCreateForUser[Req any, Res any](bodyLimit int64, createFn func(ctx context.Context, userID string, req *Req) (*Res, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := readJSON[Req](w, r, bodyLimit)
		if !ok {
			return
		}
		res, err := createFn(r.Context(), userID(r), &req)
		if err != nil {
			writeDomainError(w, err, notFoundMsg)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// handleUpdateOwned creates a handler that decodes a JSON body and updates
// the caller's resource identified by URL param "id".
func handleUpdateOwned[Req any, Res any](bodyLimit int64, updateFn func(ctx context.Context, userID, id string, req *Req) (*Res, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		req, ok := readJSON[Req](w, r, bodyLimit)
		if !ok {
			return
		}
		res, err := updateFn(r.Context(), userID(r), id, &req)
		if err != nil {
			writeDomainError(w, err, notFoundMsg)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleDeleteOwned creates a handler that deletes the caller's resource by URL param "id".
func handleDeleteOwned(deleteFn func(ctx context.Context, userID, id string) error, notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deleteFn(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
			writeDomainError(w, err, notFoundMsg)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
