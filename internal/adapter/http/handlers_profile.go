package http

import (
	"net/http"

	"github.com/Strob0t/foodshare/internal/domain/profile"
	"github.com/Strob0t/foodshare/internal/middleware"
)

// CreateProfile handles POST /api/v1/profiles (signup). The profile ID is
// always the caller's ID.
func (h *Handlers) CreateProfile(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[profile.CreateRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	id, _ := middleware.IdentityFromContext(r.Context())
	req.ID = id.UserID
	if req.Email == "" {
		req.Email = id.Email
	}
	p, err := h.Profiles.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "profile not found")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetMe handles GET /api/v1/me. First access creates a default profile
// from the forwarded identity.
func (h *Handlers) GetMe(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	p, err := h.Profiles.GetOrCreate(r.Context(), id.UserID, id.Email, id.Name, "")
	if err != nil {
		writeDomainError(w, err, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateMe handles PUT /api/v1/me.
func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[profile.UpdateRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	p, err := h.Profiles.Update(r.Context(), userID(r), &req)
	if err != nil {
		writeDomainError(w, err, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UploadAvatar handles POST /api/v1/me/avatar (multipart field "file").
func (h *Handlers) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	name, body, done, ok := readImage(w, r, h.MaxUploadBytes)
	if !ok {
		return
	}
	defer done()

	p, err := h.Profiles.UploadAvatar(r.Context(), userID(r), name, body)
	if err != nil {
		writeDomainError(w, err, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetProfile handles GET /api/v1/profiles/{id}. Contact details are only
// shown to the owner.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Profiles.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "profile not found")
		return
	}
	if p.ID != userID(r) {
		p.Email, p.Phone, p.Address = "", "", ""
	}
	writeJSON(w, http.StatusOK, p)
}
