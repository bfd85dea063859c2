package http

import (
	"net/http"

	"github.com/Strob0t/foodshare/internal/domain/donation"
)

// ListDonations handles GET /api/v1/donations[?status=Available].
func (h *Handlers) ListDonations(w http.ResponseWriter, r *http.Request) {
	items, err := h.Donations.List(r.Context(), donation.Status(r.URL.Query().Get("status")))
	if err != nil {
		writeDomainError(w, err, "donations not found")
		return
	}
	if items == nil {
		items = []donation.Donation{}
	}
	writeJSON(w, http.StatusOK, items)
}

// AttachDonationImage handles POST /api/v1/donations/{id}/image.
func (h *Handlers) AttachDonationImage(w http.ResponseWriter, r *http.Request) {
	name, body, done, ok := readImage(w, r, h.MaxUploadBytes)
	if !ok {
		return
	}
	defer done()

	d, err := h.Donations.AttachImage(r.Context(), userID(r), urlParam(r, "id"), name, body)
	if err != nil {
		writeDomainError(w, err, "donation not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}
