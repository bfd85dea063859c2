package http

import (
	"net/http"

	"github.com/Strob0t/foodshare/internal/domain/profile"
	"github.com/Strob0t/foodshare/internal/middleware"
	"github.com/Strob0t/foodshare/internal/service"
)

// deliveryResponse is a session snapshot plus whether the request changed it.
// Stale offer responses and advances of unknown tasks report changed=false.
type deliveryResponse struct {
	service.DeliveryState
	Changed bool `json:"changed"`
}

type dutyRequest struct {
	OnDuty bool `json:"on_duty"`
}

// offerResponseRequest names the offer being answered. Seq is required so
// a late answer to a timed-out offer cannot resolve the next one.
type offerResponseRequest struct {
	Seq    *uint64 `json:"seq"`
	Accept bool    `json:"accept"`
}

// OpenDeliverySession handles POST /api/v1/delivery/sessions. The caller
// gets a delivery profile if they have none yet.
func (h *Handlers) OpenDeliverySession(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	if _, err := h.Profiles.GetOrCreate(r.Context(), id.UserID, id.Email, id.Name, profile.RoleDelivery); err != nil {
		writeDomainError(w, err, "profile not found")
		return
	}
	state, err := h.Delivery.Open(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusCreated, deliveryResponse{DeliveryState: state, Changed: true})
}

// GetDeliverySession handles GET /api/v1/delivery/sessions/{id}.
func (h *Handlers) GetDeliverySession(w http.ResponseWriter, r *http.Request) {
	state, err := h.Delivery.Get(r.Context(), userID(r), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, deliveryResponse{DeliveryState: state})
}

// SetDuty handles PUT /api/v1/delivery/sessions/{id}/duty.
func (h *Handlers) SetDuty(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[dutyRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	state, changed, err := h.Delivery.SetDuty(r.Context(), userID(r), urlParam(r, "id"), req.OnDuty)
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, deliveryResponse{DeliveryState: state, Changed: changed})
}

// RespondToOffer handles POST /api/v1/delivery/sessions/{id}/offer.
func (h *Handlers) RespondToOffer(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[offerResponseRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if req.Seq == nil || *req.Seq == 0 {
		writeError(w, http.StatusBadRequest, "seq is required")
		return
	}
	state, changed, err := h.Delivery.RespondToOffer(r.Context(), userID(r), urlParam(r, "id"), *req.Seq, req.Accept)
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, deliveryResponse{DeliveryState: state, Changed: changed})
}

// AdvanceTask handles POST /api/v1/delivery/sessions/{id}/tasks/{taskID}/advance.
func (h *Handlers) AdvanceTask(w http.ResponseWriter, r *http.Request) {
	state, changed, err := h.Delivery.AdvanceTask(r.Context(), userID(r), urlParam(r, "id"), urlParam(r, "taskID"))
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, deliveryResponse{DeliveryState: state, Changed: changed})
}

// CloseDeliverySession handles DELETE /api/v1/delivery/sessions/{id}.
func (h *Handlers) CloseDeliverySession(w http.ResponseWriter, r *http.Request) {
	if err := h.Delivery.Close(r.Context(), userID(r), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
