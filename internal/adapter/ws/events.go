package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/foodshare/internal/domain/delivery"
)

// Event type constants for WebSocket messages.
const (
	EventDeliveryOffer     = "delivery.offer"           // a new task is offered
	EventDeliveryCountdown = "delivery.offer_countdown" // countdown progress of the open offer
	EventDeliveryResolved  = "delivery.offer_resolved"  // offer accepted, declined or timed out
	EventDeliveryStatus    = "delivery.task_status"     // ongoing task moved to its next step
	EventDeliveryDuty      = "delivery.duty"            // duty switch toggled

	EventDonationCreated  = "donation.created"
	EventDonationReserved = "donation.reserved"
	EventOrderReserved    = "order.reserved" // sent to the donor whose listing was claimed
	EventCoinsChanged     = "rewards.coins"
)

// Offer resolutions carried by OfferResolvedEvent.
const (
	ResolutionAccepted = "accepted"
	ResolutionDeclined = "declined"
	ResolutionTimeout  = "timeout"
)

// OfferEvent is sent when a session presents a new offer.
type OfferEvent struct {
	SessionID string         `json:"session_id"`
	Offer     delivery.Offer `json:"offer"`
}

// CountdownEvent is sent on every countdown tick of an open offer.
type CountdownEvent struct {
	SessionID   string  `json:"session_id"`
	Seq         uint64  `json:"seq"`
	TaskID      string  `json:"task_id"`
	RemainingMS int64   `json:"remaining_ms"`
	Progress    float64 `json:"progress"`
}

// OfferResolvedEvent is sent when an offer leaves the offered state.
type OfferResolvedEvent struct {
	SessionID  string `json:"session_id"`
	Seq        uint64 `json:"seq"`
	TaskID     string `json:"task_id"`
	Resolution string `json:"resolution"`
}

// TaskStatusEvent is sent when an ongoing delivery advances.
type TaskStatusEvent struct {
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
	SourceID  string `json:"source_id"`
	Status    string `json:"status"`
}

// DutyEvent is sent when the duty switch changes.
type DutyEvent struct {
	SessionID string `json:"session_id"`
	OnDuty    bool   `json:"on_duty"`
}

// CoinsEvent is sent when a user's power coin balance changes.
type CoinsEvent struct {
	Balance int    `json:"balance"`
	Delta   int    `json:"delta"`
	Reason  string `json:"reason"`
}

// BroadcastEvent marshals a typed event and sends it to every client.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	if msg, ok := newMessage(eventType, payload); ok {
		h.Broadcast(ctx, msg)
	}
}

// SendEvent marshals a typed event and sends it to one user's clients.
func (h *Hub) SendEvent(ctx context.Context, userID, eventType string, payload any) {
	if msg, ok := newMessage(eventType, payload); ok {
		h.SendToUser(ctx, userID, msg)
	}
}

func newMessage(eventType string, payload any) (Message, bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return Message{}, false
	}
	return Message{Type: eventType, Payload: json.RawMessage(data)}, true
}
