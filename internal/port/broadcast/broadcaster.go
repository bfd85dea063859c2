// Package broadcast defines the port for pushing real-time events to connected clients.
package broadcast

import "context"

// Broadcaster sends real-time events to connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)

	// SendEvent sends a typed event only to the connections of one user.
	SendEvent(ctx context.Context, userID, eventType string, payload any)
}
