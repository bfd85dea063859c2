package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "foodshare"

// StartDeliverySpan starts a span for an action on a delivery session.
func StartDeliverySpan(ctx context.Context, agentID, action string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "delivery."+action,
		trace.WithAttributes(
			attribute.String("delivery.agent_id", agentID),
		),
	)
}

// StartReservationSpan starts a span for reserving a donation.
func StartReservationSpan(ctx context.Context, donationID, receiverID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "order.reserve",
		trace.WithAttributes(
			attribute.String("donation.id", donationID),
			attribute.String("receiver.id", receiverID),
		),
	)
}

// StartRedeemSpan starts a span for a shop redemption.
func StartRedeemSpan(ctx context.Context, userID, itemID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "rewards.redeem",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("shop.item_id", itemID),
		),
	)
}
