package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	fsotel "github.com/Strob0t/foodshare/internal/adapter/otel"
	"github.com/Strob0t/foodshare/internal/adapter/ws"
	"github.com/Strob0t/foodshare/internal/domain"
	"github.com/Strob0t/foodshare/internal/domain/donation"
	"github.com/Strob0t/foodshare/internal/domain/order"
	"github.com/Strob0t/foodshare/internal/port/broadcast"
	"github.com/Strob0t/foodshare/internal/port/database"
	"github.com/Strob0t/foodshare/internal/port/messagequeue"
)

// OrderService handles reservations of donations.
type OrderService struct {
	store       database.Store
	queue       messagequeue.Queue
	hub         broadcast.Broadcaster
	metrics     *fsotel.Metrics
	deliveryFee int
}

// NewOrderService creates a new OrderService charging deliveryFee for
// delivered orders.
func NewOrderService(store database.Store, queue messagequeue.Queue, hub broadcast.Broadcaster, deliveryFee int) *OrderService {
	return &OrderService{store: store, queue: queue, hub: hub, deliveryFee: deliveryFee}
}

// SetMetrics enables metric recording.
func (s *OrderService) SetMetrics(m *fsotel.Metrics) {
	s.metrics = m
}

// Reserve claims an available donation for receiverID. Reserving a
// donation somebody else got first fails with domain.ErrConflict.
func (s *OrderService) Reserve(ctx context.Context, receiverID string, req *order.ReserveRequest) (*order.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	ctx, span := fsotel.StartReservationSpan(ctx, req.DonationID, receiverID)
	defer span.End()

	d, err := s.store.GetDonation(ctx, req.DonationID)
	if err != nil {
		return nil, err
	}
	if d.ListerID == receiverID {
		return nil, fmt.Errorf("%w: cannot reserve your own donation", domain.ErrValidation)
	}

	o := order.Order{
		DonationID:   req.DonationID,
		ReceiverID:   receiverID,
		Status:       order.StatusReserved,
		PickupMethod: req.PickupMethod,
		DeliveryFee:  order.Fee(req.PickupMethod, s.deliveryFee),
	}
	if err := s.store.ReserveDonation(ctx, &o); err != nil {
		return nil, err
	}
	d.Status = donation.StatusReserved
	o.Donation = d

	if s.metrics != nil {
		s.metrics.Reservations.Add(ctx, 1)
	}
	s.hub.BroadcastEvent(ctx, ws.EventDonationReserved, d)
	s.publishReserved(ctx, &o, d.ListerID)
	slog.InfoContext(ctx, "donation reserved", "order_id", o.ID, "donation_id", o.DonationID, "pickup", o.PickupMethod)
	return &o, nil
}

func (s *OrderService) publishReserved(ctx context.Context, o *order.Order, donorID string) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(messagequeue.OrderReservedPayload{
		OrderID:      o.ID,
		DonationID:   o.DonationID,
		DonorID:      donorID,
		ReceiverID:   o.ReceiverID,
		PickupMethod: string(o.PickupMethod),
		DeliveryFee:  o.DeliveryFee,
	})
	if err != nil {
		slog.ErrorContext(ctx, "marshal order reserved", "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectOrderReserved, data); err != nil {
		slog.ErrorContext(ctx, "publish order reserved", "order_id", o.ID, "error", err)
	}
}

// Get returns an order visible to userID: the receiver or the donor.
func (s *OrderService) Get(ctx context.Context, userID, id string) (*order.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.ReceiverID != userID && (o.Donation == nil || o.Donation.ListerID != userID) {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrForbidden)
	}
	return o, nil
}

// ListByReceiver returns the receiver's orders newest first.
func (s *OrderService) ListByReceiver(ctx context.Context, receiverID string) ([]order.Order, error) {
	return s.store.ListOrdersByReceiver(ctx, receiverID)
}

// StartDonorNotifier subscribes to reservations and tells the donor over
// WebSocket that their listing was claimed.
func (s *OrderService) StartDonorNotifier(ctx context.Context) (func(), error) {
	return s.queue.Subscribe(ctx, messagequeue.SubjectOrderReserved, func(ctx context.Context, _ string, data []byte) error {
		var p messagequeue.OrderReservedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode order reserved: %w", err)
		}
		s.hub.SendEvent(ctx, p.DonorID, ws.EventOrderReserved, p)
		return nil
	})
}
