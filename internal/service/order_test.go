package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Strob0t/foodshare/internal/adapter/ws"
	"github.com/Strob0t/foodshare/internal/domain"
	"github.com/Strob0t/foodshare/internal/domain/donation"
	"github.com/Strob0t/foodshare/internal/domain/order"
	"github.com/Strob0t/foodshare/internal/port/messagequeue"
)

func newOrderFixture(t *testing.T) (*OrderService, *mockStore, *mockQueue, *recordingHub, string) {
	t.Helper()
	store := newMockStore()
	queue := &mockQueue{}
	hub := &recordingHub{}
	donations := NewDonationService(store, NewUploadService(newMemBlobs()), hub)
	d, err := donations.Create(context.Background(), "donor-1", validDonation())
	if err != nil {
		t.Fatal(err)
	}
	return NewOrderService(store, queue, hub, 50), store, queue, hub, d.ID
}

func TestOrderService_ReserveDeliveryFee(t *testing.T) {
	tests := []struct {
		method order.PickupMethod
		fee    int
	}{
		{order.PickupDelivery, 50},
		{order.PickupSelf, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			svc, store, queue, _, donationID := newOrderFixture(t)

			o, err := svc.Reserve(context.Background(), "recv-1", &order.ReserveRequest{DonationID: donationID, PickupMethod: tt.method})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if o.DeliveryFee != tt.fee || o.Status != order.StatusReserved {
				t.Fatalf("unexpected order %+v", o)
			}
			if store.donations[donationID].Status != donation.StatusReserved {
				t.Fatal("donation should be reserved")
			}

			msgs := queue.onSubject(messagequeue.SubjectOrderReserved)
			if len(msgs) != 1 {
				t.Fatalf("expected 1 orders.reserved message, got %d", len(msgs))
			}
			var p messagequeue.OrderReservedPayload
			if err := json.Unmarshal(msgs[0].data, &p); err != nil {
				t.Fatal(err)
			}
			if p.DonorID != "donor-1" || p.ReceiverID != "recv-1" || p.DeliveryFee != tt.fee {
				t.Fatalf("unexpected payload %+v", p)
			}
		})
	}
}

func TestOrderService_ReserveTwiceConflicts(t *testing.T) {
	svc, _, _, _, donationID := newOrderFixture(t)
	ctx := context.Background()
	req := &order.ReserveRequest{DonationID: donationID, PickupMethod: order.PickupSelf}

	if _, err := svc.Reserve(ctx, "recv-1", req); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Reserve(ctx, "recv-2", req); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestOrderService_ReserveErrors(t *testing.T) {
	svc, _, queue, _, donationID := newOrderFixture(t)
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, "donor-1", &order.ReserveRequest{DonationID: donationID, PickupMethod: order.PickupSelf}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("own donation: expected ErrValidation, got %v", err)
	}
	if _, err := svc.Reserve(ctx, "recv-1", &order.ReserveRequest{DonationID: donationID, PickupMethod: "drone"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad method: expected ErrValidation, got %v", err)
	}
	if _, err := svc.Reserve(ctx, "recv-1", &order.ReserveRequest{DonationID: "missing", PickupMethod: order.PickupSelf}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing donation: expected ErrNotFound, got %v", err)
	}
	if n := len(queue.onSubject(messagequeue.SubjectOrderReserved)); n != 0 {
		t.Fatalf("failed reservations must not publish, got %d", n)
	}
}

func TestOrderService_GetVisibility(t *testing.T) {
	svc, _, _, _, donationID := newOrderFixture(t)
	ctx := context.Background()
	o, _ := svc.Reserve(ctx, "recv-1", &order.ReserveRequest{DonationID: donationID, PickupMethod: order.PickupSelf})

	if _, err := svc.Get(ctx, "recv-1", o.ID); err != nil {
		t.Fatalf("receiver should see order: %v", err)
	}
	if _, err := svc.Get(ctx, "donor-1", o.ID); err != nil {
		t.Fatalf("donor should see order: %v", err)
	}
	if _, err := svc.Get(ctx, "stranger", o.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	list, _ := svc.ListByReceiver(ctx, "recv-1")
	if len(list) != 1 {
		t.Fatalf("expected 1 order, got %d", len(list))
	}
}

func TestOrderService_DonorNotifier(t *testing.T) {
	svc, _, queue, hub, donationID := newOrderFixture(t)
	ctx := context.Background()

	if _, err := svc.StartDonorNotifier(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Reserve(ctx, "recv-1", &order.ReserveRequest{DonationID: donationID, PickupMethod: order.PickupDelivery}); err != nil {
		t.Fatal(err)
	}

	msg := queue.onSubject(messagequeue.SubjectOrderReserved)[0]
	if err := queue.handlers[messagequeue.SubjectOrderReserved](ctx, msg.subject, msg.data); err != nil {
		t.Fatal(err)
	}

	notes := hub.ofType(ws.EventOrderReserved)
	if len(notes) != 1 || notes[0].userID != "donor-1" {
		t.Fatalf("expected one notice to donor-1, got %+v", notes)
	}
}
