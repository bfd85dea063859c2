package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/foodshare/internal/adapter/ws"
	"github.com/Strob0t/foodshare/internal/domain"
	"github.com/Strob0t/foodshare/internal/domain/donation"
)

func validDonation() *donation.CreateRequest {
	return &donation.CreateRequest{
		Title:      "Veg Biryani",
		Serves:     12,
		Location:   "Indiranagar",
		PickupTime: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
	}
}

func newDonationFixture() (*DonationService, *mockStore, *memBlobs, *recordingHub) {
	store := newMockStore()
	blobs := newMemBlobs()
	hub := &recordingHub{}
	return NewDonationService(store, NewUploadService(blobs), hub), store, blobs, hub
}

func TestDonationService_Create(t *testing.T) {
	svc, _, _, hub := newDonationFixture()

	d, err := svc.Create(context.Background(), "donor-1", validDonation())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != donation.StatusAvailable || d.ImageHint != "food meal" || d.ListerID != "donor-1" {
		t.Fatalf("unexpected donation %+v", d)
	}
	if n := len(hub.ofType(ws.EventDonationCreated)); n != 1 {
		t.Fatalf("expected 1 created event, got %d", n)
	}
}

func TestDonationService_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*donation.CreateRequest)
	}{
		{"short title", func(r *donation.CreateRequest) { r.Title = "ab" }},
		{"zero serves", func(r *donation.CreateRequest) { r.Serves = 0 }},
		{"short location", func(r *donation.CreateRequest) { r.Location = "HQ" }},
		{"no pickup time", func(r *donation.CreateRequest) { r.PickupTime = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, _ := newDonationFixture()
			req := validDonation()
			tt.mutate(req)
			if _, err := svc.Create(context.Background(), "donor-1", req); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestDonationService_UpdateOwnerAndStatus(t *testing.T) {
	svc, store, _, _ := newDonationFixture()
	ctx := context.Background()
	d, _ := svc.Create(ctx, "donor-1", validDonation())

	upd := &donation.UpdateRequest{Title: "Paneer Biryani", Serves: 10, Location: "Indiranagar", PickupTime: d.PickupTime}

	if _, err := svc.Update(ctx, "donor-2", d.ID, upd); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}

	got, err := svc.Update(ctx, "donor-1", d.ID, upd)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Paneer Biryani" || got.Serves != 10 {
		t.Fatalf("update not applied: %+v", got)
	}

	store.donations[d.ID].Status = donation.StatusReserved
	if _, err := svc.Update(ctx, "donor-1", d.ID, upd); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for reserved donation, got %v", err)
	}
}

func TestDonationService_List(t *testing.T) {
	svc, store, _, _ := newDonationFixture()
	ctx := context.Background()
	a, _ := svc.Create(ctx, "donor-1", validDonation())
	svc.Create(ctx, "donor-2", validDonation())
	store.donations[a.ID].Status = donation.StatusReserved

	all, _ := svc.List(ctx, "")
	avail, _ := svc.List(ctx, donation.StatusAvailable)
	mine, _ := svc.ListByLister(ctx, "donor-1")
	if len(all) != 2 || len(avail) != 1 || len(mine) != 1 {
		t.Fatalf("unexpected counts all=%d available=%d mine=%d", len(all), len(avail), len(mine))
	}
	if _, err := svc.List(ctx, "Gone"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown status, got %v", err)
	}
}

func TestDonationService_ImageLifecycle(t *testing.T) {
	svc, store, blobs, _ := newDonationFixture()
	ctx := context.Background()
	d, _ := svc.Create(ctx, "donor-1", validDonation())

	first, err := svc.AttachImage(ctx, "donor-1", d.ID, "biryani.jpg", strings.NewReader("jpeg-1"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AttachImage(ctx, "donor-1", d.ID, "biryani2.jpg", strings.NewReader("jpeg-2")); err != nil {
		t.Fatal(err)
	}
	if blobs.count() != 1 {
		t.Fatalf("previous image should be removed, have %d objects", blobs.count())
	}
	if store.donations[d.ID].ImageURL == first.ImageURL {
		t.Fatal("image URL not replaced")
	}

	if _, err := svc.AttachImage(ctx, "donor-2", d.ID, "x.jpg", strings.NewReader("x")); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if err := svc.Delete(ctx, "donor-1", d.ID); err != nil {
		t.Fatal(err)
	}
	if blobs.count() != 0 {
		t.Fatalf("delete must remove the stored image, have %d objects", blobs.count())
	}
	if _, err := svc.Get(ctx, d.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDonationService_AttachImageRollsBackUpload(t *testing.T) {
	svc, store, blobs, _ := newDonationFixture()
	ctx := context.Background()
	d, _ := svc.Create(ctx, "donor-1", validDonation())
	store.setImageErr = errors.New("db down")

	if _, err := svc.AttachImage(ctx, "donor-1", d.ID, "a.jpg", strings.NewReader("a")); err == nil {
		t.Fatal("expected error")
	}
	if blobs.count() != 0 {
		t.Fatalf("orphaned upload left behind: %d objects", blobs.count())
	}
}
