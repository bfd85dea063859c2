// Package order defines reservations of donations by receivers.
package order

import (
	"errors"
	"time"

	"github.com/Strob0t/foodshare/internal/domain/donation"
)

// Status is the lifecycle state of an order.
type Status string

// StatusReserved is the only state an order takes today; pickup and
// delivery progress is tracked by the delivery simulator.
const StatusReserved Status = "Reserved"

// PickupMethod is how the receiver obtains the food.
type PickupMethod string

const (
	PickupDelivery PickupMethod = "delivery"
	PickupSelf     PickupMethod = "self"
)

// Order is a receiver's reservation of one donation.
type Order struct {
	ID           string       `json:"id"`
	DonationID   string       `json:"donation_id"`
	ReceiverID   string       `json:"receiver_id"`
	Status       Status       `json:"status"`
	PickupMethod PickupMethod `json:"pickup_method"`
	DeliveryFee  int          `json:"delivery_fee"`
	CreatedAt    time.Time    `json:"created_at"`

	// Donation is populated on reads.
	Donation *donation.Donation `json:"donation,omitempty"`
}

// ReserveRequest is the input for reserving a donation.
type ReserveRequest struct {
	DonationID   string       `json:"donation_id"`
	PickupMethod PickupMethod `json:"pickup_method"`
}

// Validate checks that the ReserveRequest has all required fields.
func (r *ReserveRequest) Validate() error {
	if r.DonationID == "" {
		return errors.New("donation_id is required")
	}
	switch r.PickupMethod {
	case PickupDelivery, PickupSelf:
		return nil
	default:
		return errors.New("pickup_method must be delivery or self")
	}
}

// Fee returns the delivery fee for method given the configured delivery fee.
func Fee(method PickupMethod, deliveryFee int) int {
	if method == PickupDelivery {
		return deliveryFee
	}
	return 0
}
