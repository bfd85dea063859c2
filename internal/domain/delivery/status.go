package delivery

import (
	"errors"
	"fmt"
)

// Status is the position of an accepted task in the delivery sequence.
// The zero value is StatusAwaitingPickup, the canonical initial state.
type Status int

const (
	StatusAwaitingPickup Status = iota
	StatusArrivedAtPickup
	StatusPickedUp
	StatusArrivedAtDrop
	StatusDelivered
)

// ErrUnknownStatus is returned when a status label is not part of the sequence.
var ErrUnknownStatus = errors.New("unknown delivery status")

// legacyInTransit is accepted on input only and normalised to StatusAwaitingPickup.
const legacyInTransit = "In Transit"

var statusLabels = [...]string{
	StatusAwaitingPickup:  "Awaiting Pickup",
	StatusArrivedAtPickup: "Arrived at Pickup",
	StatusPickedUp:        "Picked Up",
	StatusArrivedAtDrop:   "Arrived at Drop",
	StatusDelivered:       "Delivered",
}

// Steps returns the full ordered delivery sequence.
func Steps() []Status {
	return []Status{
		StatusAwaitingPickup,
		StatusArrivedAtPickup,
		StatusPickedUp,
		StatusArrivedAtDrop,
		StatusDelivered,
	}
}

// ParseStatus converts a display label to a Status.
func ParseStatus(label string) (Status, error) {
	if label == legacyInTransit {
		return StatusAwaitingPickup, nil
	}
	for i, l := range statusLabels {
		if l == label {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, label)
}

// Valid reports whether s is one of the five known steps.
func (s Status) Valid() bool {
	return s >= StatusAwaitingPickup && s <= StatusDelivered
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s == StatusDelivered }

// Next returns the immediate successor. ok is false at the terminal step.
func (s Status) Next() (next Status, ok bool) {
	if !s.Valid() || s.Terminal() {
		return s, false
	}
	return s + 1, true
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusLabels[s]
}

// MarshalText encodes the status as its display label.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, int(s))
	}
	return []byte(statusLabels[s]), nil
}

// UnmarshalText decodes a display label, rejecting unknown values.
func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
