// Package donation defines surplus food listings offered by donors.
package donation

import (
	"errors"
	"strings"
	"time"
)

// Status is the availability of a donation.
type Status string

const (
	StatusAvailable Status = "Available"
	StatusReserved  Status = "Reserved"
)

// DefaultImageHint describes the listing image for accessibility and search.
const DefaultImageHint = "food meal"

// Donation is a food listing created by a donor.
type Donation struct {
	ID          string    `json:"id"`
	ListerID    string    `json:"lister_id"`
	ListerName  string    `json:"lister_name,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Serves      int       `json:"serves"`
	Location    string    `json:"location"`
	PickupTime  time.Time `json:"pickup_time"`
	ImageURL    string    `json:"image_url"`
	ImageHint   string    `json:"image_hint"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Editable reports whether the donation may still be changed by its lister.
func (d *Donation) Editable() bool {
	return d.Status == StatusAvailable
}

// CreateRequest is the input for listing a new donation.
type CreateRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Serves      int       `json:"serves"`
	Location    string    `json:"location"`
	PickupTime  time.Time `json:"pickup_time"`
}

// Validate checks the listing form rules.
func (r *CreateRequest) Validate() error {
	return validateFields(r.Title, r.Serves, r.Location, r.PickupTime)
}

// UpdateRequest replaces the editable fields of a listing.
type UpdateRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Serves      int       `json:"serves"`
	Location    string    `json:"location"`
	PickupTime  time.Time `json:"pickup_time"`
}

// Validate checks the listing form rules.
func (r *UpdateRequest) Validate() error {
	return validateFields(r.Title, r.Serves, r.Location, r.PickupTime)
}

// Apply copies the request onto d.
func (r *UpdateRequest) Apply(d *Donation) {
	d.Title = strings.TrimSpace(r.Title)
	d.Description = r.Description
	d.Serves = r.Serves
	d.Location = strings.TrimSpace(r.Location)
	d.PickupTime = r.PickupTime
}

// New builds an available donation for lister from a validated request.
func New(listerID string, r *CreateRequest) Donation {
	return Donation{
		ListerID:    listerID,
		Title:       strings.TrimSpace(r.Title),
		Description: r.Description,
		Serves:      r.Serves,
		Location:    strings.TrimSpace(r.Location),
		PickupTime:  r.PickupTime,
		ImageHint:   DefaultImageHint,
		Status:      StatusAvailable,
	}
}

func validateFields(title string, serves int, location string, pickup time.Time) error {
	if len([]rune(strings.TrimSpace(title))) < 3 {
		return errors.New("title must be at least 3 characters")
	}
	if serves < 1 {
		return errors.New("serves must be at least 1")
	}
	if len([]rune(strings.TrimSpace(location))) < 3 {
		return errors.New("location must be at least 3 characters")
	}
	if pickup.IsZero() {
		return errors.New("pickup time is required")
	}
	return nil
}
