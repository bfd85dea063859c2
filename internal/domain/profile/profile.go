// Package profile defines the user profile shared by donors, receivers and delivery agents.
package profile

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// Role is the kind of account a profile belongs to.
type Role string

const (
	RoleIndividual Role = "Individual"
	RoleRestaurant Role = "Restaurant"
	RoleDelivery   Role = "Delivery"
)

// ValidRoles is the set of all valid profile roles.
var ValidRoles = map[Role]bool{
	RoleIndividual: true,
	RoleRestaurant: true,
	RoleDelivery:   true,
}

// LeaderboardRoles are the roles ranked on the leaderboard.
var LeaderboardRoles = []Role{RoleRestaurant, RoleIndividual}

// Profile is a user's public and contact information plus their coin balance.
type Profile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Address    string    `json:"address"`
	AvatarURL  string    `json:"avatar_url"`
	Role       Role      `json:"role"`
	PowerCoins int       `json:"power_coins"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateRequest is the input for creating a profile at signup.
type CreateRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Validate checks that the CreateRequest has all required fields.
// An empty role defaults to RoleIndividual.
func (r *CreateRequest) Validate() error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if r.Email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return errors.New("invalid email format")
	}
	if r.Role == "" {
		r.Role = RoleIndividual
	}
	if !ValidRoles[r.Role] {
		return errors.New("invalid role: must be Individual, Restaurant, or Delivery")
	}
	return nil
}

// UpdateRequest is the input for editing contact details.
// Nil fields are left unchanged.
type UpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

// Validate rejects updates that would blank the name.
func (r *UpdateRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return errors.New("name cannot be empty")
	}
	return nil
}

// Apply copies the set fields onto p.
func (r *UpdateRequest) Apply(p *Profile) {
	if r.Name != nil {
		p.Name = strings.TrimSpace(*r.Name)
	}
	if r.Phone != nil {
		p.Phone = *r.Phone
	}
	if r.Address != nil {
		p.Address = *r.Address
	}
}

// Default builds the profile created on first access when none exists.
// The name falls back to the local part of the email address.
func Default(id, email, name string) Profile {
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	if name == "" {
		name = "New user"
	}
	return Profile{
		ID:    id,
		Name:  name,
		Email: email,
		Role:  RoleIndividual,
	}
}
