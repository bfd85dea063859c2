// Package reward defines power coin transactions, shop catalogs and the leaderboard.
package reward

import (
	_ "embed"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/foodshare/internal/domain"
	"github.com/Strob0t/foodshare/internal/domain/profile"
)

// Kind tells whether a transaction added or removed coins.
type Kind string

const (
	KindEarn  Kind = "earn"
	KindSpend Kind = "spend"
)

// Transaction is one entry in a user's power coin history.
// Amount is always positive; Kind carries the direction.
type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      Kind      `json:"kind"`
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	Reference string    `json:"reference"` // task ID or shop item ID
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks a transaction before it is recorded.
func (t *Transaction) Validate() error {
	if t.UserID == "" {
		return errors.New("user_id is required")
	}
	if t.Kind != KindEarn && t.Kind != KindSpend {
		return fmt.Errorf("invalid transaction kind %q", t.Kind)
	}
	if t.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	return nil
}

// Delta returns the signed balance change of the transaction.
func (t *Transaction) Delta() int {
	if t.Kind == KindSpend {
		return -t.Amount
	}
	return t.Amount
}

// Shop identifies a redemption catalog.
type Shop string

const (
	ShopDonor    Shop = "donor"
	ShopDelivery Shop = "delivery"
)

// ShopFor returns the catalog a role redeems from.
func ShopFor(role profile.Role) Shop {
	if role == profile.RoleDelivery {
		return ShopDelivery
	}
	return ShopDonor
}

// Item is a redeemable shop article.
type Item struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Price     int    `json:"price" yaml:"price"`
	ImageHint string `json:"image_hint" yaml:"image_hint"`
}

// Catalog lists the items of every shop.
type Catalog map[Shop][]Item

//go:embed catalog.yaml
var catalogYAML []byte

// DefaultCatalog returns the built-in shop catalogs.
func DefaultCatalog() Catalog {
	c, err := ParseCatalog(catalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// ParseCatalog decodes and checks a YAML catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for shop, items := range c {
		if shop != ShopDonor && shop != ShopDelivery {
			return nil, fmt.Errorf("unknown shop %q", shop)
		}
		seen := make(map[string]bool, len(items))
		for _, it := range items {
			if it.ID == "" || it.Name == "" {
				return nil, fmt.Errorf("shop %s: item id and name are required", shop)
			}
			if it.Price <= 0 {
				return nil, fmt.Errorf("shop %s: item %s: price must be positive", shop, it.ID)
			}
			if seen[it.ID] {
				return nil, fmt.Errorf("shop %s: duplicate item id %s", shop, it.ID)
			}
			seen[it.ID] = true
		}
	}
	return c, nil
}

// Find returns the item with id in shop.
func (c Catalog) Find(shop Shop, id string) (Item, bool) {
	for _, it := range c[shop] {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// LeaderboardEntry is one ranked profile.
type LeaderboardEntry struct {
	Rank       int          `json:"rank"`
	ProfileID  string       `json:"profile_id"`
	Name       string       `json:"name"`
	AvatarURL  string       `json:"avatar_url"`
	Role       profile.Role `json:"role"`
	PowerCoins int          `json:"power_coins"`
}

// Leaderboard holds the ranking per role.
type Leaderboard map[profile.Role][]LeaderboardEntry

// Rank assigns 1-based ranks to profiles already ordered by coins.
func Rank(profiles []profile.Profile) []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(profiles))
	for i, p := range profiles {
		out[i] = LeaderboardEntry{
			Rank:       i + 1,
			ProfileID:  p.ID,
			Name:       p.Name,
			AvatarURL:  p.AvatarURL,
			Role:       p.Role,
			PowerCoins: p.PowerCoins,
		}
	}
	return out
}

// ErrDuplicateTransaction reports that a transaction with the same
// reference was already applied for the user.
var ErrDuplicateTransaction = fmt.Errorf("duplicate transaction: %w", domain.ErrConflict)

// DeliveryReference builds the idempotency reference for a delivery payout.
// A pool task can be completed again in a later session, so the session is part of it.
func DeliveryReference(sessionID, sourceID string) string {
	return sessionID + "/" + sourceID
}
