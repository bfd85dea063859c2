package http_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Strob0t/foodshare/internal/domain"
	"github.com/Strob0t/foodshare/internal/domain/donation"
	"github.com/Strob0t/foodshare/internal/domain/order"
	"github.com/Strob0t/foodshare/internal/domain/profile"
	"github.com/Strob0t/foodshare/internal/domain/reward"
	"github.com/Strob0t/foodshare/internal/port/database"
)

var _ database.Store = (*mockStore)(nil)

// mockStore is an in-memory database.Store for handler tests.
type mockStore struct {
	mu        sync.Mutex
	profiles  map[string]*profile.Profile
	donations map[string]*donation.Donation
	orders    map[string]*order.Order
	txs       []reward.Transaction
	seq       int
}

func newMockStore() *mockStore {
	return &mockStore{
		profiles:  make(map[string]*profile.Profile),
		donations: make(map[string]*donation.Donation),
		orders:    make(map[string]*order.Order),
	}
}

func (m *mockStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *mockStore) GetProfile(_ context.Context, id string) (*profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) CreateProfile(_ context.Context, p *profile.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; ok {
		return domain.ErrConflict
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *mockStore) UpdateProfile(_ context.Context, p *profile.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *mockStore) SetAvatar(_ context.Context, id, avatarURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.AvatarURL = avatarURL
	return nil
}

func (m *mockStore) TopProfiles(_ context.Context, role profile.Role, limit int) ([]profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []profile.Profile
	for _, p := range m.profiles {
		if p.Role == role {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PowerCoins > out[j].PowerCoins })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) ListDonations(_ context.Context, status donation.Status) ([]donation.Donation, error) {
	return m.filterDonations(func(d *donation.Donation) bool { return status == "" || d.Status == status }), nil
}

func (m *mockStore) ListDonationsByLister(_ context.Context, listerID string) ([]donation.Donation, error) {
	return m.filterDonations(func(d *donation.Donation) bool { return d.ListerID == listerID }), nil
}

func (m *mockStore) filterDonations(keep func(*donation.Donation) bool) []donation.Donation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []donation.Donation
	for _, d := range m.donations {
		if keep(d) {
			out = append(out, *d)
		}
	}
	return out
}

func (m *mockStore) GetDonation(_ context.Context, id string) (*donation.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockStore) CreateDonation(_ context.Context, d *donation.Donation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = m.nextID("don")
	d.CreatedAt = time.Now()
	cp := *d
	m.donations[d.ID] = &cp
	return nil
}

func (m *mockStore) UpdateDonation(_ context.Context, d *donation.Donation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.donations[d.ID] = &cp
	return nil
}

func (m *mockStore) SetDonationImage(_ context.Context, id, imageURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.ImageURL = imageURL
	return nil
}

func (m *mockStore) DeleteDonation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.donations, id)
	return nil
}

func (m *mockStore) ReserveDonation(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[o.DonationID]
	if !ok {
		return domain.ErrNotFound
	}
	if d.Status != donation.StatusAvailable {
		return fmt.Errorf("donation %s already reserved: %w", d.ID, domain.ErrConflict)
	}
	d.Status = donation.StatusReserved
	o.ID = m.nextID("ord")
	cp := *o
	dc := *d
	cp.Donation = &dc
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockStore) GetOrder(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockStore) ListOrdersByReceiver(_ context.Context, receiverID string) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.orders {
		if o.ReceiverID == receiverID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockStore) ApplyTransaction(_ context.Context, tx *reward.Transaction) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[tx.UserID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if p.PowerCoins+tx.Delta() < 0 {
		return 0, fmt.Errorf("insufficient power coins: %w", domain.ErrConflict)
	}
	p.PowerCoins += tx.Delta()
	tx.ID = m.nextID("tx")
	m.txs = append(m.txs, *tx)
	return p.PowerCoins, nil
}

func (m *mockStore) ListTransactions(_ context.Context, userID string, limit int) ([]reward.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []reward.Transaction
	for i := len(m.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.txs[i].UserID == userID {
			out = append(out, m.txs[i])
		}
	}
	return out, nil
}
