package delivery

import (
	"encoding/json"
	"slices"
	"time"
)

// Offer is the single task currently presented to the agent.
// Seq identifies the offer so late timer callbacks or duplicate responses
// for an already resolved offer can be recognised and ignored.
type Offer struct {
	Seq       uint64
	Task      Task
	Window    time.Duration
	Remaining time.Duration
}

// MarshalJSON renders durations as milliseconds alongside the progress bar value.
func (o Offer) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Seq         uint64  `json:"seq"`
		Task        Task    `json:"task"`
		WindowMS    int64   `json:"window_ms"`
		RemainingMS int64   `json:"remaining_ms"`
		Progress    float64 `json:"progress"`
	}{o.Seq, o.Task, o.Window.Milliseconds(), o.Remaining.Milliseconds(), o.Progress()})
}

// Progress returns the remaining share of the acceptance window, 100 to 0.
func (o *Offer) Progress() float64 {
	if o.Window <= 0 || o.Remaining <= 0 {
		return 0
	}
	return float64(o.Remaining) / float64(o.Window) * 100
}

// Stats are the dashboard read views derived from the ledger.
type Stats struct {
	EarningsToday  int `json:"earnings_today"`
	CoinsToday     int `json:"coins_today"`
	CompletedToday int `json:"completed_today"`
	Declined       int `json:"declined"`
	Ongoing        int `json:"ongoing"`
}

// Snapshot is a copy of the ledger state safe to hand out.
type Snapshot struct {
	Offer     *Offer `json:"offer"`
	Ongoing   []Task `json:"ongoing"`
	Completed []Task `json:"completed"`
	Stats     Stats  `json:"stats"`
}

// Ledger partitions one session's tasks into offered, ongoing and completed.
// It holds no locks; the owning session serialises access.
type Ledger struct {
	pool      []Task
	drawn     map[string]bool
	offer     *Offer
	seq       uint64
	ongoing   []Task
	completed []Task
	declined  int
}

// NewLedger creates an empty ledger drawing from the given pool.
func NewLedger(pool []Task) *Ledger {
	return &Ledger{
		pool:  slices.Clone(pool),
		drawn: make(map[string]bool, len(pool)),
	}
}

// Eligible returns the pool tasks that have never been drawn in this session.
func (l *Ledger) Eligible() []Task {
	var out []Task
	for i := range l.pool {
		if !l.drawn[l.pool[i].ID] {
			out = append(out, l.pool[i])
		}
	}
	return out
}

// HasOffer reports whether an offer is outstanding.
func (l *Ledger) HasOffer() bool { return l.offer != nil }

// CurrentOffer returns a copy of the outstanding offer.
func (l *Ledger) CurrentOffer() (Offer, bool) {
	if l.offer == nil {
		return Offer{}, false
	}
	return *l.offer, true
}

// Draw picks one eligible task and makes it the current offer. pick receives
// the number of eligible tasks and returns an index in [0, n). It returns
// false when an offer is already outstanding or the pool is exhausted.
func (l *Ledger) Draw(pick func(n int) int, window time.Duration) (Offer, bool) {
	if l.offer != nil {
		return Offer{}, false
	}
	eligible := l.Eligible()
	if len(eligible) == 0 {
		return Offer{}, false
	}

	idx := pick(len(eligible))
	if idx < 0 || idx >= len(eligible) {
		idx = 0
	}
	t := eligible[idx]
	t.Status = StatusAwaitingPickup

	l.drawn[t.ID] = true
	l.seq++
	l.offer = &Offer{
		Seq:       l.seq,
		Task:      t,
		Window:    window,
		Remaining: window,
	}
	return *l.offer, true
}

// Countdown consumes elapsed time from the offer identified by seq.
// expired is true when the window ran out; the offer is then auto-declined.
// ok is false when seq does not match the outstanding offer.
func (l *Ledger) Countdown(seq uint64, elapsed time.Duration) (offer Offer, expired, ok bool) {
	if l.offer == nil || l.offer.Seq != seq {
		return Offer{}, false, false
	}
	l.offer.Remaining -= elapsed
	if l.offer.Remaining > 0 {
		return *l.offer, false, true
	}
	l.offer.Remaining = 0
	resolved := *l.offer
	l.DeclineOffer(seq)
	return resolved, true, true
}

// AcceptOffer moves the offer identified by seq into ongoing as
// StatusAwaitingPickup. A seq of 0 matches whatever offer is outstanding.
func (l *Ledger) AcceptOffer(seq uint64) (Task, bool) {
	if !l.matches(seq) {
		return Task{}, false
	}
	t := l.offer.Task
	t.Status = StatusAwaitingPickup
	l.ongoing = append([]Task{t}, l.ongoing...)
	l.offer = nil
	return t, true
}

// DeclineOffer discards the offer identified by seq and counts the decline.
// A seq of 0 matches whatever offer is outstanding.
func (l *Ledger) DeclineOffer(seq uint64) (Task, bool) {
	if !l.matches(seq) {
		return Task{}, false
	}
	t := l.offer.Task
	l.offer = nil
	l.RecordDecline()
	return t, true
}

// RecordDecline increments the declined counter.
func (l *Ledger) RecordDecline() { l.declined++ }

func (l *Ledger) matches(seq uint64) bool {
	return l.offer != nil && (seq == 0 || l.offer.Seq == seq)
}

// Advance moves an ongoing task to its immediate next status.
func (l *Ledger) Advance(taskID string) (Task, bool) {
	i := l.ongoingIndex(taskID)
	if i < 0 {
		return Task{}, false
	}
	next, ok := l.ongoing[i].Status.Next()
	if !ok {
		return Task{}, false
	}
	return l.AdvanceStatus(taskID, next)
}

// AdvanceStatus sets an ongoing task to next, which must be the immediate
// successor of its current status. Reaching StatusDelivered relocates the
// task to completed under a derived ID.
func (l *Ledger) AdvanceStatus(taskID string, next Status) (Task, bool) {
	i := l.ongoingIndex(taskID)
	if i < 0 {
		return Task{}, false
	}
	want, ok := l.ongoing[i].Status.Next()
	if !ok || want != next {
		return Task{}, false
	}

	if !next.Terminal() {
		l.ongoing[i].Status = next
		return l.ongoing[i], true
	}

	t := l.ongoing[i]
	t.Status = StatusDelivered
	t.ID = completedPrefix + t.ID
	l.ongoing = slices.Delete(l.ongoing, i, i+1)
	l.completed = append([]Task{t}, l.completed...)
	return t, true
}

func (l *Ledger) ongoingIndex(taskID string) int {
	return slices.IndexFunc(l.ongoing, func(t Task) bool { return t.ID == taskID })
}

// Stats returns the dashboard aggregates.
func (l *Ledger) Stats() Stats {
	s := Stats{
		CompletedToday: len(l.completed),
		Declined:       l.declined,
		Ongoing:        len(l.ongoing),
	}
	for i := range l.completed {
		s.EarningsToday += l.completed[i].Earnings
		s.CoinsToday += l.completed[i].Coins
	}
	return s
}

// Snapshot returns a deep copy of the ledger state.
func (l *Ledger) Snapshot() Snapshot {
	snap := Snapshot{
		Ongoing:   slices.Clone(l.ongoing),
		Completed: slices.Clone(l.completed),
		Stats:     l.Stats(),
	}
	if snap.Ongoing == nil {
		snap.Ongoing = []Task{}
	}
	if snap.Completed == nil {
		snap.Completed = []Task{}
	}
	if l.offer != nil {
		o := *l.offer
		snap.Offer = &o
	}
	return snap
}
