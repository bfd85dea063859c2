package clock

import (
	"sync"
	"time"
)

// Fake is a manually driven Clock. Callbacks run synchronously inside
// Advance, in due-time order, so tests observe every tick deterministically.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	nextID  uint64
	tickers []*fakeTicker
}

type fakeTicker struct {
	f       *Fake
	id      uint64
	period  time.Duration
	due     time.Time
	fn      func()
	stopped bool
}

// NewFake returns a Fake clock starting at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the current virtual time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Every registers a ticker whose first tick is due one period from now.
func (f *Fake) Every(period time.Duration, fn func()) Stopper {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t := &fakeTicker{f: f, id: f.nextID, period: period, due: f.now.Add(period), fn: fn}
	f.tickers = append(f.tickers, t)
	return t
}

// Advance moves virtual time forward by d, firing every tick that falls due.
// Tickers created or stopped by a callback take effect immediately.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	for {
		t := f.nextDue(target)
		if t == nil {
			break
		}
		f.now = t.due
		t.due = t.due.Add(t.period)
		fn := t.fn
		f.mu.Unlock()
		fn()
		f.mu.Lock()
	}
	f.now = target
	f.mu.Unlock()
}

// Active returns the number of tickers that have not been stopped.
func (f *Fake) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

// nextDue returns the earliest live ticker due at or before target.
// Ties go to the ticker registered first. Caller holds f.mu.
func (f *Fake) nextDue(target time.Time) *fakeTicker {
	var best *fakeTicker
	for _, t := range f.tickers {
		if t.due.After(target) {
			continue
		}
		if best == nil || t.due.Before(best.due) || (t.due.Equal(best.due) && t.id < best.id) {
			best = t
		}
	}
	return best
}

func (t *fakeTicker) Stop() {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	for i, other := range t.f.tickers {
		if other == t {
			t.f.tickers = append(t.f.tickers[:i], t.f.tickers[i+1:]...)
			break
		}
	}
}
