// Package clock provides the tick source for timer-driven domain logic.
// Production code uses Real; tests use Fake and advance virtual time.
package clock

import (
	"sync"
	"time"
)

// Stopper cancels a running ticker. Stop is idempotent.
type Stopper interface {
	Stop()
}

// Clock emits periodic callbacks.
type Clock interface {
	Now() time.Time
	// Every calls fn once per period until the returned Stopper is stopped.
	// A callback already in flight when Stop is called may still complete.
	Every(period time.Duration, fn func()) Stopper
}

// Real is a Clock backed by time.Ticker.
type Real struct{}

// Now returns the wall clock time.
func (Real) Now() time.Time { return time.Now() }

// Every starts a goroutine that invokes fn on each tick.
func (Real) Every(period time.Duration, fn func()) Stopper {
	t := &realTicker{
		ticker: time.NewTicker(period),
		done:   make(chan struct{}),
	}
	go t.run(fn)
	return t
}

type realTicker struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *realTicker) run(fn func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			select {
			case <-t.done:
				return
			default:
			}
			fn()
		}
	}
}

func (t *realTicker) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
}
