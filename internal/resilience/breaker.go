// Package resilience provides reliability patterns for calls to external services.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/Strob0t/foodshare/internal/clock"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker opens after maxFailures consecutive failures and rejects calls
// for cooldown. The first call after the cooldown is a probe: success
// closes the breaker, failure reopens it.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	clock       clock.Clock
}

// NewBreaker creates a closed Breaker.
func NewBreaker(maxFailures int, cooldown time.Duration, clk clock.Clock) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		clock:       clk,
	}
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			b.state = StateOpen
			b.openedAt = b.clock.Now()
		}
		return err
	}
	b.failures = 0
	b.state = StateClosed
	return nil
}

// State reports the current position, moving an expired open breaker to half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expire()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expire()
	return b.state != StateOpen
}

// expire must be called with b.mu held.
func (b *Breaker) expire() {
	if b.state == StateOpen && b.clock.Now().Sub(b.openedAt) >= b.cooldown {
		b.state = StateHalfOpen
	}
}
