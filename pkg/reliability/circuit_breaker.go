package reliability

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a probe is refused because the breaker is
// open. Callers must surface this as its own condition, never as a plain
// authentication failure.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState represents the state of the circuit breaker
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the human-readable name for the breaker state.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker gates authentication probes behind consecutive-failure tracking.
// After threshold consecutive failures it opens and refuses probes for the
// cooldown period, then allows exactly one half-open probe whose outcome
// decides whether it closes again or re-opens.
type Breaker struct {
	mu            sync.Mutex
	threshold     int
	cooldown      time.Duration
	failures      int
	openedAt      time.Time
	state         BreakerState
	probeInFlight bool

	now func() time.Time
}

// NewBreaker creates a new breaker in the closed state.
func NewBreaker(threshold int, cooldown time.Duration) (*Breaker, error) {
	if threshold <= 0 {
		return nil, errors.New("threshold must be greater than 0")
	}
	if cooldown <= 0 {
		return nil, errors.New("cooldown must be greater than 0")
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     StateClosed,
		now:       time.Now,
	}, nil
}

// AllowProbe reports whether a probe may be dispatched right now.
//
// Closed always allows. Open allows nothing until the cooldown has elapsed,
// at which point the breaker moves to half-open and grants a single probe;
// further calls return false until that probe's outcome is recorded via
// RecordSuccess or RecordFailure.
func (b *Breaker) AllowProbe() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.probeInFlight = true
		return true
	case StateHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	}
	return false
}

// RecordSuccess resets the failure count and closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = StateClosed
	b.probeInFlight = false
}

// RecordFailure increments the consecutive-failure count, opening the breaker
// once the threshold is reached. A half-open probe failure re-opens with a
// fresh cooldown window.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeInFlight = false
	b.failures++
	if b.failures >= b.threshold {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// State returns the current state of the breaker.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive-failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset manually returns the breaker to the closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = StateClosed
	b.probeInFlight = false
}
