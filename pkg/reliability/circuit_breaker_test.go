package reliability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance breaker time without sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestBreaker(t *testing.T, threshold int, cooldown time.Duration) (*Breaker, *fakeClock) {
	t.Helper()
	b, err := NewBreaker(threshold, cooldown)
	require.NoError(t, err)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	b.now = clock.now
	return b, clock
}

func TestNewBreakerValidatesInput(t *testing.T) {
	_, err := NewBreaker(0, time.Second)
	assert.Error(t, err)
	_, err = NewBreaker(3, 0)
	assert.Error(t, err)
}

func TestBreakerInitialState(t *testing.T) {
	b, _ := newTestBreaker(t, 3, 10*time.Second)
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.AllowProbe())
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(t, 3, 10*time.Second)

	for i := 0; i < 3; i++ {
		require.Equal(t, StateClosed, b.State(), "iteration %d", i)
		b.RecordFailure()
	}

	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.AllowProbe())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(t, 3, 10*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	assert.Equal(t, 0, b.Failures())

	// Two more failures must not open it: the counter was reset.
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenGrantsSingleProbe(t *testing.T) {
	b, clock := newTestBreaker(t, 2, 10*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	require.False(t, b.AllowProbe())

	clock.advance(10*time.Second + time.Millisecond)

	// First call after cooldown transitions to half-open and grants the probe.
	assert.True(t, b.AllowProbe())
	assert.Equal(t, StateHalfOpen, b.State())

	// Until the outcome is recorded, nothing else gets through.
	assert.False(t, b.AllowProbe())
	assert.False(t, b.AllowProbe())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.AllowProbe())
}

func TestBreakerHalfOpenFailureRestartsCooldown(t *testing.T) {
	b, clock := newTestBreaker(t, 2, 10*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	clock.advance(11 * time.Second)
	require.True(t, b.AllowProbe())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	// The cooldown restarted at the half-open failure, not the original trip.
	clock.advance(9 * time.Second)
	assert.False(t, b.AllowProbe())
	clock.advance(2 * time.Second)
	assert.True(t, b.AllowProbe())
}

func TestBreakerFullScenario(t *testing.T) {
	// threshold=5, cooldown=30s: five failures trip it, a probe after 30s is
	// allowed, and its success starts failure counting from zero.
	b, clock := newTestBreaker(t, 5, 30*time.Second)

	for i := 0; i < 5; i++ {
		require.True(t, b.AllowProbe())
		b.RecordFailure()
	}
	require.Equal(t, StateOpen, b.State())
	require.False(t, b.AllowProbe())

	clock.advance(30*time.Second + time.Millisecond)
	require.True(t, b.AllowProbe())
	b.RecordSuccess()

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())

	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State(), "counting must restart after the half-open success")
}

func TestBreakerReset(t *testing.T) {
	b, _ := newTestBreaker(t, 1, time.Minute)
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
	assert.True(t, b.AllowProbe())
}
