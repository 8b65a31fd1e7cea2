// Package navguard suppresses auth-driven redirects while a navigation
// transition is still settling. Redirecting mid-transition is the documented
// root cause of login-page flicker and redirect loops, so the guard is
// conservative: it suppresses more than strictly necessary.
package navguard

import (
	"sync"
	"time"
)

// DefaultCooldown is how long after a transition redirects stay suppressed.
const DefaultCooldown = 1500 * time.Millisecond

// Guard records navigation transitions and answers whether a redirect should
// currently be suppressed. Instances are explicitly constructed and injected;
// there is no package-level shared state.
type Guard struct {
	mu       sync.Mutex
	last     time.Time
	cooldown time.Duration

	now func() time.Time
}

// NewGuard creates a guard with the given cooldown window. Non-positive
// cooldowns fall back to DefaultCooldown.
func NewGuard(cooldown time.Duration) *Guard {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Guard{
		cooldown: cooldown,
		now:      time.Now,
	}
}

// MarkTransition records that a navigation transition was observed just now.
// Call it synchronously from every history move, programmatic route change,
// and unload hook.
func (g *Guard) MarkTransition() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = g.now()
}

// ShouldSuppressRedirect reports whether a redirect decision must be
// deferred because a transition happened within the cooldown window.
func (g *Guard) ShouldSuppressRedirect() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last.IsZero() {
		return false
	}
	return g.now().Sub(g.last) < g.cooldown
}

// LastTransition returns the time of the most recent observed transition.
func (g *Guard) LastTransition() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
