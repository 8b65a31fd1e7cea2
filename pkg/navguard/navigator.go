package navguard

import (
	"sync"

	"github.com/rs/zerolog"
)

// Navigator is the single capability through which the application changes
// location. Routing internally through one object, instead of observing
// platform history mutations from the outside, guarantees every programmatic
// move also resets the guard's cooldown.
type Navigator struct {
	guard *Guard
	log   zerolog.Logger

	mu      sync.Mutex
	stack   []string
	current string

	// sink receives the new path after every successful move.
	sink func(path string)
}

// NewNavigator creates a navigator rooted at start. sink may be nil.
func NewNavigator(guard *Guard, start string, sink func(path string), log zerolog.Logger) *Navigator {
	return &Navigator{
		guard:   guard,
		current: start,
		sink:    sink,
		log:     log.With().Str("component", "navigator").Logger(),
	}
}

// Current returns the current path.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Push navigates to path, keeping the previous location reachable via Back.
func (n *Navigator) Push(path string) {
	n.guard.MarkTransition()
	n.mu.Lock()
	n.stack = append(n.stack, n.current)
	n.current = path
	n.mu.Unlock()
	n.emit(path, "push")
}

// Replace navigates to path without growing the history stack.
func (n *Navigator) Replace(path string) {
	n.guard.MarkTransition()
	n.mu.Lock()
	n.current = path
	n.mu.Unlock()
	n.emit(path, "replace")
}

// Back pops the most recent location, reporting false when there is nowhere
// to go. Mirrors the browser's history pop: the transition is recorded even
// when the stack is empty.
func (n *Navigator) Back() (string, bool) {
	n.guard.MarkTransition()
	n.mu.Lock()
	if len(n.stack) == 0 {
		n.mu.Unlock()
		return "", false
	}
	path := n.stack[len(n.stack)-1]
	n.stack = n.stack[:len(n.stack)-1]
	n.current = path
	n.mu.Unlock()
	n.emit(path, "back")
	return path, true
}

// MarkUnload records a pending teardown of the current view, equivalent to
// the browser's beforeunload.
func (n *Navigator) MarkUnload() {
	n.guard.MarkTransition()
}

func (n *Navigator) emit(path, kind string) {
	n.log.Debug().Str("path", path).Str("kind", kind).Msg("Navigation transition")
	if n.sink != nil {
		n.sink(path)
	}
}
