package reliability

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

// DebouncedTask holds a single pending task. Each Trigger replaces the
// pending invocation rather than queueing a new one, and Stop makes any
// still-pending invocation a no-op. Use it for side effects that should
// coalesce under bursts, like scheduling a session re-check.
type DebouncedTask struct {
	mu       sync.Mutex
	debounce func(func())
	fn       func()
	stopped  bool
}

// NewDebouncedTask creates a task that runs fn at most once per wait window.
func NewDebouncedTask(wait time.Duration, fn func()) *DebouncedTask {
	return &DebouncedTask{
		debounce: debounce.New(wait),
		fn:       fn,
	}
}

// Trigger schedules the task, replacing any pending invocation.
func (t *DebouncedTask) Trigger() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.debounce(t.run)
}

func (t *DebouncedTask) run() {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if stopped {
		return
	}
	t.fn()
}

// Stop cancels any pending invocation and ignores further triggers.
func (t *DebouncedTask) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}
