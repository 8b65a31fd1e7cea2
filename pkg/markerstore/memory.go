package markerstore

import (
	"sync"
	"time"
)

// Memory is an in-memory Markers implementation for tests and ephemeral runs
// where cross-restart durability is not wanted.
type Memory struct {
	mu           sync.Mutex
	lastRedirect time.Time
	hasRedirect  bool
	returnPath   string
	hasReturn    bool
	events       []time.Time
}

var _ Markers = (*Memory)(nil)

// NewMemory creates an empty in-memory marker store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) LastRedirect() (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRedirect, m.hasRedirect, nil
}

func (m *Memory) SetLastRedirect(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRedirect = t
	m.hasRedirect = true
	return nil
}

func (m *Memory) ReturnPath() (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.returnPath, m.hasReturn, nil
}

func (m *Memory) SetReturnPath(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returnPath = path
	m.hasReturn = true
	return nil
}

func (m *Memory) ClearReturnPath() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returnPath = ""
	m.hasReturn = false
	return nil
}

func (m *Memory) Record401(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, t)
	if len(m.events) > EventCap {
		m.events = m.events[len(m.events)-EventCap:]
	}
	return nil
}

func (m *Memory) Recent401s(limit int) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}
	out := make([]time.Time, limit)
	copy(out, m.events[len(m.events)-limit:])
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}
