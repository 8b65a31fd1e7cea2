// Package markerstore persists the small set of cross-reload markers the
// authentication layer depends on: the redirect-throttle timestamp, the
// intended post-login return path, and a bounded diagnostic log of 401s.
package markerstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Marker keys. These survive process restarts; a restart must still observe
// a recent redirect and refuse to loop.
const (
	KeyLastRedirect = "lastPrivateRedirect"
	KeyReturnPath   = "redirectAfterLogin"
)

// EventCap bounds the diagnostic 401 log; the oldest entries are evicted.
const EventCap = 50

const event401 = "auth_401"

// Markers is the durable key-value surface consumed by the gate and the
// session store. Implementations must be safe for concurrent use.
type Markers interface {
	LastRedirect() (time.Time, bool, error)
	SetLastRedirect(t time.Time) error
	ReturnPath() (string, bool, error)
	SetReturnPath(path string) error
	ClearReturnPath() error
	Record401(t time.Time) error
	Recent401s(limit int) ([]time.Time, error)
	Close() error
}

// Store is the SQLite-backed implementation of Markers.
type Store struct {
	db *sql.DB
}

var _ Markers = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS markers (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS auth_events (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	at   INTEGER NOT NULL
);
`

// Open opens (creating if needed) the marker database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open marker store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize marker store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM markers WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read marker %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO markers (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write marker %s: %w", key, err)
	}
	return nil
}

// LastRedirect returns the timestamp of the most recent login redirect.
func (s *Store) LastRedirect() (time.Time, bool, error) {
	raw, ok, err := s.get(KeyLastRedirect)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Treat a corrupt marker as absent rather than poisoning the gate.
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

// SetLastRedirect stamps the redirect-throttle marker.
func (s *Store) SetLastRedirect(t time.Time) error {
	return s.set(KeyLastRedirect, strconv.FormatInt(t.UnixMilli(), 10))
}

// ReturnPath returns the stored post-login return path, if any.
func (s *Store) ReturnPath() (string, bool, error) {
	return s.get(KeyReturnPath)
}

// SetReturnPath stores the path to land on after a successful login.
func (s *Store) SetReturnPath(path string) error {
	return s.set(KeyReturnPath, path)
}

// ClearReturnPath removes the stored return path.
func (s *Store) ClearReturnPath() error {
	if _, err := s.db.Exec(`DELETE FROM markers WHERE key = ?`, KeyReturnPath); err != nil {
		return fmt.Errorf("failed to clear return path: %w", err)
	}
	return nil
}

// Record401 appends a 401 observation to the diagnostic log, evicting the
// oldest entries beyond EventCap in the same transaction.
func (s *Store) Record401(t time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin 401 log transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO auth_events (kind, at) VALUES (?, ?)`, event401, t.UnixMilli()); err != nil {
		return fmt.Errorf("failed to record 401 event: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM auth_events WHERE kind = ? AND id NOT IN (
			SELECT id FROM auth_events WHERE kind = ? ORDER BY id DESC LIMIT ?
		)`, event401, event401, EventCap); err != nil {
		return fmt.Errorf("failed to evict old 401 events: %w", err)
	}
	return tx.Commit()
}

// Recent401s returns up to limit 401 timestamps, oldest first.
func (s *Store) Recent401s(limit int) ([]time.Time, error) {
	if limit <= 0 || limit > EventCap {
		limit = EventCap
	}
	rows, err := s.db.Query(
		`SELECT at FROM (
			SELECT id, at FROM auth_events WHERE kind = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, event401, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read 401 events: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, fmt.Errorf("failed to scan 401 event: %w", err)
		}
		out = append(out, time.UnixMilli(ms))
	}
	return out, rows.Err()
}
