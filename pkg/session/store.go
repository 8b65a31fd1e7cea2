// Package session holds the authoritative in-memory record of the current
// authentication status, refreshed on demand by a deduplicated probe.
package session

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/iFixRobots/sessiondawg/pkg/csrf"
	"github.com/iFixRobots/sessiondawg/pkg/markerstore"
	"github.com/iFixRobots/sessiondawg/pkg/reliability"
)

// DefaultProbePath is the authentication probe endpoint. Safe method, so no
// anti-forgery header is attached.
const DefaultProbePath = "/api/auth/user"

const maxProbeBody = 64 * 1024

// UserRef identifies the authenticated user as reported by the probe.
type UserRef struct {
	ID    string
	Name  string
	Email string
}

// State is the last resolved authentication status. Authenticated is only
// meaningful once Checked is true.
type State struct {
	Checked       bool
	Authenticated bool
	Loading       bool
	User          *UserRef
	LastError     reliability.ErrorKind
}

// Store owns the session state. It consults the breaker before every probe,
// collapses concurrent CheckAuth calls into one network request, and records
// 401 observations in the marker store for diagnostics.
type Store struct {
	breaker   *reliability.Breaker
	tokens    *csrf.Manager
	markers   markerstore.Markers
	probePath string
	log       zerolog.Logger

	group singleflight.Group

	mu    sync.Mutex
	state State
	// gen invalidates in-flight probe results: a probe started before an
	// Invalidate must not overwrite the state written after it.
	gen uint64
}

// NewStore creates a session store in the initial unresolved state.
func NewStore(breaker *reliability.Breaker, tokens *csrf.Manager, markers markerstore.Markers, log zerolog.Logger) *Store {
	return &Store{
		breaker:   breaker,
		tokens:    tokens,
		markers:   markers,
		probePath: DefaultProbePath,
		log:       log.With().Str("component", "session").Logger(),
		state:     State{Loading: true},
	}
}

// SetProbePath overrides the authentication probe endpoint.
func (s *Store) SetProbePath(path string) {
	if path != "" {
		s.probePath = path
	}
}

// GetState returns a snapshot of the last resolved state. Never blocks on
// the network.
func (s *Store) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Invalidate resets to the unresolved state and closes the breaker. Used on
// explicit logout. Any probe still in flight is abandoned: its resolution
// will fail the generation check and be discarded.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.gen++
	s.state = State{Loading: true}
	s.mu.Unlock()
	s.breaker.Reset()
	s.log.Info().Msg("Session state invalidated")
}

// checkResult pairs the resolved state with the error CheckAuth reports.
type checkResult struct {
	state State
	err   error
}

// CheckAuth resolves the current authentication status. If the breaker
// refuses the probe it resolves immediately, without any network call, to an
// unauthenticated state carrying the circuit-open error kind, which is not
// an authentication verdict and must not trigger a login redirect.
//
// Concurrent callers share one in-flight probe and observe the same result.
func (s *Store) CheckAuth(ctx context.Context) (State, error) {
	v, _, shared := s.group.Do("probe", func() (any, error) {
		s.mu.Lock()
		startGen := s.gen
		s.mu.Unlock()

		// The breaker is consulted inside the flight: a caller arriving while
		// the single half-open probe is pending joins that probe instead of
		// resolving to a circuit-open state behind its back.
		if !s.breaker.AllowProbe() {
			st := State{Checked: true, Authenticated: false, LastError: reliability.ErrorCircuitOpen}
			s.commit(st, startGen)
			s.log.Debug().Msg("Probe refused by circuit breaker")
			return checkResult{state: st, err: reliability.ErrCircuitOpen}, nil
		}

		// The probe outlives any single caller: one view unmounting must not
		// cancel the check other mounted views are waiting on. The HTTP
		// client's own timeout bounds it.
		st := s.probe(context.WithoutCancel(ctx), startGen)
		return checkResult{state: st}, nil
	})
	res := v.(checkResult)
	if shared {
		s.log.Debug().Msg("Joined in-flight authentication probe")
	}
	return res.state, res.err
}

func (s *Store) probe(ctx context.Context, startGen uint64) State {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.tokens.URL(s.probePath), nil)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to build authentication probe")
		return s.fail(reliability.ErrorNetwork, startGen)
	}

	resp, err := s.tokens.SendWithRetry(ctx, req)
	if err != nil {
		if reliability.IsTransient(err) {
			s.log.Warn().Err(err).Msg("Authentication probe failed (transient)")
		} else {
			s.log.Error().Err(err).Msg("Authentication probe failed")
		}
		return s.fail(reliability.ClassifyTransportError(err), startGen)
	}
	defer resp.Body.Close()

	switch kind := reliability.ClassifyStatus(resp.StatusCode); kind {
	case reliability.ErrorNone:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
		if err != nil {
			return s.fail(reliability.ErrorNetwork, startGen)
		}
		user, ok := parseUser(body)
		if !ok {
			s.log.Warn().Int("status", resp.StatusCode).Msg("Probe succeeded but payload carried no user")
			return s.fail(reliability.ErrorNetwork, startGen)
		}
		s.breaker.RecordSuccess()
		st := State{Checked: true, Authenticated: true, User: user}
		s.commit(st, startGen)
		s.log.Debug().Str("user_id", user.ID).Msg("Authentication probe succeeded")
		return st

	case reliability.ErrorUnauthorized:
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBody))
		s.breaker.RecordFailure()
		if err := s.markers.Record401(time.Now()); err != nil {
			s.log.Warn().Err(err).Msg("Failed to record 401 event")
		}
		st := State{Checked: true, Authenticated: false, LastError: reliability.ErrorUnauthorized}
		s.commit(st, startGen)
		// Expected outcome for a signed-out session, so no error level.
		s.log.Debug().Msg("Authentication probe returned 401")
		return st

	default:
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBody))
		s.log.Warn().Int("status", resp.StatusCode).Msg("Authentication probe returned unexpected status")
		return s.fail(reliability.ErrorNetwork, startGen)
	}
}

func (s *Store) fail(kind reliability.ErrorKind, startGen uint64) State {
	s.breaker.RecordFailure()
	st := State{Checked: true, Authenticated: false, LastError: kind}
	s.commit(st, startGen)
	return st
}

// commit writes the state unless it was invalidated while the probe was in
// flight; a stale resolution must never overwrite a newer write.
func (s *Store) commit(st State, startGen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != startGen {
		return
	}
	s.state = st
}

func parseUser(body []byte) (*UserRef, bool) {
	doc := gjson.ParseBytes(body)
	// Accept either a bare user object or one nested under "user".
	if u := doc.Get("user"); u.Exists() {
		doc = u
	}
	id := doc.Get("id").String()
	if id == "" {
		return nil, false
	}
	return &UserRef{
		ID:    id,
		Name:  doc.Get("name").String(),
		Email: doc.Get("email").String(),
	}, true
}
