// Package gate renders the authorization decision for protected routes by
// combining session state, the navigation guard, and the persisted redirect
// throttle.
package gate

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iFixRobots/sessiondawg/pkg/markerstore"
	"github.com/iFixRobots/sessiondawg/pkg/navguard"
	"github.com/iFixRobots/sessiondawg/pkg/reliability"
	"github.com/iFixRobots/sessiondawg/pkg/session"
)

// Decision is the rendering verdict for a protected route.
type Decision int

const (
	// ShowLoader renders a neutral loading affordance. Used for every
	// indeterminate condition; protected content must never flash before the
	// decision resolves.
	ShowLoader Decision = iota
	// Render shows the protected content.
	Render
	// RedirectToLogin sends the user to the login flow.
	RedirectToLogin
)

// String returns the human-readable name for the decision.
func (d Decision) String() string {
	switch d {
	case ShowLoader:
		return "show_loader"
	case Render:
		return "render"
	case RedirectToLogin:
		return "redirect_to_login"
	default:
		return "unknown"
	}
}

// Outcome carries the decision plus the redirect target when applicable.
type Outcome struct {
	Decision   Decision
	RedirectTo string
}

const (
	// DefaultThrottle is the minimum spacing between login redirects. The
	// persisted timestamp makes it hold across full restarts.
	DefaultThrottle = 3 * time.Second

	// DefaultLoginPath is where unauthenticated users are sent.
	DefaultLoginPath = "/login"

	// DefaultNoStorePath is the post-login landing page. Storing it as a
	// return path would send freshly logged-in users straight back into the
	// redirect machinery, so it is never recorded.
	DefaultNoStorePath = "/private"
)

// Gate evaluates the authorization decision for protected routes.
type Gate struct {
	session  *session.Store
	guard    *navguard.Guard
	markers  markerstore.Markers
	throttle time.Duration

	loginPath   string
	noStorePath string

	log zerolog.Logger
	now func() time.Time
}

// New builds a gate with default throttle and paths. Override via the
// setters before first use.
func New(store *session.Store, guard *navguard.Guard, markers markerstore.Markers, log zerolog.Logger) *Gate {
	return &Gate{
		session:     store,
		guard:       guard,
		markers:     markers,
		throttle:    DefaultThrottle,
		loginPath:   DefaultLoginPath,
		noStorePath: DefaultNoStorePath,
		log:         log.With().Str("component", "gate").Logger(),
		now:         time.Now,
	}
}

// SetThrottle overrides the redirect throttle window.
func (g *Gate) SetThrottle(d time.Duration) {
	if d > 0 {
		g.throttle = d
	}
}

// SetPaths overrides the login target and the no-store landing path.
func (g *Gate) SetPaths(login, noStore string) {
	if login != "" {
		g.loginPath = login
	}
	if noStore != "" {
		g.noStorePath = noStore
	}
}

// Evaluate renders the decision for the route at currentPath.
//
// The check ordering is deliberate and load-bearing: an open breaker and a
// fresh navigation transition each defer the redirect before the throttle is
// even consulted. Redirecting while either condition holds is how redirect
// loops happen.
func (g *Gate) Evaluate(ctx context.Context, currentPath string) Outcome {
	st := g.session.GetState()

	if !st.Checked || st.Loading {
		// Kick a probe; the session store deduplicates concurrent checks, so
		// many mounted gates still produce one network call.
		go func() {
			_, _ = g.session.CheckAuth(context.WithoutCancel(ctx))
		}()
		return Outcome{Decision: ShowLoader}
	}

	if st.Authenticated {
		return Outcome{Decision: Render}
	}

	if st.LastError == reliability.ErrorCircuitOpen {
		// Not an authentication verdict; wait for the breaker.
		return Outcome{Decision: ShowLoader}
	}

	if g.guard.ShouldSuppressRedirect() {
		g.log.Debug().Str("path", currentPath).Msg("Redirect deferred: navigation transition in progress")
		return Outcome{Decision: ShowLoader}
	}

	if g.redirectThrottled() {
		g.log.Debug().Str("path", currentPath).Msg("Redirect deferred: throttle window active")
		return Outcome{Decision: ShowLoader}
	}

	g.recordRedirect(currentPath)
	return Outcome{Decision: RedirectToLogin, RedirectTo: g.loginPath}
}

// redirectThrottled reports whether a redirect fired within the throttle
// window. A marker read failure counts as throttled: when in doubt, defer,
// since a delayed redirect recovers and a redirect loop does not.
func (g *Gate) redirectThrottled() bool {
	last, ok, err := g.markers.LastRedirect()
	if err != nil {
		g.log.Warn().Err(err).Msg("Failed to read redirect marker, deferring redirect")
		return true
	}
	if !ok {
		return false
	}
	return g.now().Sub(last) < g.throttle
}

func (g *Gate) recordRedirect(currentPath string) {
	if err := g.markers.SetLastRedirect(g.now()); err != nil {
		g.log.Warn().Err(err).Msg("Failed to stamp redirect marker")
	}
	if currentPath != "" && currentPath != g.noStorePath {
		if err := g.markers.SetReturnPath(currentPath); err != nil {
			g.log.Warn().Err(err).Msg("Failed to store return path")
		}
	}
	g.log.Info().Str("path", currentPath).Str("login", g.loginPath).Msg("Redirecting to login")
}
