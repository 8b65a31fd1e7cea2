// Package csrf owns the anti-forgery token lifecycle for a double-submit
// cookie scheme: the server sets a readable csrf_token cookie and expects its
// value echoed in the X-CSRF-Token header on every mutating request.
package csrf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/iFixRobots/sessiondawg/pkg/common"
	"github.com/iFixRobots/sessiondawg/pkg/logging"
	"github.com/iFixRobots/sessiondawg/pkg/reliability"
)

const (
	// CookieName is the readable double-submit cookie set by the server.
	CookieName = "csrf_token"
	// HeaderName carries the echoed token on mutating requests.
	HeaderName = "X-CSRF-Token"

	// DefaultFetchPath is a benign endpoint whose response sets the cookie.
	DefaultFetchPath = "/api/auth/csrf"

	maxSniffBytes = 4096
)

var (
	// ErrTokenAbsent means the cookie was still missing after a fetch attempt.
	ErrTokenAbsent = errors.New("csrf token absent after fetch")
	// ErrRejected means the server rejected a mutating request for a bad or
	// missing token even after the one-shot refresh and resend.
	ErrRejected = errors.New("request rejected by csrf protection")
)

// Manager owns the token: reads it from the cookie jar, fetches one when
// absent, refreshes it after a rejection, and decorates outgoing requests.
type Manager struct {
	base      *url.URL
	client    *http.Client
	fetchPath string
	log       zerolog.Logger

	// Collapses concurrent token fetches into a single network call.
	group singleflight.Group
}

// NewManager builds a Manager for the service at baseURL. If client is nil a
// default client with fresh cookie jar and authentication-tuned timeouts is
// created; a non-nil client without a jar gets one.
func NewManager(baseURL string, client *http.Client, log zerolog.Logger) (*Manager, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute: %q", baseURL)
	}

	if client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		client = reliability.NewHTTPClient(jar, reliability.DefaultTimeouts())
	} else if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		client.Jar = jar
	}

	return &Manager{
		base:      base,
		client:    client,
		fetchPath: DefaultFetchPath,
		log:       log.With().Str("component", "csrf").Logger(),
	}, nil
}

// SetFetchPath overrides the endpoint used to make the server set the cookie.
func (m *Manager) SetFetchPath(path string) {
	if path != "" {
		m.fetchPath = path
	}
}

// URL resolves a path against the service base URL.
func (m *Manager) URL(path string) string {
	ref := &url.URL{Path: path}
	return m.base.ResolveReference(ref).String()
}

// IsMutating reports whether the method requires the anti-forgery header.
func IsMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Token returns the current cookie-sourced token, if present.
func (m *Manager) Token() (string, bool) {
	for _, c := range m.client.Jar.Cookies(m.base) {
		if c.Name == CookieName && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

// EnsureToken returns the cached token or performs one benign GET expected to
// make the server set the cookie. Concurrent callers share a single fetch.
func (m *Manager) EnsureToken(ctx context.Context) (string, error) {
	if tok, ok := m.Token(); ok {
		return tok, nil
	}
	return m.fetchShared(ctx)
}

// Refresh clears the client-side cookie and fetches a new token. Use only
// after a rejection; a healthy token must never be discarded speculatively.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.clearCookie()
	return m.fetchShared(ctx)
}

func (m *Manager) fetchShared(ctx context.Context) (string, error) {
	v, err, _ := m.group.Do("fetch", func() (any, error) {
		return m.fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL(m.fetchPath), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token fetch request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token fetch failed: %w", err)
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxSniffBytes))
	resp.Body.Close()

	tok, ok := m.Token()
	if !ok {
		m.log.Warn().Int("status", resp.StatusCode).Msg("Server did not set csrf cookie")
		return "", ErrTokenAbsent
	}
	m.log.Debug().Str("token", logging.MaskToken(tok)).Msg("Obtained csrf token")
	return tok, nil
}

func (m *Manager) clearCookie() {
	m.client.Jar.SetCookies(m.base, []*http.Cookie{{
		Name:   CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	}})
}

// Decorate attaches the anti-forgery header to mutating requests. Safe
// methods are left untouched. A missing token is logged and tolerated; the
// server's rejection then drives the recovery path in SendWithRetry.
func (m *Manager) Decorate(ctx context.Context, req *http.Request) {
	if !IsMutating(req.Method) {
		return
	}
	tok, err := m.EnsureToken(ctx)
	if err != nil {
		m.log.Warn().Err(err).Str("method", req.Method).Msg("Dispatching mutating request without csrf token")
		return
	}
	req.Header.Set(HeaderName, tok)
}

// SendWithRetry decorates and sends the request. If the response is a
// CSRF-marked 403, the token is refreshed and the request resent exactly
// once; a second rejection propagates ErrRejected. At most two network calls
// are made per logical request.
func (m *Manager) SendWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	reqID := common.NewRequestID()
	log := m.log.With().Str("request_id", reqID).Str("method", req.Method).Logger()

	// A body without GetBody cannot be replayed, so the retry path is
	// unavailable for it.
	canReplay := req.Body == nil || req.GetBody != nil

	m.Decorate(ctx, req)
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	if !IsMutating(req.Method) || !canReplay {
		return resp, nil
	}
	rejected, snippet := isCsrfRejection(resp)
	if !rejected {
		return resp, nil
	}
	resp.Body.Close()

	log.Info().
		Str("body", logging.BoundAndClean(logging.RedactCookies(string(snippet)), 160)).
		Msg("Mutating request rejected by csrf protection, refreshing token")
	if _, err := m.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("%w: token refresh failed: %w", ErrRejected, err)
	}

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to rebuild request body: %w", ErrRejected, err)
		}
		retry.Body = body
	}
	retry.Header.Del(HeaderName)
	m.Decorate(ctx, retry)

	resp, err = m.client.Do(retry)
	if err != nil {
		return nil, err
	}
	if rejected, snippet := isCsrfRejection(resp); rejected {
		resp.Body.Close()
		log.Warn().
			Str("body_size", logging.SummarizeBody(snippet)).
			Msg("Retry after token refresh was rejected again")
		return nil, ErrRejected
	}
	return resp, nil
}

// isCsrfRejection sniffs a 403 body for a CSRF marker. The consumed bytes
// are restored so callers can still read the body; the sniffed snippet is
// returned for sanitized logging.
func isCsrfRejection(resp *http.Response) (bool, []byte) {
	if resp.StatusCode != http.StatusForbidden {
		return false, nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSniffBytes))
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return false, nil
	}
	return bodyMarksCsrf(data), data
}

func bodyMarksCsrf(data []byte) bool {
	for _, field := range []string{"error", "code", "message"} {
		if v := gjson.GetBytes(data, field); v.Exists() &&
			strings.Contains(strings.ToLower(v.String()), "csrf") {
			return true
		}
	}
	return strings.Contains(strings.ToLower(string(data)), "csrf")
}
