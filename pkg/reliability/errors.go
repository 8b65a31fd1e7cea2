package reliability

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrorKind categorizes authentication-layer failures for handling strategies.
// The zero value means no error.
type ErrorKind string

const (
	ErrorNone ErrorKind = ""

	// ErrorUnauthorized: the probe returned 401. Expected, not a fault.
	ErrorUnauthorized ErrorKind = "unauthorized"

	// ErrorCsrfRejected: a mutating request was rejected for a bad or missing
	// anti-forgery token and local recovery did not help.
	ErrorCsrfRejected ErrorKind = "csrf_rejected"

	// ErrorCircuitOpen: the breaker refused the probe. Not an authentication
	// verdict; consumers must not redirect to login because of it.
	ErrorCircuitOpen ErrorKind = "circuit_open"

	// ErrorNetwork: transport failure or 5xx. Counts toward the breaker.
	ErrorNetwork ErrorKind = "network_error"
)

// String returns the kind's wire name, or "none" for the zero value.
func (k ErrorKind) String() string {
	if k == ErrorNone {
		return "none"
	}
	return string(k)
}

// ClassifyStatus maps an HTTP status from an authentication probe to an
// error kind. 2xx maps to ErrorNone.
func ClassifyStatus(code int) ErrorKind {
	switch {
	case code >= 200 && code < 300:
		return ErrorNone
	case code == http.StatusUnauthorized:
		return ErrorUnauthorized
	default:
		return ErrorNetwork
	}
}

// ClassifyTransportError maps a transport-level error to an error kind.
func ClassifyTransportError(err error) ErrorKind {
	if err == nil {
		return ErrorNone
	}
	if errors.Is(err, ErrCircuitOpen) {
		return ErrorCircuitOpen
	}
	return ErrorNetwork
}

// IsTransient reports whether an error looks like a connectivity blip rather
// than a persistent fault. Used to pick log levels, never to bypass the
// breaker's own failure accounting.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"network unreachable",
		"host unreachable",
		"no such host",
		"i/o timeout",
		"broken pipe",
		"use of closed network connection",
		"unexpected eof",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
