package reliability

import (
	"net"
	"net/http"
	"time"
)

// TimeoutConfig holds timeout settings for the HTTP transport.
type TimeoutConfig struct {
	Connect        time.Duration
	TLSHandshake   time.Duration
	ResponseHeader time.Duration
	Idle           time.Duration
	Total          time.Duration
}

// DefaultTimeouts returns sensible default timeouts for authentication
// traffic: probes must fail fast so the breaker sees outcomes promptly.
func DefaultTimeouts() TimeoutConfig {
	return TimeoutConfig{
		Connect:        10 * time.Second,
		TLSHandshake:   10 * time.Second,
		ResponseHeader: 15 * time.Second,
		Idle:           90 * time.Second,
		Total:          30 * time.Second,
	}
}

// NewHTTPClient builds an *http.Client with the given cookie jar and
// timeouts applied at each transport stage.
func NewHTTPClient(jar http.CookieJar, cfg TimeoutConfig) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.Connect,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.TLSHandshake,
		ResponseHeaderTimeout: cfg.ResponseHeader,
		IdleConnTimeout:       cfg.Idle,
		MaxIdleConns:          10,
	}
	return &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   cfg.Total,
	}
}
