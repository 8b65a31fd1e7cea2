package logging

import (
	"regexp"
	"strings"
)

// Basic helpers usable across packages for sanitizing log values.

// MaskToken hides the middle of a token, keeping just enough of the ends to
// correlate log lines without disclosing the value.
func MaskToken(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-6) + s[len(s)-2:]
}

var cookieValueRE = regexp.MustCompile(`(?i)(csrf_token|session[a-z_]*)=([^;\s]+)`)

// RedactCookies masks cookie values in arbitrary strings (headers, error
// messages) before they reach the log.
func RedactCookies(s string) string {
	return cookieValueRE.ReplaceAllStringFunc(s, func(m string) string {
		eq := strings.IndexByte(m, '=')
		if eq < 0 {
			return m
		}
		return m[:eq+1] + MaskToken(m[eq+1:])
	})
}

// SummarizeBody reports only the size of a response body.
func SummarizeBody(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return "bytes=" + itoa(len(data))
}

// Minimal integer to string to avoid fmt in hot path.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := false
	if n < 0 {
		neg = true
		n = -n
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}

// BoundAndClean trims control characters and bounds the length of arbitrary strings for safe logging.
func BoundAndClean(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 32 || r == 127 {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if maxLen > 0 && len(out) > maxLen {
		// Ensure we don't cut in the middle of a UTF-8 sequence
		cut := maxLen
		for cut > 0 && cut < len(out) {
			if (out[cut] & 0x80) == 0 { // ASCII character
				break
			}
			if (out[cut] & 0xC0) == 0xC0 { // Start of UTF-8 sequence
				break
			}
			cut--
		}
		if cut <= 0 {
			cut = maxLen
		}
		return out[:cut]
	}
	return out
}
