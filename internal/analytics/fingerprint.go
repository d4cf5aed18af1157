// Package analytics implements the view-tracking engine: client
// fingerprint derivation, the dedup sliding-bucket composite key,
// merge-insert of view events, and day/hour aggregation anchored to
// Asia/Shanghai.
package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// ExtractIP derives the client's IP token in header-priority order:
// X-Real-IP, then the first RFC-7239-style `for=` token in
// X-Forwarded-For, else "unknown". The result is normalized (brackets and
// port stripped) before use; an unparseable token degrades to "unknown"
// silently rather than erroring.
func ExtractIP(r *http.Request) string {
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return normalizeIP(real)
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if tok := firstForwardedFor(xff); tok != "" {
			return normalizeIP(tok)
		}
	}
	return "unknown"
}

// firstForwardedFor returns the first comma-separated token of an
// X-Forwarded-For header, which may itself be in RFC 7239 `for=` form
// (e.g. `for="[2001:db8::1]:1234"`) or plain (e.g. `203.0.113.9`).
func firstForwardedFor(xff string) string {
	parts := strings.Split(xff, ",")
	if len(parts) == 0 {
		return ""
	}
	tok := strings.TrimSpace(parts[0])
	if idx := strings.Index(strings.ToLower(tok), "for="); idx >= 0 {
		tok = tok[idx+len("for="):]
	}
	return strings.Trim(tok, `"`)
}

// normalizeIP strips surrounding brackets and a trailing port from an
// IPv4 or IPv6 address token, returning "unknown" for anything that does
// not parse as an IP.
func normalizeIP(tok string) string {
	tok = strings.TrimSpace(tok)

	if strings.HasPrefix(tok, "[") {
		// Bracketed IPv6, optionally with a port: [::1]:8080
		if end := strings.Index(tok, "]"); end >= 0 {
			host := tok[1:end]
			if ip := net.ParseIP(host); ip != nil {
				return strings.ToLower(ip.String())
			}
			return "unknown"
		}
		return "unknown"
	}

	if ip := net.ParseIP(tok); ip != nil {
		return strings.ToLower(ip.String())
	}

	// host:port form (IPv4 only; bracket-less IPv6 is ambiguous with a
	// trailing :port and is handled by the bracketed branch above).
	if host, _, err := net.SplitHostPort(tok); err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return strings.ToLower(ip.String())
		}
	}

	return "unknown"
}

// Fingerprint is the pseudonymous actor id:
// sha256(lowercase(ip_token) || "|" || user_agent), hex-encoded.
func Fingerprint(ipToken, userAgent string) string {
	h := sha256.Sum256([]byte(strings.ToLower(ipToken) + "|" + userAgent))
	return hex.EncodeToString(h[:])
}

// FingerprintFromRequest is the HTTP-surface convenience wrapper.
func FingerprintFromRequest(r *http.Request) string {
	return Fingerprint(ExtractIP(r), r.UserAgent())
}
