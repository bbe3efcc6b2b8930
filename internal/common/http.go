package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller's address for per-client limits. Forwarding
// headers are not read here: chi's RealIP middleware runs first and rewrites
// RemoteAddr from True-Client-IP, X-Real-IP or X-Forwarded-For, so a
// request that skipped it cannot spoof its key.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	// RealIP stores a bare address without a port; IPv6 may be bracketed.
	return strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
}
