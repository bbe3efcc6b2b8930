package security

import (
	"net/http"
	"strconv"
	"time"
)

// Headers sets response headers for the storefront API. Cart and checkout
// payloads are per-session state and must never be cached by intermediaries.
type Headers struct {
	// HSTS is only sent on TLS requests.
	HSTS       bool
	HSTSMaxAge time.Duration
}

// Middleware attaches the headers to each response.
func (h Headers) Middleware(next http.Handler) http.Handler {
	hsts := ""
	if h.HSTS {
		maxAge := h.HSTSMaxAge
		if maxAge <= 0 {
			maxAge = 365 * 24 * time.Hour
		}
		hsts = "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Cache-Control", "no-store")
		if hsts != "" && r.TLS != nil {
			headers.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}
