package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func serve(h Headers, req *http.Request) *httptest.ResponseRecorder {
	handler := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHeadersMiddlewareSetsSecurityHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://shop.example/api/v1/cart", nil)
	req.TLS = &tls.ConnectionState{}

	rr := serve(Headers{HSTS: true, HSTSMaxAge: time.Hour}, req)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	require.Equal(t, "max-age=3600", rr.Header().Get("Strict-Transport-Security"))
}

func TestHeadersSkipsHSTSWithoutTLS(t *testing.T) {
	rr := serve(Headers{HSTS: true}, httptest.NewRequest(http.MethodGet, "http://shop.example/api/v1/cart", nil))
	require.Empty(t, rr.Header().Get("Strict-Transport-Security"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}
