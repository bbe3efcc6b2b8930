package common_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/common"
)

func clientIPBehindRealIP(req *http.Request) string {
	var got string
	middleware.RealIP(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = common.ClientIP(r)
	})).ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestClientIPStripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, "10.0.0.1", common.ClientIP(req))

	req.RemoteAddr = "[2001:db8::1]:443"
	require.Equal(t, "2001:db8::1", common.ClientIP(req))
}

func TestClientIPUsesRealIPRewrite(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	require.Equal(t, "203.0.113.7", clientIPBehindRealIP(req))
}

func TestClientIPIgnoresHeadersWithoutRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	req.Header.Set("X-Real-IP", "198.51.100.2")
	require.Equal(t, "10.0.0.1", common.ClientIP(req))
}
