package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"channeld/pkg/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestPerimeterCORS(t *testing.T) {
	var cfg config.SecurityConfig
	cfg.CORS.AllowedOrigins = []string{"https://app.example.com"}
	h := PerimeterMiddleware(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/channels", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	// unlisted origins get no CORS headers
	req = httptest.NewRequest(http.MethodGet, "/v1/channels", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	// preflight is answered at the perimeter
	req = httptest.NewRequest(http.MethodOptions, "/v1/channels", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestPerimeterIPWhitelist(t *testing.T) {
	var cfg config.SecurityConfig
	cfg.IPWhitelist = []string{"10.1.2.3"}
	h := PerimeterMiddleware(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/channels", nil)
	req.RemoteAddr = "10.1.2.3:55000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/channels", nil)
	req.RemoteAddr = "192.168.0.9:55000"
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestPerimeterRateLimit(t *testing.T) {
	var cfg config.SecurityConfig
	cfg.RateLimit.RPS = 1
	cfg.RateLimit.Burst = 2
	h := PerimeterMiddleware(cfg)(okHandler())

	limited := false
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/channels", nil)
		req.RemoteAddr = "10.0.0.7:41000"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	require.True(t, limited)

	// health probes bypass the limiter entirely
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.0.0.7:41000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}
