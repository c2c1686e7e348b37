package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newTestLimiter(cfg RateLimitConfig, start time.Time) (*Limiter, *time.Time) {
	l := NewLimiter(cfg)
	now := start
	l.now = func() time.Time { return now }
	return l, &now
}

func serve(h http.Handler, remoteAddr string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/create-payment-intent", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := serve(handler, "192.168.1.1:12345", nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:9999", nil).Code)
	}

	w := serve(handler, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.JSONEq(t,
		`{"success":false,"error":"Too many requests, please try again later","code":"RATE_LIMITED"}`,
		w.Body.String())
}

func TestRateLimit_DifferentIPs(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.2:1234", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, "10.0.0.1:5678", nil).Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-Session-ID")
		},
	})(okHandler())

	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:1", map[string]string{"X-Session-ID": "a"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, "10.0.0.2:1", map[string]string{"X-Session-ID": "a"}).Code)
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:1", map[string]string{"X-Session-ID": "b"}).Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())
	xff := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}

	assert.Equal(t, http.StatusOK, serve(handler, "192.168.1.1:4444", xff).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, "192.168.1.2:5555", xff).Code)
}

func TestLimiter_SlidingWindow(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l, now := newTestLimiter(RateLimitConfig{Max: 10, Window: time.Minute}, start)

	for range 10 {
		_, _, ok := l.Allow("k")
		require.True(t, ok)
	}
	_, _, ok := l.Allow("k")
	require.False(t, ok)

	// Halfway into the next window half of the previous count still weighs.
	*now = start.Add(90 * time.Second)
	allowed := 0
	for range 10 {
		if _, _, ok := l.Allow("k"); ok {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)

	// Two windows later everything is forgotten.
	*now = start.Add(3 * time.Minute)
	remaining, resetAt, ok := l.Allow("k")
	require.True(t, ok)
	assert.Equal(t, 9, remaining)
	assert.Equal(t, start.Add(4*time.Minute), resetAt)
}

func TestLimiter_Cleanup(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l, now := newTestLimiter(RateLimitConfig{Max: 1, Window: time.Minute}, start)

	l.Allow("a")
	*now = start.Add(90 * time.Second)
	l.Allow("b")

	*now = start.Add(2 * time.Minute)
	l.Cleanup()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.entries, "a")
	assert.Contains(t, l.entries, "b")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{name: "RemoteAddr", remote: "10.0.0.1:1234", want: "10.0.0.1"},
		{name: "NoPort", remote: "10.0.0.1", want: "10.0.0.1"},
		{name: "ForwardedFirst", remote: "10.0.0.1:1", header: map[string]string{"X-Forwarded-For": " 203.0.113.50 , 70.41.3.18"}, want: "203.0.113.50"},
		{name: "ForwardedSingle", remote: "10.0.0.1:1", header: map[string]string{"X-Forwarded-For": "203.0.113.7"}, want: "203.0.113.7"},
		{name: "RealIP", remote: "10.0.0.1:1", header: map[string]string{"X-Real-IP": "198.51.100.2"}, want: "198.51.100.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
