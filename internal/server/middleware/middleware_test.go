package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuth(t *testing.T) {
	h := Auth("k", "/api/health")(ok)

	tests := []struct {
		name   string
		path   string
		header [2]string
		want   int
	}{
		{"public path", "/api/health", [2]string{}, http.StatusOK},
		{"missing token", "/api/status", [2]string{}, http.StatusUnauthorized},
		{"bearer", "/api/status", [2]string{"Authorization", "Bearer k"}, http.StatusOK},
		{"api key header", "/api/status", [2]string{"X-API-Key", "k"}, http.StatusOK},
		{"query", "/ws?api_key=k", [2]string{}, http.StatusOK},
		{"wrong token", "/api/status", [2]string{"X-API-Key", "nope"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header[0] != "" {
				req.Header.Set(tt.header[0], tt.header[1])
			}
			assert.Equal(t, tt.want, serve(h, req).Code)
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	rec := serve(Auth("")(ok), httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://dash.example"})(ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://dash.example")
	rec := serve(h, req)
	assert.Equal(t, "https://dash.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = serve(h, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(h, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(1, 2)(ok)

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		codes[i] = serve(h, req).Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	assert.Equal(t, http.StatusOK, serve(h, req).Code)
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimit(0, 0)(ok)
	for range 10 {
		assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}

func TestClientLimitersForgetIdleClients(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newClientLimiters(1, 1, time.Minute)
	c.now = func() time.Time { return now }

	c.get("a")
	now = now.Add(2 * time.Minute)
	c.get("b")
	assert.Len(t, c.clients, 1)
	_, ok := c.clients["b"]
	assert.True(t, ok)
}

func TestExtractClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", extractClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", extractClientIP(req))
}

func TestLoggingCapturesStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("tea"))
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/brew", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"bytes":3`)
	assert.Contains(t, buf.String(), `"path":"/brew"`)
}

func TestLoggingRequestID(t *testing.T) {
	h := Logging(slog.New(slog.NewTextHandler(io.Discard, nil)))(ok)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	assert.Equal(t, "abc", serve(h, req).Header().Get(RequestIDHeader))
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, requestLevel("/api/health", http.StatusOK))
	assert.Equal(t, slog.LevelError, requestLevel("/api/health", http.StatusServiceUnavailable))
	assert.Equal(t, slog.LevelInfo, requestLevel("/api/status", http.StatusNotFound))
}

func TestAuthErrorBody(t *testing.T) {
	rec := serve(Auth("k")(ok), httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.JSONEq(t, `{"error":"missing authentication token"}`, rec.Body.String())
}
