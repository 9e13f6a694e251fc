package server

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"fiberqc/internal/logger"
)

func TestGzipMiddleware(t *testing.T) {
	handler := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("Hello World"))
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Error("Expected Content-Encoding: gzip")
	}

	// Verify body is gzipped
	gr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("Failed to create gzip reader: %v", err)
	}
	defer gr.Close()

	body, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("Failed to read gzip body: %v", err)
	}

	if string(body) != "Hello World" {
		t.Errorf("Expected 'Hello World', got '%s'", string(body))
	}
}

func TestGzipMiddleware_ErrorResponse(t *testing.T) {
	// Simulate http.Error behavior: WriteHeader then Write
	handler := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Error("Expected Content-Encoding: gzip even for error responses")
	}
}

func TestGzipMiddleware_ErrorResponse_RealServer(t *testing.T) {
	handler := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	}))

	srv := httptest.NewServer(handler)
	defer srv.Close()

	req, _ := http.NewRequest("GET", srv.URL, nil)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}

	if resp.Header.Get("Content-Encoding") != "gzip" {
		t.Error("Expected Content-Encoding: gzip")
	}
}

func TestGzipMiddleware_NoGzipAccept(t *testing.T) {
	handler := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Hello World"))
	}))

	req := httptest.NewRequest("GET", "/", nil)
	// No Accept-Encoding header
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") == "gzip" {
		t.Error("Expected no Content-Encoding: gzip")
	}

	if w.Body.String() != "Hello World" {
		t.Errorf("Expected 'Hello World', got '%s'", w.Body.String())
	}
}

func TestGzipMiddleware_SkipsUpgrade(t *testing.T) {
	handler := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := w.(http.Hijacker)
		if !ok {
			t.Error("Expected the original writer for an upgrade request")
		}
	}))

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Upgrade", "websocket")
	w := httptest.NewRecorder()
	handler.ServeHTTP(&hijackRecorder{w}, req)

	if w.Header().Get("Content-Encoding") == "gzip" {
		t.Error("Expected no Content-Encoding for an upgrade request")
	}
}

type hijackRecorder struct{ *httptest.ResponseRecorder }

func (hijackRecorder) Hijack() (conn net.Conn, rw *bufio.ReadWriter, err error) { return }

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	require.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", seen)
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := LoggingMiddleware(logger.FromZap(zap.New(core)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/cables", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/api/cables", fields["path"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	handler := CORS("http://plant.local")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/api/cables", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, called)
	assert.Equal(t, "http://plant.local", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecover(t *testing.T) {
	handler := Recover(logger.Nop(), false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"error": "Internal server error"}, body)

	handler = Recover(logger.Nop(), true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "panic: boom", body["message"])
}

func TestRequireAPIKey(t *testing.T) {
	hash, err := HashAPIKey("s3cret")
	require.NoError(t, err)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	handler := RequireAPIKey([]string{hash})(ok)

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"reads are open", "GET", "/api/cables", "", http.StatusNoContent},
		{"write without key", "POST", "/api/cables", "", http.StatusUnauthorized},
		{"write with wrong key", "POST", "/api/cables", "Bearer nope", http.StatusUnauthorized},
		{"write with key", "POST", "/api/cables", "Bearer s3cret", http.StatusNoContent},
		{"non api path", "POST", "/ws", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	_, err = HashAPIKey(" ")
	assert.Error(t, err)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter()
	handler := RateLimitMiddleware(rl, 2, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/api/bare-fibers", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, http.StatusTooManyRequests}, codes)

	// Reads and other clients are not limited.
	req := httptest.NewRequest("GET", "/api/bare-fibers", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("POST", "/api/bare-fibers", nil)
	req.RemoteAddr = "10.0.0.8:5555"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	rl.Reset()
	req = httptest.NewRequest("POST", "/api/bare-fibers", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware_ForwardedHeaders(t *testing.T) {
	post := func(h http.Handler, remote, forwarded string) int {
		req := httptest.NewRequest("POST", "/api/cables", nil)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", forwarded)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	// Without trusted proxies, rotating the header does not reset the limit.
	h := RateLimitMiddleware(NewRateLimiter(), 1, nil)(ok)
	assert.Equal(t, http.StatusOK, post(h, "203.0.113.9:4000", "1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, post(h, "203.0.113.9:4000", "2.2.2.2"))

	// Behind a trusted proxy, the forwarded client is the key.
	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	h = RateLimitMiddleware(NewRateLimiter(), 1, proxies)(ok)
	assert.Equal(t, http.StatusOK, post(h, "10.1.2.3:4000", "1.1.1.1"))
	assert.Equal(t, http.StatusOK, post(h, "10.1.2.3:4000", "2.2.2.2"))
	assert.Equal(t, http.StatusTooManyRequests, post(h, "10.1.2.3:4000", "1.1.1.1, 10.1.2.3"))
}

func TestClientIP(t *testing.T) {
	proxies := []netip.Prefix{netip.MustParsePrefix("127.0.0.1/32")}
	tests := []struct {
		name    string
		remote  string
		realIP  string
		trusted []netip.Prefix
		want    string
	}{
		{"untrusted peer ignores header", "198.51.100.4:80", "1.2.3.4", nil, "198.51.100.4"},
		{"trusted peer uses header", "127.0.0.1:80", "1.2.3.4", proxies, "1.2.3.4"},
		{"trusted peer without header", "127.0.0.1:80", "", proxies, "127.0.0.1"},
		{"peer outside trusted set", "198.51.100.4:80", "1.2.3.4", proxies, "198.51.100.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, clientIP(req, tt.trusted))
		})
	}
}
