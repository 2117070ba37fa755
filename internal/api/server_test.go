package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crypto-calls-dashboard/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestRateLimiterAllow(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("/api/v1/trade-calls") {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}
	if limiter.Allow("/api/v1/trade-calls") {
		t.Error("Fourth request should be rejected")
	}

	// Other endpoints have their own bucket.
	if !limiter.Allow("/api/v1/pricing") {
		t.Error("Different endpoint should not share the limit")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	limiter := NewRateLimiter(1, 10*time.Millisecond)

	if !limiter.Allow("key") {
		t.Fatal("First request should be allowed")
	}
	if limiter.Allow("key") {
		t.Fatal("Second request within window should be rejected")
	}

	time.Sleep(15 * time.Millisecond)

	if !limiter.Allow("key") {
		t.Error("Request after window expiry should be allowed")
	}
}

func TestManualResolveRouteRegistered(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hasResolveRoute := func(s *Server) bool {
		for _, r := range s.router.Routes() {
			if r.Method == http.MethodPost && r.Path == "/api/v1/trade-calls/resolve" {
				return true
			}
		}
		return false
	}

	open := &Server{
		router:      gin.New(),
		rateLimiter: NewRateLimiter(100, time.Minute),
		logger:      zerolog.Nop(),
	}
	open.setupRoutes()
	if !hasResolveRoute(open) {
		t.Error("Resolve route should be registered when auth is disabled")
	}

	guarded := &Server{
		router:      gin.New(),
		rateLimiter: NewRateLimiter(100, time.Minute),
		jwtManager:  auth.NewJWTManager("test-secret", time.Hour),
		logger:      zerolog.Nop(),
	}
	guarded.setupRoutes()
	if !hasResolveRoute(guarded) {
		t.Error("Resolve route should be registered when auth is enabled")
	}

	// With auth enabled the route sits behind the admin middleware.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/trade-calls/resolve", nil)
	w := httptest.NewRecorder()
	guarded.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a token, got %d", w.Code)
	}
}

func newSignalTestServer(token string) *Server {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	s := &Server{
		router: router,
		config: ServerConfig{SignalToken: token},
		logger: zerolog.Nop(),
	}
	router.POST("/api/v1/webhook/signal", s.handleSignalWebhook)
	return s
}

func postSignal(t *testing.T, s *Server, body string, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/signal", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set("X-Signal-Token", header)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestSignalWebhookTokenInBody(t *testing.T) {
	s := newSignalTestServer("hook-token")

	w := postSignal(t, s, `{"token":"hook-token","symbol":"btc usdt","side":"LONG","price":64000}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Symbol    string `json:"symbol"`
			Forwarded bool   `json:"forwarded"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !resp.Success || !resp.Data.Forwarded {
		t.Errorf("Unexpected response: %s", w.Body.String())
	}
	if resp.Data.Symbol != "BTCUSDT" {
		t.Errorf("Expected normalized symbol BTCUSDT, got %s", resp.Data.Symbol)
	}
}

func TestSignalWebhookTokenInHeader(t *testing.T) {
	s := newSignalTestServer("hook-token")

	w := postSignal(t, s, `{"symbol":"ETHUSDT","side":"SHORT"}`, "hook-token")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSignalWebhookRejectsBadToken(t *testing.T) {
	s := newSignalTestServer("hook-token")

	w := postSignal(t, s, `{"token":"wrong","symbol":"BTCUSDT","side":"LONG"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}

	w = postSignal(t, s, `{"symbol":"BTCUSDT","side":"LONG"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for missing token, got %d", w.Code)
	}
}

func TestSignalWebhookRejectsWhenUnconfigured(t *testing.T) {
	// An empty configured token must not match an empty supplied token.
	s := newSignalTestServer("")

	w := postSignal(t, s, `{"token":"","symbol":"BTCUSDT","side":"LONG"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestSignalWebhookRejectsBadBody(t *testing.T) {
	s := newSignalTestServer("hook-token")

	w := postSignal(t, s, `{"token":"hook-token","side":"LONG"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing symbol, got %d", w.Code)
	}

	w = postSignal(t, s, `not json`, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", w.Code)
	}
}
