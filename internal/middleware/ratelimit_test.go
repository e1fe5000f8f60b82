package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testRateLimiterConfig(generalBurst, followBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001), // テスト中の補充を事実上無効化
		GeneralBurst:    generalBurst,
		FollowRate:      rate.Limit(0.001),
		FollowBurst:     followBurst,
		CleanupInterval: time.Hour,
	}
}

func doRequest(t *testing.T, handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGeneralMiddleware_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(3, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())
	for i := 0; i < 3; i++ {
		w := doRequest(t, handler, "10.0.0.1:1234")
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}

func TestGeneralMiddleware_RejectsBeyondBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(2, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())
	doRequest(t, handler, "10.0.0.1:1234")
	doRequest(t, handler, "10.0.0.1:1234")

	w := doRequest(t, handler, "10.0.0.1:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestGeneralMiddleware_IndependentPerClient(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())
	doRequest(t, handler, "10.0.0.1:1234")

	w := doRequest(t, handler, "10.0.0.2:1234")
	if w.Code != http.StatusOK {
		t.Errorf("other client must not be affected: status = %d", w.Code)
	}
}

func TestFollowMiddleware_IndependentFromGeneral(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 1))
	defer rl.Stop()

	general := rl.GeneralMiddleware()(okHandler())
	follow := rl.FollowMiddleware()(okHandler())

	// 全般のバーストを使い切ってもフォローは通る
	doRequest(t, general, "10.0.0.1:1234")
	w := doRequest(t, follow, "10.0.0.1:1234")
	if w.Code != http.StatusOK {
		t.Errorf("follow limiter must be independent: status = %d", w.Code)
	}
}

func TestClientIPFromRequest_PrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if got := clientIPFromRequest(req); got != "203.0.113.7" {
		t.Errorf("clientIPFromRequest = %q, want 203.0.113.7", got)
	}
}
