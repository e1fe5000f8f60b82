package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/steamnotif/internal/cache"
	"github.com/hitoshi/steamnotif/internal/metrics"
	"github.com/hitoshi/steamnotif/internal/middleware"
	"github.com/hitoshi/steamnotif/internal/model"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) PingContext(ctx context.Context) error { return f.err }

func newTestRouter(t *testing.T, db Pinger) http.Handler {
	t.Helper()

	reg := prometheus.NewRegistry()
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(120, 30))
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Metrics:           metrics.NewCollector(reg),
		MetricsGatherer:   reg,
		UserService:       &mockUserService{},
		SubscriptionService: &mockSubscriptionService{
			followFunc: func(ctx context.Context, steamID, appID, gameName string) error { return nil },
		},
		NewsSource:  &mockNewsSource{},
		CycleRunner: &mockCycleRunner{},
		SteamClient: &mockSteamClient{},
		GamesCache:  cache.New[[]model.OwnedGame](time.Minute),
		AuthConfig: AuthHandlerConfig{
			BaseURL:              "https://notif.example.com",
			MobileRedirectScheme: "steamnotif",
		},
		DB: db,
	})
}

func TestRouter_HealthOK(t *testing.T) {
	router := newTestRouter(t, &fakePinger{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRouter_HealthUnavailableWhenDBDown(t *testing.T) {
	router := newTestRouter(t, &fakePinger{err: errors.New("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &fakePinger{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(t, &fakePinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRouter_AuthRoutesOutsideRateLimit(t *testing.T) {
	router := newTestRouter(t, &fakePinger{})

	req := httptest.NewRequest(http.MethodGet, "/auth/steam/login", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", w.Code)
	}
}
