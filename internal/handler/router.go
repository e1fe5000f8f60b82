package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/steamnotif/internal/cache"
	"github.com/hitoshi/steamnotif/internal/metrics"
	"github.com/hitoshi/steamnotif/internal/middleware"
	"github.com/hitoshi/steamnotif/internal/model"
)

// Pinger はデータベースのヘルスチェックインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           *metrics.Collector
	MetricsGatherer   prometheus.Gatherer

	// ユーザーとフォロー
	UserService         UserServiceInterface
	SubscriptionService SubscriptionServiceInterface

	// ニュース
	NewsSource  NewsSourceInterface
	CycleRunner CycleRunner

	// Steamプロキシ
	SteamClient SteamClientInterface
	GamesCache  *cache.TTLCache[[]model.OwnedGame]

	// 認証
	AuthConfig    AuthHandlerConfig
	UserRegistrar UserRegistrar // 省略可。認証完了時の登録/更新に使用

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → CORS → RateLimit(General)
//
// /health、/metrics、/auth/* はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	userHandler := NewUserHandler(deps.UserService, deps.SubscriptionService)
	newsHandler := NewNewsHandler(deps.NewsSource, deps.CycleRunner)
	steamHandler := NewSteamHandler(deps.SteamClient, deps.GamesCache)
	authHandler := NewAuthHandler(deps.AuthConfig, deps.UserRegistrar)

	// --- レート制限の外のルート ---

	r.Get("/health", healthHandler(deps.DB))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))

	r.Route("/auth/steam", func(r chi.Router) {
		r.Get("/login", authHandler.Login)
		r.Get("/return", authHandler.Return)
	})

	// --- API ルート ---
	// ミドルウェアスタック: RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Post("/register", userHandler.Register)

			r.Route("/{steamId}", func(r chi.Router) {
				r.Get("/", userHandler.GetUser)
				r.Put("/notifications", userHandler.UpdateNotifications)

				// フォロー操作（専用レート制限を追加）
				r.With(deps.RateLimiter.FollowMiddleware()).Post("/follow", userHandler.Follow)
				r.With(deps.RateLimiter.FollowMiddleware()).Delete("/follow/{appId}", userHandler.Unfollow)
			})
		})

		// ニュース
		r.Route("/api/news", func(r chi.Router) {
			r.Get("/game/{appId}", newsHandler.GetGameNews)
			r.Post("/batch", newsHandler.RunBatch)
		})

		// Steamプロキシ
		r.Route("/api/steam", func(r chi.Router) {
			r.Get("/games/{steamId}", steamHandler.GetOwnedGames)
			r.Get("/profile/{steamId}", steamHandler.GetProfile)
		})
	})

	return r
}

// healthHandler はヘルスチェックのハンドラーを返す。
// DBに到達できない場合は503を返す。
func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"reason": "database unreachable",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
