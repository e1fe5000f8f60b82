// Package app はアプリケーションの起動と依存関係のワイヤリングを担当する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/steamnotif/internal/cache"
	"github.com/hitoshi/steamnotif/internal/config"
	"github.com/hitoshi/steamnotif/internal/database"
	"github.com/hitoshi/steamnotif/internal/gamesync"
	"github.com/hitoshi/steamnotif/internal/handler"
	"github.com/hitoshi/steamnotif/internal/logger"
	"github.com/hitoshi/steamnotif/internal/maintenance"
	"github.com/hitoshi/steamnotif/internal/metrics"
	"github.com/hitoshi/steamnotif/internal/middleware"
	"github.com/hitoshi/steamnotif/internal/model"
	"github.com/hitoshi/steamnotif/internal/newscheck"
	"github.com/hitoshi/steamnotif/internal/notification"
	"github.com/hitoshi/steamnotif/internal/repository"
	"github.com/hitoshi/steamnotif/internal/security"
	"github.com/hitoshi/steamnotif/internal/stats"
	"github.com/hitoshi/steamnotif/internal/steam"
	"github.com/hitoshi/steamnotif/internal/subscription"
	"github.com/hitoshi/steamnotif/internal/user"
	"github.com/hitoshi/steamnotif/internal/worker/cleanup"
	"github.com/hitoshi/steamnotif/internal/worker/librarysync"
	checkworker "github.com/hitoshi/steamnotif/internal/worker/newscheck"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandBackfill:
		return runBackfill(cfg)
	case CommandResetWatermarks:
		return runResetWatermarks(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// newsCore はserveとworkerで共有するニュース配信系の依存関係一式。
type newsCore struct {
	userRepo    repository.UserRepository
	subRepo     repository.GameSubscriptionRepository
	steamClient *steam.Client
	newsSource  newscheck.NewsSource
	engine      *newscheck.Engine
	dispatcher  *notification.Dispatcher
	subService  *subscription.Service
	collector   *metrics.Collector
	registry    *prometheus.Registry
}

// buildNewsCore はニュースチェックサイクルに必要な依存関係を組み立てる。
// Steam向け・プッシュ向けのHTTPクライアントはいずれもSSRFガード付きで生成する。
func buildNewsCore(cfg *config.Config, db *sql.DB) (*newsCore, error) {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	subRepo := repository.NewPostgresGameSubscriptionRepo(db)

	// 2. セキュリティサービスの初期化
	guard := security.NewOutboundGuard()
	steamHTTPClient := guard.NewSafeClient(cfg.NewsTimeout)
	pushHTTPClient := guard.NewSafeClient(cfg.PushTimeout)

	// 3. ニュースソースの選択（Steam Web APIまたはRSSフィード）
	steamClient := steam.NewClient(steam.ClientOptions{
		APIKey:        cfg.SteamAPIKey,
		NewsCount:     cfg.NewsCount,
		NewsMaxLength: cfg.NewsMaxLength,
		NewsLanguage:  cfg.NewsLanguage,
		HTTPClient:    steamHTTPClient,
	})

	var newsSource newscheck.NewsSource = steamClient
	if cfg.NewsSource == "rss" {
		newsSource = steam.NewRSSSource(steamHTTPClient, cfg.NewsCount)
	}

	// 4. 通知プロバイダとディスパッチャの初期化
	provider, err := notification.NewProviderFromConfig(cfg, pushHTTPClient)
	if err != nil {
		return nil, fmt.Errorf("failed to build notification provider: %w", err)
	}
	dispatcher := notification.NewDispatcher(provider)

	slog.Info("notification provider configured",
		slog.String("provider", dispatcher.ProviderName()),
		slog.String("news_source", cfg.NewsSource),
	)

	// 5. メトリクスとニュースチェックエンジンの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	engine := newscheck.NewEngine(newscheck.EngineOptions{
		Source:        newsSource,
		Sender:        dispatcher,
		Users:         userRepo,
		Subscriptions: subRepo,
		APIRate:       cfg.SteamAPIRate,
		GameTimeout:   cfg.NewsTimeout,
		PushTimeout:   cfg.PushTimeout,
		Metrics:       collector,
	})

	return &newsCore{
		userRepo:    userRepo,
		subRepo:     subRepo,
		steamClient: steamClient,
		newsSource:  newsSource,
		engine:      engine,
		dispatcher:  dispatcher,
		subService:  subscription.NewService(userRepo, subRepo),
		collector:   collector,
		registry:    registry,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. ニュース配信系の依存関係
	core, err := buildNewsCore(cfg, db)
	if err != nil {
		return err
	}

	// 3. ドメインサービスの初期化
	userService := user.NewService(core.userRepo, core.steamClient)

	// 4. レート制限とキャッシュの初期化
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitFollow),
	)
	defer rateLimiter.Stop()

	gamesCache := cache.New[[]model.OwnedGame](cfg.GamesCacheTTL)

	// 5. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           core.collector,
		MetricsGatherer:   core.registry,

		UserService:         userService,
		SubscriptionService: core.subService,

		NewsSource:  core.newsSource,
		CycleRunner: core.engine,

		SteamClient: core.steamClient,
		GamesCache:  gamesCache,

		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:              cfg.BaseURL,
			MobileRedirectScheme: cfg.MobileRedirectScheme,
		},
		UserRegistrar: userService,

		DB: db,
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// ニュースチェック・ライブラリ同期・購読クリーンアップの3つの定期ジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. ニュース配信系の依存関係
	core, err := buildNewsCore(cfg, db)
	if err != nil {
		return err
	}

	// 3. ライブラリ同期サービスの初期化
	gamesyncService := gamesync.NewService(
		core.userRepo, core.steamClient, core.subService, core.dispatcher, cfg.LibrarySyncGroups,
	)

	// 4. スケジューラとジョブの初期化
	newsScheduler := checkworker.NewScheduler(core.engine, slog.Default())
	libraryScheduler := librarysync.NewScheduler(
		&instrumentedSyncer{syncer: gamesyncService, metrics: core.collector},
		slog.Default(),
	)
	cleanupJob := cleanup.NewCleanupJob(core.subService, core.collector, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("news_check_interval", cfg.NewsCheckInterval),
		slog.Duration("library_sync_interval", cfg.LibrarySyncInterval),
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
	)

	// 5. メトリクスサーバーをバックグラウンドで起動
	metricsServer := newWorkerMetricsServer(cfg.ServerPort, core.registry)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	// 6. ライブラリ同期とクリーンアップをバックグラウンドで起動
	go libraryScheduler.Start(ctx, cfg.LibrarySyncInterval)
	go cleanupJob.Start(ctx, cfg.CleanupInterval)

	// ニュースチェックスケジューラをメインgoroutineで実行（ブロッキング）
	newsScheduler.Start(ctx, cfg.NewsCheckInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// newWorkerMetricsServer はワーカープロセス用の監視エンドポイントを構築する。
// /metrics と /health のみを公開し、APIルートは持たない。
func newWorkerMetricsServer(port string, gatherer prometheus.Gatherer) *http.Server {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

// instrumentedSyncer はライブラリ同期の実行時間と結果をメトリクスに記録する。
type instrumentedSyncer struct {
	syncer  librarysync.Syncer
	metrics *metrics.Collector
}

func (s *instrumentedSyncer) SyncUserGroup(ctx context.Context, groupIndex int) (*stats.BatchStats, error) {
	start := time.Now()
	st, err := s.syncer.SyncUserGroup(ctx, groupIndex)
	if err == nil {
		s.metrics.ObserveLibrarySync(time.Since(start), *st)
	}
	return st, err
}

func (s *instrumentedSyncer) SyncAllUsers(ctx context.Context) (*stats.BatchStats, error) {
	start := time.Now()
	st, err := s.syncer.SyncAllUsers(ctx)
	if err == nil {
		s.metrics.ObserveLibrarySync(time.Since(start), *st)
	}
	return st, err
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runBackfill はユーザーのフォロー情報から購読レコードを再構築する。
// 購読テーブルが空の場合のみ実行される冪等な初期化サブコマンド。
func runBackfill(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	userRepo := repository.NewPostgresUserRepo(db)
	subRepo := repository.NewPostgresGameSubscriptionRepo(db)
	maintenanceService := maintenance.NewService(userRepo, subRepo)

	created, err := maintenanceService.BackfillSubscriptions(context.Background())
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}

	slog.Info("backfill completed",
		slog.Int("subscriptions_created", created),
	)
	return nil
}

// runResetWatermarks は全購読レコードのウォーターマークをリセットする。
// 引数にRFC3339形式の時刻を渡すとその時刻に、省略時は現在時刻に設定する。
// 現在時刻へのリセットは、過去ニュースの一斉配信を止める運用リカバリに使う。
func runResetWatermarks(cfg *config.Config, args []string) error {
	to := time.Now()
	if len(args) > 0 {
		parsed, err := time.Parse(time.RFC3339, args[0])
		if err != nil {
			return fmt.Errorf("invalid watermark timestamp %q (want RFC3339): %w", args[0], err)
		}
		to = parsed
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	userRepo := repository.NewPostgresUserRepo(db)
	subRepo := repository.NewPostgresGameSubscriptionRepo(db)
	maintenanceService := maintenance.NewService(userRepo, subRepo)

	updated, err := maintenanceService.ResetWatermarks(context.Background(), to)
	if err != nil {
		return fmt.Errorf("reset-watermarks failed: %w", err)
	}

	slog.Info("watermarks reset",
		slog.Int64("updated_count", updated),
		slog.Time("reset_to", to),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
