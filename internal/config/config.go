package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Steam API
	SteamAPIKey   string
	NewsSource    string // "api" または "rss"
	NewsCount     int    // 1ゲームあたりの取得件数
	NewsMaxLength int    // 本文の最大長（Steam API側で切り詰め）
	NewsLanguage  string
	NewsTimeout   time.Duration
	SteamAPIRate  float64 // アウトバウンドAPIのレート（req/sec）

	// News check
	NewsCheckInterval time.Duration

	// Library sync
	LibrarySyncInterval time.Duration
	LibrarySyncGroups   int

	// Cleanup
	CleanupInterval time.Duration

	// Notifications
	NotificationProvider string
	OneSignalAppID       string
	OneSignalAPIKey      string
	FCMServerKey         string
	VAPIDPublicKey       string
	VAPIDPrivateKey      string
	VAPIDSubscriber      string
	PushTimeout          time.Duration

	// Cache
	GamesCacheTTL time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitFollow  int

	// Auth
	MobileRedirectScheme string

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SteamAPIKey = os.Getenv("STEAM_API_KEY")
	if cfg.SteamAPIKey == "" {
		missing = append(missing, "STEAM_API_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.NewsSource = getEnvString("NEWS_SOURCE", "api")
	cfg.NewsCount = getEnvInt("NEWS_COUNT", 5)
	cfg.NewsMaxLength = getEnvInt("NEWS_MAX_LENGTH", 300)
	cfg.NewsLanguage = getEnvString("NEWS_LANGUAGE", "fr")
	cfg.NewsTimeout = getEnvDuration("NEWS_TIMEOUT", 10*time.Second)
	cfg.SteamAPIRate = getEnvFloat("STEAM_API_RATE", 1.0)
	cfg.NewsCheckInterval = getEnvDuration("NEWS_CHECK_INTERVAL", time.Hour)
	cfg.LibrarySyncInterval = getEnvDuration("LIBRARY_SYNC_INTERVAL", 30*time.Minute)
	cfg.LibrarySyncGroups = getEnvInt("LIBRARY_SYNC_GROUPS", 12)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.NotificationProvider = getEnvString("NOTIFICATION_PROVIDER", "simulation")
	cfg.OneSignalAppID = getEnvString("ONESIGNAL_APP_ID", "")
	cfg.OneSignalAPIKey = getEnvString("ONESIGNAL_API_KEY", "")
	cfg.FCMServerKey = getEnvString("FCM_SERVER_KEY", "")
	cfg.VAPIDPublicKey = getEnvString("VAPID_PUBLIC_KEY", "")
	cfg.VAPIDPrivateKey = getEnvString("VAPID_PRIVATE_KEY", "")
	cfg.VAPIDSubscriber = getEnvString("VAPID_SUBSCRIBER", "mailto:admin@example.com")
	cfg.PushTimeout = getEnvDuration("PUSH_TIMEOUT", 10*time.Second)
	cfg.GamesCacheTTL = getEnvDuration("GAMES_CACHE_TTL", 10*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitFollow = getEnvInt("RATE_LIMIT_FOLLOW", 30)
	cfg.MobileRedirectScheme = getEnvString("MOBILE_REDIRECT_SCHEME", "steamnotif")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
