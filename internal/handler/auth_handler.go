package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"

	"github.com/hitoshi/steamnotif/internal/model"
)

// steamOpenIDEndpoint はSteamのOpenID 2.0エンドポイント。
const steamOpenIDEndpoint = "https://steamcommunity.com/openid/login"

// claimedIDPattern はopenid.claimed_idからSteamID64を抽出するパターン。
var claimedIDPattern = regexp.MustCompile(`^https?://steamcommunity\.com/openid/id/(\d{17})$`)

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL              string // コールバックURLの組み立てに使用する公開URL
	MobileRedirectScheme string // 認証完了後のアプリディープリンクのスキーム
}

// UserRegistrar は認証完了時のユーザー登録インターフェース。
type UserRegistrar interface {
	Register(ctx context.Context, steamID string) (*model.User, error)
	RefreshProfile(ctx context.Context, steamID string) (*model.User, error)
}

// AuthHandler はSteam OpenIDログインのHTTPハンドラー。
type AuthHandler struct {
	config AuthHandlerConfig
	users  UserRegistrar // 省略可
}

// NewAuthHandler はAuthHandlerを生成する。
// usersを指定すると、認証完了時にユーザーの登録または
// プロフィール更新をベストエフォートで行う。
func NewAuthHandler(config AuthHandlerConfig, users UserRegistrar) *AuthHandler {
	return &AuthHandler{config: config, users: users}
}

// Login はSteamのOpenIDログインページへリダイレクトする。
// GET /auth/steam/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	returnTo := h.config.BaseURL + "/auth/steam/return"

	params := url.Values{}
	params.Set("openid.ns", "http://specs.openid.net/auth/2.0")
	params.Set("openid.mode", "checkid_setup")
	params.Set("openid.return_to", returnTo)
	params.Set("openid.realm", h.config.BaseURL)
	params.Set("openid.identity", "http://specs.openid.net/auth/2.0/identifier_select")
	params.Set("openid.claimed_id", "http://specs.openid.net/auth/2.0/identifier_select")

	http.Redirect(w, r, steamOpenIDEndpoint+"?"+params.Encode(), http.StatusFound)
}

// Return はSteamからのOpenIDコールバックを処理する。
// claimed_idからSteamIDを抽出し、ユーザーを登録または更新したうえで
// モバイルアプリのディープリンクへリダイレクトする。
// 登録の失敗は認証フローを止めない（アプリ側がAPIで再登録できる）。
// GET /auth/steam/return
func (h *AuthHandler) Return(w http.ResponseWriter, r *http.Request) {
	claimedID := r.URL.Query().Get("openid.claimed_id")

	matches := claimedIDPattern.FindStringSubmatch(claimedID)
	if matches == nil {
		handleServiceError(w, model.NewSteamIDNotFoundError())
		return
	}
	steamID := matches[1]

	h.registerOrUpdate(r.Context(), steamID)

	redirect := h.config.MobileRedirectScheme + "://auth?steam_id=" + url.QueryEscape(steamID)
	http.Redirect(w, r, redirect, http.StatusFound)
}

// registerOrUpdate はユーザーを登録し、登録済みならプロフィールを更新する。
func (h *AuthHandler) registerOrUpdate(ctx context.Context, steamID string) {
	if h.users == nil {
		return
	}

	_, err := h.users.Register(ctx, steamID)
	if err == nil {
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUserAlreadyExists {
		if _, err := h.users.RefreshProfile(ctx, steamID); err != nil {
			slog.Warn("profile refresh after login failed",
				slog.String("steam_id", steamID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	slog.Warn("user registration after login failed",
		slog.String("steam_id", steamID),
		slog.String("error", err.Error()),
	)
}
