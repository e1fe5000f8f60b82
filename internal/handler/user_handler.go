package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/steamnotif/internal/model"
	"github.com/hitoshi/steamnotif/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Register はSteamIDで新規ユーザーを登録する。
	Register(ctx context.Context, steamID string) (*model.User, error)
	// Get は指定SteamIDのユーザーを取得する。
	Get(ctx context.Context, steamID string) (*model.User, error)
	// UpdateNotificationSettings は通知設定を更新する。
	UpdateNotificationSettings(ctx context.Context, steamID string, settings user.NotificationSettings) (*model.User, error)
}

// SubscriptionServiceInterface はフォロー操作のサービスインターフェース。
type SubscriptionServiceInterface interface {
	// Follow はゲームをフォローする。
	Follow(ctx context.Context, steamID, appID, gameName string) error
	// Unfollow はゲームのフォローを解除する。
	Unfollow(ctx context.Context, steamID, appID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	users         UserServiceInterface
	subscriptions SubscriptionServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(users UserServiceInterface, subscriptions SubscriptionServiceInterface) *UserHandler {
	return &UserHandler{
		users:         users,
		subscriptions: subscriptions,
	}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	SteamID string `json:"steam_id"`
}

// notificationSettingsRequest は通知設定更新リクエストのボディ。
type notificationSettingsRequest struct {
	NotificationsEnabled bool   `json:"notifications_enabled"`
	PushToken            string `json:"push_token"`
	AutoFollowNewGames   bool   `json:"auto_follow_new_games"`
}

// followRequest はフォローリクエストのボディ。
type followRequest struct {
	AppID string `json:"app_id"`
	Name  string `json:"name"`
}

// userResponse はユーザー情報のAPIレスポンス。
// プッシュトークンそのものは返さず、登録有無のみを返す。
type userResponse struct {
	SteamID              string    `json:"steam_id"`
	Username             string    `json:"username"`
	AvatarURL            string    `json:"avatar_url"`
	FollowedGameIDs      []string  `json:"followed_game_ids"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	HasPushToken         bool      `json:"has_push_token"`
	AutoFollowNewGames   bool      `json:"auto_follow_new_games"`
	LastChecked          time.Time `json:"last_checked"`
}

// Register はユーザー登録を処理する。
// POST /api/users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, "リクエストボディの解析に失敗しました")
		return
	}
	if req.SteamID == "" {
		writeInvalidRequest(w, "steam_idが空です")
		return
	}

	registered, err := h.users.Register(r.Context(), req.SteamID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(registered))
}

// GetUser はユーザー詳細を取得する。
// GET /api/users/{steamId}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	steamID := chi.URLParam(r, "steamId")

	found, err := h.users.Get(r.Context(), steamID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(found))
}

// UpdateNotifications は通知設定を更新する。
// PUT /api/users/{steamId}/notifications
func (h *UserHandler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	steamID := chi.URLParam(r, "steamId")

	var req notificationSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, "リクエストボディの解析に失敗しました")
		return
	}

	updated, err := h.users.UpdateNotificationSettings(r.Context(), steamID, user.NotificationSettings{
		NotificationsEnabled: req.NotificationsEnabled,
		PushToken:            req.PushToken,
		AutoFollowNewGames:   req.AutoFollowNewGames,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// Follow はゲームのフォローを処理する。
// POST /api/users/{steamId}/follow
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	steamID := chi.URLParam(r, "steamId")

	var req followRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, "リクエストボディの解析に失敗しました")
		return
	}
	if req.AppID == "" {
		writeInvalidRequest(w, "app_idが空です")
		return
	}

	if err := h.subscriptions.Follow(r.Context(), steamID, req.AppID, req.Name); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unfollow はゲームのフォロー解除を処理する。
// DELETE /api/users/{steamId}/follow/{appId}
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	steamID := chi.URLParam(r, "steamId")
	appID := chi.URLParam(r, "appId")

	if err := h.subscriptions.Unfollow(r.Context(), steamID, appID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(u *model.User) userResponse {
	followed := u.FollowedGameIDs
	if followed == nil {
		followed = []string{}
	}
	return userResponse{
		SteamID:              u.SteamID,
		Username:             u.Username,
		AvatarURL:            u.AvatarURL,
		FollowedGameIDs:      followed,
		NotificationsEnabled: u.NotificationsEnabled,
		HasPushToken:         u.PushToken != "",
		AutoFollowNewGames:   u.AutoFollowNewGames,
		LastChecked:          u.LastChecked,
	}
}
