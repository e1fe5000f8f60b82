package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/steamnotif/internal/cache"
	"github.com/hitoshi/steamnotif/internal/model"
	"github.com/hitoshi/steamnotif/internal/user"
)

// SteamClientInterface はSteamプロキシハンドラーが必要とするクライアントインターフェース。
type SteamClientInterface interface {
	GetOwnedGames(ctx context.Context, steamID string) ([]model.OwnedGame, error)
	GetPlayerSummary(ctx context.Context, steamID string) (*model.PlayerProfile, error)
}

// SteamHandler はSteam APIプロキシのHTTPハンドラー。
// 所有ゲーム一覧は呼び出しコストが高いためTTLキャッシュを挟む。
type SteamHandler struct {
	steam      SteamClientInterface
	gamesCache *cache.TTLCache[[]model.OwnedGame]
}

// NewSteamHandler はSteamHandlerを生成する。
func NewSteamHandler(steam SteamClientInterface, gamesCache *cache.TTLCache[[]model.OwnedGame]) *SteamHandler {
	return &SteamHandler{
		steam:      steam,
		gamesCache: gamesCache,
	}
}

// ownedGameResponse は所有ゲームのAPIレスポンス。
type ownedGameResponse struct {
	AppID           string `json:"app_id"`
	Name            string `json:"name"`
	IconURL         string `json:"icon_url"`
	LogoURL         string `json:"logo_url"`
	PlaytimeForever int    `json:"playtime_forever"`
}

// profileResponse はSteamプロフィールのAPIレスポンス。
type profileResponse struct {
	SteamID    string `json:"steam_id"`
	Username   string `json:"username"`
	AvatarURL  string `json:"avatar_url"`
	ProfileURL string `json:"profile_url"`
}

// GetOwnedGames は所有ゲーム一覧を取得する。
// GET /api/steam/games/{steamId}
func (h *SteamHandler) GetOwnedGames(w http.ResponseWriter, r *http.Request) {
	steamID := chi.URLParam(r, "steamId")
	if err := user.ValidateSteamID(steamID); err != nil {
		handleServiceError(w, err)
		return
	}

	games, ok := h.gamesCache.Get(steamID)
	if !ok {
		fetched, err := h.steam.GetOwnedGames(r.Context(), steamID)
		if err != nil {
			handleServiceError(w, model.NewSteamAPIFailedError(err.Error()))
			return
		}
		h.gamesCache.Set(steamID, fetched)
		games = fetched
	}

	resp := make([]ownedGameResponse, 0, len(games))
	for _, g := range games {
		resp = append(resp, ownedGameResponse{
			AppID:           g.AppID,
			Name:            g.Name,
			IconURL:         g.IconURL,
			LogoURL:         g.LogoURL,
			PlaytimeForever: g.PlaytimeForever,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProfile はSteamプロフィールを取得する。
// GET /api/steam/profile/{steamId}
func (h *SteamHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	steamID := chi.URLParam(r, "steamId")
	if err := user.ValidateSteamID(steamID); err != nil {
		handleServiceError(w, err)
		return
	}

	profile, err := h.steam.GetPlayerSummary(r.Context(), steamID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		SteamID:    profile.SteamID,
		Username:   profile.Username,
		AvatarURL:  profile.AvatarURL,
		ProfileURL: profile.ProfileURL,
	})
}
