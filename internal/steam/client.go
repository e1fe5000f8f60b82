// Package steam はSteam Web APIのクライアントを提供する。
package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/steamnotif/internal/model"
)

const (
	defaultAPIBaseURL = "https://api.steampowered.com"
	newsForAppPath    = "/ISteamNews/GetNewsForApp/v2/"
	ownedGamesPath    = "/IPlayerService/GetOwnedGames/v1/"
	playerSummaryPath = "/ISteamUser/GetPlayerSummaries/v2/"
	communityFeedName = "steam_community_announcements"
	updatesFeedName   = "steam_updates"
)

// ClientOptions はClientの生成パラメータ。
type ClientOptions struct {
	APIKey        string
	NewsCount     int
	NewsMaxLength int
	NewsLanguage  string
	HTTPClient    *http.Client
}

// Client はSteam Web APIのクライアント。
// HTTPクライアントはSSRFガード付きのものを注入する。
type Client struct {
	apiKey        string
	newsCount     int
	newsMaxLength int
	newsLanguage  string
	httpClient    *http.Client
	baseURL       string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientを生成する。
func NewClient(opts ClientOptions) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		apiKey:        opts.APIKey,
		newsCount:     opts.NewsCount,
		newsMaxLength: opts.NewsMaxLength,
		newsLanguage:  opts.NewsLanguage,
		httpClient:    httpClient,
		baseURL:       defaultAPIBaseURL,
	}
}

type newsForAppResponse struct {
	AppNews struct {
		AppID     int64 `json:"appid"`
		NewsItems []struct {
			GID       string `json:"gid"`
			Title     string `json:"title"`
			URL       string `json:"url"`
			Author    string `json:"author"`
			Contents  string `json:"contents"`
			FeedLabel string `json:"feedlabel"`
			Date      int64  `json:"date"`
			FeedName  string `json:"feedname"`
		} `json:"newsitems"`
	} `json:"appnews"`
}

// GetGameNews は指定ゲームの直近ニュースを取得する。
// 公式アナウンスとアップデートのフィードのみに絞り込む。
// 返却順はSteam API準拠（新しい順）で、フィルタリングは呼び出し側が行う。
func (c *Client) GetGameNews(ctx context.Context, appID string) ([]model.NewsItem, error) {
	params := url.Values{}
	params.Set("appid", appID)
	params.Set("count", strconv.Itoa(c.newsCount))
	params.Set("maxlength", strconv.Itoa(c.newsMaxLength))
	params.Set("format", "json")
	params.Set("language", c.newsLanguage)
	params.Set("feeds", communityFeedName+","+updatesFeedName)

	var resp newsForAppResponse
	if err := c.getJSON(ctx, newsForAppPath, params, &resp); err != nil {
		return nil, fmt.Errorf("ニュースの取得に失敗しました (appid=%s): %w", appID, err)
	}

	items := make([]model.NewsItem, 0, len(resp.AppNews.NewsItems))
	for _, raw := range resp.AppNews.NewsItems {
		items = append(items, model.NewsItem{
			GID:       raw.GID,
			Title:     raw.Title,
			URL:       raw.URL,
			Author:    raw.Author,
			Contents:  raw.Contents,
			FeedLabel: raw.FeedLabel,
			Date:      raw.Date,
		})
	}
	return items, nil
}

type ownedGamesResponse struct {
	Response struct {
		GameCount int `json:"game_count"`
		Games     []struct {
			AppID           int64  `json:"appid"`
			Name            string `json:"name"`
			ImgIconURL      string `json:"img_icon_url"`
			ImgLogoURL      string `json:"img_logo_url"`
			PlaytimeForever int    `json:"playtime_forever"`
		} `json:"games"`
	} `json:"response"`
}

// GetOwnedGames は指定ユーザーの所有ゲーム一覧を取得する。
// プロフィールが非公開の場合は空のリストが返る。
func (c *Client) GetOwnedGames(ctx context.Context, steamID string) ([]model.OwnedGame, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("steamid", steamID)
	params.Set("include_appinfo", "true")
	params.Set("format", "json")

	var resp ownedGamesResponse
	if err := c.getJSON(ctx, ownedGamesPath, params, &resp); err != nil {
		return nil, fmt.Errorf("所有ゲームの取得に失敗しました (steamid=%s): %w", steamID, err)
	}

	games := make([]model.OwnedGame, 0, len(resp.Response.Games))
	for _, raw := range resp.Response.Games {
		appID := strconv.FormatInt(raw.AppID, 10)
		games = append(games, model.OwnedGame{
			AppID:           appID,
			Name:            raw.Name,
			IconURL:         gameAssetURL(appID, raw.ImgIconURL),
			LogoURL:         gameAssetURL(appID, raw.ImgLogoURL),
			PlaytimeForever: raw.PlaytimeForever,
		})
	}
	return games, nil
}

type playerSummariesResponse struct {
	Response struct {
		Players []struct {
			SteamID     string `json:"steamid"`
			PersonaName string `json:"personaname"`
			AvatarFull  string `json:"avatarfull"`
			ProfileURL  string `json:"profileurl"`
		} `json:"players"`
	} `json:"response"`
}

// GetPlayerSummary は指定ユーザーのSteamプロフィール要約を取得する。
// プロフィールが存在しない場合はPROFILE_NOT_FOUNDエラーを返す。
func (c *Client) GetPlayerSummary(ctx context.Context, steamID string) (*model.PlayerProfile, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("steamids", steamID)
	params.Set("format", "json")

	var resp playerSummariesResponse
	if err := c.getJSON(ctx, playerSummaryPath, params, &resp); err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました (steamid=%s): %w", steamID, err)
	}

	if len(resp.Response.Players) == 0 {
		return nil, model.NewProfileNotFoundError(steamID)
	}

	p := resp.Response.Players[0]
	return &model.PlayerProfile{
		SteamID:    p.SteamID,
		Username:   p.PersonaName,
		AvatarURL:  p.AvatarFull,
		ProfileURL: p.ProfileURL,
	}, nil
}

// getJSON はGETリクエストを実行しJSONレスポンスをデコードする。
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("リクエストの実行に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// エラーレスポンスの本文は読み捨てる
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("レスポンスのデコードに失敗しました: %w", err)
	}
	return nil
}

// gameAssetURL はアイコン/ロゴのハッシュからCDNのURLを組み立てる。
func gameAssetURL(appID, hash string) string {
	if hash == "" {
		return ""
	}
	return fmt.Sprintf("https://media.steampowered.com/steamcommunity/public/images/apps/%s/%s.jpg", appID, hash)
}
