package steam

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/steamnotif/internal/model"
)

func newTestClient(serverURL string) *Client {
	c := NewClient(ClientOptions{
		APIKey:        "test-key",
		NewsCount:     5,
		NewsMaxLength: 300,
		NewsLanguage:  "fr",
	})
	c.baseURL = serverURL
	return c
}

func TestGetGameNews_ParsesItemsAndParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != newsForAppPath {
			t.Errorf("path = %s, want %s", r.URL.Path, newsForAppPath)
		}
		q := r.URL.Query()
		if q.Get("appid") != "730" {
			t.Errorf("appid = %s, want 730", q.Get("appid"))
		}
		if q.Get("count") != "5" {
			t.Errorf("count = %s, want 5", q.Get("count"))
		}
		if q.Get("maxlength") != "300" {
			t.Errorf("maxlength = %s, want 300", q.Get("maxlength"))
		}
		if q.Get("feeds") != "steam_community_announcements,steam_updates" {
			t.Errorf("feeds = %s", q.Get("feeds"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"appnews":{"appid":730,"newsitems":[
			{"gid":"g1","title":"Patch 1","url":"https://example.com/1","author":"valve","contents":"fix","feedlabel":"Community","date":1700000000,"feedname":"steam_community_announcements"},
			{"gid":"g2","title":"Patch 2","url":"https://example.com/2","author":"valve","contents":"more","feedlabel":"Community","date":1700003600,"feedname":"steam_community_announcements"}
		]}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	items, err := c.GetGameNews(context.Background(), "730")
	if err != nil {
		t.Fatalf("GetGameNews returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].GID != "g1" || items[0].Date != 1700000000 {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[1].Title != "Patch 2" {
		t.Errorf("Title = %q, want %q", items[1].Title, "Patch 2")
	}
}

func TestGetGameNews_EmptyListIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"appnews":{"appid":730,"newsitems":[]}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	items, err := c.GetGameNews(context.Background(), "730")
	if err != nil {
		t.Fatalf("GetGameNews returned error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len(items) = %d, want 0", len(items))
	}
}

func TestGetGameNews_Non200IsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.GetGameNews(context.Background(), "730"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestGetOwnedGames_BuildsAssetURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") != "test-key" {
			t.Errorf("key = %s, want test-key", q.Get("key"))
		}
		if q.Get("include_appinfo") != "true" {
			t.Errorf("include_appinfo = %s, want true", q.Get("include_appinfo"))
		}
		_, _ = w.Write([]byte(`{"response":{"game_count":1,"games":[
			{"appid":440,"name":"Team Fortress 2","img_icon_url":"abc123","img_logo_url":"","playtime_forever":9000}
		]}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	games, err := c.GetOwnedGames(context.Background(), "76561198000000001")
	if err != nil {
		t.Fatalf("GetOwnedGames returned error: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("len(games) = %d, want 1", len(games))
	}
	if games[0].AppID != "440" {
		t.Errorf("AppID = %s, want 440", games[0].AppID)
	}
	want := "https://media.steampowered.com/steamcommunity/public/images/apps/440/abc123.jpg"
	if games[0].IconURL != want {
		t.Errorf("IconURL = %s, want %s", games[0].IconURL, want)
	}
	if games[0].LogoURL != "" {
		t.Errorf("LogoURL = %q, want empty for empty hash", games[0].LogoURL)
	}
}

func TestGetOwnedGames_PrivateProfileReturnsEmptyList(t *testing.T) {
	// 非公開プロフィールではSteamはgamesキーなしの空レスポンスを返す
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":{}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	games, err := c.GetOwnedGames(context.Background(), "76561198000000001")
	if err != nil {
		t.Fatalf("GetOwnedGames returned error: %v", err)
	}
	if len(games) != 0 {
		t.Errorf("len(games) = %d, want 0", len(games))
	}
}

func TestGetPlayerSummary_ReturnsProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"players":[
			{"steamid":"76561198000000001","personaname":"gordon","avatarfull":"https://example.com/a.jpg","profileurl":"https://steamcommunity.com/id/gordon"}
		]}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	profile, err := c.GetPlayerSummary(context.Background(), "76561198000000001")
	if err != nil {
		t.Fatalf("GetPlayerSummary returned error: %v", err)
	}
	if profile.Username != "gordon" {
		t.Errorf("Username = %q, want gordon", profile.Username)
	}
}

func TestGetPlayerSummary_UnknownSteamIDIsProfileNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"players":[]}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.GetPlayerSummary(context.Background(), "76561198000000001")
	if err == nil {
		t.Fatal("expected error for empty players list")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeProfileNotFound {
		t.Errorf("expected PROFILE_NOT_FOUND, got %v", err)
	}
}
