package steam

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/steamnotif/internal/model"
)

// rssFeedURLFormat はSteamコミュニティのゲーム別ニュースRSSフィード。
const rssFeedURLFormat = "https://store.steampowered.com/feeds/news/app/%s/"

// RSSSource はSteamのRSSフィードからニュースを取得する代替ソース。
// Web APIキーが無効な環境や、APIのレートを温存したい場合に使用する。
type RSSSource struct {
	parser        *gofeed.Parser
	newsCount     int
	feedURLFormat string // テスト用にエンドポイントを差し替え可能
}

// NewRSSSource はRSSSourceを生成する。
func NewRSSSource(httpClient *http.Client, newsCount int) *RSSSource {
	parser := gofeed.NewParser()
	parser.Client = httpClient
	parser.UserAgent = "steamnotif/1.0"
	return &RSSSource{
		parser:        parser,
		newsCount:     newsCount,
		feedURLFormat: rssFeedURLFormat,
	}
}

// GetGameNews は指定ゲームのRSSフィードから直近ニュースを取得する。
// API版と同じ形に正規化する。GIDにはフィードのGUID（無ければリンク）を使う。
func (s *RSSSource) GetGameNews(ctx context.Context, appID string) ([]model.NewsItem, error) {
	feedURL := fmt.Sprintf(s.feedURLFormat, appID)

	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("RSSフィードの取得に失敗しました (appid=%s): %w", appID, err)
	}

	limit := s.newsCount
	if limit > len(feed.Items) {
		limit = len(feed.Items)
	}

	items := make([]model.NewsItem, 0, limit)
	for _, raw := range feed.Items[:limit] {
		gid := raw.GUID
		if gid == "" {
			gid = raw.Link
		}

		var published int64
		if raw.PublishedParsed != nil {
			published = raw.PublishedParsed.Unix()
		}

		author := ""
		if raw.Author != nil {
			author = raw.Author.Name
		}

		items = append(items, model.NewsItem{
			GID:       gid,
			Title:     raw.Title,
			URL:       raw.Link,
			Author:    author,
			Contents:  raw.Description,
			FeedLabel: feed.Title,
			Date:      published,
		})
	}
	return items, nil
}
