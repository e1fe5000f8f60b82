package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/steamnotif/internal/model"
	"github.com/hitoshi/steamnotif/internal/newscheck"
	"github.com/hitoshi/steamnotif/internal/stats"
)

// NewsSourceInterface はニュースハンドラーが必要とする取得元インターフェース。
type NewsSourceInterface interface {
	GetGameNews(ctx context.Context, appID string) ([]model.NewsItem, error)
}

// CycleRunner はニュースチェックサイクルの実行インターフェース。
type CycleRunner interface {
	RunCycle(ctx context.Context) (*stats.BatchStats, error)
}

// NewsHandler はニュース関連のHTTPハンドラー。
type NewsHandler struct {
	source NewsSourceInterface
	runner CycleRunner
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(source NewsSourceInterface, runner CycleRunner) *NewsHandler {
	return &NewsHandler{
		source: source,
		runner: runner,
	}
}

// newsItemResponse はニュース記事のAPIレスポンス。
type newsItemResponse struct {
	GID       string `json:"gid"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Author    string `json:"author"`
	Contents  string `json:"contents"`
	FeedLabel string `json:"feed_label"`
	Date      int64  `json:"date"`
}

// batchResponse はバッチ実行結果のAPIレスポンス。
type batchResponse struct {
	GamesChecked      int `json:"games_checked"`
	GamesWithNews     int `json:"games_with_news"`
	NotificationsSent int `json:"notifications_sent"`
	Errors            int `json:"errors"`
}

// GetGameNews は指定ゲームの直近ニュースを取得する。
// GET /api/news/game/{appId}
func (h *NewsHandler) GetGameNews(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appId")

	items, err := h.source.GetGameNews(r.Context(), appID)
	if err != nil {
		handleServiceError(w, model.NewSteamAPIFailedError(err.Error()))
		return
	}

	resp := make([]newsItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, newsItemResponse{
			GID:       item.GID,
			Title:     item.Title,
			URL:       item.URL,
			Author:    item.Author,
			Contents:  item.Contents,
			FeedLabel: item.FeedLabel,
			Date:      item.Date,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// RunBatch はニュースチェックサイクルを即時実行する。
// サイクルが既に実行中の場合は409を返す。
// POST /api/news/batch
func (h *NewsHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	st, err := h.runner.RunCycle(r.Context())
	if err != nil {
		if errors.Is(err, newscheck.ErrCycleInProgress) {
			writeAPIErrorResponse(w, http.StatusConflict, &model.APIError{
				Code:     "CYCLE_IN_PROGRESS",
				Message:  "ニュースチェックは既に実行中です。",
				Category: "system",
				Action:   "完了を待ってから再度実行してください。",
			})
			return
		}
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, batchResponse{
		GamesChecked:      st.UnitsProcessed,
		GamesWithNews:     st.UnitsWithUpdates,
		NotificationsSent: st.TotalUpdates,
		Errors:            st.Errors,
	})
}
