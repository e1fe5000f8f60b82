// Package newscheck はニュースチェックサイクルの中核エンジンを提供する。
// 全購読ゲームを1回ずつ走査し、ウォーターマークより新しい記事を
// 購読者に配信してウォーターマークを前進させる。
package newscheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/steamnotif/internal/model"
	"github.com/hitoshi/steamnotif/internal/stats"
)

// ErrCycleInProgress は前回のサイクルが完了していない状態で
// 新しいサイクルを開始しようとした場合に返る。
var ErrCycleInProgress = errors.New("news check cycle already in progress")

// NewsSource はゲームの直近ニュースの取得元インターフェース。
type NewsSource interface {
	GetGameNews(ctx context.Context, appID string) ([]model.NewsItem, error)
}

// NotificationSender はニュース通知の配送インターフェース。
type NotificationSender interface {
	SendNews(ctx context.Context, user *model.User, appID, gameName string, item model.NewsItem) error
}

// UserStore はエンジンが必要とするユーザーストアのインターフェース。
type UserStore interface {
	FindEligibleBySteamIDs(ctx context.Context, steamIDs []string) ([]*model.User, error)
	TouchLastChecked(ctx context.Context, steamID string) error
}

// SubscriptionStore はエンジンが必要とする購読ストアのインターフェース。
type SubscriptionStore interface {
	ListAll(ctx context.Context) ([]*model.GameSubscription, error)
	UpdateWatermark(ctx context.Context, gameID string, timestamp int64) error
}

// Metrics はサイクル結果の計測フック。
type Metrics interface {
	ObserveNewsCheckCycle(duration time.Duration, st stats.BatchStats)
}

// EngineOptions はEngineの生成パラメータ。
type EngineOptions struct {
	Source        NewsSource
	Sender        NotificationSender
	Users         UserStore
	Subscriptions SubscriptionStore
	APIRate       float64       // ニュース取得のレート（req/sec）。0以下で無制限
	GameTimeout   time.Duration // 1ゲームあたりのニュース取得タイムアウト
	PushTimeout   time.Duration // 1通知あたりの配送タイムアウト
	Metrics       Metrics       // 省略可
}

// Engine はニュースチェックサイクルを実行する。
type Engine struct {
	source      NewsSource
	sender      NotificationSender
	users       UserStore
	subs        SubscriptionStore
	limiter     *rate.Limiter
	gameTimeout time.Duration
	pushTimeout time.Duration
	metrics     Metrics
	running     atomic.Bool
}

// NewEngine はEngineを生成する。
func NewEngine(opts EngineOptions) *Engine {
	limit := rate.Inf
	if opts.APIRate > 0 {
		limit = rate.Limit(opts.APIRate)
	}
	return &Engine{
		source:      opts.Source,
		sender:      opts.Sender,
		users:       opts.Users,
		subs:        opts.Subscriptions,
		limiter:     rate.NewLimiter(limit, 1),
		gameTimeout: opts.GameTimeout,
		pushTimeout: opts.PushTimeout,
		metrics:     opts.Metrics,
	}
}

// RunCycle はニュースチェックサイクルを1回実行する。
// サイクルは同時に1つしか走らない。実行中に再度呼ばれた場合は
// 何もせずErrCycleInProgressを返す。
// ゲーム単位の失敗はそのゲームのみをスキップして続行し、
// 購読一覧の取得失敗のみがサイクル全体の失敗になる。
func (e *Engine) RunCycle(ctx context.Context) (*stats.BatchStats, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer e.running.Store(false)

	cycleID := uuid.NewString()
	start := time.Now()

	subs, err := e.subs.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("購読一覧の取得に失敗しました: %w", err)
	}

	slog.Info("news check cycle started",
		slog.String("cycle_id", cycleID),
		slog.Int("games", len(subs)),
	)

	st := &stats.BatchStats{}
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		// 購読者のいないレコードは取得コストをかけない
		if len(sub.Subscribers) == 0 {
			continue
		}

		sent, err := e.checkGame(ctx, sub)
		st.Record(sent, err != nil)
		if err != nil {
			slog.Error("news check failed for game",
				slog.String("cycle_id", cycleID),
				slog.String("game_id", sub.GameID),
				slog.String("error", err.Error()),
			)
		}
	}

	duration := time.Since(start)
	slog.Info("news check cycle finished",
		slog.String("cycle_id", cycleID),
		slog.Int("games_checked", st.UnitsProcessed),
		slog.Int("games_with_news", st.UnitsWithUpdates),
		slog.Int("notifications_sent", st.TotalUpdates),
		slog.Int("errors", st.Errors),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	if e.metrics != nil {
		e.metrics.ObserveNewsCheckCycle(duration, *st)
	}
	return st, nil
}

// checkGame は1ゲーム分のチェックを行い、送信した通知数を返す。
// ウォーターマークより新しい記事のみが配信対象になる（境界値は配信済み扱い）。
func (e *Engine) checkGame(ctx context.Context, sub *model.GameSubscription) (int, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("レート制限の待機に失敗しました: %w", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.gameTimeout)
	defer cancel()

	items, err := e.source.GetGameNews(fetchCtx, sub.GameID)
	if err != nil {
		return 0, fmt.Errorf("ニュースの取得に失敗しました: %w", err)
	}

	fresh := make([]model.NewsItem, 0, len(items))
	maxTimestamp := sub.LastNewsTimestamp
	for _, item := range items {
		if item.Date > sub.LastNewsTimestamp {
			fresh = append(fresh, item)
			if item.Date > maxTimestamp {
				maxTimestamp = item.Date
			}
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	// 通知は時系列順に届くように古い順で送る
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].Date < fresh[j].Date })

	users, err := e.users.FindEligibleBySteamIDs(ctx, sub.Subscribers)
	if err != nil {
		return 0, fmt.Errorf("適格ユーザーの取得に失敗しました: %w", err)
	}

	sent := 0
	for _, user := range users {
		for _, item := range fresh {
			if err := e.sendOne(ctx, user, sub, item); err != nil {
				slog.Warn("notification delivery failed",
					slog.String("game_id", sub.GameID),
					slog.String("steam_id", user.SteamID),
					slog.String("error", err.Error()),
				)
				continue
			}
			sent++
		}
		if err := e.users.TouchLastChecked(ctx, user.SteamID); err != nil {
			slog.Warn("failed to touch last_checked",
				slog.String("steam_id", user.SteamID),
				slog.String("error", err.Error()),
			)
		}
	}

	// 配送の部分失敗があってもウォーターマークは前進させる。
	// 失敗時の再配信より重複通知の抑止を優先する
	if err := e.subs.UpdateWatermark(ctx, sub.GameID, maxTimestamp); err != nil {
		return sent, fmt.Errorf("ウォーターマークの更新に失敗しました: %w", err)
	}
	return sent, nil
}

func (e *Engine) sendOne(ctx context.Context, user *model.User, sub *model.GameSubscription, item model.NewsItem) error {
	pushCtx, cancel := context.WithTimeout(ctx, e.pushTimeout)
	defer cancel()
	return e.sender.SendNews(pushCtx, user, sub.GameID, sub.Name, item)
}
