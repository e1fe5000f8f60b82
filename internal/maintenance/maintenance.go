// Package maintenance は運用コマンドから実行する保守処理を提供する。
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hitoshi/steamnotif/internal/model"
	"github.com/hitoshi/steamnotif/internal/repository"
)

// Service は保守処理を実装する。
type Service struct {
	users repository.UserRepository
	subs  repository.GameSubscriptionRepository
	now   func() time.Time
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, subs repository.GameSubscriptionRepository) *Service {
	return &Service{
		users: users,
		subs:  subs,
		now:   time.Now,
	}
}

// BackfillSubscriptions はユーザーのフォロー集合から購読レコードを一括生成する。
// 購読レコード導入以前のデータからの一度きりの移行処理で、
// 既にレコードが存在する場合は何もしない。
// 生成されるレコードのウォーターマークは現在時刻で初期化し、
// 過去のニュースが一斉配信されないようにする。
func (s *Service) BackfillSubscriptions(ctx context.Context) (int, error) {
	count, err := s.subs.CountAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("購読レコード数の取得に失敗しました: %w", err)
	}
	if count > 0 {
		slog.Info("backfill skipped: game subscriptions already exist",
			slog.Int("existing", count),
		)
		return 0, nil
	}

	users, err := s.users.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}

	subscribersByGame := make(map[string][]string)
	for _, user := range users {
		for _, appID := range user.FollowedGameIDs {
			subscribersByGame[appID] = append(subscribersByGame[appID], user.SteamID)
		}
	}

	// 再実行時の挙動を安定させるためゲームID順に作成する
	gameIDs := make([]string, 0, len(subscribersByGame))
	for appID := range subscribersByGame {
		gameIDs = append(gameIDs, appID)
	}
	sort.Strings(gameIDs)

	now := s.now()
	created := 0
	for _, appID := range gameIDs {
		sub := &model.GameSubscription{
			GameID:            appID,
			Name:              model.DefaultGameName(appID),
			Subscribers:       subscribersByGame[appID],
			LastNewsTimestamp: now.Unix(),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.subs.Create(ctx, sub); err != nil {
			return created, fmt.Errorf("購読レコードの作成に失敗しました (game_id=%s): %w", appID, err)
		}
		created++
	}

	slog.Info("backfill finished",
		slog.Int("users", len(users)),
		slog.Int("subscriptions_created", created),
	)
	return created, nil
}

// ResetWatermarks は全購読レコードのウォーターマークを指定時刻に設定する。
// 障害でウォーターマークが先走った場合のリカバリ用。
// 過去に設定すると該当期間のニュースが再配信される点に注意。
func (s *Service) ResetWatermarks(ctx context.Context, to time.Time) (int64, error) {
	updated, err := s.subs.ResetWatermarks(ctx, to.Unix())
	if err != nil {
		return 0, fmt.Errorf("ウォーターマークのリセットに失敗しました: %w", err)
	}
	slog.Info("watermarks reset",
		slog.Int64("updated", updated),
		slog.Int64("timestamp", to.Unix()),
	)
	return updated, nil
}
