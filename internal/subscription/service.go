// Package subscription はゲームのフォロー/解除と購読レコードの整合を提供する。
// ユーザー側のフォロー集合とゲーム側の購読者集合を常に対で更新する。
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/steamnotif/internal/model"
	"github.com/hitoshi/steamnotif/internal/repository"
)

// Service はフォロー/解除のユースケースを実装する。
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

// Follow はユーザーのフォロー集合にゲームを追加し、対応する購読レコードを
// 作成または更新する。購読レコードが新規の場合、ウォーターマークは現在時刻で
// 初期化される（フォロー以前のニュースは遡って配信しない）。
// 既にフォロー済みの場合はGAME_ALREADY_FOLLOWEDエラーを返す。
func (s *Service) Follow(ctx context.Context, steamID, appID, gameName string) error {
	user, err := s.users.FindBySteamID(ctx, steamID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError(steamID)
	}
	if user.Follows(appID) {
		return model.NewGameAlreadyFollowedError(appID)
	}

	if err := s.users.AddFollowedGame(ctx, steamID, appID); err != nil {
		return fmt.Errorf("フォローの追加に失敗しました: %w", err)
	}

	sub, err := s.subs.FindByGameID(ctx, appID)
	if err != nil {
		return fmt.Errorf("購読レコードの取得に失敗しました: %w", err)
	}
	if sub == nil {
		newSub := model.NewGameSubscription(appID, gameName, steamID, s.now())
		if err := s.subs.Create(ctx, newSub); err != nil {
			return fmt.Errorf("購読レコードの作成に失敗しました: %w", err)
		}
		slog.Info("game subscription created",
			slog.String("game_id", appID),
			slog.String("steam_id", steamID),
		)
		return nil
	}

	if err := s.subs.AddSubscriber(ctx, appID, steamID); err != nil {
		return fmt.Errorf("購読者の追加に失敗しました: %w", err)
	}
	return nil
}

// Unfollow はユーザーのフォロー集合からゲームを除去し、購読レコードの
// 購読者集合からも除去する。最後の購読者が抜けた場合はレコードごと削除する。
// フォローしていない場合はGAME_NOT_FOLLOWEDエラーを返す。
func (s *Service) Unfollow(ctx context.Context, steamID, appID string) error {
	user, err := s.users.FindBySteamID(ctx, steamID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError(steamID)
	}
	if !user.Follows(appID) {
		return model.NewGameNotFollowedError(appID)
	}

	if err := s.users.RemoveFollowedGame(ctx, steamID, appID); err != nil {
		return fmt.Errorf("フォローの除去に失敗しました: %w", err)
	}
	if err := s.subs.RemoveSubscriber(ctx, appID, steamID); err != nil {
		return fmt.Errorf("購読者の除去に失敗しました: %w", err)
	}

	sub, err := s.subs.FindByGameID(ctx, appID)
	if err != nil {
		return fmt.Errorf("購読レコードの取得に失敗しました: %w", err)
	}
	if sub != nil && len(sub.Subscribers) == 0 {
		if err := s.subs.Delete(ctx, appID); err != nil {
			return fmt.Errorf("空の購読レコードの削除に失敗しました: %w", err)
		}
		slog.Info("empty game subscription removed", slog.String("game_id", appID))
	}
	return nil
}

// CleanupOrphans は購読者のいない購読レコードを一括削除し、削除件数を返す。
// 通常の解除フローで削除されるため件数は0が期待値だが、
// 障害時の残骸を回収するため定期的に実行する。
func (s *Service) CleanupOrphans(ctx context.Context) (int64, error) {
	deleted, err := s.subs.DeleteWhereEmpty(ctx)
	if err != nil {
		return 0, fmt.Errorf("孤児レコードの削除に失敗しました: %w", err)
	}
	if deleted > 0 {
		slog.Info("orphan game subscriptions removed", slog.Int64("deleted", deleted))
	}
	return deleted, nil
}
