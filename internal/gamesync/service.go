// Package gamesync はSteamライブラリとフォロー集合の同期を提供する。
// ユーザーの所有ゲームのうち未フォローのものを検出し、
// 自動フォローが有効なユーザーには自動的にフォローを追加する。
package gamesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/steamnotif/internal/model"
	"github.com/hitoshi/steamnotif/internal/repository"
	"github.com/hitoshi/steamnotif/internal/stats"
)

// LibraryFetcher は所有ゲーム一覧の取得元インターフェース。
type LibraryFetcher interface {
	GetOwnedGames(ctx context.Context, steamID string) ([]model.OwnedGame, error)
}

// GameFollower はフォロー追加のインターフェース。
type GameFollower interface {
	Follow(ctx context.Context, steamID, appID, gameName string) error
}

// AutoFollowNotifier は自動フォロー完了通知の送信インターフェース。
type AutoFollowNotifier interface {
	SendAutoFollow(ctx context.Context, user *model.User, appID, gameName string) error
}

// Service はライブラリ同期のユースケースを実装する。
type Service struct {
	users       repository.UserRepository
	library     LibraryFetcher
	follower    GameFollower
	notifier    AutoFollowNotifier // 省略可
	totalGroups int
}

// NewService はServiceを生成する。
// totalGroupsはグループ同期の分割数（時間帯で全ユーザーを分散させる）。
// notifierを指定すると、自動フォローしたゲームごとに完了通知を送る。
func NewService(users repository.UserRepository, library LibraryFetcher, follower GameFollower, notifier AutoFollowNotifier, totalGroups int) *Service {
	if totalGroups <= 0 {
		totalGroups = 1
	}
	return &Service{
		users:       users,
		library:     library,
		follower:    follower,
		notifier:    notifier,
		totalGroups: totalGroups,
	}
}

// NewGamesForUser はユーザーの所有ゲームのうち未フォローのものを返す。
func (s *Service) NewGamesForUser(ctx context.Context, user *model.User) ([]model.OwnedGame, error) {
	owned, err := s.library.GetOwnedGames(ctx, user.SteamID)
	if err != nil {
		return nil, fmt.Errorf("所有ゲームの取得に失敗しました: %w", err)
	}

	var newGames []model.OwnedGame
	for _, game := range owned {
		if !user.Follows(game.AppID) {
			newGames = append(newGames, game)
		}
	}
	return newGames, nil
}

// SyncUser は1ユーザー分のライブラリ同期を行い、
// 自動フォローしたゲーム数を返す。
// 自動フォローが無効なユーザーは検出のみ行い、フォローは追加しない。
func (s *Service) SyncUser(ctx context.Context, user *model.User) (int, error) {
	newGames, err := s.NewGamesForUser(ctx, user)
	if err != nil {
		return 0, err
	}
	if len(newGames) == 0 {
		return 0, nil
	}

	if !user.AutoFollowNewGames {
		slog.Debug("new games detected without auto-follow",
			slog.String("steam_id", user.SteamID),
			slog.Int("new_games", len(newGames)),
		)
		return 0, nil
	}

	followed := 0
	for _, game := range newGames {
		err := s.follower.Follow(ctx, user.SteamID, game.AppID, game.Name)
		if err != nil {
			// 並行フォローによる重複は成功扱い
			var apiErr *model.APIError
			if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeGameAlreadyFollowed {
				continue
			}
			slog.Warn("auto-follow failed",
				slog.String("steam_id", user.SteamID),
				slog.String("game_id", game.AppID),
				slog.String("error", err.Error()),
			)
			continue
		}
		followed++

		// 通知はベストエフォート。失敗してもフォロー自体は成立している
		if s.notifier != nil {
			if err := s.notifier.SendAutoFollow(ctx, user, game.AppID, game.Name); err != nil {
				slog.Warn("auto-follow notification failed",
					slog.String("steam_id", user.SteamID),
					slog.String("game_id", game.AppID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if followed > 0 {
		slog.Info("library sync auto-followed new games",
			slog.String("steam_id", user.SteamID),
			slog.Int("followed", followed),
		)
	}
	return followed, nil
}

// SyncUserGroup は全ユーザーをtotalGroups個のグループに分割し、
// groupIndex番目のグループのみを同期する。
// 30分間隔の実行を時間帯（hour % totalGroups）で分散させるための入口。
func (s *Service) SyncUserGroup(ctx context.Context, groupIndex int) (*stats.BatchStats, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}

	start, end := stats.GroupBounds(len(users), groupIndex%s.totalGroups, s.totalGroups)
	return s.syncUsers(ctx, users[start:end], fmt.Sprintf("group %d/%d", groupIndex%s.totalGroups, s.totalGroups))
}

// SyncAllUsers は全ユーザーを同期する。週次のフル同期用。
func (s *Service) SyncAllUsers(ctx context.Context) (*stats.BatchStats, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return s.syncUsers(ctx, users, "full")
}

func (s *Service) syncUsers(ctx context.Context, users []*model.User, scope string) (*stats.BatchStats, error) {
	start := time.Now()
	st := &stats.BatchStats{}
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		followed, err := s.SyncUser(ctx, user)
		st.Record(followed, err != nil)
		if err != nil {
			slog.Error("library sync failed for user",
				slog.String("steam_id", user.SteamID),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("library sync finished",
		slog.String("scope", scope),
		slog.Int("users_synced", st.UnitsProcessed),
		slog.Int("users_with_new_games", st.UnitsWithUpdates),
		slog.Int("games_followed", st.TotalUpdates),
		slog.Int("errors", st.Errors),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return st, nil
}
