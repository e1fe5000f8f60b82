// Package user はユーザー登録と設定管理のユースケースを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/hitoshi/steamnotif/internal/model"
	"github.com/hitoshi/steamnotif/internal/repository"
)

// steamID64Pattern はSteamID64形式（17桁の数字）の検証パターン。
var steamID64Pattern = regexp.MustCompile(`^\d{17}$`)

// ProfileFetcher はSteamプロフィールの取得元インターフェース。
type ProfileFetcher interface {
	GetPlayerSummary(ctx context.Context, steamID string) (*model.PlayerProfile, error)
}

// Service はユーザー管理のユースケースを実装する。
type Service struct {
	users    repository.UserRepository
	profiles ProfileFetcher
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, profiles ProfileFetcher) *Service {
	return &Service{
		users:    users,
		profiles: profiles,
		now:      time.Now,
	}
}

// ValidateSteamID はSteamID64形式かを検証する。
func ValidateSteamID(steamID string) error {
	if !steamID64Pattern.MatchString(steamID) {
		return model.NewInvalidSteamIDError(steamID)
	}
	return nil
}

// Register はSteamIDで新規ユーザーを登録する。
// Steamプロフィールを取得して表示情報を初期化する。
// 登録済みの場合はUSER_ALREADY_EXISTSエラーを返す。
func (s *Service) Register(ctx context.Context, steamID string) (*model.User, error) {
	if err := ValidateSteamID(steamID); err != nil {
		return nil, err
	}

	existing, err := s.users.FindBySteamID(ctx, steamID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewUserAlreadyExistsError(steamID)
	}

	profile, err := s.profiles.GetPlayerSummary(ctx, steamID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	newUser := &model.User{
		SteamID:              steamID,
		Username:             profile.Username,
		AvatarURL:            profile.AvatarURL,
		FollowedGameIDs:      []string{},
		NotificationsEnabled: true,
		AutoFollowNewGames:   false,
		LastChecked:          now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.users.Create(ctx, newUser); err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("user registered",
		slog.String("steam_id", steamID),
		slog.String("username", profile.Username),
	)
	return newUser, nil
}

// Get は指定SteamIDのユーザーを返す。
// 未登録の場合はUSER_NOT_FOUNDエラーを返す。
func (s *Service) Get(ctx context.Context, steamID string) (*model.User, error) {
	if err := ValidateSteamID(steamID); err != nil {
		return nil, err
	}
	user, err := s.users.FindBySteamID(ctx, steamID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(steamID)
	}
	return user, nil
}

// RefreshProfile はSteamプロフィールを再取得して表示情報を更新する。
func (s *Service) RefreshProfile(ctx context.Context, steamID string) (*model.User, error) {
	user, err := s.Get(ctx, steamID)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetPlayerSummary(ctx, steamID)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateProfile(ctx, steamID, profile.Username, profile.AvatarURL); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	user.Username = profile.Username
	user.AvatarURL = profile.AvatarURL
	return user, nil
}

// NotificationSettings は通知設定の更新内容。
type NotificationSettings struct {
	NotificationsEnabled bool
	PushToken            string // 空文字列はデバイス登録の解除を表す
	AutoFollowNewGames   bool
}

// UpdateNotificationSettings はユーザーの通知設定を更新する。
func (s *Service) UpdateNotificationSettings(ctx context.Context, steamID string, settings NotificationSettings) (*model.User, error) {
	user, err := s.Get(ctx, steamID)
	if err != nil {
		return nil, err
	}

	user.NotificationsEnabled = settings.NotificationsEnabled
	user.PushToken = settings.PushToken
	user.AutoFollowNewGames = settings.AutoFollowNewGames

	if err := s.users.UpdateNotificationSettings(ctx, user); err != nil {
		return nil, fmt.Errorf("通知設定の更新に失敗しました: %w", err)
	}

	slog.Info("notification settings updated",
		slog.String("steam_id", steamID),
		slog.Bool("notifications_enabled", settings.NotificationsEnabled),
		slog.Bool("has_push_token", settings.PushToken != ""),
		slog.Bool("auto_follow_new_games", settings.AutoFollowNewGames),
	)
	return user, nil
}
