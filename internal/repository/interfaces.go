// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/steamnotif/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindBySteamID は指定SteamIDのユーザーを取得する。見つからない場合はnilを返す。
	FindBySteamID(ctx context.Context, steamID string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile はSteamプロフィール由来の表示情報を更新する。
	UpdateProfile(ctx context.Context, steamID, username, avatarURL string) error

	// UpdateNotificationSettings は通知設定（有効フラグ、プッシュトークン、
	// 自動フォロー）を更新する。
	UpdateNotificationSettings(ctx context.Context, user *model.User) error

	// AddFollowedGame はユーザーのフォロー集合にゲームIDを追加する。
	// 既に含まれている場合は何もしない（集合として扱う）。
	AddFollowedGame(ctx context.Context, steamID, appID string) error

	// RemoveFollowedGame はユーザーのフォロー集合からゲームIDを除去する。
	RemoveFollowedGame(ctx context.Context, steamID, appID string) error

	// ListAll は全ユーザーを返す。ライブラリ同期とBackfillで使用する。
	ListAll(ctx context.Context) ([]*model.User, error)

	// FindEligibleBySteamIDs は指定SteamID群のうち通知配信の適格条件
	// （notifications_enabled かつ push_token あり）を満たすユーザーのみを
	// サーバーサイドで絞り込んで返す。
	FindEligibleBySteamIDs(ctx context.Context, steamIDs []string) ([]*model.User, error)

	// TouchLastChecked はユーザーの最終チェック日時を現在時刻に更新する。
	TouchLastChecked(ctx context.Context, steamID string) error
}

// GameSubscriptionRepository はゲーム購読レコードの永続化インターフェース。
type GameSubscriptionRepository interface {
	// FindByGameID は指定ゲームIDの購読レコードを取得する。見つからない場合はnilを返す。
	FindByGameID(ctx context.Context, gameID string) (*model.GameSubscription, error)

	// ListAll は全購読レコードを返す。ニュースチェックサイクルの起点。
	ListAll(ctx context.Context) ([]*model.GameSubscription, error)

	// Create は購読レコードを作成する。
	Create(ctx context.Context, sub *model.GameSubscription) error

	// AddSubscriber は購読者集合にSteamIDを追加する。重複追加はしない。
	AddSubscriber(ctx context.Context, gameID, steamID string) error

	// RemoveSubscriber は購読者集合からSteamIDを除去する。
	RemoveSubscriber(ctx context.Context, gameID, steamID string) error

	// UpdateWatermark は配信済みニュースのウォーターマークを更新する。
	// 格納値はGREATESTで保護され、単調非減少が保証される。
	UpdateWatermark(ctx context.Context, gameID string, timestamp int64) error

	// Delete は指定ゲームIDの購読レコードを削除する。
	Delete(ctx context.Context, gameID string) error

	// DeleteWhereEmpty は購読者が空のレコードを一括削除し、削除件数を返す。
	// 孤児レコードのクリーンアップ用。
	DeleteWhereEmpty(ctx context.Context) (int64, error)

	// CountAll は購読レコードの総数を返す。Backfillの実行済み判定に使用する。
	CountAll(ctx context.Context) (int, error)

	// ResetWatermarks は全レコードのウォーターマークを指定値に設定し、
	// 更新件数を返す。運用リカバリ用。
	ResetWatermarks(ctx context.Context, timestamp int64) (int64, error)
}
