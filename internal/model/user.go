// Package model はドメインモデルを定義する。
package model

import "time"

// User はSteamアカウントで登録されたサービス利用ユーザーを表す。
// followedGamesはappIdの集合として単一の表現で保持する
// （旧形式のオブジェクト配列はBackfill時に一度だけ変換される）。
type User struct {
	SteamID              string
	Username             string
	AvatarURL            string
	FollowedGameIDs      []string
	NotificationsEnabled bool
	PushToken            string // 空文字列はデバイス未登録を表す
	AutoFollowNewGames   bool
	LastChecked          time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsEligibleForPush は通知配信の適格条件を判定する。
// 通知が有効かつプッシュトークンが登録されている場合のみtrueを返す。
func (u *User) IsEligibleForPush() bool {
	return u.NotificationsEnabled && u.PushToken != ""
}

// Follows は指定したゲームを既にフォローしているかを返す。
func (u *User) Follows(appID string) bool {
	for _, id := range u.FollowedGameIDs {
		if id == appID {
			return true
		}
	}
	return false
}
