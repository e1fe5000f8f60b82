package model

import (
	"fmt"
	"time"
)

// GameSubscription はゲーム単位の購読レコードを表す。
// システム全体でゲームIDごとに1件のみ存在し、そのゲームをフォローする
// 全ユーザーのSteamIDと、最後に配信済みのニュースのタイムスタンプを保持する。
// subscribersが空になったレコードは削除される（孤児レコードは残さない）。
type GameSubscription struct {
	GameID            string
	Name              string
	Subscribers       []string
	LastNewsTimestamp int64 // Unix秒。この時刻以前のニュースは配信済みとみなす
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasSubscriber は指定ユーザーが購読者に含まれるかを返す。
func (g *GameSubscription) HasSubscriber(steamID string) bool {
	for _, s := range g.Subscribers {
		if s == steamID {
			return true
		}
	}
	return false
}

// DefaultGameName はゲーム名が不明な場合の表示名を返す。
func DefaultGameName(appID string) string {
	return fmt.Sprintf("Game %s", appID)
}

// NewGameSubscription は初回フォロー時の新規購読レコードを生成する。
// ウォーターマークは現在時刻で初期化し、フォロー以前のニュースが
// 遡って配信されないようにする。
func NewGameSubscription(appID, name, steamID string, now time.Time) *GameSubscription {
	if name == "" {
		name = DefaultGameName(appID)
	}
	return &GameSubscription{
		GameID:            appID,
		Name:              name,
		Subscribers:       []string{steamID},
		LastNewsTimestamp: now.Unix(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
