package model

// NewsItem はSteamニュースAPIから取得した1件の記事を表す。
// ウォーターマーク以外は永続化されない一時データ。
// フィールド名はGetNewsForApp v2のレスポンスに対応する。
type NewsItem struct {
	GID       string // Steam側の記事ID（不透明な識別子）
	Title     string
	URL       string
	Author    string
	Contents  string // HTML/BBCode混じりの本文。通知前にサニタイズする
	FeedLabel string
	Date      int64 // 公開日時（Unix秒）
}

// OwnedGame はユーザーが所有するゲームを表す。
// ライブラリ同期とフォロー候補の検出に使用する。
type OwnedGame struct {
	AppID           string
	Name            string
	IconURL         string
	LogoURL         string
	PlaytimeForever int // 累計プレイ時間（分）
}

// PlayerProfile はSteamプロフィールの要約を表す。
type PlayerProfile struct {
	SteamID    string
	Username   string
	AvatarURL  string
	ProfileURL string
}
