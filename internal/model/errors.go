package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントに返す原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, steam, system
	Action   string // クライアント向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeUserAlreadyExists   = "USER_ALREADY_EXISTS"
	ErrCodeInvalidSteamID      = "INVALID_STEAMID"
	ErrCodeProfileNotFound     = "PROFILE_NOT_FOUND"
	ErrCodeGameAlreadyFollowed = "GAME_ALREADY_FOLLOWED"
	ErrCodeGameNotFollowed     = "GAME_NOT_FOLLOWED"
	ErrCodeSteamAPIFailed      = "STEAM_API_FAILED"
	ErrCodeSteamIDNotFound     = "STEAMID_NOT_FOUND"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
)

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(steamID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", steamID),
		Category: "auth",
		Action:   "SteamIDを確認するか、先にユーザー登録を行ってください。",
	}
}

// NewUserAlreadyExistsError はユーザー重複登録エラーを生成する。
func NewUserAlreadyExistsError(steamID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserAlreadyExists,
		Message:  fmt.Sprintf("このユーザーは既に登録されています: %s", steamID),
		Category: "validation",
		Action:   "登録済みのアカウントでそのまま利用できます。",
	}
}

// NewInvalidSteamIDError は無効なSteamIDエラーを生成する。
func NewInvalidSteamIDError(steamID string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSteamID,
		Message:  fmt.Sprintf("無効なSteamIDです: %s", steamID),
		Category: "validation",
		Action:   "17桁の数字のSteamID64形式で指定してください。",
	}
}

// NewProfileNotFoundError はSteamプロフィール未検出エラーを生成する。
func NewProfileNotFoundError(steamID string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("Steamプロフィールが見つかりません: %s", steamID),
		Category: "steam",
		Action:   "SteamIDが正しいか、プロフィールが公開されているか確認してください。",
	}
}

// NewGameAlreadyFollowedError はゲーム重複フォローエラーを生成する。
func NewGameAlreadyFollowedError(appID string) *APIError {
	return &APIError{
		Code:     ErrCodeGameAlreadyFollowed,
		Message:  fmt.Sprintf("このゲームは既にフォローしています: %s", appID),
		Category: "validation",
		Action:   "フォロー中のゲーム一覧を確認してください。",
	}
}

// NewGameNotFollowedError は未フォローゲームの解除エラーを生成する。
func NewGameNotFollowedError(appID string) *APIError {
	return &APIError{
		Code:     ErrCodeGameNotFollowed,
		Message:  fmt.Sprintf("このゲームはフォローしていません: %s", appID),
		Category: "validation",
		Action:   "フォロー中のゲーム一覧を確認してください。",
	}
}

// NewSteamAPIFailedError はSteam API呼び出し失敗エラーを生成する。
func NewSteamAPIFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSteamAPIFailed,
		Message:  fmt.Sprintf("Steam APIの呼び出しに失敗しました: %s", reason),
		Category: "steam",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSteamIDNotFoundError はOpenIDレスポンスからSteamIDを抽出できない場合の
// エラーを生成する。
func NewSteamIDNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSteamIDNotFound,
		Message:  "OpenIDレスポンスからSteamIDを取得できませんでした。",
		Category: "auth",
		Action:   "Steamログインをやり直してください。",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト形式を確認してください。",
	}
}
