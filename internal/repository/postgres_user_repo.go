package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/steamnotif/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `steam_id, username, avatar_url, followed_game_ids,
	 notifications_enabled, COALESCE(push_token, ''), auto_follow_new_games,
	 last_checked, created_at, updated_at`

// scanUser は1行分のユーザーデータをmodel.Userに読み取る。
func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.SteamID, &user.Username, &user.AvatarURL,
		pq.Array(&user.FollowedGameIDs),
		&user.NotificationsEnabled, &user.PushToken, &user.AutoFollowNewGames,
		&user.LastChecked, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindBySteamID は指定SteamIDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindBySteamID(ctx context.Context, steamID string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE steam_id = $1`,
		steamID,
	)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (steam_id, username, avatar_url, followed_game_ids,
		     notifications_enabled, push_token, auto_follow_new_games,
		     last_checked, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)`,
		user.SteamID, user.Username, user.AvatarURL,
		pq.Array(user.FollowedGameIDs),
		user.NotificationsEnabled, user.PushToken, user.AutoFollowNewGames,
		user.LastChecked, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateProfile はSteamプロフィール由来の表示情報を更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, steamID, username, avatarURL string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = $2, avatar_url = $3, updated_at = NOW()
		 WHERE steam_id = $1`,
		steamID, username, avatarURL,
	)
	if err != nil {
		return fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("ユーザーが見つかりません: %s", steamID)
	}
	return nil
}

// UpdateNotificationSettings は通知設定を更新する。
func (r *PostgresUserRepo) UpdateNotificationSettings(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET notifications_enabled = $2, push_token = NULLIF($3, ''),
		     auto_follow_new_games = $4, updated_at = NOW()
		 WHERE steam_id = $1`,
		user.SteamID, user.NotificationsEnabled, user.PushToken, user.AutoFollowNewGames,
	)
	if err != nil {
		return fmt.Errorf("通知設定の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("ユーザーが見つかりません: %s", user.SteamID)
	}
	return nil
}

// AddFollowedGame はユーザーのフォロー集合にゲームIDを追加する。
// 既に含まれている場合は変更しない。
func (r *PostgresUserRepo) AddFollowedGame(ctx context.Context, steamID, appID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET followed_game_ids = array_append(followed_game_ids, $2), updated_at = NOW()
		 WHERE steam_id = $1 AND NOT ($2 = ANY(followed_game_ids))`,
		steamID, appID,
	)
	if err != nil {
		return fmt.Errorf("フォローゲームの追加に失敗しました: %w", err)
	}
	return nil
}

// RemoveFollowedGame はユーザーのフォロー集合からゲームIDを除去する。
func (r *PostgresUserRepo) RemoveFollowedGame(ctx context.Context, steamID, appID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET followed_game_ids = array_remove(followed_game_ids, $2), updated_at = NOW()
		 WHERE steam_id = $1`,
		steamID, appID,
	)
	if err != nil {
		return fmt.Errorf("フォローゲームの除去に失敗しました: %w", err)
	}
	return nil
}

// ListAll は全ユーザーを返す。
func (r *PostgresUserRepo) ListAll(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ユーザー行の読み取りに失敗しました: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザー一覧の走査に失敗しました: %w", err)
	}
	return users, nil
}

// FindEligibleBySteamIDs は通知配信の適格条件を満たすユーザーのみを返す。
// 絞り込みはサーバーサイドで行う。
func (r *PostgresUserRepo) FindEligibleBySteamIDs(ctx context.Context, steamIDs []string) ([]*model.User, error) {
	if len(steamIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE steam_id = ANY($1)
		   AND notifications_enabled = true
		   AND push_token IS NOT NULL AND push_token <> ''`,
		pq.Array(steamIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("適格ユーザーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("適格ユーザー行の読み取りに失敗しました: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("適格ユーザー一覧の走査に失敗しました: %w", err)
	}
	return users, nil
}

// TouchLastChecked はユーザーの最終チェック日時を現在時刻に更新する。
func (r *PostgresUserRepo) TouchLastChecked(ctx context.Context, steamID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_checked = NOW(), updated_at = NOW() WHERE steam_id = $1`,
		steamID,
	)
	if err != nil {
		return fmt.Errorf("最終チェック日時の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
