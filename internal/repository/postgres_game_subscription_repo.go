package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/steamnotif/internal/model"
)

// PostgresGameSubscriptionRepo はPostgreSQLを使用したゲーム購読リポジトリ。
type PostgresGameSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresGameSubscriptionRepo はPostgresGameSubscriptionRepoを生成する。
func NewPostgresGameSubscriptionRepo(db *sql.DB) *PostgresGameSubscriptionRepo {
	return &PostgresGameSubscriptionRepo{db: db}
}

// FindByGameID は指定ゲームIDの購読レコードを取得する。見つからない場合はnilを返す。
func (r *PostgresGameSubscriptionRepo) FindByGameID(ctx context.Context, gameID string) (*model.GameSubscription, error) {
	sub := &model.GameSubscription{}
	err := r.db.QueryRowContext(ctx,
		`SELECT game_id, name, subscribers, last_news_timestamp, created_at, updated_at
		 FROM game_subscriptions WHERE game_id = $1`,
		gameID,
	).Scan(&sub.GameID, &sub.Name, pq.Array(&sub.Subscribers), &sub.LastNewsTimestamp, &sub.CreatedAt, &sub.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("購読レコードの取得に失敗しました: %w", err)
	}

	return sub, nil
}

// ListAll は全購読レコードを返す。
func (r *PostgresGameSubscriptionRepo) ListAll(ctx context.Context) ([]*model.GameSubscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT game_id, name, subscribers, last_news_timestamp, created_at, updated_at
		 FROM game_subscriptions ORDER BY game_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("購読レコード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var subs []*model.GameSubscription
	for rows.Next() {
		sub := &model.GameSubscription{}
		if err := rows.Scan(&sub.GameID, &sub.Name, pq.Array(&sub.Subscribers), &sub.LastNewsTimestamp, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("購読レコード行の読み取りに失敗しました: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("購読レコード一覧の走査に失敗しました: %w", err)
	}
	return subs, nil
}

// Create は購読レコードを作成する。
func (r *PostgresGameSubscriptionRepo) Create(ctx context.Context, sub *model.GameSubscription) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO game_subscriptions (game_id, name, subscribers, last_news_timestamp, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sub.GameID, sub.Name, pq.Array(sub.Subscribers), sub.LastNewsTimestamp, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("購読レコードの作成に失敗しました: %w", err)
	}
	return nil
}

// AddSubscriber は購読者集合にSteamIDを追加する。重複追加はしない。
func (r *PostgresGameSubscriptionRepo) AddSubscriber(ctx context.Context, gameID, steamID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE game_subscriptions
		 SET subscribers = array_append(subscribers, $2), updated_at = NOW()
		 WHERE game_id = $1 AND NOT ($2 = ANY(subscribers))`,
		gameID, steamID,
	)
	if err != nil {
		return fmt.Errorf("購読者の追加に失敗しました: %w", err)
	}
	// 0行更新は「既に購読者」のケースを含むためエラーとしない
	_, _ = result.RowsAffected()
	return nil
}

// RemoveSubscriber は購読者集合からSteamIDを除去する。
func (r *PostgresGameSubscriptionRepo) RemoveSubscriber(ctx context.Context, gameID, steamID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE game_subscriptions
		 SET subscribers = array_remove(subscribers, $2), updated_at = NOW()
		 WHERE game_id = $1`,
		gameID, steamID,
	)
	if err != nil {
		return fmt.Errorf("購読者の除去に失敗しました: %w", err)
	}
	return nil
}

// UpdateWatermark は配信済みニュースのウォーターマークを更新する。
// GREATESTにより格納値の単調非減少をストレージ層で保証する。
func (r *PostgresGameSubscriptionRepo) UpdateWatermark(ctx context.Context, gameID string, timestamp int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE game_subscriptions
		 SET last_news_timestamp = GREATEST(last_news_timestamp, $2), updated_at = NOW()
		 WHERE game_id = $1`,
		gameID, timestamp,
	)
	if err != nil {
		return fmt.Errorf("ウォーターマークの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("購読レコードが見つかりません: %s", gameID)
	}
	return nil
}

// Delete は指定ゲームIDの購読レコードを削除する。
func (r *PostgresGameSubscriptionRepo) Delete(ctx context.Context, gameID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM game_subscriptions WHERE game_id = $1`,
		gameID,
	)
	if err != nil {
		return fmt.Errorf("購読レコードの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("購読レコードが見つかりません: %s", gameID)
	}
	return nil
}

// DeleteWhereEmpty は購読者が空の孤児レコードを一括削除し、削除件数を返す。
func (r *PostgresGameSubscriptionRepo) DeleteWhereEmpty(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM game_subscriptions WHERE cardinality(subscribers) = 0`,
	)
	if err != nil {
		return 0, fmt.Errorf("孤児レコードの削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// CountAll は購読レコードの総数を返す。
func (r *PostgresGameSubscriptionRepo) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM game_subscriptions`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("購読レコード数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// ResetWatermarks は全レコードのウォーターマークを指定値に設定する。
func (r *PostgresGameSubscriptionRepo) ResetWatermarks(ctx context.Context, timestamp int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE game_subscriptions SET last_news_timestamp = $1, updated_at = NOW()`,
		timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("ウォーターマークのリセットに失敗しました: %w", err)
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return updated, nil
}

// compile-time interface check
var _ GameSubscriptionRepository = (*PostgresGameSubscriptionRepo)(nil)
