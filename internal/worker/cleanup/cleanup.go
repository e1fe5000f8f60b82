// Package cleanup は購読データの定期クリーンアップジョブを提供する。
// 購読者が空になったまま残った購読レコードを日次バッチで削除する。
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// OrphanCleaner は孤児購読レコードの削除インターフェース。
type OrphanCleaner interface {
	CleanupOrphans(ctx context.Context) (int64, error)
}

// OrphanRecorder は削除件数のメトリクス記録フック。
type OrphanRecorder interface {
	RecordOrphansDeleted(count int64)
}

// CleanupJob は孤児購読レコードの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	cleaner  OrphanCleaner
	recorder OrphanRecorder // 省略可
	logger   *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(cleaner OrphanCleaner, recorder OrphanRecorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		cleaner:  cleaner,
		recorder: recorder,
		logger:   logger,
	}
}

// Run は孤児購読レコードを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.cleaner.CleanupOrphans(ctx)
	if err != nil {
		j.logger.Error("購読クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}

	if j.recorder != nil {
		j.recorder.RecordOrphansDeleted(deleted)
	}

	j.logger.Info("購読クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は指定間隔のティッカーでジョブを定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("購読クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("購読クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			// エラーはRun内でログ済み
			_ = j.Run(ctx)
		}
	}
}
