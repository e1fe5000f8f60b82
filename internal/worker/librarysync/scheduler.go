// Package librarysync はライブラリ同期のバックグラウンド実行を提供する。
// 全ユーザーを時間帯ごとのグループに分割し、Steam APIへの負荷を分散させる。
package librarysync

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/steamnotif/internal/stats"
)

// fullSyncWeekday と fullSyncHour は週次フル同期の実行タイミング。
// アクセスの少ない日曜早朝に実行する。
const (
	fullSyncWeekday = time.Sunday
	fullSyncHour    = 4
)

// Syncer はライブラリ同期の実行インターフェース。
type Syncer interface {
	SyncUserGroup(ctx context.Context, groupIndex int) (*stats.BatchStats, error)
	SyncAllUsers(ctx context.Context) (*stats.BatchStats, error)
}

// Scheduler はライブラリ同期の定期実行を行う。
// 通常ティックでは現在時刻の時間に対応するグループのみを同期し、
// 週次のタイミングで全ユーザーのフル同期を行う。
type Scheduler struct {
	syncer Syncer
	logger *slog.Logger
	now    func() time.Time // テストで差し替え可能
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(syncer Syncer, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer: syncer,
		logger: logger,
		now:    time.Now,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
// 起動直後には実行しない（再起動のたびに同期が走るのを避ける）。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("ライブラリ同期スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ライブラリ同期スケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は現在時刻に応じた同期を1回実行する。
// 週次フル同期のタイミング（日曜4時台の最初のティック）ではフル同期を行う。
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := s.now()

	if s.isFullSyncSlot(now) {
		if _, err := s.syncer.SyncAllUsers(ctx); err != nil {
			s.logger.Error("フルライブラリ同期の実行に失敗しました",
				slog.String("error", err.Error()),
			)
		}
		return
	}

	groupIndex := now.Hour()
	if _, err := s.syncer.SyncUserGroup(ctx, groupIndex); err != nil {
		s.logger.Error("グループライブラリ同期の実行に失敗しました",
			slog.Int("group_index", groupIndex),
			slog.String("error", err.Error()),
		)
	}
}

// isFullSyncSlot は週次フル同期の時間帯かを判定する。
// 30分間隔のティックのうち、対象時間の最初のティックのみを拾う。
func (s *Scheduler) isFullSyncSlot(now time.Time) bool {
	return now.Weekday() == fullSyncWeekday && now.Hour() == fullSyncHour && now.Minute() < 30
}
