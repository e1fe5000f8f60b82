// Package newscheck はニュースチェックのバックグラウンド実行を提供する。
package newscheck

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/steamnotif/internal/newscheck"
	"github.com/hitoshi/steamnotif/internal/stats"
)

// CycleRunner はニュースチェックサイクルの実行インターフェース。
type CycleRunner interface {
	RunCycle(ctx context.Context) (*stats.BatchStats, error)
}

// Scheduler はニュースチェックサイクルの定期実行を行う。
// サイクル自体が多重起動を拒否するため、前回のサイクルが
// 間隔を超過した場合はそのティックをスキップする。
type Scheduler struct {
	runner CycleRunner
	logger *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(runner CycleRunner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		logger: logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("ニュースチェックスケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ニュースチェックスケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce はニュースチェックサイクルを1回実行する。
// 実行中のサイクルがある場合はスキップする。
func (s *Scheduler) RunOnce(ctx context.Context) {
	if _, err := s.runner.RunCycle(ctx); err != nil {
		if errors.Is(err, newscheck.ErrCycleInProgress) {
			s.logger.Warn("前回のニュースチェックが未完了のためスキップします")
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("ニュースチェックサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
