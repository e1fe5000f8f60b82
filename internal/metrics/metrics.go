// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/steamnotif/internal/stats"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	ObserveNewsCheckCycle(duration time.Duration, st stats.BatchStats)
	ObserveLibrarySync(duration time.Duration, st stats.BatchStats)
	RecordHTTPStatus(statusCode int)
	RecordOrphansDeleted(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	newsCycles        prometheus.Counter
	newsCycleDuration prometheus.Histogram
	notificationsSent prometheus.Counter
	newsCheckErrors   prometheus.Counter
	gamesFollowed     prometheus.Counter
	librarySyncErrors prometheus.Counter
	httpStatus        *prometheus.CounterVec
	orphansDeleted    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		newsCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "steamnotif_news_cycles_total",
			Help: "完了したニュースチェックサイクルの合計数",
		}),
		newsCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "steamnotif_news_cycle_duration_seconds",
			Help:    "ニュースチェックサイクルの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "steamnotif_notifications_sent_total",
			Help: "送信されたプッシュ通知の合計数",
		}),
		newsCheckErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "steamnotif_news_check_errors_total",
			Help: "ニュースチェックでエラーになったゲームの合計数",
		}),
		gamesFollowed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "steamnotif_games_auto_followed_total",
			Help: "ライブラリ同期で自動フォローされたゲームの合計数",
		}),
		librarySyncErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "steamnotif_library_sync_errors_total",
			Help: "ライブラリ同期でエラーになったユーザーの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "steamnotif_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		orphansDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "steamnotif_orphan_subscriptions_deleted_total",
			Help: "クリーンアップで削除された孤児購読レコードの合計数",
		}),
	}

	reg.MustRegister(
		c.newsCycles,
		c.newsCycleDuration,
		c.notificationsSent,
		c.newsCheckErrors,
		c.gamesFollowed,
		c.librarySyncErrors,
		c.httpStatus,
		c.orphansDeleted,
	)

	return c
}

// ObserveNewsCheckCycle はニュースチェックサイクル1回分の結果を記録する。
func (c *Collector) ObserveNewsCheckCycle(duration time.Duration, st stats.BatchStats) {
	c.newsCycles.Inc()
	c.newsCycleDuration.Observe(duration.Seconds())
	c.notificationsSent.Add(float64(st.TotalUpdates))
	c.newsCheckErrors.Add(float64(st.Errors))
}

// ObserveLibrarySync はライブラリ同期1回分の結果を記録する。
func (c *Collector) ObserveLibrarySync(duration time.Duration, st stats.BatchStats) {
	c.gamesFollowed.Add(float64(st.TotalUpdates))
	c.librarySyncErrors.Add(float64(st.Errors))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordOrphansDeleted は削除された孤児購読レコード数を記録する。
func (c *Collector) RecordOrphansDeleted(count int64) {
	c.orphansDeleted.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
