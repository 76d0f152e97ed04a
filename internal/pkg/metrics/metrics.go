package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約試行の総数
	// result: success, duplicate, capacity_exceeded, not_found, invalid,
	// transient_error, lock_failed, error
	BookingAttemptsTotal *prometheus.CounterVec

	// 重複予約キャッシュの操作数（operation: get/set, result: hit/miss/ok/error/dropped）
	DedupCacheOpsTotal *prometheus.CounterVec

	// イベントロックの操作時間（operation: acquire/release, status: success/failed）
	EventLockDuration *prometheus.HistogramVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		BookingAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_attempts_total",
				Help: "Total number of booking attempts",
			},
			[]string{"result"},
		),
		DedupCacheOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dedup_cache_operations_total",
				Help: "Total number of dedup cache operations",
			},
			[]string{"operation", "result"},
		),
		EventLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "event_lock_duration_seconds",
				Help:    "Time spent on event lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BookingAttemptsTotal,
		m.DedupCacheOpsTotal,
		m.EventLockDuration,
	)

	return m
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す（未初期化ならnil）
func Get() *Metrics {
	return defaultMetrics
}

// Set はデフォルトのメトリクスインスタンスを差し替える（主にテスト用）
func Set(m *Metrics) {
	defaultMetrics = m
}
