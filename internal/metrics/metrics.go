// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordAuthAttempt(operation string, success bool)
	RecordUpstreamRequest(service string, statusCode int)
	RecordUpstreamLatency(service string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordInterestTransition(status string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authAttempts        *prometheus.CounterVec
	upstreamStatus      *prometheus.CounterVec
	upstreamLatency     *prometheus.HistogramVec
	httpStatus          *prometheus.CounterVec
	interestTransitions *prometheus.CounterVec
}

// コンパイル時のインターフェース実装チェック
var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krishilink_auth_attempts_total",
			Help: "認証操作の試行数（操作種別・成否別）",
		}, []string{"operation", "result"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krishilink_upstream_requests_total",
			Help: "外部サービスへのリクエスト数（サービス・ステータスコード別）",
		}, []string{"service", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "krishilink_upstream_latency_seconds",
			Help:    "外部サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krishilink_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		interestTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krishilink_interest_transitions_total",
			Help: "購入希望の状態遷移数（遷移先別）",
		}, []string{"status"}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.upstreamStatus,
		c.upstreamLatency,
		c.httpStatus,
		c.interestTransitions,
	)

	return c
}

// RecordAuthAttempt は認証操作の試行を記録する。
// operationはregister/login/federated/logoutなど。
func (c *Collector) RecordAuthAttempt(operation string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authAttempts.WithLabelValues(operation, result).Inc()
}

// RecordUpstreamRequest は外部サービス呼び出しの結果を記録する。
// serviceはidentity/dataservice/newsのいずれか。
func (c *Collector) RecordUpstreamRequest(service string, statusCode int) {
	c.upstreamStatus.WithLabelValues(service, strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency は外部サービス呼び出しのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(service string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordHTTPStatus は自サーバーのレスポンスステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordInterestTransition は購入希望の状態遷移を記録する。
func (c *Collector) RecordInterestTransition(status string) {
	c.interestTransitions.WithLabelValues(status).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
