// Package metrics はPrometheusメトリクスの収集と公開を提供する。
// クライアント側（リクエストゲートウェイ、ニュース取り込み）と
// 開発用バックエンド（HTTPステータス）の両方から利用する。
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ゲートウェイやサービス層から利用する。
type MetricsCollector interface {
	RecordGatewayRequest(method, classification string, duration time.Duration)
	RecordForcedLogout()
	RecordHTTPStatus(statusCode int)
	RecordNewsImported(count int)
	RecordNewsImportFailure(reason string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	gatewayRequests *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
	forcedLogouts   prometheus.Counter
	httpStatus      *prometheus.CounterVec
	newsImported    prometheus.Counter
	newsImportFail  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campuslink_gateway_requests_total",
			Help: "ゲートウェイ経由のリクエスト数（メソッド・分類別）",
		}, []string{"method", "classification"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campuslink_gateway_request_duration_seconds",
			Help:    "ゲートウェイ経由のリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campuslink_forced_logouts_total",
			Help: "401応答による強制ログアウトの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campuslink_http_status_total",
			Help: "開発用バックエンドのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		newsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campuslink_news_imported_total",
			Help: "取り込まれたテックニュースの合計数",
		}),
		newsImportFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campuslink_news_import_fail_total",
			Help: "テックニュース取り込み失敗の合計数",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.gatewayRequests,
		c.gatewayLatency,
		c.forcedLogouts,
		c.httpStatus,
		c.newsImported,
		c.newsImportFail,
	)

	return c
}

// RecordGatewayRequest はゲートウェイ経由のリクエスト1件を記録する。
func (c *Collector) RecordGatewayRequest(method, classification string, duration time.Duration) {
	c.gatewayRequests.WithLabelValues(method, classification).Inc()
	c.gatewayLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordForcedLogout は401による強制ログアウトを記録する。
func (c *Collector) RecordForcedLogout() {
	c.forcedLogouts.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordNewsImported は取り込んだニュース件数を記録する。
func (c *Collector) RecordNewsImported(count int) {
	c.newsImported.Add(float64(count))
}

// RecordNewsImportFailure はニュース取り込みの失敗を記録する。
func (c *Collector) RecordNewsImportFailure(reason string) {
	c.newsImportFail.WithLabelValues(reason).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// WriteTextfile はレジストリの内容をnode_exporterのtextfile形式で書き出す。
// CLIのように短命なプロセスからメトリクスを残すために使う。
func WriteTextfile(path string, gatherer prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Noop は何も記録しないMetricsCollector。
type Noop struct{}

func (Noop) RecordGatewayRequest(string, string, time.Duration) {}
func (Noop) RecordForcedLogout()                                {}
func (Noop) RecordHTTPStatus(int)                               {}
func (Noop) RecordNewsImported(int)                             {}
func (Noop) RecordNewsImportFailure(string)                     {}
