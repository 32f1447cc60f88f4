// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// ハンドラー、ミドルウェア、サービス層から利用する。
type Collector struct {
	loginAttempts    *prometheus.CounterVec
	guardDecisions   *prometheus.CounterVec
	ordersCreated    prometheus.Counter
	orderAmount      prometheus.Histogram
	paymentCallbacks *prometheus.CounterVec
	eventsPublished  *prometheus.CounterVec
	httpResponses    *prometheus.CounterVec
	sessionsCleaned  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "binna_login_attempts_total",
			Help: "ログイン試行数（方式・結果別）",
		}, []string{"method", "result"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "binna_route_guard_decisions_total",
			Help: "ルートガードの判定数",
		}, []string{"decision"}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "binna_orders_created_total",
			Help: "作成された注文の合計数",
		}),
		orderAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "binna_order_amount_sar",
			Help: "注文金額の分布（リヤル）",
			// 50 SAR から約 400,000 SAR まで
			Buckets: prometheus.ExponentialBuckets(50, 3, 9),
		}),
		paymentCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "binna_payment_callbacks_total",
			Help: "決済コールバックの処理数（請求書状態別）",
		}, []string{"source", "status"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "binna_events_published_total",
			Help: "ドメインイベントの発行数",
		}, []string{"routing_key", "result"}),
		httpResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "binna_http_responses_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"method", "status_code"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "binna_sessions_cleaned_total",
			Help: "クリーンアップで削除されたセッション数",
		}),
	}

	reg.MustRegister(
		c.loginAttempts,
		c.guardDecisions,
		c.ordersCreated,
		c.orderAmount,
		c.paymentCallbacks,
		c.eventsPublished,
		c.httpResponses,
		c.sessionsCleaned,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。methodはpassword・oauth・refresh等。
func (c *Collector) RecordLogin(method, result string) {
	c.loginAttempts.WithLabelValues(method, result).Inc()
}

// RecordGuardDecision はルートガードの判定を記録する。
func (c *Collector) RecordGuardDecision(decision string) {
	c.guardDecisions.WithLabelValues(decision).Inc()
}

// RecordOrderCreated は注文作成を記録する。金額はハララ単位。
func (c *Collector) RecordOrderCreated(totalHalalas int64) {
	c.ordersCreated.Inc()
	c.orderAmount.Observe(float64(totalHalalas) / 100)
}

// RecordPaymentCallback は決済コールバックの処理結果を記録する。
func (c *Collector) RecordPaymentCallback(source, status string) {
	c.paymentCallbacks.WithLabelValues(source, status).Inc()
}

// RecordEventPublished はイベント発行の結果を記録する。
func (c *Collector) RecordEventPublished(routingKey string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.eventsPublished.WithLabelValues(routingKey, result).Inc()
}

// RecordHTTPResponse はHTTPレスポンスのステータスコードを記録する。
func (c *Collector) RecordHTTPResponse(method string, statusCode int) {
	c.httpResponses.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// RecordSessionsCleaned はクリーンアップで削除したセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(n int64) {
	c.sessionsCleaned.Add(float64(n))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
