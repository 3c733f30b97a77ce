// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// キャッシュ参照結果のラベル値
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheShared = "shared"
	CacheL2Hit  = "l2_hit"
	CacheError  = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// バックエンドクライアント、クエリキャッシュ、ハンドラーから利用する。
type MetricsCollector interface {
	RecordBackendCall(op string, outcome string, duration time.Duration)
	RecordCacheLookup(name string, result string)
	RecordLogin(outcome string)
	RecordAdminMutation(resource, action, outcome string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	backendCalls   *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
	logins         *prometheus.CounterVec
	adminMutations *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "periodico_backend_calls_total",
			Help: "バックエンドAPI呼び出し数（操作・結果別）",
		}, []string{"op", "outcome"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "periodico_backend_latency_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "periodico_query_cache_lookups_total",
			Help: "クエリキャッシュ参照数（キー名・結果別）",
		}, []string{"name", "result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "periodico_login_attempts_total",
			Help: "管理者ログイン試行数（結果別）",
		}, []string{"outcome"}),
		adminMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "periodico_admin_mutations_total",
			Help: "管理画面からの作成・更新・削除の数",
		}, []string{"resource", "action", "outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "periodico_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.backendCalls,
		c.backendLatency,
		c.cacheLookups,
		c.logins,
		c.adminMutations,
		c.httpStatus,
	)

	return c
}

// RecordBackendCall はバックエンド呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordBackendCall(op string, outcome string, duration time.Duration) {
	c.backendCalls.WithLabelValues(op, outcome).Inc()
	c.backendLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordCacheLookup はクエリキャッシュの参照結果を記録する。
func (c *Collector) RecordCacheLookup(name string, result string) {
	c.cacheLookups.WithLabelValues(name, result).Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordAdminMutation は管理画面の変更操作の結果を記録する。
func (c *Collector) RecordAdminMutation(resource, action, outcome string) {
	c.adminMutations.WithLabelValues(resource, action, outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordBackendCall(string, string, time.Duration) {}
func (Nop) RecordCacheLookup(string, string)                {}
func (Nop) RecordLogin(string)                              {}
func (Nop) RecordAdminMutation(string, string, string)      {}
func (Nop) RecordHTTPStatus(int)                            {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
