package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// once 用来保证指标只注册一次。
	// Prometheus 的 registry 不允许重复注册同名指标，否则会直接 panic。
	once sync.Once

	// HTTPRequestsTotal：累计请求数（Counter）。
	//
	// 它会随着每次请求结束而 +1，不会减少；常用于计算 QPS/错误率。
	//
	// labels：
	// - method：HTTP 方法，例如 GET/POST
	// - route：路由模板（推荐用 pattern，例如 /api/v1/users/mine；不要用带 id 的真实 path），否则会产生无限 label
	// - status：HTTP 状态码字符串，例如 "200"/"401"/"500"
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "HTTP请求的总数",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDurationSeconds：请求耗时分布（Histogram）。
	//
	// 每次请求结束后用 Observe(durationSeconds) 记录一次耗时。
	// Histogram 按 Buckets 分桶累计，Prometheus/Grafana 用它算 P95/P99 分位数延迟。
	//
	// labels：
	// - method：HTTP 方法
	// - route：路由模板（同上，避免高基数）
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// HTTPInflightRequests：当前正在处理中的请求数（Gauge）。
	//
	// 请求开始时 +1，请求结束时 -1；用于观察服务的并发压力与是否“堆积”。
	HTTPInflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// CacheOperations：各层缓存的命中情况。
	// tier: l1/l2/session，outcome: hit/miss/hit_negative/corrupt
	CacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "缓存读取按层级与结果的计数",
		},
		[]string{"tier", "outcome"},
	)

	// RedirectsTotal：成功跳转次数。
	RedirectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shorturl_redirects_total",
			Help: "成功完成的短码跳转总数",
		},
	)

	// ClickFlushesTotal：点击增量冲刷结果。outcome: ok/failed
	ClickFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "click_flushes_total",
			Help: "点击增量从缓存冲刷到数据库的次数",
		},
		[]string{"outcome"},
	)

	// SessionValidationsTotal：会话校验结果。
	// outcome: ok/invalid/expired/store_unavailable
	SessionValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_validations_total",
			Help: "会话校验按结果的计数",
		},
		[]string{"outcome"},
	)
)

// Init 注册指标：只允许注册一次（否则 panic: duplicate metrics collector registration）
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			HTTPInflightRequests,
			CacheOperations,
			RedirectsTotal,
			ClickFlushesTotal,
			SessionValidationsTotal,
		)
	})
}
