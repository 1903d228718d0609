// Package metrics 秒杀服务的Prometheus指标
//
// 指标在包初始化时注册到默认Registry，/metrics端点通过Handler暴露。
// 命名约定：Counter以_total结尾，Histogram以单位结尾，标签只使用有限取值（不要用user_id）。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seckill"

// HTTP
var (
	// HTTPRequestsTotal 标签: method, path, status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP请求总数",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP请求耗时（秒）",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_progress",
			Help:      "正在处理的HTTP请求数",
		},
	)
)

// 抢购
var (
	// PurchaseTotal 标签: outcome（success/sold_out/limit_exceeded/error）
	PurchaseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_total",
			Help:      "抢购请求总数",
		},
		[]string{"outcome"},
	)

	PurchaseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "purchase_duration_seconds",
			Help:      "抢购耗时（秒）",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	// StockReserveTotal Redis预扣结果，标签: result（ok/sold_out/limit_exceeded/not_warmed/error）
	StockReserveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_reserve_total",
			Help:      "Redis预扣库存次数",
		},
		[]string{"result"},
	)
)

// 缓存预热
var (
	// CacheRequestsTotal 标签: op（session/product/products）, result（hit/miss/error）
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "场次缓存读取次数",
		},
		[]string{"op", "result"},
	)

	// CacheWarmTotal 标签: result（success/failure）
	CacheWarmTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_warm_total",
			Help:      "场次预热次数",
		},
		[]string{"result"},
	)

	CacheWarmDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_warm_duration_seconds",
			Help:      "单个场次预热耗时（秒）",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// WorkerTransitionsTotal 后台扫描推进的状态数，标签: action（warm/start/end）
	WorkerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_transitions_total",
			Help:      "后台扫描处理的场次数",
		},
		[]string{"action"},
	)
)

// 熔断器、Saga、消息
var (
	// CircuitBreakerState 0=CLOSED, 1=OPEN, 2=HALF_OPEN
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "熔断器状态（0=CLOSED, 1=OPEN, 2=HALF_OPEN）",
		},
		[]string{"name"},
	)

	// CircuitBreakerRequests 标签: name, result（success/failure/rejected）
	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_requests_total",
			Help:      "熔断器请求总数",
		},
		[]string{"name", "result"},
	)

	// SagaExecutionsTotal 标签: name, result（success/failure）
	SagaExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_executions_total",
			Help:      "Saga执行总数",
		},
		[]string{"name", "result"},
	)

	// SagaCompensationsTotal 标签: step, result（success/failure）
	SagaCompensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_compensations_total",
			Help:      "Saga补偿执行总数",
		},
		[]string{"step", "result"},
	)

	// MessagesPublishedTotal 标签: routing_key, result（success/failure）
	MessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "领域事件发布总数",
		},
		[]string{"routing_key", "result"},
	)
)

// Handler /metrics端点
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSince 记录从start到现在的耗时
func ObserveSince(o prometheus.Observer, start time.Time) {
	o.Observe(time.Since(start).Seconds())
}

// Result 把布尔结果转成标签值
func Result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
