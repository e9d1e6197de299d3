package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "servicehub_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "servicehub_http_request_duration_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// Переходы статусов заказов
	JobTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "servicehub_job_transitions_total",
			Help: "Committed job status transitions",
		},
		[]string{"from", "to"},
	)

	// Вебхуки провайдера: outcome = applied|duplicate|unmatched|ignored|failed
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "servicehub_webhook_events_total",
			Help: "Processed payment provider webhook events",
		},
		[]string{"event", "outcome"},
	)

	// Расчёты: kind = full_refund|partial_refund|release_to_seller|escrow_release
	Settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "servicehub_settlements_total",
			Help: "Settlement attempts by kind and result",
		},
		[]string{"kind", "result"},
	)

	// Вызовы платёжного провайдера
	GatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "servicehub_gateway_calls_total",
			Help: "Payment gateway calls by operation and result",
		},
		[]string{"operation", "result"},
	)
	GatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "servicehub_gateway_call_duration_seconds",
			Help:    "Latency of payment gateway calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	registerOnce sync.Once
)

// Handler отдаёт /metrics.
var Handler = promhttp.Handler

// Init регистрирует метрики в default registry. Повторный вызов безопасен.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			RequestLatency,
			JobTransitions,
			WebhookEvents,
			Settlements,
			GatewayCalls,
			GatewayLatency,
		)
	})
}

// Result переводит ошибку в метку результата.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveGateway учитывает вызов провайдера.
func ObserveGateway(operation string, started time.Time, err error) {
	GatewayCalls.WithLabelValues(operation, Result(err)).Inc()
	GatewayLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// GinMiddleware считает запросы по шаблону маршрута.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		RequestLatency.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
