// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crm"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "tool_calls_total",
			Help:      "Assistant tool invocations",
		},
		[]string{"tool", "status"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "tool_duration_seconds",
			Help:      "Assistant tool execution time in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"tool"},
	)

	TelegramUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "updates_total",
			Help:      "Telegram webhook updates by outcome",
		},
		[]string{"outcome"},
	)

	AssistantReplyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "reply_duration_seconds",
			Help:      "Time to answer one Telegram message, model calls included",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	BankSyncTransactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "treasury",
			Name:      "imported_transactions_total",
			Help:      "Bank transactions imported from GoCardless",
		},
	)
)

// RecordRequest records one HTTP request
func RecordRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordTelegramUpdate counts a webhook update: replied, ignored, denied,
// limited, command or failed
func RecordTelegramUpdate(outcome string) {
	TelegramUpdatesTotal.WithLabelValues(outcome).Inc()
}

// ToolObserver feeds assistant tool calls into the tool collectors
type ToolObserver struct{}

func (ToolObserver) ObserveTool(name string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ToolCallsTotal.WithLabelValues(name, status).Inc()
	ToolDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// Handler exposes the default registry for scraping
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
