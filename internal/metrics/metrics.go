package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coxswain_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coxswain_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coxswain_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	schedulerTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coxswain_scheduler_ticks_total",
			Help: "Total number of poll loop ticks",
		},
	)

	schedulerDispatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coxswain_scheduler_dispatches_total",
			Help: "Total number of scheduled executions dispatched",
		},
	)

	schedulerTickErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coxswain_scheduler_tick_errors_total",
			Help: "Total number of poll loop ticks that logged an error",
		},
	)

	executionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coxswain_execution_transitions_total",
			Help: "Total number of execution status transitions",
		},
		[]string{"status"},
	)

	executionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coxswain_executions_in_flight",
			Help: "Number of executions currently being supervised",
		},
	)

	realtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coxswain_realtime_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coxswain_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func IncrementInFlight() {
	httpRequestsInFlight.Inc()
}

func DecrementInFlight() {
	httpRequestsInFlight.Dec()
}

func RecordTick() {
	schedulerTicks.Inc()
}

func RecordTickError() {
	schedulerTickErrors.Inc()
}

func RecordDispatch() {
	schedulerDispatches.Inc()
}

func RecordTransition(status string) {
	executionTransitions.WithLabelValues(status).Inc()
}

func SetExecutionsInFlight(n int) {
	executionsInFlight.Set(float64(n))
}

func SetRealtimeConnections(n int) {
	realtimeConnections.Set(float64(n))
}

func UpdateDBStats(open int) {
	dbConnectionsOpen.Set(float64(open))
}
