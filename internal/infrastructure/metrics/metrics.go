package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Requests
	RequestsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "diagrammer_requests_created_total",
			Help: "Total number of diagram requests created",
		},
	)
	RequestStatusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagrammer_request_status_changes_total",
			Help: "Number of diagram request status transitions",
		},
		[]string{"from", "to"},
	)
	ActiveRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "diagrammer_requests_active",
			Help: "Current number of requests being generated",
		},
	)
	RequestDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "diagrammer_request_duration_seconds",
			Help:    "Histogram of end to end generation durations in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1s..128s
		},
	)

	// Rendering
	RenderRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagrammer_render_runs_total",
			Help: "Number of render runs by result",
		},
		[]string{"result"}, // result: pass|parse_error|render_error
	)
	RenderDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "diagrammer_render_duration_seconds",
			Help:    "Duration of graphviz render runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// LLM
	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagrammer_llm_requests_total",
			Help: "Number of LLM requests by provider/model",
		},
		[]string{"provider", "model"},
	)
	LLMFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "diagrammer_llm_fallbacks_total",
			Help: "Number of times malformed model output was replaced by the fallback template",
		},
	)

	// DB ops
	DBOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagrammer_db_ops_total",
			Help: "Database operations performed",
		},
		[]string{"op"}, // op: create|get|list|complete|fail|count
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "diagrammer_rate_limited_total",
			Help: "Requests rejected by the per-address rate limiter",
		},
	)

	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "diagrammer_ws_connections",
			Help: "Current number of open websocket connections",
		},
	)

	// Errors
	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagrammer_errors_total",
			Help: "Errors encountered in components",
		},
		[]string{"component", "type"},
	)
)

func init() {
	prometheus.MustRegister(
		// Requests
		RequestsCreated,
		RequestStatusChanges,
		ActiveRequests,
		RequestDurationSeconds,
		// Render
		RenderRuns,
		RenderDurationSeconds,
		// LLM
		LLMRequests,
		LLMFallbacks,
		// DB
		DBOps,
		RateLimited,
		WebsocketConnections,
		Errors,
	)
}

// StartMetricsServer blocks serving /metrics on addr.
func StartMetricsServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

// Requests
func IncRequestsCreated() {
	RequestsCreated.Inc()
}

func IncRequestStatusChange(from, to string) {
	RequestStatusChanges.WithLabelValues(from, to).Inc()
}

func IncActiveRequests() {
	ActiveRequests.Inc()
}

func DecActiveRequests() {
	ActiveRequests.Dec()
}

func ObserveRequestDuration(d time.Duration) {
	RequestDurationSeconds.Observe(d.Seconds())
}

// Render
func IncRenderRun(result string) {
	RenderRuns.WithLabelValues(result).Inc()
}

func ObserveRenderDuration(d time.Duration) {
	RenderDurationSeconds.Observe(d.Seconds())
}

// LLM
func IncLLMRequest(provider, model string) {
	LLMRequests.WithLabelValues(provider, model).Inc()
}

func IncLLMFallback() {
	LLMFallbacks.Inc()
}

// DB
func IncDBOp(op string) {
	DBOps.WithLabelValues(op).Inc()
}

func IncRateLimited() {
	RateLimited.Inc()
}

// Websocket
func IncWSConnections() {
	WebsocketConnections.Inc()
}

func DecWSConnections() {
	WebsocketConnections.Dec()
}

// Errors
func IncError(component, typ string) {
	Errors.WithLabelValues(component, typ).Inc()
}
