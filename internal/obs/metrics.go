package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the service considers itself ready.",
	})
)

// Registry metrics.
var (
	MintsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokenwatch_mints_total",
		Help: "Tokens minted through the registry.",
	})

	VotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenwatch_votes_total",
			Help: "Community votes by kind.",
		},
		[]string{"kind"},
	)

	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenwatch_trades_total",
			Help: "Trades applied to trust scores, by side.",
		},
		[]string{"side"},
	)

	ReportsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokenwatch_reports_total",
		Help: "Whistleblower reports accepted.",
	})

	AnalysesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokenwatch_analyses_total",
		Help: "AI risk analyses performed.",
	})

	ActiveDisputes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tokenwatch_active_disputes",
		Help: "Tokens currently in the disputed state.",
	})
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration, ready,
		MintsTotal, VotesTotal, TradesTotal, ReportsTotal, AnalysesTotal,
		ActiveDisputes,
	)
}

// SetReady flips the readiness gauge.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
