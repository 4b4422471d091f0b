package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for inbound HTTP requests and for
// consistency audit runs.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	auditRuns       prometheus.Counter
	auditDivergent  prometheus.Counter
	auditRepaired   prometheus.Counter
	auditFailures   prometheus.Counter
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tradecouncil",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradecouncil",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	auditRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tradecouncil",
		Subsystem: "audit",
		Name:      "runs_total",
		Help:      "Total number of consistency audit runs.",
	})

	auditDivergent := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tradecouncil",
		Subsystem: "audit",
		Name:      "divergent_sessions_total",
		Help:      "Total sessions found with a stored recommendation diverging from the recomputed one.",
	})

	auditRepaired := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tradecouncil",
		Subsystem: "audit",
		Name:      "repaired_sessions_total",
		Help:      "Total sessions whose recommendation was rewritten by a repair pass.",
	})

	auditFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tradecouncil",
		Subsystem: "audit",
		Name:      "repair_failures_total",
		Help:      "Total per-session repair attempts that returned an error.",
	})

	collectors := []prometheus.Collector{
		requestDuration,
		requestTotal,
		auditRuns,
		auditDivergent,
		auditRepaired,
		auditFailures,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	collector := &Collector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		auditRuns:       auditRuns,
		auditDivergent:  auditDivergent,
		auditRepaired:   auditRepaired,
		auditFailures:   auditFailures,
	}

	return collector, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// ObserveAuditRun records the outcome of one audit or repair pass.
func (c *Collector) ObserveAuditRun(divergent, repaired, failures int) {
	c.auditRuns.Inc()
	c.auditDivergent.Add(float64(divergent))
	c.auditRepaired.Add(float64(repaired))
	c.auditFailures.Add(float64(failures))
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
