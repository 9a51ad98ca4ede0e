package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineCollector exposes Prometheus metrics for the monitoring pipeline.
type PipelineCollector struct {
	registry           *prometheus.Registry
	checksTotal        *prometheus.CounterVec
	postsDiscovered    *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	fetchErrorsTotal   *prometheus.CounterVec
	cycleDuration      prometheus.Histogram
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
}

// NewPipelineCollector constructs a collector with default counters and
// histograms registered against a private registry.
func NewPipelineCollector() (*PipelineCollector, error) {
	registry := prometheus.NewRegistry()

	checksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "postwatch",
		Subsystem: "monitor",
		Name:      "checks_total",
		Help:      "Total number of account checks performed.",
	}, []string{"platform", "outcome"})

	postsDiscovered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "postwatch",
		Subsystem: "monitor",
		Name:      "posts_discovered_total",
		Help:      "Total number of newly discovered posts.",
	}, []string{"platform"})

	notificationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "postwatch",
		Subsystem: "notify",
		Name:      "deliveries_total",
		Help:      "Total number of webhook delivery attempts.",
	}, []string{"provider", "outcome"})

	fetchErrorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "postwatch",
		Subsystem: "fetch",
		Name:      "strategy_errors_total",
		Help:      "Total number of extraction strategy failures.",
	}, []string{"platform", "strategy"})

	cycleDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "postwatch",
		Subsystem: "monitor",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of full monitoring cycles.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "postwatch",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "postwatch",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	collectors := []prometheus.Collector{
		checksTotal, postsDiscovered, notificationsTotal,
		fetchErrorsTotal, cycleDuration, requestDuration, requestTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &PipelineCollector{
		registry:           registry,
		checksTotal:        checksTotal,
		postsDiscovered:    postsDiscovered,
		notificationsTotal: notificationsTotal,
		fetchErrorsTotal:   fetchErrorsTotal,
		cycleDuration:      cycleDuration,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
	}, nil
}

// ObserveCheck records one account check and its outcome.
func (c *PipelineCollector) ObserveCheck(platform string, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	c.checksTotal.WithLabelValues(platform, outcome).Inc()
}

// ObservePostsDiscovered records newly discovered posts for a platform.
func (c *PipelineCollector) ObservePostsDiscovered(platform string, count int) {
	if count > 0 {
		c.postsDiscovered.WithLabelValues(platform).Add(float64(count))
	}
}

// ObserveDelivery records one webhook delivery attempt.
func (c *PipelineCollector) ObserveDelivery(provider string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.notificationsTotal.WithLabelValues(provider, outcome).Inc()
}

// ObserveStrategyError records a single extraction strategy failure.
func (c *PipelineCollector) ObserveStrategyError(platform, strategy string) {
	c.fetchErrorsTotal.WithLabelValues(platform, strategy).Inc()
}

// ObserveCycle records the duration of one monitoring cycle.
func (c *PipelineCollector) ObserveCycle(d time.Duration) {
	c.cycleDuration.Observe(d.Seconds())
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *PipelineCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *PipelineCollector) InstrumentHandler(next http.Handler) http.Handler {
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

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
