// Package metrics exposes Prometheus collectors for the request adapter.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const namespace = "conduit"

type Metrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	bodyBytes prometheus.Counter
	failures  *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	limited   prometheus.Counter
	inFlight  prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates and registers the collectors on reg. When reg is also a
// prometheus.Gatherer it backs Handler and FastHTTPHandler.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Responses emitted, by method and status code.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from request receipt to end of body stream.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		bodyBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_body_bytes_total",
			Help:      "Response body bytes handed to the transport.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failures by lifecycle stage and kind.",
		}, []string{"stage", "kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Requests rejected before the handler ran.",
		}, []string{"reason"}),
		limited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests refused by the per-client rate limiter.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Requests currently inside the adapter.",
		}),
	}

	heapAlloc := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heap_alloc_bytes",
			Help:      "Current heap allocation in bytes.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.HeapAlloc)
		},
	)
	gcPauseTotal := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gc_pause_total_ns",
			Help:      "Total GC pause time in nanoseconds.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.PauseTotalNs)
		},
	)

	reg.MustRegister(m.requests, m.duration, m.bodyBytes, m.failures, m.rejected, m.limited, m.inFlight, heapAlloc, gcPauseTotal)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// ObserveRequest records a finished response.
func (m *Metrics) ObserveRequest(method string, code int, d time.Duration, written int64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
	if written > 0 {
		m.bodyBytes.Add(float64(written))
	}
}

func (m *Metrics) Failure(stage, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(stage, kind).Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.limited.Inc()
}

// TrackInFlight increments the in-flight gauge and returns the decrement.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}

// Handler serves the registry in the text exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// FastHTTPHandler is Handler bridged onto fasthttp.
func (m *Metrics) FastHTTPHandler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(m.Handler())
}
