package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collected series:
//
//	gateway_cache_events_total{event}
//	gateway_upstream_requests_total{source,outcome}
//	gateway_upstream_request_seconds{source}
//	gateway_limiter_wait_seconds{source}
//	gateway_aggregation_seconds{kind}
//	gateway_sources_online{kind}
//	go_* and process_* runtime metrics
var (
	once     sync.Once
	registry *prometheus.Registry

	cacheEvents      *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	limiterWait      *prometheus.HistogramVec
	aggregationTime  *prometheus.HistogramVec
	sourcesOnline    *prometheus.GaugeVec
)

// Init registers the gateway collectors. It is safe to call more than once.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		cacheEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_cache_events_total",
				Help: "Response cache hits, misses, expirations and evictions",
			},
			[]string{"event"},
		)
		upstreamRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_upstream_requests_total",
				Help: "Upstream HTTP attempts by source and outcome",
			},
			[]string{"source", "outcome"},
		)
		upstreamLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_upstream_request_seconds",
				Help:    "Latency of upstream HTTP attempts",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		)
		limiterWait = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_limiter_wait_seconds",
				Help:    "Time spent waiting for a rate limiter slot",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"source"},
		)
		aggregationTime = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_aggregation_seconds",
				Help:    "Duration of fan-out aggregations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		)
		sourcesOnline = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_sources_online",
				Help: "Sources that answered the latest aggregation",
			},
			[]string{"kind"},
		)

		registry.MustRegister(cacheEvents, upstreamRequests, upstreamLatency, limiterWait, aggregationTime, sourcesOnline)
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves the gateway collectors in the Prometheus text format.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func RecordCacheEvent(event string) {
	if cacheEvents != nil {
		cacheEvents.WithLabelValues(event).Inc()
	}
}

func RecordUpstreamRequest(source, outcome string, elapsed time.Duration) {
	if upstreamRequests != nil {
		upstreamRequests.WithLabelValues(source, outcome).Inc()
		upstreamLatency.WithLabelValues(source).Observe(elapsed.Seconds())
	}
}

func ObserveLimiterWait(source string, waited time.Duration) {
	if limiterWait != nil {
		limiterWait.WithLabelValues(source).Observe(waited.Seconds())
	}
}

func ObserveAggregation(kind string, elapsed time.Duration, online int) {
	if aggregationTime != nil {
		aggregationTime.WithLabelValues(kind).Observe(elapsed.Seconds())
		sourcesOnline.WithLabelValues(kind).Set(float64(online))
	}
}
