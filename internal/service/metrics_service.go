package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation and keeps a few
// running totals for the staff summary endpoint.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	modelRequests   *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	storeDuration   *prometheus.HistogramVec
	dispatchTotal   *prometheus.CounterVec
	detectFailures  *prometheus.CounterVec
	ledgerChanges   prometheus.Counter

	cacheHitCount      uint64
	cacheMissCount     uint64
	requestCount       uint64
	storeCallCount     uint64
	storeDurationTotal uint64
	dispatchCount      uint64
	changeCount        uint64
}

// MetricsSummary is the JSON view of the running totals.
type MetricsSummary struct {
	RequestsTotal          uint64    `json:"requests_total"`
	DispatchTotal          uint64    `json:"dispatch_total"`
	ChangesTotal           uint64    `json:"changes_total"`
	CacheHits              uint64    `json:"cache_hits"`
	CacheMisses            uint64    `json:"cache_misses"`
	CacheHitRatio          float64   `json:"cache_hit_ratio"`
	StoreCalls             uint64    `json:"store_calls"`
	AverageStoreDurationMs float64   `json:"average_store_duration_ms"`
	Goroutines             int       `json:"goroutines"`
	GeneratedAt            time.Time `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	modelRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_http_requests_total",
		Help: "Dispatch HTTP requests by requested model, method and status",
	}, []string{"model", "method", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	storeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "record_store_duration_seconds",
		Help:    "Duration of record store calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	dispatchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_actions_total",
		Help: "Dispatched actions by model, action and response status",
	}, []string{"model", "action", "status"})

	detectFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_detection_failures_total",
		Help: "Detection failures by stage",
	}, []string{"stage"})

	ledgerChanges := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_ledger_changes_total",
		Help: "Field changes committed through the dispatcher",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, modelRequests, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		storeDuration, dispatchTotal, detectFailures, ledgerChanges, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		modelRequests:   modelRequests,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		storeDuration:   storeDuration,
		dispatchTotal:   dispatchTotal,
		detectFailures:  detectFailures,
		ledgerChanges:   ledgerChanges,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// ObserveModelRequest counts a dispatch request by the model named in its
// route.
func (m *MetricsService) ObserveModelRequest(model, method string, status int) {
	if m == nil {
		return
	}
	m.modelRequests.WithLabelValues(model, method, fmt.Sprintf("%d", status)).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveStoreCall records record store timing.
func (m *MetricsService) ObserveStoreCall(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(operation).Observe(duration.Seconds())
	atomic.AddUint64(&m.storeCallCount, 1)
	atomic.AddUint64(&m.storeDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordDispatch counts one finished dispatch.
func (m *MetricsService) RecordDispatch(model, action string, status int) {
	if m == nil {
		return
	}
	if model == "" {
		model = "unknown"
	}
	m.dispatchTotal.WithLabelValues(model, action, fmt.Sprintf("%d", status)).Inc()
	atomic.AddUint64(&m.dispatchCount, 1)
}

// RecordDetectionFailure counts a failed detection stage.
func (m *MetricsService) RecordDetectionFailure(stage string) {
	if m == nil {
		return
	}
	m.detectFailures.WithLabelValues(stage).Inc()
}

// RecordChanges counts committed ledger entries.
func (m *MetricsService) RecordChanges(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ledgerChanges.Add(float64(n))
	atomic.AddUint64(&m.changeCount, uint64(n))
}

// Summary returns the running totals.
func (m *MetricsService) Summary() MetricsSummary {
	if m == nil {
		return MetricsSummary{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	storeCalls := atomic.LoadUint64(&m.storeCallCount)
	storeDuration := atomic.LoadUint64(&m.storeDurationTotal)

	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	var avgStoreMs float64
	if storeCalls > 0 {
		avgStoreMs = float64(storeDuration) / float64(storeCalls) / float64(time.Millisecond)
	}

	return MetricsSummary{
		RequestsTotal:          atomic.LoadUint64(&m.requestCount),
		DispatchTotal:          atomic.LoadUint64(&m.dispatchCount),
		ChangesTotal:           atomic.LoadUint64(&m.changeCount),
		CacheHits:              hits,
		CacheMisses:            misses,
		CacheHitRatio:          ratio,
		StoreCalls:             storeCalls,
		AverageStoreDurationMs: avgStoreMs,
		Goroutines:             runtime.NumGoroutine(),
		GeneratedAt:            time.Now().UTC(),
	}
}
