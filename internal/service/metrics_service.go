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

// MetricsSnapshot aggregates lightweight counters for the ops endpoint.
type MetricsSnapshot struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	RoundsClosed             uint64    `json:"rounds_closed"`
	RoundsReopened           uint64    `json:"rounds_reopened"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation: HTTP histograms plus
// the allocation domain counters.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	roundsClosed    prometheus.Counter
	roundsReopened  prometheus.Counter
	outcomesTotal   *prometheus.CounterVec
	seatsMoved      prometheus.Counter
	listsBuilt      prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	roundsClosedCount    uint64
	roundsReopenedCount  uint64
}

// NewMetricsService registers the Prometheus collectors.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
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

	roundsClosed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rounds_closed_total",
		Help: "Total rounds closed",
	})

	roundsReopened := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rounds_reopened_total",
		Help: "Total rounds reopened",
	})

	outcomesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outcomes_total",
		Help: "Outcomes written by round closes, by status",
	}, []string{"status"})

	seatsMoved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seats_transitioned_total",
		Help: "Seat category transitions along the fallback cascade",
	})

	listsBuilt := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "call_lists_built_total",
		Help: "Call lists built",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHitRatio, cacheHits, cacheMisses,
		roundsClosed, roundsReopened, outcomesTotal, seatsMoved, listsBuilt, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		roundsClosed:    roundsClosed,
		roundsReopened:  roundsReopened,
		outcomesTotal:   outcomesTotal,
		seatsMoved:      seatsMoved,
		listsBuilt:      listsBuilt,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for
// snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
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
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// RoundClosed counts one settled close.
func (m *MetricsService) RoundClosed() {
	if m == nil {
		return
	}
	m.roundsClosed.Inc()
	atomic.AddUint64(&m.roundsClosedCount, 1)
}

// RoundReopened counts one reopen.
func (m *MetricsService) RoundReopened() {
	if m == nil {
		return
	}
	m.roundsReopened.Inc()
	atomic.AddUint64(&m.roundsReopenedCount, 1)
}

// OutcomeRecorded counts one outcome by status.
func (m *MetricsService) OutcomeRecorded(status string) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(status).Inc()
}

// SeatTransitioned counts one fallback hop.
func (m *MetricsService) SeatTransitioned() {
	if m == nil {
		return
	}
	m.seatsMoved.Inc()
}

// CallListBuilt counts one list build.
func (m *MetricsService) CallListBuilt() {
	if m == nil {
		return
	}
	m.listsBuilt.Inc()
}

// Snapshot returns aggregated metrics for the ops endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		RoundsClosed:             atomic.LoadUint64(&m.roundsClosedCount),
		RoundsReopened:           atomic.LoadUint64(&m.roundsReopenedCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
