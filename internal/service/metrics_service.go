package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the portal.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	navBuild        *prometheus.HistogramVec
	superadmin      *prometheus.CounterVec
	accessDecisions *prometheus.CounterVec
	auditEntries    *prometheus.CounterVec
	orphansRemoved  *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache set operations",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits by tier",
		}, []string{"tier"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses by tier",
		}, []string{"tier"}),
		navBuild: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "navigation_build_seconds",
			Help:    "Time spent assembling a navigation tree from storage",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		superadmin: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "superadmin_bypass_total",
			Help: "Resolutions short-circuited by the superadmin override",
		}, []string{"source"}),
		accessDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "access_decisions_total",
			Help: "Document capability checks by outcome",
		}, []string{"capability", "allowed"}),
		auditEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_entries_total",
			Help: "Audit entries by delivery path",
		}, []string{"path"}),
		orphansRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orphan_rows_removed_total",
			Help: "Dangling rows removed by the orphan sweep",
		}, []string{"table"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite,
		m.cacheHitRatio, m.cacheHits, m.cacheMisses, m.navBuild, m.superadmin, m.accessDecisions, m.auditEntries, m.orphansRemoved, goroutines)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// Registry returns the underlying registry, mostly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a lookup against the given tier ("local" or "redis").
func (m *MetricsService) RecordCacheOperation(tier string, hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.WithLabelValues(tier).Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.WithLabelValues(tier).Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveNavigationBuild records an uncached navigation build.
func (m *MetricsService) ObserveNavigationBuild(superadmin bool, duration time.Duration) {
	if m == nil {
		return
	}
	mode := "standard"
	if superadmin {
		mode = "superadmin"
	}
	m.navBuild.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordSuperadminBypass counts an override hit from source ("navigation" or "authorization").
func (m *MetricsService) RecordSuperadminBypass(source string) {
	if m == nil {
		return
	}
	m.superadmin.WithLabelValues(source).Inc()
}

// RecordAccessDecision counts a capability check outcome.
func (m *MetricsService) RecordAccessDecision(capability string, allowed bool) {
	if m == nil {
		return
	}
	m.accessDecisions.WithLabelValues(capability, strconv.FormatBool(allowed)).Inc()
}

// RecordAuditEntry counts an audit entry delivered through path ("queued", "sync" or "dropped").
func (m *MetricsService) RecordAuditEntry(path string) {
	if m == nil {
		return
	}
	m.auditEntries.WithLabelValues(path).Inc()
}

// RecordOrphansRemoved adds n removed rows for table.
func (m *MetricsService) RecordOrphansRemoved(table string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.orphansRemoved.WithLabelValues(table).Add(float64(n))
}
