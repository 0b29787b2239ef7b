package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type coreMetrics struct {
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	breakerTransitions *prometheus.CounterVec
	breakerRejections  *prometheus.CounterVec
	upstreamLatency    *prometheus.HistogramVec
	upstreamErrors     *prometheus.CounterVec
	rateLimiterWaits   *prometheus.HistogramVec
	snapshotOutcomes   *prometheus.CounterVec
	debtProxyFallback  prometheus.Counter
}

var (
	coreMetricsOnce sync.Once
	coreRegistry    *coreMetrics
)

// Core returns the lazily-initialized metrics registry for the
// aggregation core.
func Core() *coreMetrics {
	coreMetricsOnce.Do(func() {
		coreRegistry = &coreMetrics{
			cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "usdfcterminal",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Count of cache lookups served from a cached value, by result type.",
			}, []string{"result_type"}),
			cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "usdfcterminal",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Count of cache lookups that fell through to an upstream fetch, by result type.",
			}, []string{"result_type"}),
			breakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "usdfcterminal",
				Subsystem: "breaker",
				Name:      "transitions_total",
				Help:      "Count of circuit breaker state transitions, by endpoint and destination state.",
			}, []string{"endpoint", "to_state"}),
			breakerRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "usdfcterminal",
				Subsystem: "breaker",
				Name:      "rejections_total",
				Help:      "Count of calls denied because the breaker for an endpoint was open.",
			}, []string{"endpoint"}),
			upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "usdfcterminal",
				Subsystem: "upstream",
				Name:      "call_duration_seconds",
				Help:      "Latency distribution for upstream calls, by client and operation.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"client", "operation"}),
			upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "usdfcterminal",
				Subsystem: "upstream",
				Name:      "errors_total",
				Help:      "Count of upstream call failures, by client, operation, and error kind.",
			}, []string{"client", "operation", "kind"}),
			rateLimiterWaits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "usdfcterminal",
				Subsystem: "dex",
				Name:      "rate_limiter_wait_seconds",
				Help:      "Time spent waiting on the process-global DEX rate limiter token bucket.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			snapshotOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "usdfcterminal",
				Subsystem: "history",
				Name:      "snapshot_collections_total",
				Help:      "Count of fixed-cadence snapshot collection attempts, by outcome.",
			}, []string{"outcome"}),
			debtProxyFallback: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "usdfcterminal",
				Subsystem: "rpc",
				Name:      "debt_proxy_fallback_total",
				Help:      "Count of times getEntireSystemDebt reverted and totalSupply was substituted as a debt proxy.",
			}),
		}
		prometheus.MustRegister(
			coreRegistry.cacheHits,
			coreRegistry.cacheMisses,
			coreRegistry.breakerTransitions,
			coreRegistry.breakerRejections,
			coreRegistry.upstreamLatency,
			coreRegistry.upstreamErrors,
			coreRegistry.rateLimiterWaits,
			coreRegistry.snapshotOutcomes,
			coreRegistry.debtProxyFallback,
		)
	})
	return coreRegistry
}

// RecordCacheHit increments the cache-hit counter for resultType.
func (m *coreMetrics) RecordCacheHit(resultType string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(resultType).Inc()
}

// RecordCacheMiss increments the cache-miss counter for resultType.
func (m *coreMetrics) RecordCacheMiss(resultType string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(resultType).Inc()
}

// RecordBreakerTransition increments the transition counter for
// endpoint reaching toState.
func (m *coreMetrics) RecordBreakerTransition(endpoint, toState string) {
	if m == nil {
		return
	}
	m.breakerTransitions.WithLabelValues(endpoint, toState).Inc()
}

// RecordBreakerRejection increments the rejection counter for endpoint.
func (m *coreMetrics) RecordBreakerRejection(endpoint string) {
	if m == nil {
		return
	}
	m.breakerRejections.WithLabelValues(endpoint).Inc()
}

// ObserveUpstreamCall records the latency and, on failure, the error
// kind for a single upstream call.
func (m *coreMetrics) ObserveUpstreamCall(client, operation string, d time.Duration, errKind string) {
	if m == nil {
		return
	}
	m.upstreamLatency.WithLabelValues(client, operation).Observe(d.Seconds())
	if errKind != "" {
		m.upstreamErrors.WithLabelValues(client, operation, errKind).Inc()
	}
}

// ObserveRateLimiterWait records how long a DEX client call waited on
// the process-global token bucket.
func (m *coreMetrics) ObserveRateLimiterWait(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.rateLimiterWaits.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordSnapshotOutcome increments the snapshot-collection counter for
// outcome ("ok", "partial" or "store_error").
func (m *coreMetrics) RecordSnapshotOutcome(outcome string) {
	if m == nil {
		return
	}
	m.snapshotOutcomes.WithLabelValues(outcome).Inc()
}

// RecordDebtProxyFallback increments the debt-proxy-fallback counter
// (Open Question 9c).
func (m *coreMetrics) RecordDebtProxyFallback() {
	if m == nil {
		return
	}
	m.debtProxyFallback.Inc()
}
