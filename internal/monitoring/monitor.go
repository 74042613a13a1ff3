package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects client-side counters for API calls, the query cache
// and cart mutations. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests    *prometheus.CounterVec
	apiLatency     *prometheus.HistogramVec
	forcedSignOuts prometheus.Counter
	cacheLookups   *prometheus.CounterVec
	cartMutations  *prometheus.CounterVec
	storageErrors  prometheus.Counter
}

// NewMetrics creates a collector backed by its own registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		apiRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neemble_api_requests_total",
				Help: "Backend API calls by resource and outcome",
			},
			[]string{"method", "resource", "code"},
		),
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "neemble_api_request_duration_seconds",
				Help:    "Backend API call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "resource"},
		),
		forcedSignOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neemble_forced_signouts_total",
			Help: "Sign-outs triggered by a 401 response",
		}),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neemble_cache_lookups_total",
				Help: "Query cache lookups by resource and result",
			},
			[]string{"resource", "result"},
		),
		cartMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neemble_cart_mutations_total",
				Help: "Cart mutations by operation",
			},
			[]string{"op"},
		),
		storageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neemble_storage_errors_total",
			Help: "Failed best-effort cart persistence writes",
		}),
	}

	registry.MustRegister(
		m.apiRequests,
		m.apiLatency,
		m.forcedSignOuts,
		m.cacheLookups,
		m.cartMutations,
		m.storageErrors,
	)
	return m
}

// Registry exposes the underlying registry for scraping and tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one backend API call. code is 0 when no
// response was received.
func (m *Metrics) ObserveRequest(method, resource string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "transport_error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.apiRequests.WithLabelValues(method, resource, label).Inc()
	m.apiLatency.WithLabelValues(method, resource).Observe(elapsed.Seconds())
}

// ForcedSignOut records a 401-triggered sign-out
func (m *Metrics) ForcedSignOut() {
	if m == nil {
		return
	}
	m.forcedSignOuts.Inc()
}

// CacheLookup records a cache hit or miss
func (m *Metrics) CacheLookup(resource string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(resource, result).Inc()
}

// CartMutation records a cart operation
func (m *Metrics) CartMutation(op string) {
	if m == nil {
		return
	}
	m.cartMutations.WithLabelValues(op).Inc()
}

// StorageError records a failed cart write
func (m *Metrics) StorageError() {
	if m == nil {
		return
	}
	m.storageErrors.Inc()
}
