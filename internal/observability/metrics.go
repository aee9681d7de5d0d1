package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "patternlens"

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec

	searchRequests *prometheus.CounterVec
	searchDegraded *prometheus.CounterVec
	searchLatency  prometheus.Histogram

	extractionItems   *prometheus.CounterVec
	attributeOutcomes *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	analyticsDropped  prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests partitioned by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "http_inflight_requests",
			Help: "HTTP requests currently being served.",
		}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_requests_total",
			Help: "Completion and embedding calls partitioned by operation and outcome.",
		}, []string{"op", "outcome"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "llm_request_seconds",
			Help:    "Completion and embedding latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"op"}),
		searchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_requests_total",
			Help: "Searches partitioned by the retrieval path that produced the results.",
		}, []string{"path"}),
		searchDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_degraded_total",
			Help: "Searches that lost a retrieval leg, partitioned by reason.",
		}, []string{"reason"}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "search_seconds",
			Help:    "End-to-end search latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4},
		}),
		extractionItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "extraction_items_total",
			Help: "Reports processed by attribute extraction, partitioned by status.",
		}, []string{"status"}),
		attributeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "extracted_attributes_total",
			Help: "Extracted attribute values partitioned by validation outcome.",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_lookups_total",
			Help: "Pattern cache lookups partitioned by layer and result.",
		}, []string{"layer", "result"}),
		analyticsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_analytics_dropped_total",
			Help: "Search analytics facts that failed to persist.",
		}),
	}
	m.registry.MustRegister(
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency,
		m.searchRequests, m.searchDegraded, m.searchLatency,
		m.extractionItems, m.attributeOutcomes, m.cacheLookups, m.analyticsDropped,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ApiInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) ApiInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) ObserveAPI(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(seconds(d))
}

func (m *Metrics) ObserveLLM(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(op, outcome(err)).Inc()
	m.llmLatency.WithLabelValues(op).Observe(seconds(d))
}

func (m *Metrics) ObserveSearch(path string, d time.Duration) {
	if m == nil {
		return
	}
	m.searchRequests.WithLabelValues(path).Inc()
	m.searchLatency.Observe(seconds(d))
}

func (m *Metrics) SearchDegraded(reason string) {
	if m != nil {
		m.searchDegraded.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ExtractionItem(status string) {
	if m != nil {
		m.extractionItems.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) AttributeOutcome(outcome string) {
	if m != nil {
		m.attributeOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) CacheLookup(layer string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(layer, result).Inc()
}

func (m *Metrics) AnalyticsDropped() {
	if m != nil {
		m.analyticsDropped.Inc()
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func seconds(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return d.Seconds()
}
