package obs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics groups Prometheus collectors for HTTP observability.
type HTTPMetrics struct {
	ReqTotal *prometheus.CounterVec
	ReqDur   *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics registers and returns HTTP metrics collectors.
func NewHTTPMetrics(namespace string, buckets []float64, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(buckets) == 0 {
		buckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500}
	} else {
		sort.Float64s(buckets)
	}
	m := &HTTPMetrics{
		ReqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the server.",
		}, []string{"method", "route", "status"}),
		ReqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency distribution in milliseconds.",
			Buckets:   buckets,
		}, []string{"method", "route"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
	}
	m.ReqTotal = register(reg, m.ReqTotal)
	m.ReqDur = register(reg, m.ReqDur)
	m.InFlight = register(reg, m.InFlight)
	return m
}

// QuoteMetrics counts quote pricing activity.
type QuoteMetrics struct {
	Previews        *prometheus.CounterVec
	Created         prometheus.Counter
	EngagementTTC   prometheus.Histogram
	EventsProcessed *prometheus.CounterVec
	SlowQueries     prometheus.Counter
}

// NewQuoteMetrics registers and returns quote collectors. A nil *QuoteMetrics is valid
// and records nothing.
func NewQuoteMetrics(namespace string, reg prometheus.Registerer) *QuoteMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &QuoteMetrics{
		Previews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_previews_total",
			Help:      "Number of live quote price previews computed.",
		}, []string{"formula"}),
		Created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_created_total",
			Help:      "Number of quotes persisted.",
		}),
		EngagementTTC: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_total_engagement_ttc",
			Help:      "Distribution of total engagement value (TTC) of created quotes.",
			Buckets:   []float64{500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
		}),
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_events_processed_total",
			Help:      "Quote events handled by the worker by outcome.",
		}, []string{"topic", "result"}),
		SlowQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_slow_queries_total",
			Help:      "Database queries slower than the configured threshold.",
		}),
	}
	m.Previews = register(reg, m.Previews)
	m.Created = register(reg, m.Created)
	m.EngagementTTC = register(reg, m.EngagementTTC)
	m.EventsProcessed = register(reg, m.EventsProcessed)
	m.SlowQueries = register(reg, m.SlowQueries)
	return m
}

// ObservePreview records a live preview.
func (m *QuoteMetrics) ObservePreview(formulaID string) {
	if m == nil {
		return
	}
	if strings.TrimSpace(formulaID) == "" {
		formulaID = "none"
	}
	m.Previews.WithLabelValues(formulaID).Inc()
}

// ObserveCreated records a persisted quote and its engagement value.
func (m *QuoteMetrics) ObserveCreated(totalTTC float64) {
	if m == nil {
		return
	}
	m.Created.Inc()
	m.EngagementTTC.Observe(totalTTC)
}

// ObserveEvent records a worker outcome.
func (m *QuoteMetrics) ObserveEvent(topic string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsProcessed.WithLabelValues(topic, result).Inc()
}

// ParseBucketsCSV converts a comma-separated list of bucket boundaries (milliseconds) into floats.
func ParseBucketsCSV(csv string) []float64 {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		v, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			continue
		}
		if v <= 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

// DurationMillis converts a duration to milliseconds for metric observation.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// register adds c to reg, reusing the collector already registered under the same
// descriptor so constructors can run more than once per process (tests, reloads).
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
			return c
		}
		panic(fmt.Errorf("register collector: %w", err))
	}
	return c
}
