package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names
const (
	MetricIngestEventsTotal    = "ingest_events_total"
	MetricWebhookRequestsTotal = "ingest_webhook_requests_total"
	MetricGeoLookupsTotal      = "ingest_geo_lookups_total"
	MetricPersistDuration      = "ingest_persist_duration_seconds"
	MetricRetentionPurgedTotal = "ingest_retention_purged_events_total"
	MetricPrivacyRequestsTotal = "ingest_privacy_requests_total"
)

// Label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultTimeout = "timeout"
)

// Metrics holds the service's Prometheus collectors. All methods are safe for
// concurrent use, and safe on a nil *Metrics, which records nothing.
type Metrics struct {
	ingestEvents    *prometheus.CounterVec
	webhookRequests *prometheus.CounterVec
	geoLookups      *prometheus.CounterVec
	persistDuration *prometheus.HistogramVec
	retentionPurged prometheus.Counter
	privacyRequests *prometheus.CounterVec
}

// NewMetrics creates the collectors. They are not registered; call Register.
func NewMetrics() *Metrics {
	return &Metrics{
		ingestEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricIngestEventsTotal,
				Help: "Events processed by the privacy pipeline by outcome and reason",
			},
			[]string{"outcome", "reason"},
		),
		webhookRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricWebhookRequestsTotal,
				Help: "Webhook deliveries by webhook type and result",
			},
			[]string{"webhook_type", "result"},
		),
		geoLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricGeoLookupsTotal,
				Help: "Geolocation lookups by result",
			},
			[]string{"result"},
		),
		persistDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricPersistDuration,
				Help:    "Histogram of event persistence latency in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"result"},
		),
		retentionPurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricRetentionPurgedTotal,
				Help: "Events deleted by the retention purge job",
			},
		),
		privacyRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPrivacyRequestsTotal,
				Help: "Privacy-rights operations by operation and result",
			},
			[]string{"operation", "result"},
		),
	}
}

// Register registers all metrics with the given registry
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.ingestEvents,
		m.webhookRequests,
		m.geoLookups,
		m.persistDuration,
		m.retentionPurged,
		m.privacyRequests,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveIngest counts one pipeline outcome. reason is empty for stored events.
func (m *Metrics) ObserveIngest(outcome, reason string) {
	if m == nil {
		return
	}
	m.ingestEvents.WithLabelValues(outcome, reason).Inc()
}

// ObserveWebhook counts one webhook delivery
func (m *Metrics) ObserveWebhook(webhookType, result string) {
	if m == nil {
		return
	}
	m.webhookRequests.WithLabelValues(webhookType, result).Inc()
}

// ObserveGeoLookup counts one geolocation lookup
func (m *Metrics) ObserveGeoLookup(result string) {
	if m == nil {
		return
	}
	m.geoLookups.WithLabelValues(result).Inc()
}

// ObservePersist records how long a persistence call took
func (m *Metrics) ObservePersist(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.persistDuration.WithLabelValues(result).Observe(d.Seconds())
}

// AddRetentionPurged adds to the number of events the purge job deleted
func (m *Metrics) AddRetentionPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.retentionPurged.Add(float64(n))
}

// ObservePrivacyRequest counts one token, export or delete operation
func (m *Metrics) ObservePrivacyRequest(operation, result string) {
	if m == nil {
		return
	}
	m.privacyRequests.WithLabelValues(operation, result).Inc()
}
