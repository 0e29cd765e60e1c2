package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all mirror metrics.
type Registry struct {
	// Table sizes
	Routes    *prometheus.GaugeVec
	Addresses *prometheus.GaugeVec

	// Message flow
	Messages          *prometheus.CounterVec
	DecodeErrors      *prometheus.CounterVec
	DumpErrors        *prometheus.CounterVec
	UnmatchedRemovals *prometheus.CounterVec
	DuplicateAdds     *prometheus.CounterVec

	// Lifecycle
	SubscribeFailures *prometheus.CounterVec
	PendingDumps      prometheus.Gauge

	// Process
	Uptime      prometheus.Gauge
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.Routes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rtmirror_routes",
		Help: "Route entries currently held, duplicates included",
	}, []string{"family"})

	r.Addresses = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rtmirror_addresses",
		Help: "Address entries currently held, duplicates included",
	}, []string{"family"})

	r.Messages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtmirror_messages_total",
		Help: "Netlink messages handled by the reconciler",
	}, []string{"kind", "source"})

	r.DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtmirror_decode_errors_total",
		Help: "Messages dropped because their payload could not be decoded",
	}, []string{"kind", "family"})

	r.DumpErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtmirror_dump_errors_total",
		Help: "Dumps that failed to be issued or completed with an error",
	}, []string{"object", "family"})

	r.UnmatchedRemovals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtmirror_unmatched_removals_total",
		Help: "Delete notifications that matched no entry",
	}, []string{"table"})

	r.DuplicateAdds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtmirror_duplicate_adds_total",
		Help: "Adds of an entry already present with identical fields",
	}, []string{"table"})

	r.SubscribeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtmirror_subscribe_failures_total",
		Help: "Multicast group subscriptions that failed during startup",
	}, []string{"group"})

	r.PendingDumps = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rtmirror_pending_dumps",
		Help: "Startup dumps that have not completed yet",
	})

	r.Uptime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rtmirror_uptime_seconds",
		Help: "Seconds since the mirror reached the running state",
	})

	r.APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtmirror_api_requests_total",
		Help: "Total API requests",
	}, []string{"method", "path", "status"})

	r.APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rtmirror_api_request_duration_seconds",
		Help:    "API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	return r
}

// RecordMessage counts one handled message.
func (r *Registry) RecordMessage(kind, source string) {
	r.Messages.WithLabelValues(kind, source).Inc()
}

// RecordDumpError counts a failed dump for (object, family).
func (r *Registry) RecordDumpError(object, family string) {
	r.DumpErrors.WithLabelValues(object, family).Inc()
}

// TableSize returns the gauge tracking table ("route" or "address") for family.
func (r *Registry) TableSize(table, family string) prometheus.Gauge {
	if table == "address" {
		return r.Addresses.WithLabelValues(family)
	}
	return r.Routes.WithLabelValues(family)
}

// RecordAPIRequest records an API request.
func (r *Registry) RecordAPIRequest(method, path string, status int, duration float64) {
	r.APIRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.APILatency.WithLabelValues(method, path).Observe(duration)
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
