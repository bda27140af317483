package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "food_share",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "food_share",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "food_share",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	openStreams = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "food_share",
			Subsystem: "notifications",
			Name:      "open_streams",
			Help:      "Currently open notification streams.",
		},
		[]string{"transport"},
	)

	notificationsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "food_share",
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Notifications created, by type.",
		},
		[]string{"type"},
	)

	claimOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "food_share",
			Subsystem: "claims",
			Name:      "outcomes_total",
			Help:      "Claim lifecycle transitions.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		openStreams,
		notificationsPublished,
		claimOutcomes,
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func IncInFlight() { httpInFlight.Inc() }
func DecInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records one finished request. path should be the route
// template, not the raw URL, to keep label cardinality bounded.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func StreamOpened(transport string) { openStreams.WithLabelValues(transport).Inc() }
func StreamClosed(transport string) { openStreams.WithLabelValues(transport).Dec() }

func RecordNotification(notificationType string) {
	notificationsPublished.WithLabelValues(notificationType).Inc()
}

func RecordClaimOutcome(outcome string) {
	claimOutcomes.WithLabelValues(outcome).Inc()
}
