package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketsync"

var (
	// Registry holds the service's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Scheduler ticks by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	tickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Duration of ticks that reached the provider.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"mode", "outcome"},
	)

	lastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful tick.",
		},
	)

	snapshotAssets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "snapshot_assets",
			Help:      "Number of assets in the last successful snapshot.",
		},
	)

	historyTrimmed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "history_trimmed_total",
			Help:      "History records deleted by retention trimming.",
		},
	)

	providerAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "attempts_total",
			Help:      "Provider HTTP attempts by status class.",
		},
		[]string{"status"},
	)

	providerRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "retries_total",
			Help:      "Provider requests retried after a failed attempt.",
		},
	)

	reads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "read",
			Name:      "snapshots_total",
			Help:      "Snapshot reads by serving tier.",
		},
		[]string{"source"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "route"},
	)

	streamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Connected websocket subscribers.",
		},
	)
)

func init() {
	Registry.MustRegister(
		ticks,
		tickDuration,
		lastSuccess,
		snapshotAssets,
		historyTrimmed,
		providerAttempts,
		providerRetries,
		reads,
		httpRequests,
		httpDuration,
		streamClients,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTick counts a tick. Skipped ticks pass a zero duration and are not timed.
func RecordTick(mode, outcome string, duration time.Duration) {
	ticks.WithLabelValues(mode, outcome).Inc()
	if duration > 0 {
		tickDuration.WithLabelValues(mode, outcome).Observe(duration.Seconds())
	}
}

// RecordSnapshot records a successfully persisted snapshot.
func RecordSnapshot(assets int, at time.Time) {
	snapshotAssets.Set(float64(assets))
	lastSuccess.Set(float64(at.Unix()))
}

// RecordHistoryTrimmed adds deleted history records.
func RecordHistoryTrimmed(n int) {
	if n > 0 {
		historyTrimmed.Add(float64(n))
	}
}

// RecordProviderAttempt counts one provider HTTP attempt.
func RecordProviderAttempt(status string) {
	providerAttempts.WithLabelValues(status).Inc()
}

// RecordProviderRetry counts one retry.
func RecordProviderRetry() {
	providerRetries.Inc()
}

// RecordRead counts a read served from the given tier.
func RecordRead(source string) {
	reads.WithLabelValues(source).Inc()
}

// RecordHTTPRequest records one handled HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// StreamClientConnected increments the websocket subscriber gauge.
func StreamClientConnected() {
	streamClients.Inc()
}

// StreamClientDisconnected decrements the websocket subscriber gauge.
func StreamClientDisconnected() {
	streamClients.Dec()
}
