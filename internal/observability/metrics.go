package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Serve outcomes recorded by the configuration helper.
const (
	OutcomeServed      = "served"
	OutcomeEmpty       = "empty"
	OutcomeWriteFailed = "write_failed"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devprofile",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total diagnostics HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "devprofile",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Diagnostics HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	helperConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devprofile",
			Subsystem: "helper",
			Name:      "connections_total",
			Help:      "Configuration requests handled by the helper, by outcome.",
		},
		[]string{"outcome"},
	)
	helperDocumentBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "devprofile",
			Subsystem: "helper",
			Name:      "document_bytes",
			Help:      "Size of configuration documents served.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		},
	)
	helperServeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "devprofile",
			Subsystem: "helper",
			Name:      "serve_duration_seconds",
			Help:      "Time spent reading and sending one configuration document.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, helperConnections, helperDocumentBytes, helperServeDuration)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordHelperServe counts one helper connection. size is the document
// length that was (or would have been) sent.
func RecordHelperServe(outcome string, size int, duration time.Duration) {
	RegisterMetrics()
	helperConnections.WithLabelValues(outcome).Inc()
	if outcome == OutcomeServed {
		helperDocumentBytes.Observe(float64(size))
	}
	helperServeDuration.Observe(duration.Seconds())
}

// HelperConnections returns the counter for outcome, for tests and status output.
func HelperConnections(outcome string) prometheus.Counter {
	RegisterMetrics()
	return helperConnections.WithLabelValues(outcome)
}
