// metrics.go — Prometheus collectors for the network interceptor.
// Collectors are package-level and registered by the embedding program via List().
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Drop reasons reported on network_records_dropped_total.
const (
	DropFailuresOnly  = "failures_only"
	DropSanitizerVeto = "sanitizer_veto"
	DropBodyRead      = "body_read_error"
	DropListenerError = "listener_error"
	DropRedirect      = "redirect_followed"
)

var durationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

var networkRequestsObserved = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "network",
		Name:      "requests_observed_total",
		Help:      "A counter displaying the number of instrumented requests that completed, per transport kind.",
	},
	[]string{"kind"},
)

func IncreaseRequestsObserved(kind string) {
	networkRequestsObserved.WithLabelValues(kind).Inc()
}

var networkRequestsBypassed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "network",
		Name:      "requests_bypassed_total",
		Help:      "A counter displaying the number of requests passed through without instrumentation.",
	},
	[]string{"kind"},
)

func IncreaseRequestsBypassed(kind string) {
	networkRequestsBypassed.WithLabelValues(kind).Inc()
}

var networkRecordsSent = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "network",
		Name:      "records_sent_total",
		Help:      "A counter displaying the number of records handed to the host send primitive.",
	},
	[]string{"kind"},
)

func IncreaseRecordsSent(kind string) {
	networkRecordsSent.WithLabelValues(kind).Inc()
}

var networkRecordsDropped = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "network",
		Name:      "records_dropped_total",
		Help:      "A counter displaying the number of records discarded before delivery, by reason.",
	},
	[]string{"kind", "reason"},
)

func IncreaseRecordsDropped(kind, reason string) {
	networkRecordsDropped.WithLabelValues(kind, reason).Inc()
}

var networkStringifyFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "network",
		Name:      "stringify_failures_total",
		Help:      "A counter displaying the number of bodies replaced by the stringify sentinel.",
	},
)

func IncreaseStringifyFailures() {
	networkStringifyFailures.Inc()
}

var networkRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "network",
		Name:      "request_duration_seconds",
		Help:      "A histogram displaying the duration of each captured request in seconds.",
		Buckets:   durationBuckets,
	},
	[]string{"kind"},
)

func RecordRequestDuration(durMillis float64, kind string) {
	networkRequestDuration.WithLabelValues(kind).Observe(durMillis / 1000.0)
}

func List() []prometheus.Collector {
	return []prometheus.Collector{
		networkRequestsObserved,
		networkRequestsBypassed,
		networkRecordsSent,
		networkRecordsDropped,
		networkStringifyFailures,
		networkRequestDuration,
	}
}

// NewRegistry returns a registry holding the tracker collectors plus the
// standard Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(List()...)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
