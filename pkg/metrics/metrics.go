package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "injection_filter"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var latencyBucketsMs = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

var (
	StoreOperationsTotal = newCounterVec("store", "operations_total",
		"Key-value store operations by backend, operation and status.",
		"backend", "operation", "status")

	StoreOperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "store",
		Name:      "operation_duration_ms",
		Help:      "Latency of key-value store operations in milliseconds.",
		Buckets:   latencyBucketsMs,
	}, []string{"backend", "operation"})

	StoreEntriesScanned = newCounterVec("store", "entries_scanned_total",
		"Entries returned by prefix scans.",
		"backend")

	FilterDecodeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "filters",
		Name:      "decode_failures_total",
		Help:      "Stored values skipped because they did not decode as a filter.",
	})

	FiltersLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "filters",
		Name:      "loaded",
		Help:      "Filters returned by the last listing.",
	})

	FilterMutationsTotal = newCounterVec("filters", "mutations_total",
		"Filter mutations by operation and status.",
		"operation", "status")

	ChangeEventsPublishedTotal = newCounterVec("change_events", "published_total",
		"Filter change events handed to the broker, by status.",
		"status")

	RetryAttemptsTotal = newCounterVec("retry", "attempts_total",
		"Retried attempts by operation.",
		"operation")

	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
	}, []string{"name"})

	CircuitBreakerRequests = newCounterVec("circuit_breaker", "requests_total",
		"Calls through a circuit breaker by the state they left it in.",
		"name", "state")

	CircuitBreakerFailures = newCounterVec("circuit_breaker", "failures_total",
		"Failed calls through a circuit breaker.",
		"name")
)

func newCounterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// Collectors lists every metric this module records.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		StoreOperationsTotal,
		StoreOperationDuration,
		StoreEntriesScanned,
		FilterDecodeFailuresTotal,
		FiltersLoaded,
		FilterMutationsTotal,
		ChangeEventsPublishedTotal,
		RetryAttemptsTotal,
		CircuitBreakerState,
		CircuitBreakerRequests,
		CircuitBreakerFailures,
	}
}

// Register adds every collector to reg, stopping at the first conflict.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

func ObserveStoreOperation(backend, operation string, duration time.Duration, err error) {
	StoreOperationsTotal.WithLabelValues(backend, operation, statusOf(err)).Inc()
	StoreOperationDuration.WithLabelValues(backend, operation).Observe(float64(duration) / float64(time.Millisecond))
}

func AddEntriesScanned(backend string, n int) {
	StoreEntriesScanned.WithLabelValues(backend).Add(float64(n))
}

func IncDecodeFailure()      { FilterDecodeFailuresTotal.Inc() }
func SetFiltersLoaded(n int) { FiltersLoaded.Set(float64(n)) }

func IncFilterMutation(operation string, err error) {
	FilterMutationsTotal.WithLabelValues(operation, statusOf(err)).Inc()
}

func ObserveChangeEvent(err error) {
	ChangeEventsPublishedTotal.WithLabelValues(statusOf(err)).Inc()
}

func IncRetryAttempt(operation string) {
	RetryAttemptsTotal.WithLabelValues(operation).Inc()
}

func SetCircuitBreakerState(name string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
}

// IncCircuitBreakerRequest counts a call through the named breaker in the
// state it was left in.
func IncCircuitBreakerRequest(name, state string, err error) {
	CircuitBreakerRequests.WithLabelValues(name, state).Inc()
	if err != nil {
		CircuitBreakerFailures.WithLabelValues(name).Inc()
	}
}
