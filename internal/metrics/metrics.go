// Package metrics holds the Prometheus collectors shared by langcore components.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "langcore"

// Outcome label values
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

var (
	// BridgeCalls counts blocking calls by outcome
	BridgeCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bridge",
		Name:      "calls_total",
		Help:      "Blocking calls executed through the sync/async bridge.",
	}, []string{"outcome"})

	// BridgeActive is the number of blocking calls holding a worker slot
	BridgeActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "bridge",
		Name:      "active_calls",
		Help:      "Blocking calls currently running on a worker slot.",
	})

	// BridgePaused is the number of blocking calls that released their slot to await sub-work
	BridgePaused = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "bridge",
		Name:      "paused_calls",
		Help:      "Blocking calls paused while awaiting asynchronous sub-work.",
	})

	// EventDispatches counts lifecycle event dispatches by kind and outcome
	EventDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "dispatches_total",
		Help:      "Lifecycle events dispatched to subscribers.",
	}, []string{"kind", "outcome"})

	// CacheLookups counts registry cache lookups by result
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Derived-data cache lookups.",
	}, []string{"cache", "result"})

	// ProviderCalls counts feature provider invocations
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "features",
		Name:      "provider_calls_total",
		Help:      "Feature provider invocations by feature and outcome.",
	}, []string{"feature", "outcome"})

	// IndexedFiles counts files written to an index tier
	IndexedFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "files_indexed_total",
		Help:      "Files (re)indexed per tier.",
	}, []string{"tier"})

	// WatchEvents counts file system changes handled by the watcher
	WatchEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "watcher",
		Name:      "events_total",
		Help:      "File changes handled by the watcher by action.",
	}, []string{"action"})

	// MissingSymbols counts analysis errors swallowed because the index lagged behind edits
	MissingSymbols = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "missing_symbols_total",
		Help:      "Type errors dropped because a declaration was not visible yet.",
	})
)

// Handler exposes the default registry over HTTP
func Handler() http.Handler {
	return promhttp.Handler()
}
