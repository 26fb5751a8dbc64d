package authstate

import "sync/atomic"

// MetricID identifies a specific counter in the in-process metrics system.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricBootstrapResolved is an exported constant or variable used by the reconciliation engine.
	MetricBootstrapResolved MetricID = iota
	// MetricBootstrapTimeout is an exported constant or variable used by the reconciliation engine.
	MetricBootstrapTimeout
	// MetricBootstrapRetry is an exported constant or variable used by the reconciliation engine.
	MetricBootstrapRetry
	// MetricBootstrapLateDiscarded is an exported constant or variable used by the reconciliation engine.
	MetricBootstrapLateDiscarded
	// MetricCachePreviewServed is an exported constant or variable used by the reconciliation engine.
	MetricCachePreviewServed
	// MetricCachePreviewExpired is an exported constant or variable used by the reconciliation engine.
	MetricCachePreviewExpired
	// MetricCacheHit is an exported constant or variable used by the reconciliation engine.
	MetricCacheHit
	// MetricCacheMiss is an exported constant or variable used by the reconciliation engine.
	MetricCacheMiss
	// MetricSignedIn is an exported constant or variable used by the reconciliation engine.
	MetricSignedIn
	// MetricSignedOut is an exported constant or variable used by the reconciliation engine.
	MetricSignedOut
	// MetricTokenRefreshed is an exported constant or variable used by the reconciliation engine.
	MetricTokenRefreshed
	// MetricPermissionFetchSuccess is an exported constant or variable used by the reconciliation engine.
	MetricPermissionFetchSuccess
	// MetricPermissionFetchFailure is an exported constant or variable used by the reconciliation engine.
	MetricPermissionFetchFailure
	// MetricPermissionStaleDiscarded is an exported constant or variable used by the reconciliation engine.
	MetricPermissionStaleDiscarded
	// MetricLoginSuccess is an exported constant or variable used by the reconciliation engine.
	MetricLoginSuccess
	// MetricLoginFailure is an exported constant or variable used by the reconciliation engine.
	MetricLoginFailure
	// MetricRegisterSuccess is an exported constant or variable used by the reconciliation engine.
	MetricRegisterSuccess
	// MetricRegisterFailure is an exported constant or variable used by the reconciliation engine.
	MetricRegisterFailure
	// MetricRefreshSuccess is an exported constant or variable used by the reconciliation engine.
	MetricRefreshSuccess
	// MetricRefreshFailure is an exported constant or variable used by the reconciliation engine.
	MetricRefreshFailure
	// MetricIdentityUpdated is an exported constant or variable used by the reconciliation engine.
	MetricIdentityUpdated
	// MetricLogout is an exported constant or variable used by the reconciliation engine.
	MetricLogout

	metricIDCount
)

type metricCounter struct {
	value uint64
	_     [7]uint64 // cache-line padding to avoid false sharing between counters
}

// Metrics holds atomic counters. When disabled, all operations are no-ops.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]metricCounter
}

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a new [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc describes the inc operation and its observable behavior.
//
// Inc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Get returns the current value of a single counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
