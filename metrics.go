package buddyline

import (
	"sync/atomic"
)

// MetricID identifies one SDK counter. IDs are dense and stable within a
// release so exporters can index by ID.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected by the backend or aborted locally.
	MetricLoginFailure
	// MetricRefreshSuccess counts refresh calls that produced a new access token.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refresh calls that failed without ending the session.
	MetricRefreshFailure
	// MetricRefreshExpired counts refresh calls that ended the session.
	MetricRefreshExpired
	// MetricRefreshShared counts refresh callers that attached to an
	// already-in-flight refresh instead of issuing their own.
	MetricRefreshShared
	// MetricRequestSuccess counts gateway calls that returned a 2xx.
	MetricRequestSuccess
	// MetricRequestFailure counts gateway calls that surfaced a classified error.
	MetricRequestFailure
	// MetricUnauthorizedRetry counts 401s that triggered a refresh-and-retry.
	MetricUnauthorizedRetry
	// MetricLogout counts logouts.
	MetricLogout
	// MetricStorageFailure counts credential store operations that failed.
	MetricStorageFailure
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the SDK's atomic counters. All methods are safe for
// concurrent use; a nil *Metrics is a valid no-op receiver so the counters
// disappear entirely when disabled.
type Metrics struct {
	counters [metricIDCount]paddedCounter
}

// NewMetrics returns a zeroed counter set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc adds one to the counter. Out-of-range IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies the counters. The copy is internally consistent per counter
// but not across counters; exporters tolerate that the same way the engine's
// do.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snap
}

// metricNames maps IDs to stable exporter names.
var metricNames = map[MetricID]string{
	MetricLoginSuccess:      "buddyline_login_success_total",
	MetricLoginFailure:      "buddyline_login_failure_total",
	MetricRefreshSuccess:    "buddyline_refresh_success_total",
	MetricRefreshFailure:    "buddyline_refresh_failure_total",
	MetricRefreshExpired:    "buddyline_refresh_expired_total",
	MetricRefreshShared:     "buddyline_refresh_shared_total",
	MetricRequestSuccess:    "buddyline_request_success_total",
	MetricRequestFailure:    "buddyline_request_failure_total",
	MetricUnauthorizedRetry: "buddyline_unauthorized_retry_total",
	MetricLogout:            "buddyline_logout_total",
	MetricStorageFailure:    "buddyline_storage_failure_total",
}

// MetricName returns the stable exporter name for id, or "" when unknown.
func MetricName(id MetricID) string {
	return metricNames[id]
}

// MetricIDs returns every defined counter ID in order.
func MetricIDs() []MetricID {
	ids := make([]MetricID, 0, metricIDCount)
	for id := MetricID(0); id < metricIDCount; id++ {
		ids = append(ids, id)
	}
	return ids
}
