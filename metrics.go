package loginguard

import "sync/atomic"

// MetricID indexes one in-process counter.
type MetricID uint16

const (
	// MetricCheckAllowed counts checks that permitted an attempt.
	MetricCheckAllowed MetricID = iota
	// MetricCheckDenied counts checks denied by delay or lockout.
	MetricCheckDenied
	// MetricFailedAttempts counts recorded sign-in failures.
	MetricFailedAttempts
	// MetricLockoutsTriggered counts lockouts set at the threshold crossing.
	MetricLockoutsTriggered
	// MetricLockoutsExpired counts lockouts observed to have lapsed.
	MetricLockoutsExpired
	// MetricResets counts state resets after successful authentication.
	MetricResets
	// MetricLoginSuccess counts successful orchestrated sign-ins.
	MetricLoginSuccess
	// MetricLoginFailure counts failed orchestrated sign-ins.
	MetricLoginFailure
	// MetricConcurrentBlocked counts duplicate in-flight submissions rejected.
	MetricConcurrentBlocked
	// MetricStorageFallbacks counts writes that fell past a storage tier.
	MetricStorageFallbacks
	// MetricCorruptRecords counts stored payloads discarded as untrusted.
	MetricCorruptRecords
	// MetricSealFailures counts seal-boundary failures.
	MetricSealFailures
	// MetricCleanupRemoved counts records removed by the cleanup sweep.
	MetricCleanupRemoved
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed array of atomic counters. A disabled Metrics is inert
// and free to call into.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics returns a Metrics honoring cfg.Enabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether counters are being collected.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter. No-op when disabled or out of range.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Add adds n to the counter. No-op when disabled or out of range.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter into a fresh map.
func (m *Metrics) Snapshot() MetricsSnapshot {
	out := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricIDCount),
	}
	if m == nil {
		return out
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		out.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return out
}
