package goAccounts

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricID identifies one pipeline counter or histogram.
type MetricID uint16

const (
	// MetricUserPrepared counts drafts that passed the creation decision step.
	MetricUserPrepared MetricID = iota
	// MetricUserRejected counts drafts refused by hooks, validation or the domain list.
	MetricUserRejected
	// MetricUserInserted counts users persisted by the insertion step.
	MetricUserInserted
	// MetricAdminNotificationSent counts "user to activate" mails sent to admins.
	MetricAdminNotificationSent
	// MetricAdminNotificationSkipped counts inactive users with no admin recipients.
	MetricAdminNotificationSkipped
	// MetricFirstAdminPromoted counts first-admin bootstrap promotions.
	MetricFirstAdminPromoted
	// MetricDefaultAvatarAssigned counts avatars set from a suggestion.
	MetricDefaultAvatarAssigned
	// MetricLoginAllowed counts attempts that passed the login gate.
	MetricLoginAllowed
	// MetricLoginRejected counts attempts rejected with a reason.
	MetricLoginRejected
	// MetricLoginDeferred counts attempts returned unchanged because they were not allowed upstream.
	MetricLoginDeferred
	// MetricLoginBlockedIP counts attempts refused by the per-address limiter.
	MetricLoginBlockedIP
	// MetricLoginBlockedUser counts attempts refused by the per-user limiter.
	MetricLoginBlockedUser
	// MetricLoginFailureRecorded counts failures fed into the limiter.
	MetricLoginFailureRecorded
	// MetricResumeTokensPruned counts prune passes that removed tokens.
	MetricResumeTokensPruned
	// MetricResumeTokenIssued counts resume tokens issued by the login drivers.
	MetricResumeTokenIssued
	// MetricRoomKeySet counts successful e2e room key assignments.
	MetricRoomKeySet
	// MetricRoomKeyConflict counts room key writes refused because a key exists.
	MetricRoomKeyConflict
	// MetricTaskDropped counts background tasks the queue refused.
	MetricTaskDropped
	// MetricTaskFailed counts background tasks that returned an error.
	MetricTaskFailed
	// MetricPasswordRehashed counts stored password hashes upgraded after login.
	MetricPasswordRehashed
	// MetricValidateLoginLatency is the login gate latency histogram.
	MetricValidateLoginLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free pipeline counters. A nil or disabled Metrics
// ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram

	rejectMu   sync.Mutex
	rejections map[string]uint64
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64

	// LoginRejections counts rejected logins by error code.
	LoginRejections map[string]uint64
	// AuditDropped counts audit events lost to backpressure by event type.
	AuditDropped map[string]uint64
	// TasksCompleted counts background tasks that ran, failed or not.
	TasksCompleted uint64
}

// NewMetrics returns a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
		rejections:    map[string]uint64{},
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// IncLoginRejection counts one rejected login under code.
func (m *Metrics) IncLoginRejection(code string) {
	if m == nil || !m.enabled {
		return
	}
	if code == "" {
		code = "internal_error"
	}
	m.rejectMu.Lock()
	m.rejections[code]++
	m.rejectMu.Unlock()
}

// Observe records d in the histogram id. Only latency metrics accept
// observations.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricValidateLoginLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters, and histograms when latency is enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return emptySnapshot()
	}

	s := MetricsSnapshot{
		Counters:        make(map[MetricID]uint64, int(metricIDCount)),
		Histograms:      make(map[MetricID][]uint64, 1),
		LoginRejections: map[string]uint64{},
		AuditDropped:    map[string]uint64{},
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	m.rejectMu.Lock()
	for code, n := range m.rejections {
		s.LoginRejections[code] = n
	}
	m.rejectMu.Unlock()

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricValidateLoginLatency].buckets[i])
		}
		s.Histograms[MetricValidateLoginLatency] = buckets
	}

	return s
}

func emptySnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Counters:        map[MetricID]uint64{},
		Histograms:      map[MetricID][]uint64{},
		LoginRejections: map[string]uint64{},
		AuditDropped:    map[string]uint64{},
	}
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
