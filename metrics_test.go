package goAccounts

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginAllowed)

	if got := m.Value(MetricLoginAllowed); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricUserInserted)
	m.Inc(MetricUserInserted)
	m.Inc(MetricUserInserted)

	if got := m.Value(MetricUserInserted); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricResumeTokensPruned)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricResumeTokensPruned); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}

	for _, d := range observations {
		m.Observe(MetricValidateLoginLatency, d)
	}
	// Counters never accept observations.
	m.Observe(MetricLoginAllowed, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricValidateLoginLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if _, ok := snap.Histograms[MetricLoginAllowed]; ok {
		t.Fatal("counter must not produce a histogram")
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Inc(MetricLoginAllowed)
	m.Inc(MetricLoginRejected)
	m.Inc(MetricLoginRejected)
	m.Observe(MetricValidateLoginLatency, 2*time.Millisecond)

	snap := m.Snapshot()

	if snap.Counters[MetricLoginAllowed] != 1 {
		t.Fatalf("expected MetricLoginAllowed=1 got %d", snap.Counters[MetricLoginAllowed])
	}
	if snap.Counters[MetricLoginRejected] != 2 {
		t.Fatalf("expected MetricLoginRejected=2 got %d", snap.Counters[MetricLoginRejected])
	}
	if snap.Histograms[MetricValidateLoginLatency][0] != 1 {
		t.Fatalf("expected first histogram bucket=1 got %d", snap.Histograms[MetricValidateLoginLatency][0])
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginAllowed)
	m.Observe(MetricValidateLoginLatency, time.Second)
	if m.Enabled() || m.Value(MetricLoginAllowed) != 0 {
		t.Fatal("nil metrics must be inert")
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatal("nil metrics snapshot must be empty")
	}
}

func TestMetricsLoginRejectionsByCode(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.IncLoginRejection(ErrUserNotActivated.Code)
	m.IncLoginRejection(ErrUserNotActivated.Code)
	m.IncLoginRejection("")

	snap := m.Snapshot()
	if snap.LoginRejections[ErrUserNotActivated.Code] != 2 {
		t.Fatalf("expected 2 under %s, got %v", ErrUserNotActivated.Code, snap.LoginRejections)
	}
	if snap.LoginRejections["internal_error"] != 1 {
		t.Fatalf("expected uncoded rejections under internal_error, got %v", snap.LoginRejections)
	}

	disabled := NewMetrics(MetricsConfig{})
	disabled.IncLoginRejection(ErrUserNotActivated.Code)
	if len(disabled.Snapshot().LoginRejections) != 0 {
		t.Fatal("disabled metrics must not record rejections")
	}
}
